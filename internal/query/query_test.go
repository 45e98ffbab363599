package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/sharckhai/neo-command/internal/country"
	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/graph/graphtest"
	"github.com/sharckhai/neo-command/internal/requirements"
	"github.com/sharckhai/neo-command/internal/vocab"
)

func ptr[T any](v T) *T { return &v }

// fixture builds a small graph over the real country table:
//
//	f1 Tamale Teaching Hospital  northern       300 beds  dialysis, general_surgery; dialysis_machine, operating_theatre
//	f2 Tamale Central Clinic     northern         8 beds  general_surgery, cesarean_section, neurosurgery; no equipment
//	f3 Korle Bu Teaching Hosp.   greater_accra          dialysis; dialysis_machine
//	f4 Accra Eye Clinic          greater_accra          raw text only
//	f5 Kumasi Polyclinic         ashanti                autoclave; LACKS x3
func fixture(t *testing.T) *Engine {
	t.Helper()
	c, err := country.Load("ghana")
	if err != nil {
		t.Fatalf("country.Load() error = %v", err)
	}
	v, err := vocab.Load()
	if err != nil {
		t.Fatalf("vocab.Load() error = %v", err)
	}
	reqs, err := requirements.Load()
	if err != nil {
		t.Fatalf("requirements.Load() error = %v", err)
	}

	b := graphtest.New(t)
	for _, key := range c.RegionKeys() {
		r, _ := c.Region(key)
		b.G.AddNode(&graph.Node{
			ID:     graph.RegionID(key),
			Type:   graph.NodeRegion,
			Region: &graph.RegionAttrs{Name: r.DisplayName, Population: r.Population, Capital: r.Capital, Lat: r.Lat, Lng: r.Lng},
		})
	}
	for _, key := range v.Keys(vocab.Capabilities) {
		en, _ := v.Entry(vocab.Capabilities, key)
		b.G.AddNode(&graph.Node{
			ID:    graph.CapabilityID(key),
			Type:  graph.NodeCapability,
			Vocab: &graph.VocabAttrs{DisplayName: en.Display, Category: en.Category, Complexity: en.Complexity},
		})
	}

	b.Facility("f1", "Tamale Teaching Hospital", "northern", graphtest.WithCapacity(300), graphtest.WithLocation(9.40, -0.84), graphtest.WithType("hospital"),
		graphtest.WithRaw(nil, nil, nil, "Teaching hospital with a renal unit and eye clinic")).
		Capability("f1", "dialysis", "general_surgery").
		Equipment("f1", "dialysis_machine", "operating_theatre").
		Specialty("f1", "nephrology", 0.9)
	b.Facility("f2", "Tamale Central Clinic", "northern", graphtest.WithCapacity(8), graphtest.WithLocation(9.41, -0.85), graphtest.WithType("clinic")).
		Capability("f2", "general_surgery", "cesarean_section", "neurosurgery")
	b.Facility("f3", "Korle Bu Teaching Hospital", "greater_accra", graphtest.WithLocation(5.54, -0.23), graphtest.WithType("hospital")).
		Capability("f3", "dialysis").
		Equipment("f3", "dialysis_machine").
		Specialty("f3", "nephrology", 0.9).
		Specialty("f3", "cardiology", 0.9)
	b.Facility("f4", "Accra Eye Clinic", "greater_accra",
		graphtest.WithRaw([]string{"Cataract extraction"}, nil, []string{"Eye exams"}, "Eye care and glaucoma screening"))
	b.Facility("f5", "Kumasi Polyclinic", "ashanti").
		Equipment("f5", "autoclave").
		EquipmentNode("anesthesia_machine", "blood_bank", "patient_monitor")
	for _, eq := range []string{"anesthesia_machine", "blood_bank", "patient_monitor"} {
		if _, err := b.G.AddEdge(&graph.Edge{
			Type: graph.Lacks,
			From: graph.FacilityID("f5"),
			To:   graph.EquipmentID(eq),
			Lacks: &graph.LacksAttrs{
				RequiredBy:     []string{"cesarean_section"},
				EvidenceStatus: "no_evidence",
			},
		}); err != nil {
			t.Fatal(err)
		}
	}
	for _, eq := range []string{"operating_theatre", "anesthesia_machine", "autoclave", "blood_bank", "patient_monitor"} {
		b.G.AddEdge(&graph.Edge{
			Type:  graph.Lacks,
			From:  graph.FacilityID("f2"),
			To:    graph.EquipmentID(eq),
			Lacks: &graph.LacksAttrs{RequiredBy: []string{"general_surgery"}, EvidenceStatus: "no_evidence"},
		})
	}
	b.G.AddEdge(&graph.Edge{
		Type:    graph.CouldSupport,
		From:    graph.FacilityID("f1"),
		To:      graph.CapabilityID("cesarean_section"),
		Support: &graph.SupportAttrs{Readiness: 0.6, Existing: []string{"operating_theatre"}, Missing: []string{"blood_bank"}},
	})
	b.G.AddEdge(&graph.Edge{
		Type:   graph.DesertFor,
		From:   graph.RegionID("volta"),
		To:     graph.SpecialtyID("cardiology"),
		Desert: &graph.DesertAttrs{Population: 1_659_040, NearestRegion: "greater_accra", Severity: 1.7},
	})
	b.NGO("n1", "Northern Health Aid", "northern")
	b.G.Freeze()
	return New(b.G, c, v, reqs)
}

func TestNameScore(t *testing.T) {
	tests := []struct {
		query, name string
		want        float64
	}{
		{"korle bu", "Korle Bu Teaching Hospital", 0.8},
		{"Korle Bu Teaching Hospital Accra", "Korle Bu Teaching Hospital", 0.7},
		{"tamale hospital", "Tamale Teaching Hospital", 0.6},
		{"tamale clinic annex", "Tamale Teaching Hospital", 0.2},
		{"kumasi", "Tamale Teaching Hospital", 0},
		{"", "Tamale Teaching Hospital", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := NameScore(tt.query, tt.name); got != tt.want {
				t.Errorf("NameScore(%q, %q) = %v, want %v", tt.query, tt.name, got, tt.want)
			}
		})
	}
}

func TestFindFacility(t *testing.T) {
	e := fixture(t)

	got, err := e.FindFacility("tamale", "", 0)
	if err != nil {
		t.Fatalf("FindFacility() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindFacility(tamale) = %d results, want 2", len(got))
	}

	got, _ = e.FindFacility("tamale", "Greater Accra", 0)
	if len(got) != 0 {
		t.Errorf("region filter: got %d results, want 0", len(got))
	}

	got, _ = e.FindFacility("hospital", "", 1)
	if len(got) != 1 {
		t.Errorf("limit: got %d results, want 1", len(got))
	}

	if _, err := e.FindFacility(" ", "", 0); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("empty name error = %v, want ErrMissingParameter", err)
	}
}

func ids(hits []Hit) map[string]bool {
	out := make(map[string]bool)
	for _, h := range hits {
		out[h.FacilityID] = true
	}
	return out
}

func TestSearchFacilitiesConjunction(t *testing.T) {
	e := fixture(t)
	search := func(f Filters) map[string]bool {
		t.Helper()
		res, err := e.SearchFacilities(f, "", 0)
		if err != nil {
			t.Fatalf("SearchFacilities(%+v) error = %v", f, err)
		}
		return ids(res.Results)
	}

	both := search(Filters{Region: "northern", Capability: "dialysis"})
	if len(both) != 1 || !both[graph.FacilityID("f1")] {
		t.Errorf("region+capability = %v, want only f1", both)
	}
	region := search(Filters{Region: "northern"})
	capability := search(Filters{Capability: "dialysis"})
	for id := range both {
		if !region[id] || !capability[id] {
			t.Errorf("%s matched both filters but not each alone", id)
		}
	}
	if len(region) < len(both) || len(capability) < len(both) {
		t.Error("dropping a filter narrowed the results")
	}
	if !capability[graph.FacilityID("f3")] {
		t.Error("capability-only search missed f3")
	}
}

func TestSearchFacilitiesGeoAndSort(t *testing.T) {
	e := fixture(t)

	res, err := e.SearchFacilities(Filters{NearLat: ptr(9.40), NearLng: ptr(-0.84), RadiusKm: ptr(50.0)}, SortDistance, 0)
	if err != nil {
		t.Fatalf("SearchFacilities() error = %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("radius search = %d results, want 2", res.Total)
	}
	if res.Results[0].FacilityID != graph.FacilityID("f1") || *res.Results[0].DistanceKm != 0 {
		t.Errorf("nearest = %s at %v, want f1 at 0", res.Results[0].FacilityID, *res.Results[0].DistanceKm)
	}

	res, _ = e.SearchFacilities(Filters{}, SortCapacity, 0)
	if res.Results[0].FacilityID != graph.FacilityID("f1") || res.Results[1].FacilityID != graph.FacilityID("f2") {
		t.Errorf("capacity order = %s, %s", res.Results[0].FacilityID, res.Results[1].FacilityID)
	}

	if _, err := e.SearchFacilities(Filters{}, "alphabetical", 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad sort error = %v", err)
	}
	if _, err := e.SearchFacilities(Filters{RadiusKm: ptr(10.0)}, "", 0); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("radius without point error = %v", err)
	}
}

func TestCountFacilities(t *testing.T) {
	e := fixture(t)

	res, err := e.CountFacilities(GroupRegion, Filters{}, DefaultMinConfidence)
	if err != nil {
		t.Fatalf("CountFacilities() error = %v", err)
	}
	if res.Total != 5 {
		t.Errorf("total = %d, want 5", res.Total)
	}
	got := make(map[string]GroupCount)
	for _, g := range res.Groups {
		got[g.Key] = g
	}
	if g := got["northern"]; g.Count != 2 || g.Percentage != 40 {
		t.Errorf("northern = %+v, want 2 / 40%%", g)
	}

	res, _ = e.CountFacilities(GroupCapability, Filters{Region: "northern"}, DefaultMinConfidence)
	got = make(map[string]GroupCount)
	for _, g := range res.Groups {
		got[g.Key] = g
	}
	if g := got["general_surgery"]; g.Count != 2 || g.Percentage != 100 {
		t.Errorf("general_surgery = %+v", g)
	}
	if g := got["dialysis"]; g.Count != 1 || g.Percentage != 50 {
		t.Errorf("dialysis = %+v", g)
	}

	if _, err := e.CountFacilities("colour", Filters{}, 0.5); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad group error = %v", err)
	}
}

func TestSearchRawText(t *testing.T) {
	e := fixture(t)

	res, err := e.SearchRawText([]string{"GLAUCOMA"}, nil, "", 0)
	if err != nil {
		t.Fatalf("SearchRawText() error = %v", err)
	}
	if res.Total != 1 || res.Results[0].FacilityID != graph.FacilityID("f4") {
		t.Fatalf("results = %+v", res.Results)
	}
	if got := res.Results[0].MatchedFields[FieldDescription]; len(got) != 1 {
		t.Errorf("matched description = %v", got)
	}

	res, _ = e.SearchRawText([]string{"eye", "cataract"}, []string{FieldProcedures, FieldCapabilities}, "", 0)
	m := res.Results[0].MatchedFields
	if len(m[FieldProcedures]) != 1 || len(m[FieldCapabilities]) != 1 {
		t.Errorf("matched = %v, one item per field", m)
	}

	if _, err := e.SearchRawText([]string{"x"}, []string{"name"}, "", 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad field error = %v", err)
	}
	if _, err := e.SearchRawText(nil, nil, "", 0); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("no terms error = %v", err)
	}
}

func TestSearchRawTextTruncation(t *testing.T) {
	e := fixture(t)

	res, err := e.SearchRawText([]string{"eye"}, nil, "", 0)
	if err != nil {
		t.Fatalf("SearchRawText() error = %v", err)
	}
	if res.Total != 2 || res.Truncated {
		t.Fatalf("untruncated = %+v", res)
	}

	res, _ = e.SearchRawText([]string{"eye"}, nil, "", 1)
	if !res.Truncated || res.Total != 1 || len(res.Results) != 1 || res.Note == "" {
		t.Errorf("truncated = %+v", res)
	}

	res, _ = e.SearchRawText([]string{"eye"}, nil, "northern", 1)
	if res.Truncated || res.Results[0].FacilityID != graph.FacilityID("f1") {
		t.Errorf("region narrowed = %+v", res)
	}
}

func TestFacilityMismatch(t *testing.T) {
	e := fixture(t)

	m, err := e.FacilityMismatch("f5")
	if err != nil {
		t.Fatalf("FacilityMismatch() error = %v", err)
	}
	if m.MismatchRatio != 0.75 {
		t.Errorf("mismatch ratio = %v, want 0.75", m.MismatchRatio)
	}
	if len(m.Lacks) != 3 || len(m.ConfirmedEquipment) != 1 {
		t.Errorf("lacks = %d confirmed = %d", len(m.Lacks), len(m.ConfirmedEquipment))
	}

	if _, err := e.FacilityMismatch("facility::nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown facility error = %v, want ErrNotFound", err)
	}
}

func TestFacilityMismatchCountsEdges(t *testing.T) {
	c, err := country.Load("ghana")
	if err != nil {
		t.Fatalf("country.Load() error = %v", err)
	}
	v, err := vocab.Load()
	if err != nil {
		t.Fatalf("vocab.Load() error = %v", err)
	}
	reqs, err := requirements.Load()
	if err != nil {
		t.Fatalf("requirements.Load() error = %v", err)
	}

	b := graphtest.New(t)
	b.Facility("m1", "Bolga Imaging Centre", "").
		Equipment("m1", "mri").
		Equipment("m1", "mri").
		EquipmentNode("operating_theatre", "anesthesia_machine", "autoclave", "blood_bank", "patient_monitor")
	for _, eq := range []string{"operating_theatre", "anesthesia_machine", "autoclave", "blood_bank", "patient_monitor"} {
		if _, err := b.G.AddEdge(&graph.Edge{
			Type:  graph.Lacks,
			From:  graph.FacilityID("m1"),
			To:    graph.EquipmentID(eq),
			Lacks: &graph.LacksAttrs{RequiredBy: []string{"cesarean_section"}, EvidenceStatus: "no_evidence"},
		}); err != nil {
			t.Fatal(err)
		}
	}
	b.G.Freeze()
	e := New(b.G, c, v, reqs)

	m, err := e.FacilityMismatch("m1")
	if err != nil {
		t.Fatalf("FacilityMismatch() error = %v", err)
	}
	if m.MismatchRatio != 0.714 {
		t.Errorf("mismatch ratio = %v, want 0.714", m.MismatchRatio)
	}
	if len(m.ConfirmedEquipment) != 1 {
		t.Errorf("confirmed equipment = %v, want [mri]", m.ConfirmedEquipment)
	}
}

func TestSuspiciousFacilities(t *testing.T) {
	e := fixture(t)
	got := e.SuspiciousFacilities(DefaultSuspiciousRatio, "", 0)
	if len(got) != 2 {
		t.Fatalf("suspicious = %d, want 2", len(got))
	}
	if got[0].FacilityID != graph.FacilityID("f2") || got[0].MismatchRatio != 1 {
		t.Errorf("worst = %s %v, want f2 1.0", got[0].FacilityID, got[0].MismatchRatio)
	}
	if got := e.SuspiciousFacilities(0.8, "", 0); len(got) != 1 {
		t.Errorf("min ratio 0.8 = %d results, want 1", len(got))
	}
}

func flaggedIDs(res *AnomalyResult) map[string]Anomaly {
	out := make(map[string]Anomaly)
	for _, a := range res.Flagged {
		out[graph.KeyOf(a.FacilityID)] = a
	}
	return out
}

func TestDetectAnomalies(t *testing.T) {
	e := fixture(t)
	run := func(check string) map[string]Anomaly {
		t.Helper()
		res, err := e.DetectAnomalies(check, "", nil, 0)
		if err != nil {
			t.Fatalf("DetectAnomalies(%s) error = %v", check, err)
		}
		return flaggedIDs(res)
	}

	size := run(CheckProcedureVsSize)
	if a, ok := size["f2"]; !ok || a.Score != 0.73 {
		t.Errorf("procedure_vs_size f2 = %+v", a)
	}
	if _, ok := size["f1"]; ok {
		t.Error("procedure_vs_size flagged the 300-bed hospital")
	}

	claims := run(CheckEquipmentVsClaims)
	if _, ok := claims["f2"]; !ok {
		t.Error("equipment_vs_claims missed f2")
	}
	if _, ok := claims["f5"]; ok {
		t.Error("equipment_vs_claims flagged f5 which claims nothing")
	}

	corr := run(CheckFeatureCorrelation)
	if _, ok := corr["f2"]; !ok {
		t.Error("feature_correlation missed surgery without theatre")
	}
	if _, ok := corr["f1"]; ok {
		t.Error("feature_correlation flagged f1")
	}

	beds := run(CheckBedORRatio)
	if a, ok := beds["f2"]; !ok || a.Score != 0.2 {
		t.Errorf("bed_or_ratio f2 = %+v", a)
	}

	if _, err := e.DetectAnomalies("vibes", "", nil, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("unknown check error = %v", err)
	}
}

func TestColdSpots(t *testing.T) {
	e := fixture(t)

	res, err := e.ColdSpots("dialysis", "", 0, true)
	if err != nil {
		t.Fatalf("ColdSpots() error = %v", err)
	}
	if res.Providers != 2 {
		t.Errorf("providers = %d, want 2", res.Providers)
	}
	cold := make(map[string]ColdSpot)
	for _, c := range res.ColdSpots {
		cold[c.Region] = c
	}
	for _, r := range []string{"northern", "greater_accra", "eastern"} {
		if _, ok := cold[r]; ok {
			t.Errorf("%s reported cold", r)
		}
	}
	for _, r := range []string{"upper_east", "upper_west"} {
		if c, ok := cold[r]; !ok || c.NearestFacilityKm == nil || *c.NearestFacilityKm <= 100 {
			t.Errorf("%s = %+v, want cold spot beyond 100 km", r, c)
		}
	}
	if res.CoveredRegions+len(res.ColdSpots) != len(e.country.RegionKeys()) {
		t.Errorf("covered %d + cold %d != regions", res.CoveredRegions, len(res.ColdSpots))
	}
	for i := 1; i < len(res.ColdSpots); i++ {
		if res.ColdSpots[i].Severity > res.ColdSpots[i-1].Severity {
			t.Fatal("cold spots not sorted by severity")
		}
	}

	res, _ = e.ColdSpots("", "oncology", 0, false)
	if len(res.ColdSpots) != len(e.country.RegionKeys()) || res.ColdSpots[0].NearestFacilityKm != nil {
		t.Errorf("no providers: %d cold spots", len(res.ColdSpots))
	}

	if _, err := e.ColdSpots("", "", 0, true); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("no service error = %v", err)
	}
}

func TestEquityRanking(t *testing.T) {
	e := fixture(t)
	got := e.EquityRanking()
	if len(got) != len(e.country.RegionKeys()) {
		t.Fatalf("ranking has %d regions", len(got))
	}
	for i, r := range got {
		if r.Rank != i+1 {
			t.Errorf("rank[%d] = %d", i, r.Rank)
		}
		if i > 0 && r.Score > got[i-1].Score {
			t.Errorf("ranking not sorted at %d", i)
		}
	}
}

func TestRegionContext(t *testing.T) {
	e := fixture(t)

	res, err := e.RegionContext("Northern", "nephrology")
	if err != nil {
		t.Fatalf("RegionContext() error = %v", err)
	}
	if res.Region != "northern" || res.FacilityCount != 2 {
		t.Errorf("region = %s facilities = %d", res.Region, res.FacilityCount)
	}
	if res.Service.Providers != 1 || res.Service.PopulationPerProvider == nil {
		t.Errorf("service = %+v", res.Service)
	}

	res, _ = e.RegionContext("eastern", "cardiology")
	if res.Service.Providers != 0 || res.Service.NearestAlternative != "greater_accra" {
		t.Errorf("eastern cardiology = %+v", res.Service)
	}
	if res.Equity.Rank == 0 || res.Equity.TotalRegions != len(e.country.RegionKeys()) {
		t.Errorf("equity = %+v", res.Equity)
	}

	if _, err := e.RegionContext("atlantis", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown region error = %v", err)
	}
}

func TestGapQueries(t *testing.T) {
	e := fixture(t)

	up, err := e.CouldSupport("cesarean_section", DefaultCouldSupportReadiness)
	if err != nil || len(up) != 1 || up[0].Readiness != 0.6 {
		t.Errorf("CouldSupport = %+v, %v", up, err)
	}
	if up, _ := e.CouldSupport("cesarean_section", 0.7); len(up) != 0 {
		t.Errorf("CouldSupport(0.7) = %d results", len(up))
	}

	ds, _ := e.DesertsForSpecialty("cardiology")
	if len(ds) != 1 || ds[0].Region != "volta" {
		t.Errorf("deserts = %+v", ds)
	}

	ngo := e.NGOGaps()
	if len(ngo.Uncovered) != len(e.country.RegionKeys())-1 {
		t.Errorf("uncovered = %d", len(ngo.Uncovered))
	}
	if ngo.Uncovered[0].Region != "volta" {
		t.Errorf("neediest uncovered = %s, want volta (one desert)", ngo.Uncovered[0].Region)
	}

	comp, err := e.EquipmentCompliance("general_surgery", "")
	if err != nil {
		t.Fatalf("EquipmentCompliance() error = %v", err)
	}
	if c := comp.Capabilities[0]; c.Claiming != 2 || c.FullyEquipped != 0 {
		t.Errorf("general_surgery compliance = %+v", c)
	}

	req, err := e.CapabilityRequirements("general_surgery", []string{"f1", "nope"})
	if err != nil {
		t.Fatalf("CapabilityRequirements() error = %v", err)
	}
	if req.Comparisons[0].Compliance != 0.25 || req.Comparisons[1].Error == "" {
		t.Errorf("comparisons = %+v", req.Comparisons)
	}

	lacks, _ := e.FacilityLacks("general_surgery", nil, "")
	if lacks.Count != 1 || lacks.Results[0].MissingCount != 5 || len(lacks.Results[0].Claims) != 1 {
		t.Errorf("lacks = %+v", lacks)
	}
}

func TestResolveTerms(t *testing.T) {
	e := fixture(t)
	res, err := e.ResolveTerms([]string{"dialysis", "Nephrology", "crystal healing", "cardio"}, "", false)
	if err != nil {
		t.Fatalf("ResolveTerms() error = %v", err)
	}
	if len(res.Unmapped) != 1 || res.Unmapped[0] != "crystal healing" {
		t.Errorf("unmapped = %v", res.Unmapped)
	}
	if res.Coverage != 0.75 || res.Strategy != StrategyGraph {
		t.Errorf("coverage = %v strategy = %s", res.Coverage, res.Strategy)
	}
	var spec []TermMatch
	for _, m := range res.Mapped {
		if m.Domain == DomainSpecialties {
			spec = append(spec, m)
		}
	}
	if len(spec) != 2 || spec[0].Confidence != 0.9 || spec[1].Confidence != 0.7 {
		t.Errorf("specialty matches = %+v", spec)
	}

	res, _ = e.ResolveTerms([]string{"crystal healing"}, "", true)
	if res.Strategy != StrategyRawText || res.Vocabulary == nil || len(res.Vocabulary.Specialties) != 2 {
		t.Errorf("raw text strategy = %+v", res)
	}
}

func TestOverview(t *testing.T) {
	e := fixture(t)

	nat, err := e.Overview(ScopeNational, "")
	if err != nil {
		t.Fatalf("Overview(national) error = %v", err)
	}
	if nat.Stats == nil || len(nat.Regions) != len(e.country.RegionKeys()) || nat.TopSpecialties[0].Specialty != "nephrology" {
		t.Errorf("national overview = %+v", nat)
	}
	if nat.Population != e.country.TotalPopulation() || nat.PopPerFacility != int(geo.Round(float64(nat.Population)/5, 0)) {
		t.Errorf("national population = %d, per facility %d", nat.Population, nat.PopPerFacility)
	}

	reg, _ := e.Overview(ScopeRegion, "northern")
	if reg.Region.FacilityCount != 2 || reg.Region.NGOCount != 1 || len(reg.Region.Facilities) != 2 {
		t.Errorf("region overview = %+v", reg.Region)
	}

	spec, _ := e.Overview(ScopeSpecialty, "nephrology")
	if spec.Specialty.FacilityCount != 2 || spec.Specialty.Capabilities[0].Key != "dialysis" {
		t.Errorf("specialty overview = %+v", spec.Specialty)
	}

	if _, err := e.Overview(ScopeSpecialty, "astrology"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown specialty error = %v", err)
	}
	if _, err := e.Overview("galaxy", ""); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad scope error = %v", err)
	}
}

func TestRegistryKinds(t *testing.T) {
	for _, kind := range Kinds() {
		if got := registry[kind]().Kind(); got != kind {
			t.Errorf("registry[%q] builds %q", kind, got)
		}
	}
}

func TestDecodeAndExecute(t *testing.T) {
	e := fixture(t)

	r, err := Decode([]byte(`{"query": "facility_mismatch", "params": {"facility_id": "f5"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	res, err := e.Execute(r)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if m, ok := res.(*Mismatch); !ok || m.MismatchRatio != 0.75 {
		t.Errorf("result = %#v", res)
	}

	r, _ = Decode([]byte(`{"query": "search_facilities", "params": {"region": "northern", "capability": "dialysis"}}`))
	res, _ = e.Execute(r)
	if sr := res.(*SearchResult); sr.Total != 1 {
		t.Errorf("decoded search total = %d, want 1", sr.Total)
	}

	if _, err := Decode([]byte(`{"query": "launch_rockets"}`)); !errors.Is(err, ErrUnknownQuery) {
		t.Errorf("unknown kind error = %v", err)
	}
}

func TestExecuteBatch(t *testing.T) {
	e := fixture(t)
	reqs, err := DecodeBatch([]byte(`[
		{"query": "facility_mismatch", "params": {"facility_id": "missing"}},
		{"query": "graph_summary"},
		{"query": "cold_spots", "params": {}}
	]`))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	out := e.ExecuteBatch(reqs)
	if len(out) != 3 {
		t.Fatalf("responses = %d", len(out))
	}
	if out[0].Error == "" || out[0].Result != nil {
		t.Errorf("missing facility response = %+v", out[0])
	}
	if out[1].Error != "" || out[1].Result == nil {
		t.Errorf("summary response = %+v", out[1])
	}
	if out[2].Error == "" {
		t.Error("cold spots without service succeeded")
	}
}

func TestExecuteBatchKeepsUndecodableEntries(t *testing.T) {
	e := fixture(t)
	reqs, err := DecodeBatch([]byte(`[
		{"query": "list_regionz"},
		{"query": "list_regions"},
		{"query": "region_details", "params": {"region": 7}},
		"not an object"
	]`))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	out := e.ExecuteBatch(reqs)
	if len(out) != 4 {
		t.Fatalf("responses = %d, want 4", len(out))
	}
	if out[0].Query != "list_regionz" || !strings.Contains(out[0].Error, "unknown query") || out[0].Result != nil {
		t.Errorf("misspelled kind response = %+v", out[0])
	}
	if out[1].Error != "" || out[1].Result == nil {
		t.Errorf("list_regions response = %+v", out[1])
	}
	if out[2].Query != "region_details" || out[2].Error == "" {
		t.Errorf("bad params response = %+v", out[2])
	}
	if out[3].Error == "" {
		t.Errorf("non-object response = %+v", out[3])
	}

	if _, err := DecodeBatch([]byte(`{"query": "list_regions"}`)); err == nil {
		t.Error("DecodeBatch() accepted a non-array")
	}
}
