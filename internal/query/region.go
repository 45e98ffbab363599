package query

import (
	"fmt"
	"sort"

	"github.com/sharckhai/neo-command/internal/desert"
	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
)

// Fallbacks for regions without indicator or travel data.
const (
	defaultInfantMortality   = 30
	defaultChildAnemia       = 40
	defaultNoInsuranceWomen  = 10
	defaultFacilityDelivery  = 80
	defaultTravelMultiplier  = 1.5
	popPerFacilityScale      = 200
	popPerFacilityCap        = 100
	travelPenaltyPerMultiple = 40
)

// Equity is one region's composite need score. Higher scores are more
// underserved; rank 1 is the most underserved region.
type Equity struct {
	Rank           int     `json:"rank"`
	Region         string  `json:"region"`
	Display        string  `json:"display_name"`
	Score          float64 `json:"equity_score"`
	Population     int     `json:"population"`
	FacilityCount  int     `json:"facility_count"`
	PopPerFacility int     `json:"pop_per_facility"`
}

func (e *Engine) travelMultiplier(region string) float64 {
	if r, ok := e.country.Region(region); ok && r.Travel.Multiplier > 0 {
		return r.Travel.Multiplier
	}
	return defaultTravelMultiplier
}

// EquityRanking scores every region from population per facility, health
// indicators and the travel multiplier, most underserved first.
func (e *Engine) EquityRanking() []Equity {
	var out []Equity
	for _, key := range e.country.RegionKeys() {
		r, _ := e.country.Region(key)
		count := len(e.regionFacilities(key))
		ppf := float64(r.Population) / float64(max(count, 1))

		score := min(ppf/popPerFacilityScale, popPerFacilityCap)
		score += e.country.Indicator(key, "infant_mortality", defaultInfantMortality)
		score += e.country.Indicator(key, "child_anemia_pct", defaultChildAnemia)
		score += e.country.Indicator(key, "no_insurance_women_pct", defaultNoInsuranceWomen) * 2
		score += 100 - e.country.Indicator(key, "facility_delivery_pct", defaultFacilityDelivery)
		score += (e.travelMultiplier(key) - 1) * travelPenaltyPerMultiple

		out = append(out, Equity{
			Region:         key,
			Display:        r.DisplayName,
			Score:          geo.Round(score, 1),
			Population:     r.Population,
			FacilityCount:  count,
			PopPerFacility: int(geo.Round(ppf, 0)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// indicatorLabels maps result labels to indicator keys.
var indicatorLabels = []struct{ label, key string }{
	{"infant_mortality_per_1000", "infant_mortality"},
	{"neonatal_mortality_per_1000", "neonatal_mortality"},
	{"under5_mortality_per_1000", "under5_mortality"},
	{"child_anemia_pct", "child_anemia_pct"},
	{"women_anemia_pct", "women_anemia_pct"},
	{"fully_vaccinated_pct", "fully_vaccinated_pct"},
	{"dpt3_coverage_pct", "dpt3_pct"},
	{"measles_coverage_pct", "measles_pct"},
	{"no_insurance_women_pct", "no_insurance_women_pct"},
	{"no_insurance_men_pct", "no_insurance_men_pct"},
	{"total_fertility_rate", "total_fertility_rate"},
	{"cesarean_delivery_pct", "cesarean_pct"},
	{"facility_delivery_pct", "facility_delivery_pct"},
	{"skilled_antenatal_pct", "skilled_antenatal_pct"},
	{"skilled_delivery_pct", "skilled_delivery_pct"},
}

// Access describes travel conditions in a region.
type Access struct {
	Classification string  `json:"classification"`
	Multiplier     float64 `json:"travel_multiplier"`
	RoadQuality    string  `json:"road_quality"`
	Notes          string  `json:"notes,omitempty"`
}

// ServiceContext describes one service within a region.
type ServiceContext struct {
	Service               string `json:"specialty"`
	Providers             int    `json:"providers_in_region"`
	PopulationPerProvider *int   `json:"population_per_provider"`
	NearestAlternative    string `json:"nearest_alternative_region,omitempty"`
}

// EquityContext places a region in the national ranking.
type EquityContext struct {
	Rank           int      `json:"rank"`
	Score          float64  `json:"score"`
	TotalRegions   int      `json:"total_regions"`
	Interpretation string   `json:"interpretation"`
	TopUnderserved []Equity `json:"top_5_underserved"`
}

// RegionContextResult is the result of RegionContext.
type RegionContextResult struct {
	Region           string              `json:"region"`
	Display          string              `json:"display_name"`
	Population       int                 `json:"population"`
	Capital          string              `json:"capital"`
	FacilityCount    int                 `json:"facility_count"`
	PopPerFacility   int                 `json:"population_per_facility"`
	Access           Access              `json:"access"`
	IndicatorSource  string              `json:"indicator_source,omitempty"`
	HealthIndicators map[string]*float64 `json:"health_indicators"`
	Service          *ServiceContext     `json:"specialty_context,omitempty"`
	Equity           EquityContext       `json:"equity"`
}

// RegionContext gathers population, access, health indicators and equity
// standing for a region. With service set it adds the number of providers
// of that capability or specialty and, when there are none, the nearest
// region that has one.
func (e *Engine) RegionContext(region, service string) (*RegionContextResult, error) {
	key, err := e.requireRegion(region)
	if err != nil {
		return nil, err
	}
	r, _ := e.country.Region(key)
	count := len(e.regionFacilities(key))

	res := &RegionContextResult{
		Region:         key,
		Display:        r.DisplayName,
		Population:     r.Population,
		Capital:        r.Capital,
		FacilityCount:  count,
		PopPerFacility: int(geo.Round(float64(r.Population)/float64(max(count, 1)), 0)),
		Access: Access{
			Classification: r.Travel.Classification,
			Multiplier:     e.travelMultiplier(key),
			RoadQuality:    r.Travel.RoadQuality,
			Notes:          r.Travel.Notes,
		},
		HealthIndicators: make(map[string]*float64),
	}
	if res.Access.Classification == "" {
		res.Access.Classification = "unknown"
	}
	if ind := e.country.Indicators[key]; len(ind) > 0 {
		res.IndicatorSource = e.country.DisplayName + " DHS"
		for _, l := range indicatorLabels {
			if v, ok := ind[l.key]; ok {
				res.HealthIndicators[l.label] = &v
			} else {
				res.HealthIndicators[l.label] = nil
			}
		}
	}

	if service != "" {
		sc := &ServiceContext{Service: service, Providers: e.providersIn(key, service)}
		if sc.Providers > 0 {
			ppp := int(geo.Round(float64(r.Population)/float64(sc.Providers), 0))
			sc.PopulationPerProvider = &ppp
		} else {
			served := make(map[string]bool)
			for _, k := range e.country.RegionKeys() {
				if e.providersIn(k, service) > 0 {
					served[k] = true
				}
			}
			sc.NearestAlternative = desert.Nearest(key, served, e.country.Adjacency())
		}
		res.Service = sc
	}

	ranking := e.EquityRanking()
	res.Equity = EquityContext{
		TotalRegions:   len(ranking),
		Interpretation: fmt.Sprintf("1 = most underserved, %d = best served", len(ranking)),
		TopUnderserved: ranking[:min(5, len(ranking))],
	}
	for _, eq := range ranking {
		if eq.Region == key {
			res.Equity.Rank, res.Equity.Score = eq.Rank, eq.Score
		}
	}
	return res, nil
}

func (e *Engine) providersIn(region, service string) int {
	n := 0
	for _, f := range e.regionFacilities(region) {
		if e.providesService(f.ID, service) {
			n++
		}
	}
	return n
}

// RegionSummary is one row of ListRegions.
type RegionSummary struct {
	Region        string `json:"region"`
	Name          string `json:"name"`
	Population    int    `json:"population"`
	Capital       string `json:"capital,omitempty"`
	FacilityCount int    `json:"facility_count"`
	NGOCount      int    `json:"ngo_count"`
	DesertCount   int    `json:"desert_count"`
}

func (e *Engine) regionSummary(r *graph.Node) RegionSummary {
	return RegionSummary{
		Region:        graph.KeyOf(r.ID),
		Name:          r.Region.Name,
		Population:    r.Region.Population,
		Capital:       r.Region.Capital,
		FacilityCount: len(e.regionFacilities(graph.KeyOf(r.ID))),
		NGOCount:      len(e.g.In(r.ID, graph.OperatesIn)),
		DesertCount:   len(e.g.Out(r.ID, graph.DesertFor)),
	}
}

// ListRegions summarizes every region.
func (e *Engine) ListRegions() []RegionSummary {
	out := []RegionSummary{}
	for _, r := range e.g.Nodes(graph.NodeRegion) {
		out = append(out, e.regionSummary(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// RegionDetail is the deep view of one region.
type RegionDetail struct {
	RegionSummary
	Specialties []GroupCount     `json:"specialties"`
	Deserts     []desert.Desert  `json:"deserts"`
	NGOs        []string         `json:"ngos"`
	Neighbours  []string         `json:"neighbours"`
	Facilities  []RegionFacility `json:"facilities"`
}

// RegionDetails returns facilities, specialty counts, deserts, NGOs and
// neighbours of a region.
func (e *Engine) RegionDetails(region string) (*RegionDetail, error) {
	key, err := e.requireRegion(region)
	if err != nil {
		return nil, err
	}
	rn, ok := e.g.Node(graph.RegionID(key))
	if !ok {
		return nil, notFound("region", key)
	}
	d := &RegionDetail{
		RegionSummary: e.regionSummary(rn),
		Deserts:       []desert.Desert{},
		NGOs:          []string{},
	}
	if r, ok := e.country.Region(key); ok {
		d.Neighbours = r.Adjacent
	}

	facilities, _ := e.RegionFacilities(key, "", 0)
	d.Facilities = facilities

	counts := make(map[string]int)
	for _, f := range e.regionFacilities(key) {
		for _, s := range e.keys(f.ID, graph.HasSpecialty, DefaultMinConfidence) {
			counts[s]++
		}
	}
	d.Specialties = groupCounts(counts, d.FacilityCount)

	for _, ds := range desert.List(e.g, "") {
		if ds.Region == key {
			d.Deserts = append(d.Deserts, ds)
		}
	}
	for _, ed := range e.g.In(rn.ID, graph.OperatesIn) {
		d.NGOs = append(d.NGOs, e.displayName(ed.From))
	}
	return d, nil
}

func groupCounts(counts map[string]int, total int) []GroupCount {
	out := []GroupCount{}
	for k, c := range counts {
		out = append(out, GroupCount{Key: k, Count: c, Percentage: percent(c, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// DefaultRegionFacilityLimit bounds RegionFacilities.
const DefaultRegionFacilityLimit = 50

// RegionFacility is one row of RegionFacilities.
type RegionFacility struct {
	FacilityRef
	Capacity    *int     `json:"capacity,omitempty"`
	Specialties []string `json:"specialties"`
}

// RegionFacilities lists the facilities of a region, optionally only those
// with a specialty.
func (e *Engine) RegionFacilities(region, specialty string, limit int) ([]RegionFacility, error) {
	key, err := e.requireRegion(region)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRegionFacilityLimit
	}
	out := []RegionFacility{}
	for _, f := range e.regionFacilities(key) {
		specs := e.keys(f.ID, graph.HasSpecialty, 0)
		if specialty != "" && !contains(specs, specialty) {
			continue
		}
		out = append(out, RegionFacility{FacilityRef: ref(f), Capacity: f.Facility.Capacity, Specialties: specs})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SpecialtyDistribution counts facilities per specialty per region at
// confidence 0.5 or more.
func (e *Engine) SpecialtyDistribution() map[string]map[string]int {
	out := make(map[string]map[string]int)
	for region, specs := range desert.Coverage(e.g, DefaultMinConfidence) {
		for s, n := range specs {
			if out[s] == nil {
				out[s] = make(map[string]int)
			}
			out[s][region] = n
		}
	}
	return out
}

// SpecialtyCount is one row of ListSpecialties.
type SpecialtyCount struct {
	Specialty     string `json:"specialty"`
	Display       string `json:"display_name"`
	FacilityCount int    `json:"facility_count"`
}

// ListSpecialties lists every specialty with its facility count, most
// common first.
func (e *Engine) ListSpecialties() []SpecialtyCount {
	out := []SpecialtyCount{}
	for _, s := range e.g.Nodes(graph.NodeSpecialty) {
		seen := make(map[string]bool)
		for _, ed := range e.g.In(s.ID, graph.HasSpecialty) {
			if ed.Confidence >= DefaultMinConfidence {
				seen[ed.From] = true
			}
		}
		out = append(out, SpecialtyCount{Specialty: graph.KeyOf(s.ID), Display: s.Name(), FacilityCount: len(seen)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FacilityCount != out[j].FacilityCount {
			return out[i].FacilityCount > out[j].FacilityCount
		}
		return out[i].Specialty < out[j].Specialty
	})
	return out
}

// SpecialtyOverviewResult describes one specialty.
type SpecialtyOverviewResult struct {
	Specialty     string       `json:"specialty"`
	FacilityCount int          `json:"facility_count"`
	Capabilities  []GroupCount `json:"capabilities"`
	Regions       []GroupCount `json:"regional_distribution"`
	DesertRegions []string     `json:"desert_regions"`
}

// SpecialtyOverview reports which capabilities the facilities of a
// specialty claim, with counts and percentages, and where they are.
func (e *Engine) SpecialtyOverview(specialty string) (*SpecialtyOverviewResult, error) {
	if specialty == "" {
		return nil, missing("specialty")
	}
	sid := graph.SpecialtyID(specialty)
	if !e.g.HasNode(sid) {
		return nil, notFound("specialty", specialty)
	}

	caps := make(map[string]int)
	regions := make(map[string]int)
	seen := make(map[string]bool)
	for _, ed := range e.g.In(sid, graph.HasSpecialty) {
		if ed.Confidence < DefaultMinConfidence || seen[ed.From] {
			continue
		}
		seen[ed.From] = true
		for _, c := range e.keys(ed.From, graph.HasCapability, 0) {
			caps[c]++
		}
		region := unknownGroup
		if f := e.g.Facility(ed.From); f != nil && f.Region != "" {
			region = f.Region
		}
		regions[region]++
	}

	res := &SpecialtyOverviewResult{
		Specialty:     specialty,
		FacilityCount: len(seen),
		Capabilities:  groupCounts(caps, len(seen)),
		Regions:       groupCounts(regions, len(seen)),
		DesertRegions: []string{},
	}
	for _, ed := range e.g.In(sid, graph.DesertFor) {
		res.DesertRegions = append(res.DesertRegions, graph.KeyOf(ed.From))
	}
	sort.Strings(res.DesertRegions)
	return res, nil
}
