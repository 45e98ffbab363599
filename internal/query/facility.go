package query

import (
	"sort"
	"strings"

	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
)

// Fuzzy name scores.
const (
	scoreContains    = 0.8
	scoreContainedBy = 0.7
	scoreTokenMax    = 0.6
)

// DefaultFindLimit bounds FindFacility results.
const DefaultFindLimit = 5

// NameMatch is one fuzzy facility-name hit.
type NameMatch struct {
	FacilityRef
	Score float64 `json:"score"`
}

// NameScore scores how well a facility name matches a query: 0.8 when the
// name contains the query, 0.7 when the query contains the name, otherwise
// the share of query tokens present in the name scaled to at most 0.6.
func NameScore(query, name string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		return 0
	}
	switch {
	case strings.Contains(n, q):
		return scoreContains
	case strings.Contains(q, n):
		return scoreContainedBy
	}
	qt := strings.Fields(q)
	nt := make(map[string]bool)
	for _, t := range strings.Fields(n) {
		nt[t] = true
	}
	hits := 0
	for _, t := range qt {
		if nt[t] {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return geo.Round(min(float64(hits)/float64(len(qt))*scoreTokenMax, scoreTokenMax), 3)
}

// FindFacility resolves a free-text facility name to facility nodes, best
// first.
func (e *Engine) FindFacility(name, region string, limit int) ([]NameMatch, error) {
	if strings.TrimSpace(name) == "" {
		return nil, missing("name")
	}
	if limit <= 0 {
		limit = DefaultFindLimit
	}
	region = e.normRegionFilter(region)

	var out []NameMatch
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		if !inRegion(n.Facility, region) {
			continue
		}
		if s := NameScore(name, n.Facility.Name); s > 0 {
			out = append(out, NameMatch{FacilityRef: ref(n), Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LackItem is one LACKS edge in a mismatch report.
type LackItem struct {
	Equipment      string   `json:"equipment"`
	Display        string   `json:"equipment_display"`
	RequiredBy     []string `json:"required_by"`
	EvidenceStatus string   `json:"evidence_status"`
}

// Mismatch reports the unsupported equipment claims of one facility.
type Mismatch struct {
	FacilityID          string     `json:"facility_id"`
	FacilityName        string     `json:"facility_name"`
	Region              string     `json:"region,omitempty"`
	Lacks               []LackItem `json:"lacks"`
	ClaimedCapabilities []string   `json:"claimed_capabilities"`
	ConfirmedEquipment  []string   `json:"confirmed_equipment"`
	MismatchRatio       float64    `json:"mismatch_ratio"`
}

func (e *Engine) mismatch(n *graph.Node) Mismatch {
	m := Mismatch{
		FacilityID:          n.ID,
		FacilityName:        n.Facility.Name,
		Region:              n.Facility.Region,
		Lacks:               []LackItem{},
		ClaimedCapabilities: e.keys(n.ID, graph.HasCapability, 0),
		ConfirmedEquipment:  e.keys(n.ID, graph.HasEquipment, 0),
	}
	for _, ed := range e.g.Out(n.ID, graph.Lacks) {
		item := LackItem{Equipment: graph.KeyOf(ed.To), Display: e.displayName(ed.To)}
		if ed.Lacks != nil {
			item.RequiredBy = ed.Lacks.RequiredBy
			item.EvidenceStatus = ed.Lacks.EvidenceStatus
		}
		m.Lacks = append(m.Lacks, item)
	}
	// Ratios count edges, so two raw mentions of one device weigh twice.
	confirmed := len(e.g.Out(n.ID, graph.HasEquipment))
	if total := len(m.Lacks) + confirmed; total > 0 {
		m.MismatchRatio = geo.Round(float64(len(m.Lacks))/float64(total), 3)
	}
	return m
}

// FacilityMismatch partitions a facility's equipment edges into LACKS and
// HAS_EQUIPMENT and reports lacks / (lacks + has_equipment).
func (e *Engine) FacilityMismatch(facility string) (*Mismatch, error) {
	n, err := e.facility(facility)
	if err != nil {
		return nil, err
	}
	m := e.mismatch(n)
	return &m, nil
}

// DefaultSuspiciousRatio is the default SuspiciousFacilities threshold.
const DefaultSuspiciousRatio = 0.3

// SuspiciousFacilities returns every facility with at least one LACKS edge
// and a mismatch ratio at or above minRatio, worst first.
func (e *Engine) SuspiciousFacilities(minRatio float64, region string, limit int) []Mismatch {
	region = e.normRegionFilter(region)
	out := []Mismatch{}
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		if !inRegion(n.Facility, region) || len(e.g.Out(n.ID, graph.Lacks)) == 0 {
			continue
		}
		if m := e.mismatch(n); m.MismatchRatio >= minRatio {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MismatchRatio > out[j].MismatchRatio })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Link is one typed edge from a facility to a vocabulary node.
type Link struct {
	Key         string  `json:"key"`
	Display     string  `json:"display_name"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source,omitempty"`
	SourceField string  `json:"source_field,omitempty"`
	RawText     string  `json:"raw_text,omitempty"`
}

// SupportItem is one COULD_SUPPORT edge.
type SupportItem struct {
	Capability string   `json:"capability"`
	Display    string   `json:"display_name"`
	Readiness  float64  `json:"readiness_score"`
	Missing    []string `json:"missing_equipment"`
}

// RawText holds the free-text fields of a facility.
type RawText struct {
	Procedures   []string `json:"raw_procedures,omitempty"`
	Capabilities []string `json:"raw_capabilities,omitempty"`
	Equipment    []string `json:"raw_equipment,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// Detail is the full view of one facility. Error is set instead of the
// other fields when the facility does not exist.
type Detail struct {
	FacilityID    string        `json:"facility_id"`
	Error         string        `json:"error,omitempty"`
	Name          string        `json:"name,omitempty"`
	Region        string        `json:"region,omitempty"`
	City          string        `json:"city,omitempty"`
	FacilityType  string        `json:"facility_type,omitempty"`
	OperatorType  string        `json:"operator_type,omitempty"`
	Capacity      *int          `json:"capacity,omitempty"`
	NumberDoctors *int          `json:"number_doctors,omitempty"`
	Lat           *float64      `json:"lat,omitempty"`
	Lng           *float64      `json:"lng,omitempty"`
	SourceCount   int           `json:"source_count,omitempty"`
	QualityFlags  []string      `json:"quality_flags,omitempty"`
	Specialties   []Link        `json:"specialties,omitempty"`
	Capabilities  []Link        `json:"capabilities,omitempty"`
	Equipment     []Link        `json:"equipment,omitempty"`
	CouldSupport  []SupportItem `json:"could_support,omitempty"`
	Lacks         []LackItem    `json:"lacks,omitempty"`
	MismatchRatio *float64      `json:"mismatch_ratio,omitempty"`
	RawText       *RawText      `json:"raw_text,omitempty"`
}

// FacilityDetails returns the full view of each facility. Unknown ids
// produce an entry with Error set rather than failing the batch.
func (e *Engine) FacilityDetails(facilities []string, includeRawText, includeGaps bool) ([]Detail, error) {
	if len(facilities) == 0 {
		return nil, missing("facility_ids")
	}
	out := make([]Detail, 0, len(facilities))
	for _, raw := range facilities {
		n, err := e.facility(raw)
		if err != nil {
			out = append(out, Detail{FacilityID: facilityID(raw), Error: err.Error()})
			continue
		}
		out = append(out, e.detail(n, includeRawText, includeGaps))
	}
	return out, nil
}

func (e *Engine) detail(n *graph.Node, includeRawText, includeGaps bool) Detail {
	f := n.Facility
	d := Detail{
		FacilityID:    n.ID,
		Name:          f.Name,
		Region:        f.Region,
		City:          f.City,
		FacilityType:  f.FacilityType,
		OperatorType:  f.OperatorType,
		Capacity:      f.Capacity,
		NumberDoctors: f.NumberDoctors,
		Lat:           f.Lat,
		Lng:           f.Lng,
		SourceCount:   f.SourceCount,
		QualityFlags:  f.QualityFlags,
	}
	link := func(ed *graph.Edge) Link {
		return Link{
			Key:         graph.KeyOf(ed.To),
			Display:     e.displayName(ed.To),
			Confidence:  ed.Confidence,
			Source:      ed.Source,
			SourceField: ed.SourceField,
			RawText:     ed.RawText,
		}
	}
	for _, ed := range e.g.Out(n.ID, "") {
		switch ed.Type {
		case graph.HasSpecialty:
			d.Specialties = append(d.Specialties, link(ed))
		case graph.HasCapability:
			d.Capabilities = append(d.Capabilities, link(ed))
		case graph.HasEquipment:
			d.Equipment = append(d.Equipment, link(ed))
		case graph.CouldSupport:
			item := SupportItem{Capability: graph.KeyOf(ed.To), Display: e.displayName(ed.To)}
			if ed.Support != nil {
				item.Readiness = ed.Support.Readiness
				item.Missing = ed.Support.Missing
			}
			d.CouldSupport = append(d.CouldSupport, item)
		}
	}
	if includeGaps {
		m := e.mismatch(n)
		d.Lacks = m.Lacks
		d.MismatchRatio = &m.MismatchRatio
	}
	if includeRawText {
		d.RawText = &RawText{
			Procedures:   f.RawProcedures,
			Capabilities: f.RawCapabilities,
			Equipment:    f.RawEquipment,
			Description:  f.Description,
		}
	}
	return d
}

// Comparison is one facility's standing against a capability's required
// equipment.
type Comparison struct {
	FacilityID      string   `json:"facility_id"`
	Error           string   `json:"error,omitempty"`
	HasRequired     []string `json:"has_required,omitempty"`
	MissingRequired []string `json:"missing_required,omitempty"`
	Compliance      float64  `json:"compliance_score"`
}

// Requirements describes a capability's equipment needs.
type Requirements struct {
	Capability  string       `json:"capability"`
	Display     string       `json:"display_name"`
	Required    []string     `json:"required"`
	Recommended []string     `json:"recommended"`
	Comparisons []Comparison `json:"facility_comparisons,omitempty"`
}

// CapabilityRequirements returns the required and recommended equipment of
// a capability and, for each given facility, the share of required
// equipment it holds.
func (e *Engine) CapabilityRequirements(capability string, facilities []string) (*Requirements, error) {
	if capability == "" {
		return nil, missing("capability")
	}
	req, ok := e.reqs.Get(capability)
	if !ok {
		return nil, notFound("capability requirements for", capability)
	}
	r := &Requirements{
		Capability:  capability,
		Display:     e.displayName(graph.CapabilityID(capability)),
		Required:    req.Required,
		Recommended: req.Recommended,
	}
	for _, raw := range facilities {
		n, err := e.facility(raw)
		if err != nil {
			r.Comparisons = append(r.Comparisons, Comparison{FacilityID: facilityID(raw), Error: err.Error()})
			continue
		}
		r.Comparisons = append(r.Comparisons, e.compare(n.ID, req.Required))
	}
	return r, nil
}

func (e *Engine) compare(fid string, required []string) Comparison {
	have := e.g.Targets(fid, graph.HasEquipment)
	c := Comparison{FacilityID: fid, HasRequired: []string{}, MissingRequired: []string{}, Compliance: 1}
	for _, eq := range required {
		if have[eq] {
			c.HasRequired = append(c.HasRequired, eq)
		} else {
			c.MissingRequired = append(c.MissingRequired, eq)
		}
	}
	sort.Strings(c.HasRequired)
	sort.Strings(c.MissingRequired)
	if len(required) > 0 {
		c.Compliance = geo.Round(float64(len(c.HasRequired))/float64(len(required)), 3)
	}
	return c
}

// Claim is the provenance of one HAS_CAPABILITY edge.
type Claim struct {
	Confidence  float64 `json:"confidence"`
	SourceField string  `json:"source_field,omitempty"`
	RawText     string  `json:"raw_text,omitempty"`
}

// LackingFacility lists what one facility misses for a capability.
type LackingFacility struct {
	FacilityRef
	Missing        []string `json:"missing_equipment"`
	MissingCount   int      `json:"missing_count"`
	EquipmentCount int      `json:"total_equipment_count"`
	Claims         []Claim  `json:"capability_claims"`
}

// LacksReport is the result of FacilityLacks.
type LacksReport struct {
	Capability string            `json:"capability"`
	Count      int               `json:"facilities_lacking"`
	Results    []LackingFacility `json:"results"`
}

// FacilityLacks finds facilities with LACKS edges attributed to a
// capability, with the claims that produced them. facilities and region
// narrow the scan when set.
func (e *Engine) FacilityLacks(capability string, facilities []string, region string) (*LacksReport, error) {
	if capability == "" {
		return nil, missing("capability")
	}
	region = e.normRegionFilter(region)
	only := make(map[string]bool)
	for _, f := range facilities {
		only[facilityID(f)] = true
	}

	missingBy := make(map[string][]string)
	var order []string
	for _, ed := range e.g.Edges(graph.Lacks) {
		if ed.Lacks == nil || !contains(ed.Lacks.RequiredBy, capability) {
			continue
		}
		if len(only) > 0 && !only[ed.From] {
			continue
		}
		f := e.g.Facility(ed.From)
		if f == nil || !inRegion(f, region) {
			continue
		}
		if _, seen := missingBy[ed.From]; !seen {
			order = append(order, ed.From)
		}
		missingBy[ed.From] = append(missingBy[ed.From], graph.KeyOf(ed.To))
	}

	rep := &LacksReport{Capability: capability, Results: []LackingFacility{}}
	cid := graph.CapabilityID(capability)
	for _, fid := range order {
		n, _ := e.g.Node(fid)
		miss := missingBy[fid]
		sort.Strings(miss)
		lf := LackingFacility{
			FacilityRef:    ref(n),
			Missing:        miss,
			MissingCount:   len(miss),
			EquipmentCount: len(e.g.Out(fid, graph.HasEquipment)),
			Claims:         []Claim{},
		}
		for _, ed := range e.g.Out(fid, graph.HasCapability) {
			if ed.To == cid {
				lf.Claims = append(lf.Claims, Claim{Confidence: ed.Confidence, SourceField: ed.SourceField, RawText: ed.RawText})
			}
		}
		rep.Results = append(rep.Results, lf)
	}
	sort.SliceStable(rep.Results, func(i, j int) bool { return rep.Results[i].MissingCount > rep.Results[j].MissingCount })
	rep.Count = len(rep.Results)
	return rep, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
