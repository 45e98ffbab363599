package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
)

// Sort orders for SearchFacilities.
const (
	SortRelevance = "relevance"
	SortDistance  = "distance"
	SortCapacity  = "capacity"
)

// Default limits.
const (
	DefaultSearchLimit  = 25
	DefaultRawTextLimit = 50
	DefaultNearestLimit = 10
)

// Filters narrows facilities. Every set field must hold (logical AND).
type Filters struct {
	Capability   string   `json:"capability,omitempty"`
	Equipment    string   `json:"equipment,omitempty"`
	Specialty    string   `json:"specialty,omitempty"`
	Region       string   `json:"region,omitempty"`
	FacilityType string   `json:"facility_type,omitempty"`
	MinCapacity  *int     `json:"min_capacity,omitempty"`
	NearLat      *float64 `json:"near_lat,omitempty"`
	NearLng      *float64 `json:"near_lng,omitempty"`
	RadiusKm     *float64 `json:"radius_km,omitempty"`
}

func (f Filters) near() (geo.Point, bool) {
	if f.NearLat == nil || f.NearLng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *f.NearLat, Lng: *f.NearLng}, true
}

// Hit is one SearchFacilities result.
type Hit struct {
	FacilityRef
	Capacity   *int     `json:"capacity,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Matched    []string `json:"matched_criteria"`
	Relevance  float64  `json:"relevance"`
}

// SearchResult is the result of SearchFacilities.
type SearchResult struct {
	Filters Filters `json:"filters"`
	SortBy  string  `json:"sort_by"`
	Total   int     `json:"total_matches"`
	Results []Hit   `json:"results"`
}

// match applies filters to one facility. minConf bounds the evidence edges
// considered for capability, equipment and specialty.
func (e *Engine) match(n *graph.Node, f Filters, minConf float64) (Hit, bool) {
	fa := n.Facility
	h := Hit{FacilityRef: ref(n), Capacity: fa.Capacity, Matched: []string{}}

	evidence := []struct {
		name, key string
		id        func(string) string
		t         graph.EdgeType
	}{
		{"capability", f.Capability, graph.CapabilityID, graph.HasCapability},
		{"equipment", f.Equipment, graph.EquipmentID, graph.HasEquipment},
		{"specialty", f.Specialty, graph.SpecialtyID, graph.HasSpecialty},
	}
	for _, ev := range evidence {
		if ev.key == "" {
			continue
		}
		conf, ok := e.hasEdge(n.ID, ev.id(ev.key), ev.t, minConf)
		if !ok {
			return h, false
		}
		h.Matched = append(h.Matched, ev.name)
		h.Relevance += conf
	}

	if f.Region != "" {
		if !inRegion(fa, f.Region) {
			return h, false
		}
		h.Matched = append(h.Matched, "region")
		h.Relevance++
	}
	if f.FacilityType != "" {
		if !strings.Contains(strings.ToLower(fa.FacilityType), strings.ToLower(f.FacilityType)) {
			return h, false
		}
		h.Matched = append(h.Matched, "facility_type")
		h.Relevance++
	}
	if f.MinCapacity != nil {
		if fa.Capacity == nil || *fa.Capacity < *f.MinCapacity {
			return h, false
		}
		h.Matched = append(h.Matched, "min_capacity")
		h.Relevance++
	}
	if p, ok := f.near(); ok {
		if fa.HasLocation() {
			d := geo.Round(p.Distance(geo.Point{Lat: *fa.Lat, Lng: *fa.Lng}), 1)
			h.DistanceKm = &d
		}
		if f.RadiusKm != nil {
			if h.DistanceKm == nil || *h.DistanceKm > *f.RadiusKm {
				return h, false
			}
			h.Matched = append(h.Matched, "radius")
			h.Relevance++
		}
	}
	h.Relevance = geo.Round(h.Relevance, 3)
	return h, true
}

// SearchFacilities returns facilities matching every set filter. A
// reference point adds haversine distances; a radius additionally drops
// facilities without coordinates or beyond it.
func (e *Engine) SearchFacilities(f Filters, sortBy string, limit int) (*SearchResult, error) {
	if sortBy == "" {
		sortBy = SortRelevance
	}
	switch sortBy {
	case SortRelevance, SortDistance, SortCapacity:
	default:
		return nil, invalid("sort_by", sortBy, []string{SortRelevance, SortDistance, SortCapacity})
	}
	if f.RadiusKm != nil {
		if _, ok := f.near(); !ok {
			return nil, missing("near_lat and near_lng (required by radius_km)")
		}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	f.Region = e.normRegionFilter(f.Region)

	hits := []Hit{}
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		if h, ok := e.match(n, f, 0); ok {
			hits = append(hits, h)
		}
	}

	switch sortBy {
	case SortRelevance:
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Relevance > hits[j].Relevance })
	case SortDistance:
		sort.SliceStable(hits, func(i, j int) bool { return lessPtr(hits[i].DistanceKm, hits[j].DistanceKm) })
	case SortCapacity:
		sort.SliceStable(hits, func(i, j int) bool { return greaterPtr(hits[i].Capacity, hits[j].Capacity) })
	}

	res := &SearchResult{Filters: f, SortBy: sortBy, Total: len(hits)}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	res.Results = hits
	return res, nil
}

// lessPtr orders ascending with nil last.
func lessPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a != nil
	}
	return *a < *b
}

// greaterPtr orders descending with nil last.
func greaterPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a != nil
	}
	return *a > *b
}

// Group dimensions for CountFacilities.
const (
	GroupRegion       = "region"
	GroupFacilityType = "facility_type"
	GroupSpecialty    = "specialty"
	GroupCapability   = "capability"
	GroupEquipment    = "equipment"
)

var groupDimensions = []string{GroupRegion, GroupFacilityType, GroupSpecialty, GroupCapability, GroupEquipment}

const unknownGroup = "unknown"

// GroupCount is one bucket of CountFacilities.
type GroupCount struct {
	Key        string  `json:"key"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CountResult is the result of CountFacilities.
type CountResult struct {
	GroupBy string       `json:"group_by"`
	Filters Filters      `json:"filters"`
	Total   int          `json:"total_facilities"`
	Groups  []GroupCount `json:"groups"`
}

// CountFacilities counts the facilities passing the filters, grouped by one
// dimension. Percentages are of the filtered total, so multi-valued
// dimensions may sum past 100.
func (e *Engine) CountFacilities(groupBy string, f Filters, minConf float64) (*CountResult, error) {
	if groupBy == "" {
		return nil, missing("group_by")
	}
	if !contains(groupDimensions, groupBy) {
		return nil, invalid("group_by", groupBy, groupDimensions)
	}
	f.Region = e.normRegionFilter(f.Region)

	counts := make(map[string]int)
	total := 0
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		if _, ok := e.match(n, f, minConf); !ok {
			continue
		}
		total++
		for _, k := range e.groupKeys(n, groupBy, minConf) {
			counts[k]++
		}
	}

	res := &CountResult{GroupBy: groupBy, Filters: f, Total: total, Groups: []GroupCount{}}
	for k, c := range counts {
		res.Groups = append(res.Groups, GroupCount{Key: k, Count: c, Percentage: percent(c, total)})
	}
	sort.Slice(res.Groups, func(i, j int) bool {
		if res.Groups[i].Count != res.Groups[j].Count {
			return res.Groups[i].Count > res.Groups[j].Count
		}
		return res.Groups[i].Key < res.Groups[j].Key
	})
	return res, nil
}

func (e *Engine) groupKeys(n *graph.Node, groupBy string, minConf float64) []string {
	var single string
	switch groupBy {
	case GroupRegion:
		single = n.Facility.Region
	case GroupFacilityType:
		single = n.Facility.FacilityType
	case GroupSpecialty:
		return e.keys(n.ID, graph.HasSpecialty, minConf)
	case GroupCapability:
		return e.keys(n.ID, graph.HasCapability, minConf)
	case GroupEquipment:
		return e.keys(n.ID, graph.HasEquipment, minConf)
	}
	if single == "" {
		single = unknownGroup
	}
	return []string{single}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return geo.Round(float64(n)/float64(total)*100, 1)
}

// Raw text fields searched by SearchRawText.
const (
	FieldProcedures   = "raw_procedures"
	FieldCapabilities = "raw_capabilities"
	FieldEquipment    = "raw_equipment"
	FieldDescription  = "description"
)

var rawTextFields = []string{FieldProcedures, FieldCapabilities, FieldEquipment, FieldDescription}

func rawField(f *graph.FacilityAttrs, field string) []string {
	switch field {
	case FieldProcedures:
		return f.RawProcedures
	case FieldCapabilities:
		return f.RawCapabilities
	case FieldEquipment:
		return f.RawEquipment
	case FieldDescription:
		if f.Description != "" {
			return []string{f.Description}
		}
	}
	return nil
}

// TextMatch is one SearchRawText result.
type TextMatch struct {
	FacilityID    string              `json:"facility_id"`
	Name          string              `json:"name"`
	Region        string              `json:"region,omitempty"`
	City          string              `json:"city,omitempty"`
	MatchedFields map[string][]string `json:"matched_fields"`
}

// TextResult is the result of SearchRawText.
type TextResult struct {
	Results   []TextMatch `json:"results"`
	Total     int         `json:"total_matches"`
	Truncated bool        `json:"truncated,omitempty"`
	Note      string      `json:"note,omitempty"`
}

// SearchRawText finds facilities whose raw text contains any of terms,
// case-insensitively. Each matching text item is reported once.
func (e *Engine) SearchRawText(terms, fields []string, region string, limit int) (*TextResult, error) {
	var lower []string
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lower = append(lower, t)
		}
	}
	if len(lower) == 0 {
		return nil, missing("terms")
	}
	if len(fields) == 0 {
		fields = rawTextFields
	}
	for _, f := range fields {
		if !contains(rawTextFields, f) {
			return nil, invalid("field", f, rawTextFields)
		}
	}
	if limit <= 0 {
		limit = DefaultRawTextLimit
	}
	region = e.normRegionFilter(region)

	results := []TextMatch{}
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		fa := n.Facility
		if !inRegion(fa, region) {
			continue
		}
		matched := make(map[string][]string)
		for _, field := range fields {
			for _, text := range rawField(fa, field) {
				tl := strings.ToLower(text)
				for _, term := range lower {
					if strings.Contains(tl, term) {
						matched[field] = append(matched[field], text)
						break
					}
				}
			}
		}
		if len(matched) > 0 {
			results = append(results, TextMatch{
				FacilityID:    n.ID,
				Name:          fa.Name,
				Region:        fa.Region,
				City:          fa.City,
				MatchedFields: matched,
			})
		}
	}

	res := &TextResult{}
	if len(results) > limit {
		results = results[:limit]
		res.Truncated = true
		res.Note = fmt.Sprintf("Results truncated to %d. Add a region filter to narrow down.", limit)
	}
	res.Results = results
	res.Total = len(results)
	return res, nil
}

// EvidenceHit is a facility linked to one capability or equipment key.
type EvidenceHit struct {
	FacilityRef
	Confidence  float64 `json:"confidence"`
	SourceField string  `json:"source_field,omitempty"`
}

// SearchByCapability lists facilities with a HAS_CAPABILITY edge to the
// capability, highest confidence first.
func (e *Engine) SearchByCapability(capability, region string) ([]EvidenceHit, error) {
	if capability == "" {
		return nil, missing("capability")
	}
	return e.byEvidence(graph.CapabilityID(capability), graph.HasCapability, region), nil
}

// SearchByEquipment lists facilities with a HAS_EQUIPMENT edge to the
// equipment, highest confidence first.
func (e *Engine) SearchByEquipment(equipment, region string) ([]EvidenceHit, error) {
	if equipment == "" {
		return nil, missing("equipment")
	}
	return e.byEvidence(graph.EquipmentID(equipment), graph.HasEquipment, region), nil
}

func (e *Engine) byEvidence(target string, t graph.EdgeType, region string) []EvidenceHit {
	region = e.normRegionFilter(region)
	out := []EvidenceHit{}
	for _, ed := range e.g.In(target, t) {
		n, ok := e.g.Node(ed.From)
		if !ok || n.Type != graph.NodeFacility || !inRegion(n.Facility, region) {
			continue
		}
		out = append(out, EvidenceHit{FacilityRef: ref(n), Confidence: ed.Confidence, SourceField: ed.SourceField})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// NearbyFacility is one NearestFacilities result.
type NearbyFacility struct {
	FacilityRef
	DistanceKm float64 `json:"distance_km"`
}

// NearestFacilities returns the located facilities closest to a point,
// optionally restricted to those offering a capability or specialty key.
func (e *Engine) NearestFacilities(lat, lng float64, service string, limit int) []NearbyFacility {
	if limit <= 0 {
		limit = DefaultNearestLimit
	}
	p := geo.Point{Lat: lat, Lng: lng}
	out := []NearbyFacility{}
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		fa := n.Facility
		if !fa.HasLocation() {
			continue
		}
		if service != "" && !e.providesService(n.ID, service) {
			continue
		}
		d := geo.Round(p.Distance(geo.Point{Lat: *fa.Lat, Lng: *fa.Lng}), 1)
		out = append(out, NearbyFacility{FacilityRef: ref(n), DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
