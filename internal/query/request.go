package query

import (
	"encoding/json"
	"fmt"
)

// Request is one query. The implementations in this package are the
// complete set; Execute handles each of them.
type Request interface {
	Kind() string
	isRequest()
}

type request struct{}

func (request) isRequest() {}

// FindFacilityRequest resolves a facility by name.
type FindFacilityRequest struct {
	request
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SearchFacilitiesRequest is a multi-criteria search.
type SearchFacilitiesRequest struct {
	request
	Filters
	SortBy string `json:"sort_by,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// CountFacilitiesRequest counts facilities by a dimension.
type CountFacilitiesRequest struct {
	request
	Filters
	GroupBy       string   `json:"group_by"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
}

// SearchRawTextRequest searches facility free text.
type SearchRawTextRequest struct {
	request
	Terms  []string `json:"terms"`
	Fields []string `json:"fields,omitempty"`
	Region string   `json:"region,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// FacilityMismatchRequest reports one facility's mismatch ratio.
type FacilityMismatchRequest struct {
	request
	FacilityID string `json:"facility_id"`
}

// SuspiciousFacilitiesRequest flags facilities above a mismatch ratio.
type SuspiciousFacilitiesRequest struct {
	request
	MinRatio *float64 `json:"min_ratio,omitempty"`
	Region   string   `json:"region,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// DetectAnomaliesRequest runs one anomaly heuristic.
type DetectAnomaliesRequest struct {
	request
	CheckType string   `json:"check_type"`
	Region    string   `json:"region,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// ColdSpotsRequest finds regions far from any provider.
type ColdSpotsRequest struct {
	request
	Capability         string  `json:"capability,omitempty"`
	Specialty          string  `json:"specialty,omitempty"`
	RadiusKm           float64 `json:"radius_km,omitempty"`
	PopulationWeighted *bool   `json:"population_weighted,omitempty"`
}

// EquityRankingRequest ranks regions by need.
type EquityRankingRequest struct{ request }

// RegionContextRequest gathers context for a region.
type RegionContextRequest struct {
	request
	Region    string `json:"region"`
	Specialty string `json:"specialty,omitempty"`
}

// FacilityDetailsRequest inspects facilities.
type FacilityDetailsRequest struct {
	request
	FacilityIDs        []string `json:"facility_ids"`
	IncludeRawText     *bool    `json:"include_raw_text,omitempty"`
	IncludeGapAnalysis *bool    `json:"include_gap_analysis,omitempty"`
}

// RegionalComparisonRequest compares regions for a specialty.
type RegionalComparisonRequest struct {
	request
	Specialty string `json:"specialty"`
}

// DesertsForSpecialtyRequest lists deserts of a specialty.
type DesertsForSpecialtyRequest struct {
	request
	Specialty string `json:"specialty"`
}

// CouldSupportRequest lists upgrade candidates for a capability.
type CouldSupportRequest struct {
	request
	Capability   string   `json:"capability"`
	MinReadiness *float64 `json:"min_readiness,omitempty"`
}

// SearchByCapabilityRequest lists facilities with a capability.
type SearchByCapabilityRequest struct {
	request
	Capability string `json:"capability"`
	Region     string `json:"region,omitempty"`
}

// SearchByEquipmentRequest lists facilities with an equipment item.
type SearchByEquipmentRequest struct {
	request
	Equipment string `json:"equipment"`
	Region    string `json:"region,omitempty"`
}

// SpecialtyDistributionRequest counts specialties per region.
type SpecialtyDistributionRequest struct{ request }

// NearestFacilitiesRequest finds facilities near a point.
type NearestFacilitiesRequest struct {
	request
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Service string   `json:"service,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// ListSpecialtiesRequest lists specialties.
type ListSpecialtiesRequest struct{ request }

// ListRegionsRequest lists regions.
type ListRegionsRequest struct{ request }

// RegionDetailsRequest describes one region.
type RegionDetailsRequest struct {
	request
	Region string `json:"region"`
}

// RegionFacilitiesRequest lists a region's facilities.
type RegionFacilitiesRequest struct {
	request
	Region    string `json:"region"`
	Specialty string `json:"specialty,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// GraphSummaryRequest returns graph counts.
type GraphSummaryRequest struct{ request }

// ListVocabularyRequest lists canonical terms.
type ListVocabularyRequest struct {
	request
	Domain string `json:"domain,omitempty"`
}

// CapabilityRequirementsRequest looks up a capability's equipment.
type CapabilityRequirementsRequest struct {
	request
	Capability  string   `json:"capability"`
	FacilityIDs []string `json:"facility_ids,omitempty"`
}

// FacilityLacksRequest finds facilities lacking equipment for a capability.
type FacilityLacksRequest struct {
	request
	Capability  string   `json:"capability"`
	FacilityIDs []string `json:"facility_ids,omitempty"`
	Region      string   `json:"region,omitempty"`
}

// NGOGapsRequest reports NGO coverage.
type NGOGapsRequest struct{ request }

// EquipmentComplianceRequest reports required-equipment compliance.
type EquipmentComplianceRequest struct {
	request
	Capability string `json:"capability,omitempty"`
	Region     string `json:"region,omitempty"`
}

// ResolveTermsRequest maps terms onto canonical keys.
type ResolveTermsRequest struct {
	request
	Terms             []string `json:"terms"`
	Domain            string   `json:"domain,omitempty"`
	ShowAllVocabulary bool     `json:"show_all_vocabulary,omitempty"`
}

// OverviewRequest explores the landscape.
type OverviewRequest struct {
	request
	Scope string `json:"scope"`
	Key   string `json:"key,omitempty"`
}

func (*FindFacilityRequest) Kind() string           { return "find_facility" }
func (*SearchFacilitiesRequest) Kind() string       { return "search_facilities" }
func (*CountFacilitiesRequest) Kind() string        { return "count_facilities" }
func (*SearchRawTextRequest) Kind() string          { return "search_raw_text" }
func (*FacilityMismatchRequest) Kind() string       { return "facility_mismatch" }
func (*SuspiciousFacilitiesRequest) Kind() string   { return "suspicious_facilities" }
func (*DetectAnomaliesRequest) Kind() string        { return "detect_anomalies" }
func (*ColdSpotsRequest) Kind() string              { return "cold_spots" }
func (*EquityRankingRequest) Kind() string          { return "equity_ranking" }
func (*RegionContextRequest) Kind() string          { return "region_context" }
func (*FacilityDetailsRequest) Kind() string        { return "facility_details" }
func (*RegionalComparisonRequest) Kind() string     { return "regional_comparison" }
func (*DesertsForSpecialtyRequest) Kind() string    { return "deserts_for_specialty" }
func (*CouldSupportRequest) Kind() string           { return "could_support" }
func (*SearchByCapabilityRequest) Kind() string     { return "search_by_capability" }
func (*SearchByEquipmentRequest) Kind() string      { return "search_by_equipment" }
func (*SpecialtyDistributionRequest) Kind() string  { return "specialty_distribution" }
func (*NearestFacilitiesRequest) Kind() string      { return "nearest_facilities" }
func (*ListSpecialtiesRequest) Kind() string        { return "list_specialties" }
func (*ListRegionsRequest) Kind() string            { return "list_regions" }
func (*RegionDetailsRequest) Kind() string          { return "region_details" }
func (*RegionFacilitiesRequest) Kind() string       { return "region_facilities" }
func (*GraphSummaryRequest) Kind() string           { return "graph_summary" }
func (*ListVocabularyRequest) Kind() string         { return "list_vocabulary" }
func (*CapabilityRequirementsRequest) Kind() string { return "capability_requirements" }
func (*FacilityLacksRequest) Kind() string          { return "facility_lacks" }
func (*NGOGapsRequest) Kind() string                { return "ngo_gaps" }
func (*EquipmentComplianceRequest) Kind() string    { return "equipment_compliance" }
func (*ResolveTermsRequest) Kind() string           { return "resolve_terms" }
func (*OverviewRequest) Kind() string               { return "overview" }

var registry = map[string]func() Request{
	"find_facility":           func() Request { return &FindFacilityRequest{} },
	"search_facilities":       func() Request { return &SearchFacilitiesRequest{} },
	"count_facilities":        func() Request { return &CountFacilitiesRequest{} },
	"search_raw_text":         func() Request { return &SearchRawTextRequest{} },
	"facility_mismatch":       func() Request { return &FacilityMismatchRequest{} },
	"suspicious_facilities":   func() Request { return &SuspiciousFacilitiesRequest{} },
	"detect_anomalies":        func() Request { return &DetectAnomaliesRequest{} },
	"cold_spots":              func() Request { return &ColdSpotsRequest{} },
	"equity_ranking":          func() Request { return &EquityRankingRequest{} },
	"region_context":          func() Request { return &RegionContextRequest{} },
	"facility_details":        func() Request { return &FacilityDetailsRequest{} },
	"regional_comparison":     func() Request { return &RegionalComparisonRequest{} },
	"deserts_for_specialty":   func() Request { return &DesertsForSpecialtyRequest{} },
	"could_support":           func() Request { return &CouldSupportRequest{} },
	"search_by_capability":    func() Request { return &SearchByCapabilityRequest{} },
	"search_by_equipment":     func() Request { return &SearchByEquipmentRequest{} },
	"specialty_distribution":  func() Request { return &SpecialtyDistributionRequest{} },
	"nearest_facilities":      func() Request { return &NearestFacilitiesRequest{} },
	"list_specialties":        func() Request { return &ListSpecialtiesRequest{} },
	"list_regions":            func() Request { return &ListRegionsRequest{} },
	"region_details":          func() Request { return &RegionDetailsRequest{} },
	"region_facilities":       func() Request { return &RegionFacilitiesRequest{} },
	"graph_summary":           func() Request { return &GraphSummaryRequest{} },
	"list_vocabulary":         func() Request { return &ListVocabularyRequest{} },
	"capability_requirements": func() Request { return &CapabilityRequirementsRequest{} },
	"facility_lacks":          func() Request { return &FacilityLacksRequest{} },
	"ngo_gaps":                func() Request { return &NGOGapsRequest{} },
	"equipment_compliance":    func() Request { return &EquipmentComplianceRequest{} },
	"resolve_terms":           func() Request { return &ResolveTermsRequest{} },
	"overview":                func() Request { return &OverviewRequest{} },
}

// Kinds returns every query kind in sorted order.
func Kinds() []string {
	return sortedKeys(registry)
}

// envelope is the wire form of a request.
type envelope struct {
	Query  string          `json:"query"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Decode parses {"query": kind, "params": {...}}.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	return decode(env)
}

// DecodeBatch parses a JSON array of requests. Only input that is not an
// array fails the call; an element that cannot be decoded becomes a request
// whose execution reports the decode error.
func DecodeBatch(data []byte) ([]Request, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decoding batch: %w", err)
	}
	reqs := make([]Request, 0, len(raws))
	for i, raw := range raws {
		var env envelope
		err := json.Unmarshal(raw, &env)
		var r Request
		if err == nil {
			r, err = decode(env)
		}
		if err != nil {
			r = &undecodable{query: env.Query, err: fmt.Errorf("request %d: %w", i, err)}
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// undecodable stands in for a batch element that failed to decode.
type undecodable struct {
	request
	query string
	err   error
}

func (u *undecodable) Kind() string { return u.query }

func decode(env envelope) (Request, error) {
	mk, ok := registry[env.Query]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, env.Query)
	}
	r := mk()
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, r); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", env.Query, err)
		}
	}
	return r, nil
}

// Execute runs one request. Reference and parameter problems are returned
// as errors wrapping ErrNotFound, ErrMissingParameter or
// ErrInvalidParameter.
func (e *Engine) Execute(r Request) (any, error) {
	switch q := r.(type) {
	case *FindFacilityRequest:
		return e.FindFacility(q.Name, q.Region, q.Limit)
	case *SearchFacilitiesRequest:
		return e.SearchFacilities(q.Filters, q.SortBy, q.Limit)
	case *CountFacilitiesRequest:
		return e.CountFacilities(q.GroupBy, q.Filters, orFloat(q.MinConfidence, DefaultMinConfidence))
	case *SearchRawTextRequest:
		return e.SearchRawText(q.Terms, q.Fields, q.Region, q.Limit)
	case *FacilityMismatchRequest:
		if q.FacilityID == "" {
			return nil, missing("facility_id")
		}
		return e.FacilityMismatch(q.FacilityID)
	case *SuspiciousFacilitiesRequest:
		return e.SuspiciousFacilities(orFloat(q.MinRatio, DefaultSuspiciousRatio), q.Region, q.Limit), nil
	case *DetectAnomaliesRequest:
		return e.DetectAnomalies(q.CheckType, q.Region, q.Threshold, q.Limit)
	case *ColdSpotsRequest:
		return e.ColdSpots(q.Capability, q.Specialty, q.RadiusKm, orBool(q.PopulationWeighted, true))
	case *EquityRankingRequest:
		return e.EquityRanking(), nil
	case *RegionContextRequest:
		if q.Region == "" {
			return nil, missing("region")
		}
		return e.RegionContext(q.Region, q.Specialty)
	case *FacilityDetailsRequest:
		return e.FacilityDetails(q.FacilityIDs, orBool(q.IncludeRawText, true), orBool(q.IncludeGapAnalysis, true))
	case *RegionalComparisonRequest:
		return e.RegionalComparison(q.Specialty)
	case *DesertsForSpecialtyRequest:
		return e.DesertsForSpecialty(q.Specialty)
	case *CouldSupportRequest:
		return e.CouldSupport(q.Capability, orFloat(q.MinReadiness, DefaultCouldSupportReadiness))
	case *SearchByCapabilityRequest:
		return e.SearchByCapability(q.Capability, q.Region)
	case *SearchByEquipmentRequest:
		return e.SearchByEquipment(q.Equipment, q.Region)
	case *SpecialtyDistributionRequest:
		return e.SpecialtyDistribution(), nil
	case *NearestFacilitiesRequest:
		if q.Lat == nil || q.Lng == nil {
			return nil, missing("lat and lng")
		}
		return e.NearestFacilities(*q.Lat, *q.Lng, q.Service, q.Limit), nil
	case *ListSpecialtiesRequest:
		return e.ListSpecialties(), nil
	case *ListRegionsRequest:
		return e.ListRegions(), nil
	case *RegionDetailsRequest:
		if q.Region == "" {
			return nil, missing("region")
		}
		return e.RegionDetails(q.Region)
	case *RegionFacilitiesRequest:
		if q.Region == "" {
			return nil, missing("region")
		}
		return e.RegionFacilities(q.Region, q.Specialty, q.Limit)
	case *GraphSummaryRequest:
		return e.GraphSummary(), nil
	case *ListVocabularyRequest:
		return e.ListVocabulary(q.Domain)
	case *CapabilityRequirementsRequest:
		return e.CapabilityRequirements(q.Capability, q.FacilityIDs)
	case *FacilityLacksRequest:
		return e.FacilityLacks(q.Capability, q.FacilityIDs, q.Region)
	case *NGOGapsRequest:
		return e.NGOGaps(), nil
	case *EquipmentComplianceRequest:
		return e.EquipmentCompliance(q.Capability, q.Region)
	case *ResolveTermsRequest:
		return e.ResolveTerms(q.Terms, q.Domain, q.ShowAllVocabulary)
	case *OverviewRequest:
		return e.Overview(q.Scope, q.Key)
	case *undecodable:
		return nil, q.err
	}
	kind := "<nil>"
	if r != nil {
		kind = r.Kind()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, kind)
}

// Response is one entry of a batch result. Exactly one of Result and
// Error is set.
type Response struct {
	Query  string `json:"query"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ExecuteBatch runs every request. A failing request yields a Response with
// Error set and never stops the batch.
func (e *Engine) ExecuteBatch(reqs []Request) []Response {
	out := make([]Response, 0, len(reqs))
	for _, r := range reqs {
		resp := Response{Query: r.Kind()}
		res, err := e.Execute(r)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = res
		}
		out = append(out, resp)
	}
	return out
}

func orFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func orBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
