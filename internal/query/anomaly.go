package query

import (
	"fmt"
	"sort"

	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
)

// Anomaly check types.
const (
	CheckProcedureVsSize    = "procedure_vs_size"
	CheckEquipmentVsClaims  = "equipment_vs_claims"
	CheckFeatureCorrelation = "feature_correlation"
	CheckBedORRatio         = "bed_or_ratio"
)

var checkTypes = []string{CheckProcedureVsSize, CheckEquipmentVsClaims, CheckFeatureCorrelation, CheckBedORRatio}

// Default anomaly thresholds and limit.
const (
	DefaultProcedureSizeThreshold  = 0.6
	DefaultEquipmentClaimThreshold = 0.4
	DefaultAnomalyLimit            = 20
)

// Heuristic constants.
const (
	// bedsPerComplexProcedure is the bed capacity expected per claimed
	// high-complexity capability.
	bedsPerComplexProcedure = 10
	// minBedsPerSurgical is the bed count per surgical capability below
	// which a facility is flagged.
	minBedsPerSurgical = 5
	// largeFacilityBeds flags facilities this size with no surgical
	// capability at all.
	largeFacilityBeds = 100
	noSurgeryScore    = 0.5
)

// correlations lists capabilities that imply a piece of equipment.
var correlations = []struct {
	triggers []string
	expected string
}{
	{[]string{"general_surgery", "cesarean_section", "orthopedic_surgery", "laparoscopic_surgery", "cardiac_surgery", "neurosurgery", "plastic_surgery", "urology_surgery"}, "operating_theatre"},
	{[]string{"cataract_surgery", "eye_surgery"}, "operating_microscope"},
	{[]string{"dialysis"}, "dialysis_machine"},
	{[]string{"ct_imaging"}, "ct_scanner"},
	{[]string{"mri_imaging"}, "mri_scanner"},
	{[]string{"xray_imaging"}, "xray_machine"},
	{[]string{"ultrasound_imaging"}, "ultrasound"},
	{[]string{"ecg_services"}, "ecg_machine"},
	{[]string{"icu_services"}, "ventilator"},
	{[]string{"nicu_services"}, "incubator"},
	{[]string{"radiotherapy"}, "radiation_therapy"},
	{[]string{"endoscopy"}, "endoscope"},
	{[]string{"dental_services"}, "dental_chair"},
}

// Anomaly is one flagged facility.
type Anomaly struct {
	FacilityRef
	Capacity *int     `json:"capacity,omitempty"`
	Score    float64  `json:"score"`
	Reason   string   `json:"explanation"`
	Items    []string `json:"items,omitempty"`
}

// AnomalyResult is the result of DetectAnomalies.
type AnomalyResult struct {
	CheckType string    `json:"check_type"`
	Threshold float64   `json:"threshold"`
	Flagged   []Anomaly `json:"flagged_facilities"`
	Summary   string    `json:"summary"`
}

// DetectAnomalies runs one heuristic over every facility and returns those
// scoring at or above threshold, highest first. A nil threshold selects the
// check's default.
func (e *Engine) DetectAnomalies(checkType, region string, threshold *float64, limit int) (*AnomalyResult, error) {
	var check func(*graph.Node) (Anomaly, bool)
	def := 0.0
	switch checkType {
	case "":
		return nil, missing("check_type")
	case CheckProcedureVsSize:
		check, def = e.procedureVsSize, DefaultProcedureSizeThreshold
	case CheckEquipmentVsClaims:
		check, def = e.equipmentVsClaims, DefaultEquipmentClaimThreshold
	case CheckFeatureCorrelation:
		check = e.featureCorrelation
	case CheckBedORRatio:
		check = e.bedORRatio
	default:
		return nil, invalid("check_type", checkType, checkTypes)
	}
	t := def
	if threshold != nil {
		t = *threshold
	}
	if limit <= 0 {
		limit = DefaultAnomalyLimit
	}
	region = e.normRegionFilter(region)

	flagged := []Anomaly{}
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		if !inRegion(n.Facility, region) {
			continue
		}
		a, ok := check(n)
		if !ok || a.Score <= 0 || a.Score < t {
			continue
		}
		a.FacilityRef = ref(n)
		a.Capacity = n.Facility.Capacity
		flagged = append(flagged, a)
	}
	sort.SliceStable(flagged, func(i, j int) bool { return flagged[i].Score > flagged[j].Score })
	if len(flagged) > limit {
		flagged = flagged[:limit]
	}

	summary := fmt.Sprintf("Found %d flagged facilities", len(flagged))
	if region != "" {
		summary += " in " + region
	}
	return &AnomalyResult{CheckType: checkType, Threshold: t, Flagged: flagged, Summary: summary}, nil
}

// capabilitiesWhere returns the claimed capabilities whose vocabulary node
// satisfies pred.
func (e *Engine) capabilitiesWhere(fid string, pred func(*graph.VocabAttrs) bool) []string {
	var out []string
	for _, k := range e.keys(fid, graph.HasCapability, 0) {
		n, ok := e.g.Node(graph.CapabilityID(k))
		if ok && n.Vocab != nil && pred(n.Vocab) {
			out = append(out, k)
		}
	}
	return out
}

func (e *Engine) procedureVsSize(n *graph.Node) (Anomaly, bool) {
	beds := n.Facility.Capacity
	if beds == nil {
		return Anomaly{}, false
	}
	high := e.capabilitiesWhere(n.ID, func(v *graph.VocabAttrs) bool { return v.Complexity == "high" })
	if len(high) == 0 {
		return Anomaly{}, false
	}
	expected := float64(len(high) * bedsPerComplexProcedure)
	score := geo.Round(max(0, 1-float64(*beds)/expected), 2)
	return Anomaly{
		Score:  score,
		Reason: fmt.Sprintf("%d high-complexity capabilities claimed with %d beds", len(high), *beds),
		Items:  high,
	}, true
}

func (e *Engine) equipmentVsClaims(n *graph.Node) (Anomaly, bool) {
	if len(e.g.Out(n.ID, graph.HasCapability)) == 0 || len(e.g.Out(n.ID, graph.Lacks)) == 0 {
		return Anomaly{}, false
	}
	m := e.mismatch(n)
	items := make([]string, 0, len(m.Lacks))
	for _, l := range m.Lacks {
		items = append(items, l.Equipment)
	}
	return Anomaly{
		Score:  m.MismatchRatio,
		Reason: fmt.Sprintf("%d required items missing against %d confirmed", len(m.Lacks), len(m.ConfirmedEquipment)),
		Items:  items,
	}, true
}

func (e *Engine) featureCorrelation(n *graph.Node) (Anomaly, bool) {
	claims := e.g.Targets(n.ID, graph.HasCapability)
	have := e.g.Targets(n.ID, graph.HasEquipment)
	triggered := 0
	var violations []string
	for _, c := range correlations {
		var hit string
		for _, t := range c.triggers {
			if claims[t] {
				hit = t
				break
			}
		}
		if hit == "" {
			continue
		}
		triggered++
		if !have[c.expected] {
			violations = append(violations, hit+" without "+c.expected)
		}
	}
	if len(violations) == 0 {
		return Anomaly{}, false
	}
	return Anomaly{
		Score:  geo.Round(float64(len(violations))/float64(triggered), 2),
		Reason: fmt.Sprintf("%d of %d expected equipment correlations violated", len(violations), triggered),
		Items:  violations,
	}, true
}

func (e *Engine) bedORRatio(n *graph.Node) (Anomaly, bool) {
	beds := n.Facility.Capacity
	if beds == nil || *beds <= 0 {
		return Anomaly{}, false
	}
	surgical := e.capabilitiesWhere(n.ID, func(v *graph.VocabAttrs) bool { return v.Category == "surgical" })
	if len(surgical) == 0 {
		if *beds >= largeFacilityBeds {
			return Anomaly{
				Score:  noSurgeryScore,
				Reason: fmt.Sprintf("%d beds but no surgical capability", *beds),
			}, true
		}
		return Anomaly{}, false
	}
	ratio := float64(*beds) / float64(len(surgical))
	if ratio >= minBedsPerSurgical {
		return Anomaly{}, false
	}
	return Anomaly{
		Score:  geo.Round(1-ratio/minBedsPerSurgical, 2),
		Reason: fmt.Sprintf("%d surgical capabilities with only %d beds", len(surgical), *beds),
		Items:  surgical,
	}, true
}
