// Package graph is the typed, adjacency-list knowledge graph of facilities,
// NGOs, regions and the canonical vocabulary.
package graph

import "strings"

// NodeType identifies the kind of a node.
type NodeType string

const (
	NodeRegion     NodeType = "Region"
	NodeFacility   NodeType = "Facility"
	NodeNGO        NodeType = "NGO"
	NodeCapability NodeType = "Capability"
	NodeEquipment  NodeType = "Equipment"
	NodeSpecialty  NodeType = "Specialty"
)

// NodeTypes lists every node type.
var NodeTypes = []NodeType{NodeRegion, NodeFacility, NodeNGO, NodeCapability, NodeEquipment, NodeSpecialty}

// EdgeType identifies the kind of an edge.
type EdgeType string

const (
	LocatedIn     EdgeType = "LOCATED_IN"
	OperatesIn    EdgeType = "OPERATES_IN"
	HasSpecialty  EdgeType = "HAS_SPECIALTY"
	HasCapability EdgeType = "HAS_CAPABILITY"
	HasEquipment  EdgeType = "HAS_EQUIPMENT"
	Lacks         EdgeType = "LACKS"
	CouldSupport  EdgeType = "COULD_SUPPORT"
	DesertFor     EdgeType = "DESERT_FOR"
)

// EdgeTypes lists every edge type.
var EdgeTypes = []EdgeType{LocatedIn, OperatesIn, HasSpecialty, HasCapability, HasEquipment, Lacks, CouldSupport, DesertFor}

// Node ID prefixes.
const (
	regionPrefix     = "region::"
	facilityPrefix   = "facility::"
	ngoPrefix        = "ngo::"
	capabilityPrefix = "capability::"
	equipmentPrefix  = "equipment::"
	specialtyPrefix  = "specialty::"
)

// Node ID constructors. Region keys are lowercased.
func RegionID(key string) string      { return regionPrefix + strings.ToLower(strings.TrimSpace(key)) }
func FacilityID(pk string) string     { return facilityPrefix + pk }
func NGOID(pk string) string          { return ngoPrefix + pk }
func CapabilityID(key string) string  { return capabilityPrefix + key }
func EquipmentID(key string) string   { return equipmentPrefix + key }
func SpecialtyID(label string) string { return specialtyPrefix + strings.TrimSpace(label) }

// KeyOf strips the namespace from a node ID.
func KeyOf(id string) string {
	if i := strings.Index(id, "::"); i >= 0 {
		return id[i+2:]
	}
	return id
}

// RegionAttrs are the attributes of a Region node.
type RegionAttrs struct {
	Name       string  `json:"name"`
	Population int     `json:"population"`
	Capital    string  `json:"capital,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// FacilityAttrs are the attributes of a Facility node. Pointer fields are
// unset when the source data had no usable value.
type FacilityAttrs struct {
	Name            string   `json:"name"`
	FacilityType    string   `json:"facility_type,omitempty"`
	OperatorType    string   `json:"operator_type,omitempty"`
	Capacity        *int     `json:"capacity,omitempty"`
	NumberDoctors   *int     `json:"number_doctors,omitempty"`
	Area            *float64 `json:"area,omitempty"`
	YearEstablished *int     `json:"year_established,omitempty"`
	City            string   `json:"city,omitempty"`
	Region          string   `json:"region,omitempty"`
	Lat             *float64 `json:"lat,omitempty"`
	Lng             *float64 `json:"lng,omitempty"`
	Email           string   `json:"email,omitempty"`
	PhoneNumbers    []string `json:"phone_numbers,omitempty"`
	Websites        []string `json:"websites,omitempty"`
	Description     string   `json:"description,omitempty"`
	RawProcedures   []string `json:"raw_procedures,omitempty"`
	RawEquipment    []string `json:"raw_equipment,omitempty"`
	RawCapabilities []string `json:"raw_capabilities,omitempty"`
	SourceCount     int      `json:"source_count"`
	QualityFlags    []string `json:"quality_flags,omitempty"`
}

// HasLocation reports whether the facility has coordinates.
func (f *FacilityAttrs) HasLocation() bool {
	return f.Lat != nil && f.Lng != nil
}

// NGOAttrs are the attributes of an NGO node.
type NGOAttrs struct {
	Name           string   `json:"name"`
	Countries      []string `json:"countries,omitempty"`
	MissionSummary string   `json:"mission_summary,omitempty"`
	Description    string   `json:"description,omitempty"`
	Email          string   `json:"email,omitempty"`
	PhoneNumbers   []string `json:"phone_numbers,omitempty"`
	Websites       []string `json:"websites,omitempty"`
	Region         string   `json:"region,omitempty"`
	SourceCount    int      `json:"source_count"`
}

// VocabAttrs are the attributes of Capability, Equipment and Specialty nodes.
type VocabAttrs struct {
	DisplayName string `json:"display_name"`
	Category    string `json:"category,omitempty"`
	Complexity  string `json:"complexity,omitempty"`
}

// Node is a graph vertex. Exactly one attribute record is set, matching Type.
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Region   *RegionAttrs   `json:"region_attrs,omitempty"`
	Facility *FacilityAttrs `json:"facility,omitempty"`
	NGO      *NGOAttrs      `json:"ngo,omitempty"`
	Vocab    *VocabAttrs    `json:"vocab,omitempty"`
}

// Name returns the human-readable name of a node.
func (n *Node) Name() string {
	switch {
	case n.Facility != nil:
		return n.Facility.Name
	case n.NGO != nil:
		return n.NGO.Name
	case n.Region != nil:
		return n.Region.Name
	case n.Vocab != nil:
		return n.Vocab.DisplayName
	}
	return KeyOf(n.ID)
}

// LacksAttrs describe a derived missing-equipment edge.
type LacksAttrs struct {
	RequiredBy     []string `json:"required_by"`
	EvidenceStatus string   `json:"evidence_status"`
	Reason         string   `json:"reason"`
}

// SupportAttrs describe a derived upgrade-readiness edge.
type SupportAttrs struct {
	Readiness float64  `json:"readiness_score"`
	Existing  []string `json:"existing_equipment"`
	Missing   []string `json:"missing_equipment"`
}

// DesertAttrs describe an under-served (region, specialty) pair.
type DesertAttrs struct {
	FacilityCount int     `json:"facility_count"`
	Population    int     `json:"population"`
	NearestRegion string  `json:"nearest_region_with_service,omitempty"`
	Severity      float64 `json:"severity"`
}

// Edge is a directed, typed relationship. The derived attribute record
// matching Type is set for LACKS, COULD_SUPPORT and DESERT_FOR edges.
type Edge struct {
	ID          int           `json:"id"`
	Type        EdgeType      `json:"type"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Confidence  float64       `json:"confidence,omitempty"`
	Source      string        `json:"source,omitempty"`
	SourceField string        `json:"source_field,omitempty"`
	RawText     string        `json:"raw_text,omitempty"`
	City        string        `json:"city,omitempty"`
	Lacks       *LacksAttrs   `json:"lacks,omitempty"`
	Support     *SupportAttrs `json:"support,omitempty"`
	Desert      *DesertAttrs  `json:"desert,omitempty"`
}
