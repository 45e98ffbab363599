// Package graphtest builds small graphs for tests without running ingestion.
package graphtest

import (
	"testing"

	"github.com/sharckhai/neo-command/internal/graph"
)

// Builder accumulates nodes and edges into a graph, failing the test on
// any structural error.
type Builder struct {
	G *graph.Graph
	t testing.TB
}

// New creates an empty builder.
func New(t testing.TB) *Builder {
	t.Helper()
	return &Builder{G: graph.New(), t: t}
}

func (b *Builder) node(n *graph.Node) {
	b.t.Helper()
	if _, err := b.G.AddNode(n); err != nil {
		b.t.Fatalf("adding node %s: %v", n.ID, err)
	}
}

func (b *Builder) edge(e *graph.Edge) {
	b.t.Helper()
	if _, err := b.G.AddEdge(e); err != nil {
		b.t.Fatalf("adding edge %s -> %s: %v", e.From, e.To, err)
	}
}

// Region adds a region node.
func (b *Builder) Region(key string, population int, lat, lng float64) *Builder {
	b.t.Helper()
	b.node(&graph.Node{
		ID:   graph.RegionID(key),
		Type: graph.NodeRegion,
		Region: &graph.RegionAttrs{
			Name: key, Population: population, Lat: lat, Lng: lng,
		},
	})
	return b
}

// FacilityOption adjusts facility attributes.
type FacilityOption func(*graph.FacilityAttrs)

// WithCapacity sets the bed capacity.
func WithCapacity(n int) FacilityOption {
	return func(f *graph.FacilityAttrs) { f.Capacity = &n }
}

// WithLocation sets coordinates.
func WithLocation(lat, lng float64) FacilityOption {
	return func(f *graph.FacilityAttrs) { f.Lat, f.Lng = &lat, &lng }
}

// WithType sets the facility type.
func WithType(t string) FacilityOption {
	return func(f *graph.FacilityAttrs) { f.FacilityType = t }
}

// WithRaw sets raw free-text fields.
func WithRaw(procedures, equipment, capabilities []string, description string) FacilityOption {
	return func(f *graph.FacilityAttrs) {
		f.RawProcedures = procedures
		f.RawEquipment = equipment
		f.RawCapabilities = capabilities
		f.Description = description
	}
}

// Facility adds a facility and, when region is set, its LOCATED_IN edge. The
// region node must already exist.
func (b *Builder) Facility(pk, name, region string, opts ...FacilityOption) *Builder {
	b.t.Helper()
	attrs := &graph.FacilityAttrs{Name: name, Region: region, SourceCount: 1}
	for _, opt := range opts {
		opt(attrs)
	}
	id := graph.FacilityID(pk)
	b.node(&graph.Node{ID: id, Type: graph.NodeFacility, Facility: attrs})
	if region != "" {
		b.edge(&graph.Edge{Type: graph.LocatedIn, From: id, To: graph.RegionID(region)})
	}
	return b
}

// NGO adds an NGO operating in region.
func (b *Builder) NGO(pk, name, region string) *Builder {
	b.t.Helper()
	id := graph.NGOID(pk)
	b.node(&graph.Node{ID: id, Type: graph.NodeNGO, NGO: &graph.NGOAttrs{Name: name, Region: region, SourceCount: 1}})
	if region != "" {
		b.edge(&graph.Edge{Type: graph.OperatesIn, From: id, To: graph.RegionID(region), Source: "address"})
	}
	return b
}

// Equipment links a facility to equipment keys at confidence 0.8.
func (b *Builder) Equipment(pk string, keys ...string) *Builder {
	b.t.Helper()
	for _, k := range keys {
		b.node(&graph.Node{ID: graph.EquipmentID(k), Type: graph.NodeEquipment, Vocab: &graph.VocabAttrs{DisplayName: k}})
		b.edge(&graph.Edge{Type: graph.HasEquipment, From: graph.FacilityID(pk), To: graph.EquipmentID(k), Confidence: 0.8, RawText: k})
	}
	return b
}

// Capability links a facility to capability keys at confidence 0.8.
func (b *Builder) Capability(pk string, keys ...string) *Builder {
	b.t.Helper()
	for _, k := range keys {
		b.node(&graph.Node{ID: graph.CapabilityID(k), Type: graph.NodeCapability, Vocab: &graph.VocabAttrs{DisplayName: k, Complexity: "medium"}})
		b.edge(&graph.Edge{Type: graph.HasCapability, From: graph.FacilityID(pk), To: graph.CapabilityID(k), Confidence: 0.8, SourceField: "capability", RawText: k})
	}
	return b
}

// Specialty links a facility to a specialty at the given confidence.
func (b *Builder) Specialty(pk, label string, confidence float64) *Builder {
	b.t.Helper()
	b.node(&graph.Node{ID: graph.SpecialtyID(label), Type: graph.NodeSpecialty, Vocab: &graph.VocabAttrs{DisplayName: label}})
	b.edge(&graph.Edge{Type: graph.HasSpecialty, From: graph.FacilityID(pk), To: graph.SpecialtyID(label), Confidence: confidence, Source: "structured"})
	return b
}

// EquipmentNode adds an equipment node without linking it.
func (b *Builder) EquipmentNode(keys ...string) *Builder {
	b.t.Helper()
	for _, k := range keys {
		b.node(&graph.Node{ID: graph.EquipmentID(k), Type: graph.NodeEquipment, Vocab: &graph.VocabAttrs{DisplayName: k}})
	}
	return b
}

// CapabilityNode adds a capability node without linking it.
func (b *Builder) CapabilityNode(keys ...string) *Builder {
	b.t.Helper()
	for _, k := range keys {
		b.node(&graph.Node{ID: graph.CapabilityID(k), Type: graph.NodeCapability, Vocab: &graph.VocabAttrs{DisplayName: k}})
	}
	return b
}
