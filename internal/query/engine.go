// Package query implements the read-only operations over a built graph.
// An Engine never mutates the graph and is safe for concurrent use.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sharckhai/neo-command/internal/country"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/requirements"
	"github.com/sharckhai/neo-command/internal/vocab"
)

// Errors returned by query operations.
var (
	ErrUnknownQuery     = errors.New("unknown query")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotFound         = errors.New("not found")
)

// Default confidence for specialty and capability evidence in aggregates.
const DefaultMinConfidence = 0.5

// Engine answers queries against a frozen graph and the static tables it
// was built from.
type Engine struct {
	g       *graph.Graph
	country *country.Country
	vocab   *vocab.Vocabulary
	reqs    *requirements.Table
}

// New creates an engine.
func New(g *graph.Graph, c *country.Country, v *vocab.Vocabulary, r *requirements.Table) *Engine {
	return &Engine{g: g, country: c, vocab: v, reqs: r}
}

// Graph returns the underlying graph.
func (e *Engine) Graph() *graph.Graph {
	return e.g
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s %w", kind, id, ErrNotFound)
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingParameter, name)
}

func invalid(name, value string, valid []string) error {
	return fmt.Errorf("%w: %s %q (valid: %s)", ErrInvalidParameter, name, value, strings.Join(valid, ", "))
}

// facilityID accepts a full node id or a bare primary key.
func facilityID(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "facility::") {
		return ref
	}
	return graph.FacilityID(ref)
}

func (e *Engine) facility(ref string) (*graph.Node, error) {
	id := facilityID(ref)
	n, ok := e.g.Node(id)
	if !ok || n.Type != graph.NodeFacility {
		return nil, notFound("facility", id)
	}
	return n, nil
}

// regionKey resolves a region key, display name or alias.
func (e *Engine) regionKey(raw string) (string, bool) {
	k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	if _, ok := e.country.Region(k); ok {
		return k, true
	}
	if k := e.country.NormalizeRegion(raw, ""); k != "" {
		return k, true
	}
	return "", false
}

func (e *Engine) requireRegion(raw string) (string, error) {
	k, ok := e.regionKey(raw)
	if !ok {
		return "", notFound("region", raw)
	}
	return k, nil
}

// inRegion reports whether f matches an optional region filter. The filter
// is compared case-insensitively against the facility's region key.
func inRegion(f *graph.FacilityAttrs, region string) bool {
	return region == "" || strings.EqualFold(f.Region, region)
}

// normRegionFilter resolves a region filter when possible and otherwise
// keeps it verbatim so an unknown region matches nothing.
func (e *Engine) normRegionFilter(raw string) string {
	if raw == "" {
		return ""
	}
	if k, ok := e.regionKey(raw); ok {
		return k
	}
	return raw
}

// hasEdge reports whether from has an edge of type t to target at or above
// minConf.
func (e *Engine) hasEdge(from, target string, t graph.EdgeType, minConf float64) (float64, bool) {
	best, found := 0.0, false
	for _, ed := range e.g.Out(from, t) {
		if ed.To == target && ed.Confidence >= minConf {
			if !found || ed.Confidence > best {
				best = ed.Confidence
			}
			found = true
		}
	}
	return best, found
}

// keys returns the sorted distinct target keys of from's edges of type t at
// or above minConf.
func (e *Engine) keys(from string, t graph.EdgeType, minConf float64) []string {
	set := make(map[string]bool)
	for _, ed := range e.g.Out(from, t) {
		if ed.Confidence >= minConf {
			set[graph.KeyOf(ed.To)] = true
		}
	}
	return sortedKeys(set)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) displayName(id string) string {
	if n, ok := e.g.Node(id); ok {
		return n.Name()
	}
	return graph.KeyOf(id)
}

// regionFacilities returns the facilities located in a region.
func (e *Engine) regionFacilities(region string) []*graph.Node {
	var out []*graph.Node
	for _, ed := range e.g.In(graph.RegionID(region), graph.LocatedIn) {
		if n, ok := e.g.Node(ed.From); ok && n.Type == graph.NodeFacility {
			out = append(out, n)
		}
	}
	return out
}

// providesService reports whether a facility offers a capability or
// specialty key.
func (e *Engine) providesService(fid, key string) bool {
	if _, ok := e.hasEdge(fid, graph.CapabilityID(key), graph.HasCapability, 0); ok {
		return true
	}
	_, ok := e.hasEdge(fid, graph.SpecialtyID(key), graph.HasSpecialty, 0)
	return ok
}

// FacilityRef is the short form of a facility in results.
type FacilityRef struct {
	FacilityID   string `json:"facility_id"`
	Name         string `json:"name"`
	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	FacilityType string `json:"facility_type,omitempty"`
}

func ref(n *graph.Node) FacilityRef {
	f := n.Facility
	return FacilityRef{
		FacilityID:   n.ID,
		Name:         f.Name,
		Region:       f.Region,
		City:         f.City,
		FacilityType: f.FacilityType,
	}
}
