// Package inference derives LACKS and COULD_SUPPORT edges from a facility's
// HAS_CAPABILITY and HAS_EQUIPMENT edges and the requirements table.
package inference

import (
	"fmt"
	"math"

	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/requirements"
)

// DefaultMinReadiness is the readiness a facility needs for COULD_SUPPORT.
const DefaultMinReadiness = 0.6

// EvidenceNone marks a LACKS edge with no supporting equipment evidence.
const EvidenceNone = "no_evidence"

const readinessEpsilon = 1e-9

// Engine applies a requirements table to a graph.
type Engine struct {
	reqs         *requirements.Table
	minReadiness float64
}

// New creates an engine. A non-positive minReadiness uses the default.
func New(reqs *requirements.Table, minReadiness float64) *Engine {
	if minReadiness <= 0 {
		minReadiness = DefaultMinReadiness
	}
	return &Engine{reqs: reqs, minReadiness: minReadiness}
}

// Result counts what a run changed.
type Result struct {
	LacksAdded   int `json:"lacks_added"`
	LacksUpdated int `json:"lacks_updated"`
	SupportAdded int `json:"could_support_added"`
	SupportKept  int `json:"could_support_updated"`
}

// Run derives both edge types. Running it again on an unchanged graph adds
// nothing.
func (e *Engine) Run(g *graph.Graph) (Result, error) {
	var res Result
	if err := e.addLacks(g, &res); err != nil {
		return res, err
	}
	if err := e.addCouldSupport(g, &res); err != nil {
		return res, err
	}
	return res, nil
}

// claimed returns target keys of t edges in first-seen order.
func claimed(g *graph.Graph, id string, t graph.EdgeType) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ed := range g.Out(id, t) {
		k := graph.KeyOf(ed.To)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (e *Engine) addLacks(g *graph.Graph, res *Result) error {
	for _, f := range g.Nodes(graph.NodeFacility) {
		owned := g.Targets(f.ID, graph.HasEquipment)
		for _, capKey := range claimed(g, f.ID, graph.HasCapability) {
			for _, eq := range e.reqs.Required(capKey) {
				if owned[eq] {
					continue
				}
				eid := graph.EquipmentID(eq)
				if !g.HasNode(eid) {
					continue
				}
				if existing := g.FindEdge(f.ID, eid, graph.Lacks); existing != nil {
					if contains(existing.Lacks.RequiredBy, capKey) {
						continue
					}
					if err := g.UpdateEdge(existing, func(ed *graph.Edge) {
						ed.Lacks.RequiredBy = append(ed.Lacks.RequiredBy, capKey)
					}); err != nil {
						return fmt.Errorf("updating LACKS %s -> %s: %w", f.ID, eid, err)
					}
					res.LacksUpdated++
					continue
				}
				_, err := g.AddEdge(&graph.Edge{
					Type: graph.Lacks,
					From: f.ID,
					To:   eid,
					Lacks: &graph.LacksAttrs{
						RequiredBy:     []string{capKey},
						EvidenceStatus: EvidenceNone,
						Reason:         fmt.Sprintf("Required for %s but no evidence found", capKey),
					},
				})
				if err != nil {
					return fmt.Errorf("adding LACKS %s -> %s: %w", f.ID, eid, err)
				}
				res.LacksAdded++
			}
		}
	}
	return nil
}

func (e *Engine) addCouldSupport(g *graph.Graph, res *Result) error {
	for _, f := range g.Nodes(graph.NodeFacility) {
		owned := g.Targets(f.ID, graph.HasEquipment)
		if len(owned) == 0 {
			continue
		}
		claims := g.Targets(f.ID, graph.HasCapability)

		for _, capKey := range e.reqs.Capabilities() {
			if claims[capKey] {
				continue
			}
			required := e.reqs.Required(capKey)
			if len(required) == 0 {
				continue
			}
			cid := graph.CapabilityID(capKey)
			if !g.HasNode(cid) {
				continue
			}

			var have, missing []string
			for _, eq := range required {
				if owned[eq] {
					have = append(have, eq)
				} else {
					missing = append(missing, eq)
				}
			}
			readiness := float64(len(have)) / float64(len(required))
			if readiness+readinessEpsilon < e.minReadiness {
				continue
			}

			attrs := &graph.SupportAttrs{
				Readiness: geo.Round(readiness, 2),
				Existing:  have,
				Missing:   missing,
			}
			if existing := g.FindEdge(f.ID, cid, graph.CouldSupport); existing != nil {
				if err := g.UpdateEdge(existing, func(ed *graph.Edge) { ed.Support = attrs }); err != nil {
					return fmt.Errorf("updating COULD_SUPPORT %s -> %s: %w", f.ID, cid, err)
				}
				res.SupportKept++
				continue
			}
			if _, err := g.AddEdge(&graph.Edge{Type: graph.CouldSupport, From: f.ID, To: cid, Support: attrs}); err != nil {
				return fmt.Errorf("adding COULD_SUPPORT %s -> %s: %w", f.ID, cid, err)
			}
			res.SupportAdded++
		}
	}
	return nil
}

// Readiness returns the fraction of capability's required equipment held
// by a facility, or NaN when the capability has no requirements.
func (e *Engine) Readiness(g *graph.Graph, facilityID, capability string) float64 {
	required := e.reqs.Required(capability)
	if len(required) == 0 {
		return math.NaN()
	}
	owned := g.Targets(facilityID, graph.HasEquipment)
	n := 0
	for _, eq := range required {
		if owned[eq] {
			n++
		}
	}
	return float64(n) / float64(len(required))
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
