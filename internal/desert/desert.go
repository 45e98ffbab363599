// Package desert finds (region, specialty) pairs without enough facilities
// and records them as DESERT_FOR edges.
package desert

import (
	"fmt"
	"sort"

	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
)

// Defaults for Detector.
const (
	DefaultConfidence    = 0.5
	DefaultMinFacilities = 1
)

// Detector classifies deserts over a region adjacency map.
type Detector struct {
	Adjacency     map[string][]string
	Confidence    float64
	MinFacilities int
}

// New creates a detector with default thresholds.
func New(adjacency map[string][]string) *Detector {
	return &Detector{Adjacency: adjacency, Confidence: DefaultConfidence, MinFacilities: DefaultMinFacilities}
}

// Result counts what a run changed.
type Result struct {
	Added   int `json:"desert_edges_added"`
	Updated int `json:"desert_edges_updated"`
}

// Coverage counts, per region and specialty, the facilities with a
// HAS_SPECIALTY edge at or above confidence.
func Coverage(g *graph.Graph, confidence float64) map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for _, f := range g.Nodes(graph.NodeFacility) {
		region := f.Facility.Region
		if region == "" {
			continue
		}
		for _, e := range g.Out(f.ID, graph.HasSpecialty) {
			if e.Confidence < confidence {
				continue
			}
			if counts[region] == nil {
				counts[region] = make(map[string]int)
			}
			counts[region][graph.KeyOf(e.To)]++
		}
	}
	return counts
}

// Run adds a DESERT_FOR edge for every region node and specialty node whose
// coverage is below MinFacilities. Existing edges are updated in place.
func (d *Detector) Run(g *graph.Graph) (Result, error) {
	var res Result
	counts := Coverage(g, d.Confidence)

	var specialties []string
	for _, s := range g.Nodes(graph.NodeSpecialty) {
		specialties = append(specialties, graph.KeyOf(s.ID))
	}

	for _, r := range g.Nodes(graph.NodeRegion) {
		regionKey := graph.KeyOf(r.ID)
		for _, spec := range specialties {
			count := counts[regionKey][spec]
			if count >= d.MinFacilities {
				continue
			}

			served := make(map[string]bool)
			for rk, specs := range counts {
				if specs[spec] >= d.MinFacilities {
					served[rk] = true
				}
			}

			attrs := &graph.DesertAttrs{
				FacilityCount: count,
				Population:    r.Region.Population,
				NearestRegion: Nearest(regionKey, served, d.Adjacency),
				Severity:      Severity(r.Region.Population, count),
			}
			sid := graph.SpecialtyID(spec)
			if existing := g.FindEdge(r.ID, sid, graph.DesertFor); existing != nil {
				if err := g.UpdateEdge(existing, func(e *graph.Edge) { e.Desert = attrs }); err != nil {
					return res, fmt.Errorf("updating DESERT_FOR %s -> %s: %w", r.ID, sid, err)
				}
				res.Updated++
				continue
			}
			if _, err := g.AddEdge(&graph.Edge{Type: graph.DesertFor, From: r.ID, To: sid, Desert: attrs}); err != nil {
				return res, fmt.Errorf("adding DESERT_FOR %s -> %s: %w", r.ID, sid, err)
			}
			res.Added++
		}
	}
	return res, nil
}

// Severity is population per facility, so empty populous regions rank
// first.
func Severity(population, facilities int) float64 {
	return geo.Round(float64(population)/float64(facilities+1), 1)
}

// Nearest returns the closest region in served by breadth-first search over
// adjacency, starting at start itself. It returns "" if no served region is
// reachable.
func Nearest(start string, served map[string]bool, adjacency map[string][]string) string {
	if served[start] {
		return start
	}
	visited := map[string]bool{start: true}
	queue := append([]string(nil), adjacency[start]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if served[cur] {
			return cur
		}
		for _, n := range adjacency[cur] {
			if !visited[n] {
				queue = append(queue, n)
			}
		}
	}
	return ""
}

// Desert is one under-served pair read back from the graph.
type Desert struct {
	Region        string  `json:"region"`
	RegionName    string  `json:"region_name"`
	Specialty     string  `json:"specialty"`
	FacilityCount int     `json:"facility_count"`
	Population    int     `json:"population"`
	NearestRegion string  `json:"nearest_region_with_service,omitempty"`
	Severity      float64 `json:"severity"`
}

// List returns the DESERT_FOR edges of g, optionally for one specialty,
// ordered by severity descending.
func List(g *graph.Graph, specialty string) []Desert {
	var out []Desert
	for _, e := range g.Edges(graph.DesertFor) {
		spec := graph.KeyOf(e.To)
		if specialty != "" && spec != specialty {
			continue
		}
		name := graph.KeyOf(e.From)
		if n, ok := g.Node(e.From); ok {
			name = n.Name()
		}
		out = append(out, Desert{
			Region:        graph.KeyOf(e.From),
			RegionName:    name,
			Specialty:     spec,
			FacilityCount: e.Desert.FacilityCount,
			Population:    e.Desert.Population,
			NearestRegion: e.Desert.NearestRegion,
			Severity:      e.Desert.Severity,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}
