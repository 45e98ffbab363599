package graph

import (
	"errors"
	"fmt"
)

// Errors returned by graph operations.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrFrozen       = errors.New("graph is frozen")
	ErrInvalidNode  = errors.New("invalid node")
)

// Graph is a directed multigraph with per-node out and in edge indexes.
// After Freeze the graph is read-only and safe for concurrent readers.
type Graph struct {
	nodes  map[string]*Node
	order  []string
	edges  []*Edge
	out    map[string][]int
	in     map[string][]int
	frozen bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}
}

// Freeze makes the graph read-only.
func (g *Graph) Freeze() {
	g.frozen = true
}

// Frozen reports whether the graph is read-only.
func (g *Graph) Frozen() bool {
	return g.frozen
}

// AddNode inserts n if no node with its ID exists. It reports whether the
// node was added; an existing node is left untouched.
func (g *Graph) AddNode(n *Node) (bool, error) {
	if g.frozen {
		return false, ErrFrozen
	}
	if n == nil || n.ID == "" || n.Type == "" {
		return false, ErrInvalidNode
	}
	if _, exists := g.nodes[n.ID]; exists {
		return false, nil
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return true, nil
}

// AddEdge inserts e, assigning its ID. Both endpoints must already exist.
func (g *Graph) AddEdge(e *Edge) (*Edge, error) {
	if g.frozen {
		return nil, ErrFrozen
	}
	if _, ok := g.nodes[e.From]; !ok {
		return nil, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return nil, fmt.Errorf("%w: edge target %s", ErrNodeNotFound, e.To)
	}
	g.insertEdge(e)
	return e, nil
}

func (g *Graph) insertEdge(e *Edge) {
	e.ID = len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], e.ID)
	g.in[e.To] = append(g.in[e.To], e.ID)
}

// UpdateEdge applies fn to an existing edge. Endpoints and type must not be
// changed by fn.
func (g *Graph) UpdateEdge(e *Edge, fn func(*Edge)) error {
	if g.frozen {
		return ErrFrozen
	}
	if e == nil || e.ID < 0 || e.ID >= len(g.edges) || g.edges[e.ID] != e {
		return fmt.Errorf("updating edge: not part of this graph")
	}
	fn(e)
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns the nodes of type t in insertion order. An empty t returns
// every node.
func (g *Graph) Nodes(t NodeType) []*Node {
	var out []*Node
	for _, id := range g.order {
		n := g.nodes[id]
		if t == "" || n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns the edges of type t in insertion order. An empty t returns
// every edge.
func (g *Graph) Edges(t EdgeType) []*Edge {
	if t == "" {
		return g.edges
	}
	var out []*Edge
	for _, e := range g.edges {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) collect(ids []int, t EdgeType) []*Edge {
	var out []*Edge
	for _, i := range ids {
		e := g.edges[i]
		if t == "" || e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Out returns the outgoing edges of id with type t (all types if empty).
func (g *Graph) Out(id string, t EdgeType) []*Edge {
	return g.collect(g.out[id], t)
}

// In returns the incoming edges of id with type t (all types if empty).
func (g *Graph) In(id string, t EdgeType) []*Edge {
	return g.collect(g.in[id], t)
}

// FindEdge returns the first edge of type t from one node to another.
func (g *Graph) FindEdge(from, to string, t EdgeType) *Edge {
	for _, i := range g.out[from] {
		e := g.edges[i]
		if e.To == to && e.Type == t {
			return e
		}
	}
	return nil
}

// Targets returns the set of target keys (namespace stripped) reached from
// id over edges of type t.
func (g *Graph) Targets(id string, t EdgeType) map[string]bool {
	set := make(map[string]bool)
	for _, e := range g.Out(id, t) {
		set[KeyOf(e.To)] = true
	}
	return set
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// NodeCounts returns node counts per type.
func (g *Graph) NodeCounts() map[NodeType]int {
	counts := make(map[NodeType]int)
	for _, n := range g.nodes {
		counts[n.Type]++
	}
	return counts
}

// EdgeCounts returns edge counts per type.
func (g *Graph) EdgeCounts() map[EdgeType]int {
	counts := make(map[EdgeType]int)
	for _, e := range g.edges {
		counts[e.Type]++
	}
	return counts
}

// Facility returns the facility attributes of a node, or nil.
func (g *Graph) Facility(id string) *FacilityAttrs {
	if n, ok := g.nodes[id]; ok && n.Type == NodeFacility {
		return n.Facility
	}
	return nil
}
