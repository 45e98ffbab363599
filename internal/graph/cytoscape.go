package graph

import (
	"encoding/json"
	"fmt"
)

// CytoscapeElements is the Cytoscape.js elements document.
type CytoscapeElements struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// CytoscapeNode wraps node data for Cytoscape.js.
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData is the flattened, display-oriented view of a node.
type CytoscapeNodeData struct {
	ID              string   `json:"id"`
	Type            NodeType `json:"type"`
	Label           string   `json:"label"`
	Region          string   `json:"region,omitempty"`
	ConnectionCount int      `json:"connectionCount"`
}

// CytoscapeEdge wraps edge data for Cytoscape.js.
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData is the flattened view of an edge.
type CytoscapeEdgeData struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Type       EdgeType `json:"relationshipType"`
	Confidence float64  `json:"confidence,omitempty"`
}

// ToCytoscape converts the graph to Cytoscape.js elements. Edge IDs are
// stable for a given snapshot since they derive from edge handles.
func (g *Graph) ToCytoscape() CytoscapeElements {
	elements := CytoscapeElements{
		Nodes: make([]CytoscapeNode, 0, len(g.nodes)),
		Edges: make([]CytoscapeEdge, 0, len(g.edges)),
	}
	for _, n := range g.Nodes("") {
		data := CytoscapeNodeData{
			ID:              n.ID,
			Type:            n.Type,
			Label:           n.Name(),
			ConnectionCount: len(g.out[n.ID]) + len(g.in[n.ID]),
		}
		if n.Facility != nil {
			data.Region = n.Facility.Region
		}
		elements.Nodes = append(elements.Nodes, CytoscapeNode{Data: data})
	}
	for _, e := range g.edges {
		elements.Edges = append(elements.Edges, CytoscapeEdge{Data: CytoscapeEdgeData{
			ID:         fmt.Sprintf("e%d", e.ID),
			Source:     e.From,
			Target:     e.To,
			Type:       e.Type,
			Confidence: e.Confidence,
		}})
	}
	return elements
}

// ToCytoscapeJSON returns the Cytoscape.js elements as JSON.
func (g *Graph) ToCytoscapeJSON() ([]byte, error) {
	data, err := json.Marshal(g.ToCytoscape())
	if err != nil {
		return nil, fmt.Errorf("marshaling Cytoscape elements to JSON: %w", err)
	}
	return data, nil
}
