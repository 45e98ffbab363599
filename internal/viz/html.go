// Package viz renders the facility graph as a standalone Cytoscape.js page.
package viz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"github.com/sharckhai/neo-command/internal/graph"
)

// compiledTemplate is parsed at init time to fail fast on template errors.
var compiledTemplate *template.Template

func init() {
	compiledTemplate = template.Must(template.New("viz").Parse(htmlTemplate))
}

// Options configures HTML generation.
type Options struct {
	Layout string // "force", "circle", "grid" or "concentric"
	// Region limits the page to one region's facilities, NGOs and the
	// vocabulary nodes they touch. Empty shows the whole graph.
	Region string
	// EdgeTypes limits the edges drawn. Empty draws every type.
	EdgeTypes []graph.EdgeType
}

// DefaultOptions returns default HTML generation options.
func DefaultOptions() Options {
	return Options{Layout: "force"}
}

// ValidLayouts lists the supported layout algorithm names.
var ValidLayouts = []string{"force", "circle", "grid", "concentric"}

// GenerateHTML generates a self-contained HTML page for g.
func GenerateHTML(g *graph.Graph, opts Options) (string, error) {
	if g == nil {
		return "", fmt.Errorf("graph cannot be nil")
	}
	if err := validateLayout(opts.Layout); err != nil {
		return "", err
	}

	elements := Filter(g.ToCytoscape(), opts)
	if len(elements.Nodes) == 0 {
		return generateEmptyHTML(opts.Region), nil
	}

	graphJSON, err := json.Marshal(elements)
	if err != nil {
		return "", fmt.Errorf("marshaling elements: %w", err)
	}

	title := "Facility Graph"
	if opts.Region != "" {
		title += " - " + opts.Region
	}
	data := templateData{
		Title:     title,
		GraphJSON: template.JS(graphJSON),
		Layout:    layoutToCytoscape(opts.Layout),
	}

	var buf bytes.Buffer
	if err := compiledTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Filter keeps the edges selected by opts and the nodes they touch. With
// no filters set every node is kept, including isolated ones.
func Filter(el graph.CytoscapeElements, opts Options) graph.CytoscapeElements {
	if opts.Region == "" && len(opts.EdgeTypes) == 0 {
		return el
	}

	region := strings.ToLower(strings.TrimSpace(opts.Region))
	regionID := graph.RegionID(region)
	inRegion := make(map[string]bool)
	for _, n := range el.Nodes {
		if region == "" || n.Data.ID == regionID || n.Data.Region == region {
			inRegion[n.Data.ID] = true
		}
	}

	keep := make(map[string]bool)
	out := graph.CytoscapeElements{Edges: []graph.CytoscapeEdge{}}
	for _, e := range el.Edges {
		if len(opts.EdgeTypes) > 0 && !slices.Contains(opts.EdgeTypes, e.Data.Type) {
			continue
		}
		if !inRegion[e.Data.Source] && !inRegion[e.Data.Target] {
			continue
		}
		keep[e.Data.Source] = true
		keep[e.Data.Target] = true
		out.Edges = append(out.Edges, e)
	}
	out.Nodes = make([]graph.CytoscapeNode, 0, len(keep))
	for _, n := range el.Nodes {
		if keep[n.Data.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	return out
}

func validateLayout(layout string) error {
	if layout == "" || slices.Contains(ValidLayouts, layout) {
		return nil
	}
	return fmt.Errorf("invalid layout %q: must be one of %s", layout, strings.Join(ValidLayouts, ", "))
}

type templateData struct {
	Title     string
	GraphJSON template.JS
	Layout    string
}

// layoutToCytoscape converts user-facing layout names to Cytoscape.js layout algorithm names.
func layoutToCytoscape(layout string) string {
	switch layout {
	case "circle", "grid", "concentric":
		return layout
	default:
		return "cose"
	}
}

func generateEmptyHTML(region string) string {
	msg := "The graph has no nodes."
	if region != "" {
		msg = "No facilities or NGOs are located in " + template.HTMLEscapeString(region) + "."
	}
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Facility Graph - Empty</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      justify-content: center;
      align-items: center;
      height: 100vh;
      margin: 0;
      background: #f5f5f5;
    }
    .empty-state {
      text-align: center;
      color: #666;
    }
    .empty-state code {
      background: #e0e0e0;
      padding: 2px 6px;
      border-radius: 3px;
    }
  </style>
</head>
<body>
  <div class="empty-state">
    <h2>No graph data</h2>
    <p>` + msg + `</p>
    <p>Rebuild with <code>neo build</code></p>
  </div>
</body>
</html>`
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <script src="https://unpkg.com/cytoscape@3/dist/cytoscape.min.js"></script>
  <style>
    html, body { margin: 0; height: 100%; font: 13px -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    #app { display: flex; height: 100%; }
    #panel { width: 240px; padding: 12px; border-right: 1px solid #ddd; background: #fafafa; overflow-y: auto; }
    #panel h1 { font-size: 15px; margin: 0 0 10px; }
    #panel h2 { font-size: 11px; text-transform: uppercase; color: #888; margin: 14px 0 6px; }
    #panel label { display: block; margin: 3px 0; cursor: pointer; }
    #panel input[type=search] { width: 100%; padding: 4px 6px; }
    .swatch { display: inline-block; width: 10px; height: 10px; margin-right: 6px; border-radius: 2px; }
    #graph { flex: 1; }
    #info { margin-top: 14px; padding-top: 8px; border-top: 1px solid #ddd; color: #444; }
    #info .kind { font-size: 10px; text-transform: uppercase; color: #888; }
    #info .name { font-weight: bold; margin: 2px 0 4px; }
  </style>
</head>
<body>
  <div id="app">
    <div id="panel">
      <h1>{{.Title}}</h1>
      <input type="search" id="find" placeholder="Find a node">
      <h2>Nodes</h2>
      <div id="nodeTypes"></div>
      <h2>Edges</h2>
      <div id="edgeTypes"></div>
      <div id="info">Click a node to see its neighbours.</div>
    </div>
    <div id="graph"></div>
  </div>
  <script>
    (function() {
      const elements = {{.GraphJSON}};
      const layoutName = "{{.Layout}}";

      const nodeColors = {
        Region: '#27AE60', Facility: '#4A90D9', NGO: '#9B59B6',
        Capability: '#E8923A', Equipment: '#7F8C8D', Specialty: '#F1C40F'
      };
      const nodeShapes = {
        Region: 'hexagon', Facility: 'ellipse', NGO: 'round-rectangle',
        Capability: 'diamond', Equipment: 'rectangle', Specialty: 'triangle'
      };
      const edgeColors = {
        LOCATED_IN: '#BDC3C7', OPERATES_IN: '#D7BDE2', HAS_SPECIALTY: '#F9E79F',
        HAS_CAPABILITY: '#F5CBA7', HAS_EQUIPMENT: '#AEB6BF',
        LACKS: '#E74C3C', COULD_SUPPORT: '#1ABC9C', DESERT_FOR: '#C0392B'
      };

      const style = [
        { selector: 'node', style: {
          'label': 'data(label)', 'font-size': 9, 'color': '#333',
          'text-valign': 'bottom', 'text-margin-y': 3,
          'width': 'mapData(connectionCount, 0, 40, 10, 42)',
          'height': 'mapData(connectionCount, 0, 40, 10, 42)'
        } },
        { selector: 'edge', style: {
          'width': 1, 'opacity': 0.7, 'curve-style': 'bezier',
          'target-arrow-shape': 'triangle', 'arrow-scale': 0.6
        } },
        { selector: 'edge[relationshipType="LACKS"]', style: { 'line-style': 'dashed', 'width': 2 } },
        { selector: 'edge[relationshipType="COULD_SUPPORT"]', style: { 'line-style': 'dotted', 'width': 2 } },
        { selector: 'edge[relationshipType="DESERT_FOR"]', style: { 'width': 3 } },
        { selector: '.faded', style: { 'opacity': 0.12 } },
        { selector: '.focus', style: { 'border-width': 3, 'border-color': '#E74C3C' } },
        { selector: '.hidden', style: { 'display': 'none' } }
      ];
      Object.keys(nodeColors).forEach(function(t) {
        style.push({ selector: 'node[type="' + t + '"]', style: { 'background-color': nodeColors[t], 'shape': nodeShapes[t] } });
      });
      Object.keys(edgeColors).forEach(function(t) {
        style.push({ selector: 'edge[relationshipType="' + t + '"]', style: { 'line-color': edgeColors[t], 'target-arrow-color': edgeColors[t] } });
      });

      const cy = cytoscape({
        container: document.getElementById('graph'),
        elements: elements,
        style: style,
        layout: { name: layoutName, animate: false, nodeRepulsion: 9000, idealEdgeLength: 80 }
      });

      function esc(s) {
        return String(s == null ? '' : s).replace(/[&<>"]/g, function(c) {
          return { '&': '&amp;', '<': '&lt;', '>': '&gt;', '"': '&quot;' }[c];
        });
      }

      function toggles(containerId, colors, selectorFor) {
        const box = document.getElementById(containerId);
        Object.keys(colors).forEach(function(t) {
          const count = cy.elements(selectorFor(t)).length;
          if (count === 0) return;
          const label = document.createElement('label');
          label.innerHTML = '<input type="checkbox" checked> <span class="swatch" style="background:' +
            colors[t] + '"></span>' + esc(t) + ' (' + count + ')';
          label.querySelector('input').addEventListener('change', function(ev) {
            cy.elements(selectorFor(t)).toggleClass('hidden', !ev.target.checked);
          });
          box.appendChild(label);
        });
      }
      toggles('nodeTypes', nodeColors, function(t) { return 'node[type="' + t + '"]'; });
      toggles('edgeTypes', edgeColors, function(t) { return 'edge[relationshipType="' + t + '"]'; });

      const info = document.getElementById('info');
      function describe(node) {
        const d = node.data();
        let html = '<div class="kind">' + esc(d.type) + '</div><div class="name">' + esc(d.label) + '</div>';
        if (d.region) html += '<div>Region: ' + esc(d.region) + '</div>';
        html += '<div>Connections: ' + d.connectionCount + '</div>';
        const gaps = node.connectedEdges('[relationshipType="LACKS"], [relationshipType="DESERT_FOR"]');
        if (gaps.length) html += '<div>Gap edges: ' + gaps.length + '</div>';
        info.innerHTML = html;
      }

      function focus(node) {
        cy.elements().removeClass('faded focus');
        const hood = node.closedNeighborhood();
        cy.elements().not(hood).addClass('faded');
        node.addClass('focus');
        describe(node);
      }

      cy.on('tap', 'node', function(evt) { focus(evt.target); });
      cy.on('tap', function(evt) {
        if (evt.target === cy) {
          cy.elements().removeClass('faded focus');
          info.textContent = 'Click a node to see its neighbours.';
        }
      });
      cy.on('mouseover', 'edge', function(evt) {
        const d = evt.target.data();
        let text = d.relationshipType;
        if (d.confidence) text += ' (' + d.confidence.toFixed(2) + ')';
        evt.target.style('label', text);
      });
      cy.on('mouseout', 'edge', function(evt) { evt.target.removeStyle('label'); });

      document.getElementById('find').addEventListener('change', function(ev) {
        const q = ev.target.value.trim().toLowerCase();
        if (!q) return;
        const hit = cy.nodes().filter(function(n) {
          return String(n.data('label')).toLowerCase().indexOf(q) >= 0;
        }).first();
        if (hit.nonempty()) {
          focus(hit);
          cy.animate({ center: { eles: hit }, zoom: 1.5 }, { duration: 300 });
        }
      });
    })();
  </script>
</body>
</html>`
