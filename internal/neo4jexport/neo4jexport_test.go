package neo4jexport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/graph/graphtest"
)

func sample(t *testing.T) *graph.Graph {
	t.Helper()
	b := graphtest.New(t).
		Region("northern", 2_310_939, 9.4008, -0.8393).
		Facility("f1", "Tamale Teaching Hospital", "northern", graphtest.WithCapacity(300), graphtest.WithLocation(9.40, -0.84)).
		Facility("f2", "Savelugu Clinic", "northern").
		Capability("f1", "dialysis").
		Equipment("f1", "dialysis_machine").
		NGO("n1", "Northern Health Aid", "northern")
	b.G.AddEdge(&graph.Edge{
		Type:  graph.Lacks,
		From:  graph.FacilityID("f2"),
		To:    graph.EquipmentID("dialysis_machine"),
		Lacks: &graph.LacksAttrs{RequiredBy: []string{"dialysis"}, EvidenceStatus: "no_evidence"},
	})
	return b.G
}

func TestNodeRows(t *testing.T) {
	rows := NodeRows(sample(t))

	if got := len(rows[graph.NodeFacility]); got != 2 {
		t.Fatalf("facility rows = %d, want 2", got)
	}
	var f1, f2 map[string]any
	for _, r := range rows[graph.NodeFacility] {
		switch r["key"] {
		case "f1":
			f1 = r
		case "f2":
			f2 = r
		}
	}
	if f1["capacity"] != int64(300) {
		t.Errorf("capacity = %#v, want int64(300)", f1["capacity"])
	}
	loc, ok := f1["location"].(neo4j.Point2D)
	if !ok || loc.X != -0.84 || loc.Y != 9.40 || loc.SpatialRefId != wgs84 {
		t.Errorf("location = %#v", f1["location"])
	}
	for _, k := range []string{"capacity", "location", "description"} {
		if _, ok := f2[k]; ok {
			t.Errorf("f2 has unset property %q", k)
		}
	}

	region := rows[graph.NodeRegion][0]
	if region["id"] != "region::northern" || region["population"] != int64(2_310_939) {
		t.Errorf("region row = %v", region)
	}
	if len(rows[graph.NodeNGO]) != 1 || len(rows[graph.NodeCapability]) != 1 {
		t.Errorf("ngo = %d capability = %d", len(rows[graph.NodeNGO]), len(rows[graph.NodeCapability]))
	}
}

func TestEdgeRows(t *testing.T) {
	rows := EdgeRows(sample(t))

	if got := len(rows[graph.LocatedIn]); got != 2 {
		t.Errorf("LOCATED_IN rows = %d, want 2", got)
	}
	lacks := rows[graph.Lacks]
	if len(lacks) != 1 {
		t.Fatalf("LACKS rows = %d, want 1", len(lacks))
	}
	props := lacks[0]["props"].(map[string]any)
	if rb, _ := props["required_by"].([]string); len(rb) != 1 || rb[0] != "dialysis" {
		t.Errorf("required_by = %#v", props["required_by"])
	}
	if _, ok := props["confidence"]; ok {
		t.Error("LACKS row carries a confidence")
	}

	has := rows[graph.HasCapability][0]
	if has["from"] != "facility::f1" || has["to"] != "capability::dialysis" {
		t.Errorf("HAS_CAPABILITY endpoints = %v -> %v", has["from"], has["to"])
	}
	if p := has["props"].(map[string]any); p["confidence"] != 0.8 {
		t.Errorf("confidence = %v", p["confidence"])
	}
}

func TestQueries(t *testing.T) {
	if q := NodeQuery(graph.NodeFacility); !strings.Contains(q, "MERGE (n:Facility {id: r.id})") {
		t.Errorf("NodeQuery = %q", q)
	}
	q := EdgeQuery(graph.CouldSupport)
	for _, want := range []string{"MATCH (a:Facility {id: r.from})", "MATCH (b:Capability {id: r.to})", "[e:COULD_SUPPORT {edge_id: r.edge_id}]"} {
		if !strings.Contains(q, want) {
			t.Errorf("EdgeQuery(COULD_SUPPORT) missing %q", want)
		}
	}
	if q := EdgeQuery(graph.DesertFor); !strings.Contains(q, "MATCH (a:Region {id: r.from})") {
		t.Errorf("EdgeQuery(DESERT_FOR) = %q", q)
	}
	stmts := SchemaStatements()
	if len(stmts) != len(graph.NodeTypes) {
		t.Fatalf("schema statements = %d", len(stmts))
	}
	for _, s := range stmts {
		if strings.Contains(s, "NGO_") || !strings.Contains(s, "IF NOT EXISTS") {
			t.Errorf("schema statement = %q", s)
		}
	}
}

func TestSnake(t *testing.T) {
	for in, want := range map[string]string{"Facility": "facility", "NGO": "ngo", "HasCapability": "has_capability"} {
		if got := snake(in); got != want {
			t.Errorf("snake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChunk(t *testing.T) {
	rows := make([]map[string]any, 5)
	got := chunk(rows, 2)
	if len(got) != 3 || len(got[2]) != 1 {
		t.Errorf("chunk(5, 2) = %d batches", len(got))
	}
	if chunk(nil, 2) != nil {
		t.Error("chunk(nil) is not empty")
	}
}

func TestConnectRequiresURI(t *testing.T) {
	if _, err := Connect(context.Background(), Config{}); !errors.Is(err, ErrNoURI) {
		t.Errorf("Connect() error = %v, want ErrNoURI", err)
	}
}
