package inference

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/graph/graphtest"
	"github.com/sharckhai/neo-command/internal/requirements"
)

func lacksTargets(g *graph.Graph, fid string) []string {
	var out []string
	for _, e := range g.Out(fid, graph.Lacks) {
		out = append(out, graph.KeyOf(e.To))
	}
	sort.Strings(out)
	return out
}

func TestLacksForCesareanWithoutEquipment(t *testing.T) {
	reqs, err := requirements.Load()
	if err != nil {
		t.Fatal(err)
	}
	required := append([]string{}, reqs.Required("cesarean_section")...)
	if len(required) == 0 {
		t.Fatal("cesarean_section should have required equipment")
	}

	b := graphtest.New(t).
		Region("northern", 100, 9.4, -0.85).
		Facility("f1", "Clinic", "northern").
		EquipmentNode(required...).
		EquipmentNode("mri_scanner").
		Capability("f1", "cesarean_section")

	if _, err := New(reqs, 0).Run(b.G); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sort.Strings(required)
	if got := lacksTargets(b.G, graph.FacilityID("f1")); !reflect.DeepEqual(got, required) {
		t.Errorf("LACKS targets = %v, want %v", got, required)
	}
	for _, e := range b.G.Out(graph.FacilityID("f1"), graph.Lacks) {
		if e.Lacks.EvidenceStatus != EvidenceNone || e.Lacks.RequiredBy[0] != "cesarean_section" {
			t.Errorf("unexpected attrs %+v", e.Lacks)
		}
	}
	if n := len(b.G.Out(graph.FacilityID("f1"), graph.CouldSupport)); n != 0 {
		t.Errorf("facility without equipment got %d COULD_SUPPORT edges", n)
	}
}

func TestLacksAccumulatesRequiredBy(t *testing.T) {
	reqs := requirements.New(
		requirements.Requirement{Capability: "a", Required: []string{"x", "y"}},
		requirements.Requirement{Capability: "b", Required: []string{"x"}},
	)
	b := graphtest.New(t).
		Region("r", 1, 0, 0).
		Facility("f", "F", "r").
		EquipmentNode("x").
		Equipment("f", "y").
		Capability("f", "a", "b")

	res, err := New(reqs, 0).Run(b.G)
	if err != nil {
		t.Fatal(err)
	}
	edges := b.G.Out(graph.FacilityID("f"), graph.Lacks)
	if len(edges) != 1 {
		t.Fatalf("got %d LACKS edges, want 1", len(edges))
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(edges[0].Lacks.RequiredBy, want) {
		t.Errorf("RequiredBy = %v, want %v", edges[0].Lacks.RequiredBy, want)
	}
	if res.LacksAdded != 1 || res.LacksUpdated != 1 {
		t.Errorf("result = %+v", res)
	}
}

func keys(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return out
}

func TestCouldSupportThreshold(t *testing.T) {
	required := keys("eq", 100)
	reqs := requirements.New(requirements.Requirement{Capability: "surgery", Required: required})

	tests := []struct {
		name string
		held int
		want bool
	}{
		{"sixty percent", 60, true},
		{"fifty-nine percent", 59, false},
		{"all", 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graphtest.New(t).
				Region("r", 1, 0, 0).
				Facility("f", "F", "r").
				CapabilityNode("surgery").
				EquipmentNode(required...).
				Equipment("f", required[:tt.held]...)

			if _, err := New(reqs, 0.6).Run(b.G); err != nil {
				t.Fatal(err)
			}
			e := b.G.FindEdge(graph.FacilityID("f"), graph.CapabilityID("surgery"), graph.CouldSupport)
			if (e != nil) != tt.want {
				t.Fatalf("COULD_SUPPORT present = %v, want %v", e != nil, tt.want)
			}
			if e != nil {
				want := float64(tt.held) / 100
				if e.Support.Readiness != want {
					t.Errorf("readiness = %v, want %v", e.Support.Readiness, want)
				}
				if len(e.Support.Existing) != tt.held || len(e.Support.Missing) != 100-tt.held {
					t.Errorf("existing/missing = %d/%d", len(e.Support.Existing), len(e.Support.Missing))
				}
			}
		})
	}
}

func TestCouldSupportSkipsClaimedCapability(t *testing.T) {
	reqs := requirements.New(requirements.Requirement{Capability: "c", Required: []string{"x"}})
	b := graphtest.New(t).
		Region("r", 1, 0, 0).
		Facility("f", "F", "r").
		Equipment("f", "x").
		Capability("f", "c")
	if _, err := New(reqs, 0).Run(b.G); err != nil {
		t.Fatal(err)
	}
	if n := len(b.G.Edges(graph.CouldSupport)); n != 0 {
		t.Errorf("got %d COULD_SUPPORT edges for claimed capability", n)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	reqs, err := requirements.Load()
	if err != nil {
		t.Fatal(err)
	}
	b := graphtest.New(t).
		Region("r", 1, 0, 0).
		Facility("f1", "A", "r").
		Facility("f2", "B", "r").
		CapabilityNode(reqs.Capabilities()...).
		EquipmentNode(reqs.Required("cesarean_section")...).
		Capability("f1", "cesarean_section").
		Equipment("f2", reqs.Required("cesarean_section")...)

	engine := New(reqs, 0)
	if _, err := engine.Run(b.G); err != nil {
		t.Fatal(err)
	}
	before := b.G.EdgeCounts()
	snapshot := map[int]string{}
	for _, e := range b.G.Edges(graph.Lacks) {
		snapshot[e.ID] = fmt.Sprint(e.Lacks.RequiredBy)
	}

	res, err := engine.Run(b.G)
	if err != nil {
		t.Fatal(err)
	}
	if res.LacksAdded != 0 || res.SupportAdded != 0 || res.LacksUpdated != 0 {
		t.Errorf("second run changed the graph: %+v", res)
	}
	if after := b.G.EdgeCounts(); !reflect.DeepEqual(before, after) {
		t.Errorf("edge counts changed: %v -> %v", before, after)
	}
	for _, e := range b.G.Edges(graph.Lacks) {
		if snapshot[e.ID] != fmt.Sprint(e.Lacks.RequiredBy) {
			t.Errorf("required_by changed on edge %d", e.ID)
		}
	}
	if before[graph.CouldSupport] == 0 {
		t.Error("fully equipped facility should get COULD_SUPPORT edges")
	}
}

func TestReadiness(t *testing.T) {
	reqs := requirements.New(requirements.Requirement{Capability: "c", Required: []string{"x", "y"}})
	b := graphtest.New(t).Region("r", 1, 0, 0).Facility("f", "F", "r").Equipment("f", "x")
	e := New(reqs, 0)
	if got := e.Readiness(b.G, graph.FacilityID("f"), "c"); got != 0.5 {
		t.Errorf("Readiness() = %v, want 0.5", got)
	}
	if got := e.Readiness(b.G, graph.FacilityID("f"), "unknown"); !math.IsNaN(got) {
		t.Errorf("Readiness(unknown) = %v, want NaN", got)
	}
}
