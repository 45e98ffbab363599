package desert

import (
	"testing"

	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/graph/graphtest"
)

func TestNearest(t *testing.T) {
	adj := map[string][]string{"a": {"b"}, "b": {"a", "c"}, "c": {"b"}, "d": nil}
	served := map[string]bool{"c": true}

	tests := []struct {
		start, want string
	}{
		{"a", "c"},
		{"b", "c"},
		{"c", "c"},
		{"d", ""},
	}
	for _, tt := range tests {
		if got := Nearest(tt.start, served, adj); got != tt.want {
			t.Errorf("Nearest(%q) = %q, want %q", tt.start, got, tt.want)
		}
	}
}

func chain(t *testing.T) *graphtest.Builder {
	return graphtest.New(t).
		Region("a", 1000, 0, 0).
		Region("b", 500, 0, 1).
		Region("c", 200, 0, 2).
		Facility("fc", "C Hospital", "c").
		Specialty("fc", "cardiology", 0.9).
		Facility("fb", "B Clinic", "b").
		Specialty("fb", "cardiology", 0.4)
}

func TestRunTwoHopDesert(t *testing.T) {
	b := chain(t)
	d := New(map[string][]string{"a": {"b"}, "b": {"a", "c"}, "c": {"b"}})

	res, err := d.Run(b.G)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Added != 2 {
		t.Errorf("Added = %d, want 2 (a and b)", res.Added)
	}

	e := b.G.FindEdge(graph.RegionID("a"), graph.SpecialtyID("cardiology"), graph.DesertFor)
	if e == nil {
		t.Fatal("region a should be a desert")
	}
	if e.Desert.NearestRegion != "c" {
		t.Errorf("nearest = %q, want c", e.Desert.NearestRegion)
	}
	if e.Desert.Severity != 1000 || e.Desert.FacilityCount != 0 || e.Desert.Population != 1000 {
		t.Errorf("attrs = %+v", e.Desert)
	}
	if b.G.FindEdge(graph.RegionID("c"), graph.SpecialtyID("cardiology"), graph.DesertFor) != nil {
		t.Error("served region must not be a desert")
	}

	deserts := List(b.G, "cardiology")
	if len(deserts) != 2 || deserts[0].Region != "a" {
		t.Errorf("List() = %+v", deserts)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	b := chain(t)
	d := New(map[string][]string{"a": {"b"}, "b": {"a", "c"}, "c": {"b"}})
	if _, err := d.Run(b.G); err != nil {
		t.Fatal(err)
	}
	n := b.G.NumEdges()
	res, err := d.Run(b.G)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 0 || res.Updated != 2 || b.G.NumEdges() != n {
		t.Errorf("second run: %+v, edges %d -> %d", res, n, b.G.NumEdges())
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		pop, count int
		want       float64
	}{
		{1000, 0, 1000},
		{1000, 2, 333.3},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Severity(tt.pop, tt.count); got != tt.want {
			t.Errorf("Severity(%d, %d) = %v, want %v", tt.pop, tt.count, got, tt.want)
		}
	}
}

func TestMinFacilities(t *testing.T) {
	b := chain(t)
	d := New(nil)
	d.MinFacilities = 2
	if _, err := d.Run(b.G); err != nil {
		t.Fatal(err)
	}
	e := b.G.FindEdge(graph.RegionID("c"), graph.SpecialtyID("cardiology"), graph.DesertFor)
	if e == nil || e.Desert.FacilityCount != 1 || e.Desert.NearestRegion != "" {
		t.Errorf("expected c to be a desert with no alternative, got %+v", e)
	}
}
