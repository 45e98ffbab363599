package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sharckhai/neo-command/internal/graph/graphtest"
	"github.com/sharckhai/neo-command/internal/vocab"
)

func TestWriteGraph(t *testing.T) {
	b := graphtest.New(t).
		Region("northern", 2_310_939, 9.4, -0.85).
		Facility("f1", "Tamale Teaching Hospital", "northern",
			graphtest.WithRaw([]string{"Performs caesarean sections"}, []string{"Ultrasound machine"}, nil, "Referral hospital")).
		Equipment("f1", "ultrasound").
		Capability("f1", "cesarean_section")
	g := b.G

	db, err := OpenDB(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	stats, err := db.WriteGraph(g)
	if err != nil {
		t.Fatalf("WriteGraph() error = %v", err)
	}
	if stats.Nodes != g.NumNodes() || stats.Edges != g.NumEdges() {
		t.Errorf("stats = %+v, want %d nodes %d edges", stats, g.NumNodes(), g.NumEdges())
	}

	// Rewriting replaces rather than appends.
	if _, err := db.WriteGraph(g); err != nil {
		t.Fatalf("second WriteGraph() error = %v", err)
	}
	counts, err := db.CountByType("nodes")
	if err != nil {
		t.Fatal(err)
	}
	if counts["Facility"] != 1 || counts["Region"] != 1 {
		t.Errorf("node counts = %v", counts)
	}
	edges, err := db.CountByType("edges")
	if err != nil {
		t.Fatal(err)
	}
	if edges["HAS_EQUIPMENT"] != 1 || edges["LOCATED_IN"] != 1 {
		t.Errorf("edge counts = %v", edges)
	}
	if _, err := db.CountByType("refs"); err == nil {
		t.Error("unknown table should be rejected")
	}

	hits, err := db.SearchText("caesarean", 10)
	if err != nil {
		t.Fatalf("SearchText() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "facility::f1" {
		t.Errorf("SearchText() = %+v", hits)
	}
}

func TestPrepareFTSQuery(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"  x-ray  ", `"x-ray"`},
		{"ultrasound", "ultrasound"},
		{`say "hi"`, `"say ""hi"""`},
	}
	for _, tt := range tests {
		if got := prepareFTSQuery(tt.in); got != tt.want {
			t.Errorf("prepareFTSQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVocabCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vocab.db")
	c, err := OpenVocabCache(path)
	if err != nil {
		t.Fatalf("OpenVocabCache() error = %v", err)
	}

	if _, found, err := c.Lookup(ctx, "v1", vocab.Equipment, "k1"); err != nil || found {
		t.Fatalf("Lookup() on empty cache = found %v, err %v", found, err)
	}

	if err := c.Store(ctx, "v1", vocab.Equipment, "k1", "Ultra sound", "ultrasound"); err != nil {
		t.Fatal(err)
	}
	if err := c.Store(ctx, "v1", vocab.Equipment, "k1", "Ultra sound", "ct_scanner"); err != nil {
		t.Fatal(err)
	}
	if err := c.Store(ctx, "v1", vocab.Equipment, "k2", "teddy bear", ""); err != nil {
		t.Fatal(err)
	}

	key, found, err := c.Lookup(ctx, "v1", vocab.Equipment, "k1")
	if err != nil || !found || key != "ultrasound" {
		t.Errorf("Lookup(k1) = %q %v %v, want first answer kept", key, found, err)
	}
	key, found, _ = c.Lookup(ctx, "v1", vocab.Equipment, "k2")
	if !found || key != "" {
		t.Errorf("explicit no-match should be found with empty key, got %q %v", key, found)
	}
	if _, found, _ := c.Lookup(ctx, "v2", vocab.Equipment, "k1"); found {
		t.Error("other versions must not hit")
	}
	if _, found, _ := c.Lookup(ctx, "v1", vocab.Capabilities, "k1"); found {
		t.Error("other domains must not hit")
	}

	stats, err := c.Stats(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.NoMatch != 1 || stats.ByDomain["equipment"] != 2 {
		t.Errorf("Stats() = %+v", stats)
	}

	// Survives reopen.
	c.Close()
	c, err = OpenVocabCache(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, found, _ := c.Lookup(ctx, "v1", vocab.Equipment, "k1"); !found {
		t.Error("cache should persist across reopen")
	}
}

func TestVocabCacheWithNormalizer(t *testing.T) {
	v, err := vocab.Load()
	if err != nil {
		t.Fatal(err)
	}
	c, err := OpenVocabCache(filepath.Join(t.TempDir(), "vocab.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	raw := "portable sono device"
	if err := c.Store(ctx, v.Version(), vocab.Equipment, vocab.TextKey(raw), raw, "ultrasound"); err != nil {
		t.Fatal(err)
	}

	n := vocab.NewNormalizer(v, vocab.WithCache(c))
	got := n.NormalizeList(ctx, vocab.Equipment, []string{raw}, "equipment")
	if len(got) != 1 || got[0].Key != "ultrasound" || got[0].Confidence != vocab.FallbackConfidence {
		t.Errorf("NormalizeList() = %+v", got)
	}
}
