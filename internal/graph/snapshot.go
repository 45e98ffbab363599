package graph

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Errors returned by snapshot operations.
var (
	ErrSnapshotNotFound   = errors.New("graph snapshot not found")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// CurrentSnapshotVersion is the snapshot format version. Increment it when
// making breaking changes to Node, Edge or the snapshot layout.
const CurrentSnapshotVersion = 1

// Meta summarizes one build of the graph.
type Meta struct {
	BuildID      string           `json:"build_id"`
	BuiltAt      time.Time        `json:"build_timestamp"`
	Country      string           `json:"country,omitempty"`
	VocabVersion string           `json:"vocab_version,omitempty"`
	TotalNodes   int              `json:"total_nodes"`
	TotalEdges   int              `json:"total_edges"`
	NodeCounts   map[NodeType]int `json:"node_counts"`
	EdgeCounts   map[EdgeType]int `json:"edge_counts"`
}

// NewMeta describes g as a fresh build.
func NewMeta(g *Graph, country, vocabVersion string) Meta {
	return Meta{
		BuildID:      uuid.NewString(),
		BuiltAt:      time.Now().UTC(),
		Country:      country,
		VocabVersion: vocabVersion,
		TotalNodes:   g.NumNodes(),
		TotalEdges:   g.NumEdges(),
		NodeCounts:   g.NodeCounts(),
		EdgeCounts:   g.EdgeCounts(),
	}
}

type snapshot struct {
	Version int
	Meta    Meta
	Nodes   []*Node
	Edges   []*Edge
}

// Save writes g to path as a gob snapshot. The file is replaced atomically.
func Save(path string, g *Graph, meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	snap := snapshot{
		Version: CurrentSnapshotVersion,
		Meta:    meta,
		Nodes:   g.Nodes(""),
		Edges:   g.edges,
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save. The returned graph is frozen.
func Load(path string) (*Graph, Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, ErrSnapshotNotFound
		}
		return nil, Meta{}, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, Meta{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != CurrentSnapshotVersion {
		return nil, Meta{}, fmt.Errorf("%w: got %d, want %d (rebuild with 'neo build')",
			ErrUnsupportedVersion, snap.Version, CurrentSnapshotVersion)
	}

	g := New()
	for _, n := range snap.Nodes {
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	for _, e := range snap.Edges {
		if !g.HasNode(e.From) || !g.HasNode(e.To) {
			return nil, Meta{}, fmt.Errorf("decoding snapshot: edge %d references missing node", e.ID)
		}
		g.insertEdge(e)
	}
	g.Freeze()
	return g, snap.Meta, nil
}

// WriteMeta writes meta as indented JSON.
func WriteMeta(path string, meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// ReadMeta reads a metadata file written by WriteMeta.
func ReadMeta(path string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, ErrSnapshotNotFound
		}
		return meta, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parsing metadata: %w", err)
	}
	return meta, nil
}
