// Package build assembles the knowledge graph from deduplicated entities
// and runs the derivation passes.
package build

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/country"
	"github.com/sharckhai/neo-command/internal/desert"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/inference"
	"github.com/sharckhai/neo-command/internal/ingest"
	"github.com/sharckhai/neo-command/internal/logger"
	"github.com/sharckhai/neo-command/internal/requirements"
	"github.com/sharckhai/neo-command/internal/vocab"
)

// Raw text recorded on equipment edges found in free text.
const extractedRawText = "[extracted from description/capability]"

// Source labels on edges.
const (
	SourceStructured = "structured"
	SourceAddress    = "address"
)

// Options control a build.
type Options struct {
	SkipInference bool
	SkipDeserts   bool
	Thresholds    config.Thresholds
	// Parallelism bounds concurrent per-entity normalization.
	Parallelism int
}

// DefaultOptions returns options with the default thresholds.
func DefaultOptions() Options {
	return Options{Thresholds: config.DefaultThresholds(), Parallelism: 8}
}

// Builder turns entities into a frozen graph.
type Builder struct {
	country *country.Country
	norm    *vocab.Normalizer
	reqs    *requirements.Table
	opts    Options
}

// NewBuilder creates a builder.
func NewBuilder(c *country.Country, norm *vocab.Normalizer, reqs *requirements.Table, opts Options) *Builder {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Builder{country: c, norm: norm, reqs: reqs, opts: opts}
}

// Report summarizes a build.
type Report struct {
	Facilities int                    `json:"facilities"`
	NGOs       int                    `json:"ngos"`
	NodeCounts map[graph.NodeType]int `json:"node_counts"`
	EdgeCounts map[graph.EdgeType]int `json:"edge_counts"`
	Inference  *inference.Result      `json:"inference,omitempty"`
	Deserts    *desert.Result         `json:"deserts,omitempty"`
	Timings    map[string]string      `json:"timings"`
}

// normalized holds the vocabulary matches of one facility.
type normalized struct {
	equipment     []vocab.Match
	textEquipment []vocab.Match
	capabilities  []vocab.Match
	descCaps      []vocab.Match
}

// Build assembles the graph, runs inference and desert detection unless
// skipped, and freezes the result.
func (b *Builder) Build(ctx context.Context, entities []*ingest.Entity) (*graph.Graph, *Report, error) {
	rep := &Report{Timings: make(map[string]string)}
	stage := func(name string, start time.Time) {
		d := time.Since(start).Round(time.Millisecond)
		rep.Timings[name] = d.String()
		logger.Info("stage complete", "stage", name, "duration", d)
	}

	g := graph.New()

	start := time.Now()
	if err := b.addStaticNodes(g); err != nil {
		return nil, nil, err
	}

	matches, err := b.normalizeAll(ctx, entities)
	if err != nil {
		return nil, nil, err
	}
	stage("normalize", start)

	start = time.Now()
	for i, e := range entities {
		if e.IsNGO() {
			if err := addNGO(g, e); err != nil {
				return nil, nil, err
			}
			rep.NGOs++
			continue
		}
		if err := b.addFacility(g, e, matches[i]); err != nil {
			return nil, nil, err
		}
		rep.Facilities++
	}
	stage("assemble", start)
	logger.Info("graph assembled",
		"nodes", g.NumNodes(), "edges", g.NumEdges(),
		"facilities", rep.Facilities, "ngos", rep.NGOs)

	th := b.opts.Thresholds
	if !b.opts.SkipInference {
		start = time.Now()
		res, err := inference.New(b.reqs, th.MinReadiness).Run(g)
		if err != nil {
			return nil, nil, fmt.Errorf("running inference: %w", err)
		}
		rep.Inference = &res
		stage("inference", start)
		logger.Info("inference complete", "lacks", res.LacksAdded, "could_support", res.SupportAdded)
	}

	if !b.opts.SkipDeserts {
		start = time.Now()
		d := desert.New(b.country.Adjacency())
		if th.DesertConfidence > 0 {
			d.Confidence = th.DesertConfidence
		}
		if th.DesertMinFacilities > 0 {
			d.MinFacilities = th.DesertMinFacilities
		}
		res, err := d.Run(g)
		if err != nil {
			return nil, nil, fmt.Errorf("detecting deserts: %w", err)
		}
		rep.Deserts = &res
		stage("deserts", start)
		logger.Info("desert detection complete", "desert_for", res.Added)
	}

	g.Freeze()
	rep.NodeCounts = g.NodeCounts()
	rep.EdgeCounts = g.EdgeCounts()
	return g, rep, nil
}

func (b *Builder) addStaticNodes(g *graph.Graph) error {
	for _, key := range b.country.RegionKeys() {
		r, _ := b.country.Region(key)
		_, err := g.AddNode(&graph.Node{
			ID:   graph.RegionID(key),
			Type: graph.NodeRegion,
			Region: &graph.RegionAttrs{
				Name:       r.DisplayName,
				Population: r.Population,
				Capital:    r.Capital,
				Lat:        r.Lat,
				Lng:        r.Lng,
			},
		})
		if err != nil {
			return fmt.Errorf("adding region %s: %w", key, err)
		}
	}

	v := b.norm.Vocabulary()
	static := []struct {
		domain vocab.Domain
		typ    graph.NodeType
		id     func(string) string
	}{
		{vocab.Equipment, graph.NodeEquipment, graph.EquipmentID},
		{vocab.Capabilities, graph.NodeCapability, graph.CapabilityID},
	}
	for _, s := range static {
		for _, entry := range v.Entries(s.domain) {
			_, err := g.AddNode(&graph.Node{
				ID:   s.id(entry.Key),
				Type: s.typ,
				Vocab: &graph.VocabAttrs{
					DisplayName: entry.Display,
					Category:    entry.Category,
					Complexity:  entry.Complexity,
				},
			})
			if err != nil {
				return fmt.Errorf("adding %s %s: %w", s.domain, entry.Key, err)
			}
		}
	}
	return nil
}

// normalizeAll runs vocabulary matching for every facility concurrently.
// The result is indexed like entities.
func (b *Builder) normalizeAll(ctx context.Context, entities []*ingest.Entity) ([]normalized, error) {
	out := make([]normalized, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Parallelism)
	for i, e := range entities {
		if e.IsNGO() {
			continue
		}
		g.Go(func() error {
			out[i] = b.normalize(gctx, e)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalizing entities: %w", err)
	}
	return out, nil
}

func (b *Builder) normalize(ctx context.Context, e *ingest.Entity) normalized {
	var n normalized
	n.equipment = b.norm.NormalizeList(ctx, vocab.Equipment, e.Equipment, "equipment")

	var text []string
	text = append(text, e.Capabilities...)
	if e.Description != "" {
		text = append(text, e.Description)
	}
	if len(text) > 0 {
		n.textEquipment = b.norm.MatchText(vocab.Equipment, strings.Join(text, " "))
	}

	n.capabilities = append(n.capabilities, b.norm.NormalizeList(ctx, vocab.Capabilities, e.Procedures, "procedure")...)
	n.capabilities = append(n.capabilities, b.norm.NormalizeList(ctx, vocab.Capabilities, e.Capabilities, "capability")...)
	if e.Description != "" {
		n.descCaps = b.norm.MatchText(vocab.Capabilities, e.Description)
	}
	return n
}

func (b *Builder) addFacility(g *graph.Graph, e *ingest.Entity, m normalized) error {
	fid := graph.FacilityID(e.PK)
	attrs := &graph.FacilityAttrs{
		Name:            e.Name,
		FacilityType:    e.FacilityType,
		OperatorType:    e.OperatorType,
		Capacity:        e.Capacity,
		NumberDoctors:   e.NumberDoctors,
		Area:            e.Area,
		YearEstablished: e.YearEstablished,
		City:            e.City,
		Lat:             e.Lat,
		Lng:             e.Lng,
		Email:           e.Email,
		PhoneNumbers:    e.PhoneNumbers,
		Websites:        e.Websites,
		Description:     e.Description,
		RawProcedures:   e.Procedures,
		RawEquipment:    e.Equipment,
		RawCapabilities: e.Capabilities,
		SourceCount:     e.SourceCount,
		QualityFlags:    e.QualityFlags,
	}
	rid := graph.RegionID(e.Region)
	hasRegion := e.Region != "" && g.HasNode(rid)
	if hasRegion {
		attrs.Region = e.Region
	}
	if _, err := g.AddNode(&graph.Node{ID: fid, Type: graph.NodeFacility, Facility: attrs}); err != nil {
		return fmt.Errorf("adding facility %s: %w", e.PK, err)
	}

	add := func(ed *graph.Edge) error {
		if _, err := g.AddEdge(ed); err != nil {
			return fmt.Errorf("adding %s edge for %s: %w", ed.Type, e.PK, err)
		}
		return nil
	}

	if hasRegion {
		if err := add(&graph.Edge{Type: graph.LocatedIn, From: fid, To: rid, City: e.City}); err != nil {
			return err
		}
	}

	th := b.opts.Thresholds
	for _, spec := range e.Specialties {
		sid := graph.SpecialtyID(spec)
		if _, err := g.AddNode(&graph.Node{ID: sid, Type: graph.NodeSpecialty, Vocab: &graph.VocabAttrs{DisplayName: spec}}); err != nil {
			return fmt.Errorf("adding specialty %q: %w", spec, err)
		}
		if err := add(&graph.Edge{Type: graph.HasSpecialty, From: fid, To: sid, Confidence: th.SpecialtyConfidence, Source: SourceStructured}); err != nil {
			return err
		}
	}

	for _, mt := range m.equipment {
		if err := add(&graph.Edge{Type: graph.HasEquipment, From: fid, To: graph.EquipmentID(mt.Key), Confidence: mt.Confidence, RawText: mt.Raw, SourceField: mt.SourceField}); err != nil {
			return err
		}
	}
	linked := g.Targets(fid, graph.HasEquipment)
	for _, mt := range m.textEquipment {
		if linked[mt.Key] {
			continue
		}
		linked[mt.Key] = true
		if err := add(&graph.Edge{Type: graph.HasEquipment, From: fid, To: graph.EquipmentID(mt.Key), Confidence: mt.Confidence * th.TextEquipmentDiscount, RawText: extractedRawText}); err != nil {
			return err
		}
	}

	for _, mt := range m.capabilities {
		if err := add(&graph.Edge{Type: graph.HasCapability, From: fid, To: graph.CapabilityID(mt.Key), Confidence: mt.Confidence, RawText: mt.Raw, SourceField: mt.SourceField}); err != nil {
			return err
		}
	}
	claimed := g.Targets(fid, graph.HasCapability)
	for _, mt := range m.descCaps {
		if claimed[mt.Key] {
			continue
		}
		claimed[mt.Key] = true
		if err := add(&graph.Edge{Type: graph.HasCapability, From: fid, To: graph.CapabilityID(mt.Key), Confidence: mt.Confidence * th.DescriptionCapabilityDiscount, RawText: mt.Raw, SourceField: "description"}); err != nil {
			return err
		}
	}
	return nil
}

func addNGO(g *graph.Graph, e *ingest.Entity) error {
	nid := graph.NGOID(e.PK)
	rid := graph.RegionID(e.Region)
	hasRegion := e.Region != "" && g.HasNode(rid)

	attrs := &graph.NGOAttrs{
		Name:           e.Name,
		Countries:      e.Countries,
		MissionSummary: e.MissionStatement,
		Description:    e.Description,
		Email:          e.Email,
		PhoneNumbers:   e.PhoneNumbers,
		Websites:       e.Websites,
		SourceCount:    e.SourceCount,
	}
	if hasRegion {
		attrs.Region = e.Region
	}
	if _, err := g.AddNode(&graph.Node{ID: nid, Type: graph.NodeNGO, NGO: attrs}); err != nil {
		return fmt.Errorf("adding NGO %s: %w", e.PK, err)
	}
	if hasRegion {
		if _, err := g.AddEdge(&graph.Edge{Type: graph.OperatesIn, From: nid, To: rid, Source: SourceAddress}); err != nil {
			return fmt.Errorf("adding OPERATES_IN for %s: %w", e.PK, err)
		}
	}
	return nil
}
