package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/country"
	"github.com/sharckhai/neo-command/internal/geocode"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/ingest"
	"github.com/sharckhai/neo-command/internal/logger"
	"github.com/sharckhai/neo-command/internal/requirements"
	"github.com/sharckhai/neo-command/internal/storage"
	"github.com/sharckhai/neo-command/internal/vocab"
)

// Pipeline runs a full build for one workspace: ingest, deduplicate,
// optionally geocode, normalize, assemble, derive and persist.
type Pipeline struct {
	Root    string
	Config  *config.Config
	Country *country.Country
	Vocab   *vocab.Vocabulary
	Reqs    *requirements.Table

	// Classifier is the fallback for items the alias index misses. Nil
	// disables it.
	Classifier vocab.Classifier
	// Geocoder is used for network tiers when Config.Geocode is set. Nil
	// leaves only the offline tiers.
	Geocoder geocode.Searcher

	Options Options
}

// Summary reports what a pipeline run did.
type Summary struct {
	BuildID    string               `json:"build_id"`
	Load       ingest.LoadStats     `json:"load"`
	Entities   int                  `json:"entities"`
	Duplicates int                  `json:"duplicate_groups"`
	Geocode    *geocode.Stats       `json:"geocode,omitempty"`
	Classified map[vocab.Domain]int `json:"classified"`
	Build      *Report              `json:"build"`
	Export     storage.ExportStats  `json:"export"`
	Snapshot   string               `json:"snapshot"`
	Duration   string               `json:"duration"`
}

// Run executes the pipeline and writes the snapshot, metadata, SQLite and
// Cytoscape outputs into the workspace cache directory.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Classified: make(map[vocab.Domain]int)}

	dataPath := p.Config.ResolveDataPath(p.Root)
	rows, stats, err := ingest.ReadCSVFile(dataPath, p.Country)
	if err != nil {
		return nil, err
	}
	sum.Load = stats
	logger.Info("loaded rows", "path", dataPath, "rows", stats.Rows, "skipped", stats.SkippedNoPK)

	entities, groups := ingest.Deduplicate(rows)
	sum.Entities = len(entities)
	sum.Duplicates = len(groups)
	logger.Info("deduplicated", "entities", len(entities), "duplicate_groups", len(groups))

	if p.Config.Geocode {
		gs, err := geocode.NewResolver(p.Geocoder, p.Country).Batch(ctx, entities, config.GeocodePath(p.Root))
		if err != nil {
			return nil, err
		}
		sum.Geocode = &gs
	}

	if err := storage.WriteJSONL(config.EntitiesPath(p.Root), entities); err != nil {
		return nil, fmt.Errorf("writing entities: %w", err)
	}

	if err := os.MkdirAll(config.CachePath(p.Root), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	cache, err := storage.OpenVocabCache(config.VocabCachePath(p.Root))
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	if p.Classifier != nil {
		primer := vocab.NewNormalizer(p.Vocab,
			vocab.WithCache(cache),
			vocab.WithClassifier(p.Classifier),
			vocab.WithBatchSize(p.Options.Thresholds.ClassifierBatchSize),
			vocab.WithParallelism(p.Options.Parallelism),
		)
		var equipment, capabilities []string
		for _, e := range entities {
			if e.IsNGO() {
				continue
			}
			equipment = append(equipment, e.Equipment...)
			capabilities = append(capabilities, e.Procedures...)
			capabilities = append(capabilities, e.Capabilities...)
		}
		for d, items := range map[vocab.Domain][]string{vocab.Equipment: equipment, vocab.Capabilities: capabilities} {
			n, err := primer.Prime(ctx, d, items)
			if err != nil {
				return nil, fmt.Errorf("classifying %s: %w", d, err)
			}
			sum.Classified[d] = n
		}
	}

	// Assembly reads the cache only; anything the classifier could not
	// answer above stays unmatched.
	norm := vocab.NewNormalizer(p.Vocab, vocab.WithCache(cache))
	g, rep, err := NewBuilder(p.Country, norm, p.Reqs, p.Options).Build(ctx, entities)
	if err != nil {
		return nil, err
	}
	sum.Build = rep

	meta := graph.NewMeta(g, p.Country.Name, p.Vocab.Version())
	sum.BuildID = meta.BuildID
	if err := Persist(p.Root, g, meta); err != nil {
		return nil, err
	}
	exp, err := ExportSQLite(config.ExportDBPath(p.Root), g)
	if err != nil {
		return nil, err
	}
	sum.Export = exp

	sum.Snapshot = config.SnapshotPath(p.Root)
	sum.Duration = time.Since(start).Round(time.Millisecond).String()
	logger.Info("build complete", "build_id", meta.BuildID, "duration", sum.Duration)
	return sum, nil
}

// Persist writes the snapshot, its metadata and the Cytoscape export.
func Persist(root string, g *graph.Graph, meta graph.Meta) error {
	if err := graph.Save(config.SnapshotPath(root), g, meta); err != nil {
		return err
	}
	if err := graph.WriteMeta(config.MetaPath(root), meta); err != nil {
		return err
	}
	data, err := g.ToCytoscapeJSON()
	if err != nil {
		return fmt.Errorf("exporting cytoscape: %w", err)
	}
	if err := os.WriteFile(config.CytoscapePath(root), data, 0644); err != nil {
		return fmt.Errorf("writing cytoscape export: %w", err)
	}
	return nil
}

// ExportSQLite replaces the SQLite export at path with g.
func ExportSQLite(path string, g *graph.Graph) (storage.ExportStats, error) {
	db, err := storage.OpenDB(path)
	if err != nil {
		return storage.ExportStats{}, err
	}
	defer db.Close()
	return db.WriteGraph(g)
}
