package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/build"
	"github.com/sharckhai/neo-command/internal/classify"
	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/geocode"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/logger"
	"github.com/sharckhai/neo-command/internal/vocab"
)

var (
	buildSkipInference bool
	buildSkipDeserts   bool
	buildNoClassifier  bool
	buildGeocode       bool
	buildParallelism   int
)

func init() {
	buildCmd.Flags().BoolVar(&buildSkipInference, "skip-inference", false, "Do not derive LACKS and COULD_SUPPORT edges")
	buildCmd.Flags().BoolVar(&buildSkipDeserts, "skip-deserts", false, "Do not derive DESERT_FOR edges")
	buildCmd.Flags().BoolVar(&buildNoClassifier, "no-classifier", false, "Use the alias index and cache only")
	buildCmd.Flags().BoolVar(&buildGeocode, "geocode", false, "Geocode facilities even if the workspace config does not")
	buildCmd.Flags().IntVar(&buildParallelism, "parallelism", 8, "Concurrent normalization workers")
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the knowledge graph from the facility CSV",
	Long: `Ingest and deduplicate the facility CSV, normalize claims onto the
canonical vocabulary, assemble the graph, derive gaps and deserts, and write
the snapshot, SQLite and Cytoscape outputs into .neo/cache.

Phrases the alias index cannot match are sent to the classifier when an
OpenAI API key is configured (openai_api_key or OPENAI_API_KEY). Answers are
cached in .neo/cache/vocab.db, so rebuilds only classify new phrases.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	if buildGeocode {
		cfg.Geocode = true
	}
	gc, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	opts := build.DefaultOptions()
	opts.SkipInference = buildSkipInference
	opts.SkipDeserts = buildSkipDeserts
	opts.Thresholds = cfg.Thresholds
	if buildParallelism > 0 {
		opts.Parallelism = buildParallelism
	}

	p := &build.Pipeline{
		Root:    root,
		Config:  cfg,
		Country: mustLoadCountry(root, cfg),
		Vocab:   mustLoadVocab(),
		Reqs:    mustLoadRequirements(),
		Options: opts,
	}
	if !buildNoClassifier {
		if c := newClassifier(gc); c != nil {
			p.Classifier = c
		}
	}
	if cfg.Geocode {
		p.Geocoder = geocode.NewClient(geocode.WithBaseURL(gc.NominatimURL))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			exitWithError(ExitDataError, "%v", err)
		}
		exitWithError(ExitError, "build failed: %v", err)
	}

	return emit(sum, func() { printBuildSummary(sum) })
}

// newClassifier returns the configured classifier, or nil when none is
// configured.
func newClassifier(gc *config.GlobalConfig) vocab.Classifier {
	c, err := classify.New(classify.Params{
		APIKey:  gc.OpenAIAPIKey,
		BaseURL: gc.OpenAIBaseURL,
		Model:   gc.ClassifierModel,
	})
	if err != nil {
		if errors.Is(err, classify.ErrNoAPIKey) {
			logger.Warn("no classifier API key; unmatched phrases stay unmatched")
			return nil
		}
		exitWithError(ExitConfigError, "creating classifier: %v", err)
	}
	return c
}

func printBuildSummary(s *build.Summary) {
	outputHuman("Build %s (%s)\n", s.BuildID, s.Duration)
	outputHuman("  Rows:        %d (%d skipped, %d flagged)\n", s.Load.Rows, s.Load.SkippedNoPK, s.Load.FlaggedRows)
	outputHuman("  Entities:    %d (%d duplicate groups)\n", s.Entities, s.Duplicates)
	if s.Geocode != nil {
		outputHuman("  Geocoded:    %d of %d (%d unresolved)\n", s.Geocode.Resolved, s.Geocode.Total, s.Geocode.Unresolved)
	}
	for _, d := range []vocab.Domain{vocab.Equipment, vocab.Capabilities} {
		if n := s.Classified[d]; n > 0 {
			outputHuman("  Classified:  %d %s phrases\n", n, d)
		}
	}
	if r := s.Build; r != nil {
		outputHuman("  Facilities:  %d, NGOs: %d\n", r.Facilities, r.NGOs)
		outputHuman("  Edges:\n")
		for _, t := range graph.EdgeTypes {
			outputHuman("    %-16s %d\n", t, r.EdgeCounts[t])
		}
	}
	outputHuman("  SQLite:      %d nodes, %d edges\n", s.Export.Nodes, s.Export.Edges)
	outputHuman("  Snapshot:    %s\n", s.Snapshot)
	fmt.Println()
}
