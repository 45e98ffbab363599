package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/geocode"
	"github.com/sharckhai/neo-command/internal/ingest"
	"github.com/sharckhai/neo-command/internal/storage"
)

var geocodeOffline bool

func init() {
	geocodeCmd.Flags().BoolVar(&geocodeOffline, "offline", false, "Use only cached points and city or region centroids")
	rootCmd.AddCommand(geocodeCmd)
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Fill missing facility coordinates",
	Long: `Resolve coordinates for facilities in .neo/entities.jsonl that lack them.
Lookups try the geocode cache, then Nominatim by address and by name, then
the city and region centroids of the country table. Network answers are
appended to .neo/geocode.jsonl so later runs and builds reuse them.

Run 'neo build' first to produce the entity file, and again afterwards to
rebuild the graph with the new points.`,
	Args: cobra.NoArgs,
	RunE: runGeocode,
}

func runGeocode(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	c := mustLoadCountry(root, cfg)

	path := config.EntitiesPath(root)
	entities, err := storage.ReadJSONL[*ingest.Entity](path)
	if err != nil {
		exitWithError(ExitDataError, "reading entities: %v", err)
	}
	if len(entities) == 0 {
		exitWithError(ExitConfigError, "no entities in %s\n\nRun 'neo build' first.", path)
	}

	var searcher geocode.Searcher
	if !geocodeOffline {
		gc, err := config.LoadGlobalConfig()
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		searcher = geocode.NewClient(geocode.WithBaseURL(gc.NominatimURL))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := geocode.NewResolver(searcher, c).Batch(ctx, entities, config.GeocodePath(root))
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := storage.WriteJSONL(path, entities); err != nil {
		exitWithError(ExitError, "writing entities: %v", err)
	}

	return emit(stats, func() {
		outputHuman("Resolved %d of %d facilities in %s (%d unresolved)\n", stats.Resolved, stats.Total, stats.Duration, stats.Unresolved)
		for _, t := range []geocode.Tier{geocode.TierSource, geocode.TierCache, geocode.TierAddress, geocode.TierName, geocode.TierCity, geocode.TierRegion} {
			if n := stats.ByTier[t]; n > 0 {
				outputHuman("  %-8s %d\n", t, n)
			}
		}
		if stats.Reassigned > 0 {
			outputHuman("Assigned %d regions from coordinates\n", stats.Reassigned)
		}
	})
}
