// Package main provides the neo CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/country"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/logger"
	"github.com/sharckhai/neo-command/internal/logger/console"
	"github.com/sharckhai/neo-command/internal/query"
	"github.com/sharckhai/neo-command/internal/requirements"
	"github.com/sharckhai/neo-command/internal/vocab"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	debugOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "neo",
	Short: "Healthcare facility knowledge graph CLI",
	Long: `neo builds a knowledge graph of healthcare facilities, NGOs, regions and
their capabilities, equipment and specialties from a scraped facility CSV.

The build normalizes free-text claims onto a canonical vocabulary, infers
missing equipment (LACKS) and upgrade candidates (COULD_SUPPORT), and
detects medical deserts. Query commands then answer planning questions
over the stored snapshot.

All commands output JSON by default for agent integration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(console.New(console.Params{Debug: debugOutput}))
	},
}

func init() {
	_ = godotenv.Load()
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVar(&debugOutput, "debug", false, "Enable debug logging on stderr")
	rootCmd.Version = Version
}

// getStartingDirectory returns the directory to start searching for a workspace.
// Checks global config workspace_path first, then current working directory.
func getStartingDirectory() string {
	if root := config.GetWorkspacePath(); root != "" {
		return root
	}
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}
	return cwd
}

// mustFindWorkspace finds the workspace root, exits on error.
func mustFindWorkspace() string {
	root, err := config.FindWorkspace(getStartingDirectory())
	if err != nil {
		exitWithError(ExitConfigError, "%v\n\nRun 'neo init --data <facilities.csv>' to create one.", err)
	}
	return root
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustLoadCountry loads the country table and, when configured, its DHS
// indicators.
func mustLoadCountry(root string, cfg *config.Config) *country.Country {
	c, err := country.Load(cfg.Country)
	if err != nil {
		exitWithError(ExitConfigError, "loading country: %v", err)
	}
	if dir := cfg.ResolveIndicatorsDir(root); dir != "" {
		n, err := c.LoadIndicators(dir)
		if err != nil {
			exitWithError(ExitDataError, "loading indicators: %v", err)
		}
		logger.Debug("loaded health indicators", "regions", n, "dir", dir)
	}
	return c
}

func mustLoadVocab() *vocab.Vocabulary {
	v, err := vocab.Load()
	if err != nil {
		exitWithError(ExitError, "loading vocabulary: %v", err)
	}
	return v
}

func mustLoadRequirements() *requirements.Table {
	r, err := requirements.Load()
	if err != nil {
		exitWithError(ExitError, "loading requirements: %v", err)
	}
	return r
}

// mustLoadGraph loads the built snapshot, exits on error.
func mustLoadGraph(root string) (*graph.Graph, graph.Meta) {
	g, meta, err := graph.Load(config.SnapshotPath(root))
	if err != nil {
		if errors.Is(err, graph.ErrSnapshotNotFound) {
			exitWithError(ExitConfigError, "graph snapshot not found\n\nRun 'neo build' to create it.")
		}
		exitWithError(ExitDataError, "loading graph: %v", err)
	}
	return g, meta
}

// mustLoadEngine opens the workspace and returns a query engine over its
// snapshot.
func mustLoadEngine() *query.Engine {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	g, _ := mustLoadGraph(root)
	return query.New(g, mustLoadCountry(root, cfg), mustLoadVocab(), mustLoadRequirements())
}
