package main

import (
	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/ingest"
)

var dedupeLimit int

func init() {
	dedupeCmd.Flags().IntVarP(&dedupeLimit, "limit", "n", 20, "Maximum duplicate groups to list (0 for all)")
	rootCmd.AddCommand(dedupeCmd)
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [csv]",
	Short: "Report duplicate rows in the facility CSV",
	Long: `Load the facility CSV and report which rows share a primary key and would
be merged by 'neo build'. Reads the workspace data path unless a file is
given. Nothing is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDedupe,
}

// DedupeResult is the response for the dedupe command.
type DedupeResult struct {
	Path      string                  `json:"path"`
	Load      ingest.LoadStats        `json:"load"`
	Entities  int                     `json:"entities"`
	Groups    int                     `json:"duplicate_groups"`
	Merged    int                     `json:"merged_rows"`
	Duplicate []ingest.DuplicateGroup `json:"duplicates"`
}

func runDedupe(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	path := cfg.ResolveDataPath(root)
	if len(args) == 1 {
		path = args[0]
	}

	rows, stats, err := ingest.ReadCSVFile(path, mustLoadCountry(root, cfg))
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	entities, groups := ingest.Deduplicate(rows)

	res := DedupeResult{
		Path:     path,
		Load:     stats,
		Entities: len(entities),
		Groups:   len(groups),
	}
	for _, g := range groups {
		res.Merged += g.Rows - 1
	}
	res.Duplicate = groups
	if dedupeLimit > 0 && len(groups) > dedupeLimit {
		res.Duplicate = groups[:dedupeLimit]
	}

	return emit(res, func() {
		outputHuman("%s: %d rows, %d entities (%d rows merged into %d groups)\n",
			path, stats.Rows, res.Entities, res.Merged, res.Groups)
		if stats.SkippedNoPK > 0 {
			outputHuman("Skipped %d rows without %s\n", stats.SkippedNoPK, ingest.ColPK)
		}
		for i, g := range res.Duplicate {
			outputHuman("%3d. %s [%s] x%d\n", i+1, truncateString(g.Name, NameMaxLen), g.PK, g.Rows)
		}
		if len(res.Duplicate) < len(groups) {
			outputHuman("... %d more\n", len(groups)-len(res.Duplicate))
		}
	})
}
