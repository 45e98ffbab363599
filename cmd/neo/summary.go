package main

import (
	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/graph"
)

func init() {
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show node and edge counts of the built graph",
	Long: `Show the metadata of the last build: node and edge counts by type, the
build id and timestamp, and the vocabulary version used.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

// SummaryResult is the response for the summary command.
type SummaryResult struct {
	graph.Meta
	Workspace string `json:"workspace"`
}

func runSummary(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	meta, err := graph.ReadMeta(config.MetaPath(root))
	if err != nil {
		// Fall back to the copy embedded in the snapshot.
		_, meta = mustLoadGraph(root)
	}

	res := SummaryResult{Meta: meta, Workspace: root}
	return emit(res, func() {
		outputHuman("Build %s at %s\n", meta.BuildID, meta.BuiltAt.Format("2006-01-02 15:04:05 MST"))
		outputHuman("Country: %s  Vocabulary: %s\n\n", meta.Country, meta.VocabVersion)
		outputHuman("Nodes: %d\n", meta.TotalNodes)
		for _, t := range graph.NodeTypes {
			outputHuman("  %-16s %d\n", t, meta.NodeCounts[t])
		}
		outputHuman("Edges: %d\n", meta.TotalEdges)
		for _, t := range graph.EdgeTypes {
			outputHuman("  %-16s %d\n", t, meta.EdgeCounts[t])
		}
	})
}
