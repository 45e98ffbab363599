package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/build"
	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/neo4jexport"
	"github.com/sharckhai/neo-command/internal/viz"
)

var (
	exportNeo4jClear bool
	exportOut        string
	exportHTMLOut    string
	exportLayout     string
	exportRegion     string
	exportEdgeTypes  []string
)

func init() {
	exportNeo4jCmd.Flags().BoolVar(&exportNeo4jClear, "clear", false, "Delete existing graph nodes before writing")
	exportSQLiteCmd.Flags().StringVar(&exportOut, "out", "", "Output path (default .neo/cache/graph.db)")
	exportCytoscapeCmd.Flags().StringVar(&exportOut, "out", "", "Output path (default .neo/cache/graph.cyjs)")
	exportHTMLCmd.Flags().StringVar(&exportHTMLOut, "out", "graph.html", "Output path")
	exportHTMLCmd.Flags().StringVar(&exportLayout, "layout", "force", "Layout: "+strings.Join(viz.ValidLayouts, ", "))
	exportHTMLCmd.Flags().StringVar(&exportRegion, "region", "", "Show only one region's facilities and NGOs")
	exportHTMLCmd.Flags().StringSliceVar(&exportEdgeTypes, "edges", nil, "Edge types to draw (e.g. LACKS,DESERT_FOR)")
	exportCmd.AddCommand(exportNeo4jCmd, exportSQLiteCmd, exportCytoscapeCmd, exportHTMLCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the built graph",
	Long: `Write the built graph to Neo4j, SQLite, Cytoscape.js JSON or an HTML viewer.

'neo build' already writes the SQLite and Cytoscape files; use these
commands to write them elsewhere or to push the graph to a Neo4j server.`,
}

// ExportResult is the response for the export commands.
type ExportResult struct {
	Target string `json:"target"`
	Path   string `json:"path,omitempty"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}

var exportNeo4jCmd = &cobra.Command{
	Use:   "neo4j",
	Short: "Merge the graph into a Neo4j database",
	Long: `Merge every node and edge into Neo4j. Connection settings come from the
global config (neo4j_uri, neo4j_user, neo4j_password, neo4j_database) or
the NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD and NEO4J_DATABASE environment
variables. Nodes are merged by id, so repeated exports update in place.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := mustFindWorkspace()
		g, _ := mustLoadGraph(root)
		gc, err := config.LoadGlobalConfig()
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client, err := neo4jexport.Connect(ctx, neo4jexport.Config{
			URI:      gc.Neo4jURI,
			User:     gc.Neo4jUser,
			Password: gc.Neo4jPassword,
			Database: gc.Neo4jDatabase,
		})
		if err != nil {
			if errors.Is(err, neo4jexport.ErrNoURI) {
				exitWithError(ExitConfigError, "%v", err)
			}
			exitWithError(ExitNeo4jError, "%v", err)
		}
		defer client.Close(ctx)

		stats, err := client.Export(ctx, g, exportNeo4jClear)
		if err != nil {
			exitWithError(ExitNeo4jError, "%v", err)
		}
		res := ExportResult{Target: "neo4j", Nodes: stats.Nodes, Edges: stats.Edges}
		return emit(res, func() {
			outputHuman("Exported %d nodes and %d edges to %s in %s\n", stats.Nodes, stats.Edges, gc.Neo4jURI, stats.Duration)
		})
	},
}

var exportSQLiteCmd = &cobra.Command{
	Use:   "sqlite",
	Short: "Write the graph to a SQLite database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := mustFindWorkspace()
		g, _ := mustLoadGraph(root)
		path := exportOut
		if path == "" {
			path = config.ExportDBPath(root)
		}
		stats, err := build.ExportSQLite(path, g)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		res := ExportResult{Target: "sqlite", Path: path, Nodes: stats.Nodes, Edges: stats.Edges}
		return emit(res, func() {
			outputHuman("Wrote %d nodes and %d edges to %s\n", stats.Nodes, stats.Edges, path)
		})
	},
}

var exportCytoscapeCmd = &cobra.Command{
	Use:   "cytoscape",
	Short: "Write the graph as Cytoscape.js JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := mustFindWorkspace()
		g, _ := mustLoadGraph(root)
		path := exportOut
		if path == "" {
			path = config.CytoscapePath(root)
		}
		data, err := g.ToCytoscapeJSON()
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			exitWithError(ExitError, "writing %s: %v", path, err)
		}
		res := ExportResult{Target: "cytoscape", Path: path, Nodes: g.NumNodes(), Edges: g.NumEdges()}
		return emit(res, func() {
			outputHuman("Wrote %d nodes and %d edges to %s\n", res.Nodes, res.Edges, path)
		})
	},
}

var exportHTMLCmd = &cobra.Command{
	Use:   "html",
	Short: "Write an interactive HTML view of the graph",
	Long: `Write a standalone HTML page that draws the graph with Cytoscape.js.
Hover a node or edge for details; click a node to highlight its neighbours.
The full graph is large, so narrow it with --region or --edges.

Examples:
  neo export html --region northern
  neo export html --edges LACKS,COULD_SUPPORT --out gaps.html`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := mustFindWorkspace()
		g, _ := mustLoadGraph(root)

		opts := viz.Options{Layout: exportLayout, Region: exportRegion}
		for _, s := range exportEdgeTypes {
			t := graph.EdgeType(strings.ToUpper(strings.TrimSpace(s)))
			if !slices.Contains(graph.EdgeTypes, t) {
				exitWithError(ExitError, "unknown edge type %q", s)
			}
			opts.EdgeTypes = append(opts.EdgeTypes, t)
		}

		html, err := viz.GenerateHTML(g, opts)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if err := os.WriteFile(exportHTMLOut, []byte(html), 0644); err != nil {
			exitWithError(ExitError, "writing %s: %v", exportHTMLOut, err)
		}
		return emit(StatusResponse{Status: "written", Path: exportHTMLOut}, func() {
			outputHuman("Wrote %s\n", exportHTMLOut)
		})
	},
}
