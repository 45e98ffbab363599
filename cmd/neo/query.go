package main

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/query"
)

var queryListKinds bool

func init() {
	queryCmd.Flags().BoolVar(&queryListKinds, "list", false, "List the supported query kinds")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query [file]",
	Short: "Run structured JSON queries",
	Long: `Run one query or a batch of queries written as JSON, read from a file or
stdin. A query is {"query": "<kind>", "params": {...}}; a batch is a JSON
array of queries. Batch failures are reported per query.

Examples:
  echo '{"query": "cold_spots", "params": {"capability": "dialysis"}}' | neo query
  neo query questions.json
  neo query --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryListKinds {
		return outputJSON(query.Kinds())
	}

	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		exitWithError(ExitError, "reading query: %v", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		exitWithError(ExitError, "empty query")
	}

	e := mustLoadEngine()
	if strings.HasPrefix(string(data), "[") {
		reqs, err := query.DecodeBatch(data)
		if err != nil {
			exitWithQueryError(err)
		}
		return outputJSON(e.ExecuteBatch(reqs))
	}

	req, err := query.Decode(data)
	if err != nil {
		exitWithQueryError(err)
	}
	res, err := e.Execute(req)
	if err != nil {
		exitWithQueryError(err)
	}
	return outputJSON(res)
}
