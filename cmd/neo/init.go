package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/country"
)

var (
	initData       string
	initCountry    string
	initIndicators string
	initGeocode    bool
)

func init() {
	initCmd.Flags().StringVar(&initData, "data", "", "Path to the facility CSV (required)")
	initCmd.Flags().StringVar(&initCountry, "country", country.DefaultCountry, "Country table to use")
	initCmd.Flags().StringVar(&initIndicators, "indicators", "", "Directory holding DHS subnational CSVs")
	initCmd.Flags().BoolVar(&initGeocode, "geocode", false, "Geocode facilities through Nominatim during build")
	_ = initCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new workspace in the current directory",
	Long: `Create a .neo workspace pointing at a facility CSV.

Examples:
  neo init --data data/ghana_facilities.csv
  neo init --data facilities.csv --indicators data/dhs --geocode`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := country.Load(initCountry); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	cfg := config.Default()
	cfg.DataPath = initData
	cfg.Country = initCountry
	cfg.IndicatorsDir = initIndicators
	cfg.Geocode = initGeocode
	if err := config.Init(cwd, cfg); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	return emit(StatusResponse{Status: "initialized", Path: config.NeoPath(cwd)}, func() {
		outputHuman("Initialized workspace in %s\n", config.NeoPath(cwd))
		outputHuman("Run 'neo build' to construct the graph.\n")
	})
}
