package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/query"
	"github.com/sharckhai/neo-command/internal/storage"
)

var (
	searchFilters     query.Filters
	searchMinCapacity int
	searchLat         float64
	searchLng         float64
	searchRadius      float64
	searchSort        string
	searchLimit       int

	countGroupBy       string
	countMinConfidence float64

	rawFields []string
	rawRegion string
	rawLimit  int

	ftsLimit int

	evidenceRegion string

	nearestService string
	nearestLimit   int
)

// addFilterFlags registers the facility filter flags on cmd.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&searchFilters.Capability, "capability", "", "Capability key")
	cmd.Flags().StringVar(&searchFilters.Equipment, "equipment", "", "Equipment key")
	cmd.Flags().StringVar(&searchFilters.Specialty, "specialty", "", "Specialty label")
	cmd.Flags().StringVar(&searchFilters.Region, "region", "", "Region key or name")
	cmd.Flags().StringVar(&searchFilters.FacilityType, "type", "", "Facility type (hospital, clinic, ...)")
	cmd.Flags().IntVar(&searchMinCapacity, "min-capacity", 0, "Minimum bed capacity")
	cmd.Flags().Float64Var(&searchLat, "lat", 0, "Latitude of the search point")
	cmd.Flags().Float64Var(&searchLng, "lng", 0, "Longitude of the search point")
	cmd.Flags().Float64Var(&searchRadius, "radius", 0, "Radius in km around --lat/--lng")
}

// filtersFromFlags completes searchFilters with the flags that map to
// optional fields.
func filtersFromFlags(cmd *cobra.Command) query.Filters {
	f := searchFilters
	if cmd.Flags().Changed("min-capacity") {
		f.MinCapacity = &searchMinCapacity
	}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		f.NearLat, f.NearLng = &searchLat, &searchLng
	}
	if cmd.Flags().Changed("radius") {
		f.RadiusKm = &searchRadius
	}
	return f
}

func init() {
	addFilterFlags(searchCmd)
	searchCmd.Flags().StringVar(&searchSort, "sort", query.SortRelevance, "Sort by relevance, distance or capacity")
	searchCmd.Flags().IntVar(&searchLimit, "limit", query.DefaultSearchLimit, "Maximum results to return")

	addFilterFlags(countCmd)
	countCmd.Flags().StringVar(&countGroupBy, "group-by", query.GroupRegion, "region, facility_type, specialty, capability or equipment")
	countCmd.Flags().Float64Var(&countMinConfidence, "min-confidence", query.DefaultMinConfidence, "Minimum edge confidence")

	rawtextCmd.Flags().StringSliceVar(&rawFields, "field", nil, "Fields to search (raw_procedures, raw_capabilities, raw_equipment, description)")
	rawtextCmd.Flags().StringVar(&rawRegion, "region", "", "Only facilities in this region")
	rawtextCmd.Flags().IntVar(&rawLimit, "limit", query.DefaultRawTextLimit, "Maximum results to return")

	ftsCmd.Flags().IntVar(&ftsLimit, "limit", query.DefaultSearchLimit, "Maximum results to return")

	byCapabilityCmd.Flags().StringVar(&evidenceRegion, "region", "", "Only facilities in this region")
	byEquipmentCmd.Flags().StringVar(&evidenceRegion, "region", "", "Only facilities in this region")

	nearestCmd.Flags().Float64Var(&searchLat, "lat", 0, "Latitude")
	nearestCmd.Flags().Float64Var(&searchLng, "lng", 0, "Longitude")
	nearestCmd.Flags().StringVar(&nearestService, "service", "", "Capability or specialty the facility must offer")
	nearestCmd.Flags().IntVar(&nearestLimit, "limit", query.DefaultNearestLimit, "Maximum results to return")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lng")

	rootCmd.AddCommand(searchCmd, countCmd, rawtextCmd, ftsCmd, byCapabilityCmd, byEquipmentCmd, nearestCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search facilities by capability, equipment, specialty, region and location",
	Long: `Search facilities with any combination of filters. Every filter given must
hold. With --lat/--lng, results carry a distance; --radius drops facilities
farther away and facilities without coordinates.

Examples:
  neo search --capability dialysis --region northern
  neo search --specialty cardiology --lat 5.60 --lng -0.19 --radius 50 --sort distance
  neo search --type hospital --min-capacity 100 --sort capacity`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().SearchFacilities(filtersFromFlags(cmd), searchSort, searchLimit)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%d facilities (sorted by %s)\n", res.Total, res.SortBy)
			for i, h := range res.Results {
				extra := fmt.Sprintf("[%.2f]", h.Relevance)
				if h.DistanceKm != nil {
					extra += fmt.Sprintf(" %.1f km", *h.DistanceKm)
				}
				if h.Capacity != nil {
					extra += fmt.Sprintf(" %d beds", *h.Capacity)
				}
				printFacilityLine(i, h.FacilityRef, extra)
			}
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count facilities grouped by one dimension",
	Long: `Count facilities passing the filters, grouped by region, facility type,
specialty, capability or equipment. Multi-valued groupings may sum past
100%.

Examples:
  neo count --group-by region --capability cesarean_section
  neo count --group-by capability --region upper_east`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().CountFacilities(countGroupBy, filtersFromFlags(cmd), countMinConfidence)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%d facilities by %s\n", res.Total, res.GroupBy)
			for _, g := range res.Groups {
				outputHuman("  %-32s %5d  %5.1f%%\n", g.Key, g.Count, g.Percentage)
			}
		})
	},
}

var rawtextCmd = &cobra.Command{
	Use:   "rawtext <term>...",
	Short: "Search the raw free-text claims of facilities",
	Long: `Case-insensitive substring search over the raw procedure, capability and
equipment lists and the description. Use it for terms the vocabulary does
not cover (see 'neo resolve').`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().SearchRawText(args, rawFields, rawRegion, rawLimit)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for i, m := range res.Results {
				outputHuman("%2d. %s (%s)\n", i+1, truncateString(m.Name, NameMaxLen), m.Region)
				for field, texts := range m.MatchedFields {
					for _, t := range texts {
						outputHuman("      %s: %s\n", field, truncateString(t, TextWrapWidth))
					}
				}
			}
			if res.Note != "" {
				outputHuman("\n%s\n", res.Note)
			}
		})
	},
}

var ftsCmd = &cobra.Command{
	Use:   "fts <query>",
	Short: "Full-text search over the SQLite export",
	Long: `Run an FTS5 query over facility names, raw claims and descriptions in
.neo/cache/graph.db. Results are ranked by relevance.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := mustFindWorkspace()
		db, err := storage.OpenDB(config.ExportDBPath(root))
		if err != nil {
			exitWithError(ExitError, "opening database: %v", err)
		}
		defer db.Close()

		hits, err := db.SearchText(strings.Join(args, " "), ftsLimit)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if hits == nil {
			hits = []storage.TextHit{}
		}
		return emit(hits, func() {
			for i, h := range hits {
				outputHuman("%2d. %s  %s\n", i+1, truncateString(h.Name, NameMaxLen), h.ID)
			}
		})
	},
}

func printEvidence(hits []query.EvidenceHit) {
	for i, h := range hits {
		printFacilityLine(i, h.FacilityRef, fmt.Sprintf("[%.2f] %s", h.Confidence, h.SourceField))
	}
}

var byCapabilityCmd = &cobra.Command{
	Use:   "by-capability <capability>",
	Short: "List facilities claiming a capability, with evidence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().SearchByCapability(args[0], evidenceRegion)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() { printEvidence(res) })
	},
}

var byEquipmentCmd = &cobra.Command{
	Use:   "by-equipment <equipment>",
	Short: "List facilities holding a piece of equipment, with evidence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().SearchByEquipment(args[0], evidenceRegion)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() { printEvidence(res) })
	},
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "List the facilities closest to a point",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mustLoadEngine().NearestFacilities(searchLat, searchLng, nearestService, nearestLimit)
		return emit(res, func() {
			for i, n := range res {
				printFacilityLine(i, n.FacilityRef, fmt.Sprintf("%.1f km", n.DistanceKm))
			}
		})
	},
}
