package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/query"
)

var (
	findRegion string
	findLimit  int

	detailRaw  bool
	detailGaps bool

	suspiciousMinRatio float64
	suspiciousRegion   string
	suspiciousLimit    int

	lacksRegion string
)

func init() {
	findCmd.Flags().StringVar(&findRegion, "region", "", "Only facilities in this region")
	findCmd.Flags().IntVar(&findLimit, "limit", query.DefaultFindLimit, "Maximum results to return")

	facilityCmd.Flags().BoolVar(&detailRaw, "raw", false, "Include the raw free-text fields")
	facilityCmd.Flags().BoolVar(&detailGaps, "gaps", true, "Include LACKS and COULD_SUPPORT edges")

	suspiciousCmd.Flags().Float64Var(&suspiciousMinRatio, "min-ratio", query.DefaultSuspiciousRatio, "Minimum mismatch ratio")
	suspiciousCmd.Flags().StringVar(&suspiciousRegion, "region", "", "Only facilities in this region")
	suspiciousCmd.Flags().IntVar(&suspiciousLimit, "limit", 20, "Maximum results to return")

	lacksCmd.Flags().StringVar(&lacksRegion, "region", "", "Only facilities in this region")

	rootCmd.AddCommand(findCmd, facilityCmd, mismatchCmd, suspiciousCmd, lacksCmd, requirementsCmd)
}

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find facilities by fuzzy name",
	Long: `Find facilities whose name matches a query. Scores are 0.8 when the name
contains the query, 0.7 when the query contains the name, and otherwise the
share of query words found in the name (at most 0.6).

Examples:
  neo find "korle bu"
  neo find "teaching hospital" --region ashanti`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().FindFacility(args[0], findRegion, findLimit)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			if len(res) == 0 {
				outputHuman("No facilities match %q\n", args[0])
			}
			for i, m := range res {
				printFacilityLine(i, m.FacilityRef, fmt.Sprintf("[%.2f] %s", m.Score, m.FacilityID))
			}
		})
	},
}

var facilityCmd = &cobra.Command{
	Use:   "facility <id>...",
	Short: "Show everything known about facilities",
	Long: `Show attributes, specialties, capabilities with provenance, equipment,
inferred gaps and the mismatch ratio of one or more facilities. Ids may be
given with or without the facility:: prefix.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().FacilityDetails(args, detailRaw, detailGaps)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for _, d := range res {
				printDetail(d)
			}
		})
	},
}

func printDetail(d query.Detail) {
	if d.Error != "" {
		outputHuman("%s: %s\n\n", d.FacilityID, d.Error)
		return
	}
	outputHuman("%s\n  %s\n", d.Name, d.FacilityID)
	outputHuman("  %s, %s  %s\n", d.City, d.Region, d.FacilityType)
	if d.Capacity != nil {
		outputHuman("  Beds: %d\n", *d.Capacity)
	}
	links := func(label string, ls []query.Link) {
		if len(ls) == 0 {
			return
		}
		parts := make([]string, 0, len(ls))
		for _, l := range ls {
			parts = append(parts, fmt.Sprintf("%s (%.2f)", l.Key, l.Confidence))
		}
		outputHuman("  %s: %s\n", label, wrapText(strings.Join(parts, ", "), TextWrapWidth, "    "))
	}
	links("Specialties", d.Specialties)
	links("Capabilities", d.Capabilities)
	links("Equipment", d.Equipment)
	if len(d.Lacks) > 0 {
		missing := make([]string, 0, len(d.Lacks))
		for _, l := range d.Lacks {
			missing = append(missing, l.Equipment)
		}
		outputHuman("  Lacks: %s\n", strings.Join(missing, ", "))
	}
	for _, s := range d.CouldSupport {
		outputHuman("  Could support %s (readiness %.2f, missing %s)\n", s.Capability, s.Readiness, orNone(s.Missing))
	}
	if d.MismatchRatio != nil {
		outputHuman("  Mismatch ratio: %.3f\n", *d.MismatchRatio)
	}
	if r := d.RawText; r != nil && r.Description != "" {
		outputHuman("  Description: %s\n", wrapText(r.Description, TextWrapWidth, "    "))
	}
	outputHuman("\n")
}

var mismatchCmd = &cobra.Command{
	Use:   "mismatch <facility-id>",
	Short: "Show a facility's claimed capabilities against missing equipment",
	Long: `Report the LACKS edges of a facility next to its claimed capabilities and
confirmed equipment. The mismatch ratio is missing / (missing + confirmed).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mustLoadEngine().FacilityMismatch(args[0])
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(m, func() { printMismatch(*m) })
	},
}

func printMismatch(m query.Mismatch) {
	outputHuman("%s [%.3f]\n", m.FacilityName, m.MismatchRatio)
	outputHuman("  Claims:    %s\n", orNone(m.ClaimedCapabilities))
	outputHuman("  Confirmed: %s\n", orNone(m.ConfirmedEquipment))
	for _, l := range m.Lacks {
		outputHuman("  Lacks %s (required by %s)\n", l.Equipment, strings.Join(l.RequiredBy, ", "))
	}
}

var suspiciousCmd = &cobra.Command{
	Use:   "suspicious",
	Short: "List facilities whose claims outrun their equipment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mustLoadEngine().SuspiciousFacilities(suspiciousMinRatio, suspiciousRegion, suspiciousLimit)
		return emit(res, func() {
			for i, m := range res {
				outputHuman("%2d. [%.3f] %s (%s) lacks %d\n", i+1, m.MismatchRatio, truncateString(m.FacilityName, NameMaxLen), m.Region, len(m.Lacks))
			}
		})
	},
}

var lacksCmd = &cobra.Command{
	Use:   "lacks <capability> [facility-id...]",
	Short: "List facilities missing equipment required by a capability",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().FacilityLacks(args[0], args[1:], lacksRegion)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%d facilities lack equipment for %s\n", res.Count, res.Capability)
			for i, f := range res.Results {
				printFacilityLine(i, f.FacilityRef, "missing "+strings.Join(f.Missing, ", "))
			}
		})
	},
}

var requirementsCmd = &cobra.Command{
	Use:   "requirements <capability> [facility-id...]",
	Short: "Show a capability's required equipment and facility compliance",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().CapabilityRequirements(args[0], args[1:])
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%s\n  Required:    %s\n  Recommended: %s\n", res.Display, orNone(res.Required), orNone(res.Recommended))
			for _, c := range res.Comparisons {
				if c.Error != "" {
					outputHuman("  %s: %s\n", c.FacilityID, c.Error)
					continue
				}
				outputHuman("  %s: %.0f%% (missing %s)\n", c.FacilityID, c.Compliance*100, orNone(c.MissingRequired))
			}
		})
	},
}
