package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/query"
)

var (
	anomalyRegion    string
	anomalyThreshold float64
	anomalyLimit     int

	coldCapability string
	coldSpecialty  string
	coldRadius     float64
	coldByDistance bool

	supportMinReadiness float64

	complianceRegion string
)

func init() {
	anomaliesCmd.Flags().StringVar(&anomalyRegion, "region", "", "Only facilities in this region")
	anomaliesCmd.Flags().Float64Var(&anomalyThreshold, "threshold", 0, "Minimum score (default depends on the check)")
	anomaliesCmd.Flags().IntVar(&anomalyLimit, "limit", query.DefaultAnomalyLimit, "Maximum results to return")

	coldspotsCmd.Flags().StringVar(&coldCapability, "capability", "", "Capability key")
	coldspotsCmd.Flags().StringVar(&coldSpecialty, "specialty", "", "Specialty label")
	coldspotsCmd.Flags().Float64Var(&coldRadius, "radius", query.DefaultColdSpotRadiusKm, "Coverage radius in km")
	coldspotsCmd.Flags().BoolVar(&coldByDistance, "by-distance", false, "Order by distance instead of population-weighted severity")

	couldSupportCmd.Flags().Float64Var(&supportMinReadiness, "min-readiness", query.DefaultCouldSupportReadiness, "Minimum readiness score")

	complianceCmd.Flags().StringVar(&complianceRegion, "region", "", "Only facilities in this region")

	rootCmd.AddCommand(anomaliesCmd, desertsCmd, coldspotsCmd, couldSupportCmd, compareCmd, ngoGapsCmd, complianceCmd)
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies <check>",
	Short: "Flag facilities whose claims are implausible",
	Long: `Run one anomaly heuristic over every facility:

  procedure_vs_size    many high-complexity capabilities for the bed count
  equipment_vs_claims  capabilities claimed without their required equipment
  feature_correlation  capabilities without the equipment they imply
  bed_or_ratio         too few beds per surgical capability, or a large
                       facility with no surgical capability

Examples:
  neo anomalies procedure_vs_size --region northern
  neo anomalies equipment_vs_claims --threshold 0.6`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var threshold *float64
		if cmd.Flags().Changed("threshold") {
			threshold = &anomalyThreshold
		}
		res, err := mustLoadEngine().DetectAnomalies(args[0], anomalyRegion, threshold, anomalyLimit)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%s\n", res.Summary)
			for i, a := range res.Flagged {
				printFacilityLine(i, a.FacilityRef, fmt.Sprintf("[%.2f]", a.Score))
				outputHuman("      %s\n", a.Reason)
			}
		})
	},
}

var desertsCmd = &cobra.Command{
	Use:   "deserts <specialty>",
	Short: "List regions that are medical deserts for a specialty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().DesertsForSpecialty(args[0])
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			if len(res) == 0 {
				outputHuman("No deserts for %s\n", args[0])
			}
			for i, d := range res {
				outputHuman("%2d. %-16s pop %9d  facilities %d  nearest %s  severity %.2f\n",
					i+1, d.RegionName, d.Population, d.FacilityCount, d.NearestRegion, d.Severity)
			}
		})
	},
}

var coldspotsCmd = &cobra.Command{
	Use:   "coldspots",
	Short: "Find regions far from any provider of a service",
	Long: `For every region centroid, find the nearest located facility offering the
capability or specialty. Regions beyond --radius are cold spots.

Examples:
  neo coldspots --capability dialysis
  neo coldspots --specialty ophthalmology --radius 150 --by-distance`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().ColdSpots(coldCapability, coldSpecialty, coldRadius, !coldByDistance)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%d providers, %d regions within %.0f km, %d cold spots\n",
				res.Providers, res.CoveredRegions, res.RadiusKm, len(res.ColdSpots))
			for i, c := range res.ColdSpots {
				dist := "no provider"
				if c.NearestFacilityKm != nil {
					dist = fmt.Sprintf("%.1f km to %s", *c.NearestFacilityKm, c.NearestName)
				}
				outputHuman("%2d. %-16s pop %9d  %s  severity %.2f\n", i+1, c.RegionName, c.Population, dist, c.Severity)
			}
		})
	},
}

var couldSupportCmd = &cobra.Command{
	Use:   "could-support <capability>",
	Short: "List facilities close to supporting a capability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().CouldSupport(args[0], supportMinReadiness)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for i, u := range res {
				printFacilityLine(i, u.FacilityRef, fmt.Sprintf("[%.2f] missing %s", u.Readiness, orNone(u.Missing)))
			}
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <specialty>",
	Short: "Compare regions by number of facilities with a specialty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().RegionalComparison(args[0])
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for _, r := range res {
				mark := ""
				if r.IsDesert {
					mark = "  desert"
				}
				outputHuman("  %-16s %4d%s\n", r.RegionName, r.FacilityCount, mark)
			}
		})
	},
}

var ngoGapsCmd = &cobra.Command{
	Use:   "ngo-gaps",
	Short: "Show regions without NGO presence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mustLoadEngine().NGOGaps()
		return emit(res, func() {
			outputHuman("Regions without NGOs:\n")
			for _, r := range res.Uncovered {
				outputHuman("  %-16s pop %9d  deserts %d\n", r.RegionName, r.Population, r.DesertCount)
			}
			if len(res.Overlap) > 0 {
				outputHuman("Regions with several NGOs:\n")
				for _, r := range res.Overlap {
					outputHuman("  %-16s %s\n", r.RegionName, strings.Join(r.NGOs, ", "))
				}
			}
		})
	},
}

var complianceCmd = &cobra.Command{
	Use:   "compliance [capability]",
	Short: "Show how many claiming facilities hold the required equipment",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		capability := ""
		if len(args) > 0 {
			capability = args[0]
		}
		res, err := mustLoadEngine().EquipmentCompliance(capability, complianceRegion)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for _, c := range res.Capabilities {
				outputHuman("  %-32s %4d claiming  %4d equipped  %5.1f%%  avg %.2f\n",
					truncateString(c.Display, 32), c.Claiming, c.FullyEquipped, c.CompliancePct, c.AverageCompliance)
			}
		})
	},
}
