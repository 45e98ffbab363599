package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/query"
)

var (
	regionService   string
	regionSpecialty string
	regionLimit     int
)

func init() {
	regionCmd.Flags().StringVar(&regionService, "service", "", "Capability or specialty to report on")
	regionFacilitiesCmd.Flags().StringVar(&regionSpecialty, "specialty", "", "Only facilities with this specialty")
	regionFacilitiesCmd.Flags().IntVar(&regionLimit, "limit", query.DefaultRegionFacilityLimit, "Maximum results to return")
	regionCmd.AddCommand(regionDetailCmd, regionFacilitiesCmd)
	specialtiesCmd.AddCommand(specialtyDistributionCmd)
	rootCmd.AddCommand(regionsCmd, regionCmd, equityCmd, specialtiesCmd, specialtyCmd, overviewCmd)
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List regions with population, facility, NGO and desert counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mustLoadEngine().ListRegions()
		return emit(res, func() {
			outputHuman("%-16s %10s %10s %5s %7s\n", "REGION", "POPULATION", "FACILITIES", "NGOS", "DESERTS")
			for _, r := range res {
				outputHuman("%-16s %10d %10d %5d %7d\n", r.Name, r.Population, r.FacilityCount, r.NGOCount, r.DesertCount)
			}
		})
	},
}

var regionCmd = &cobra.Command{
	Use:   "region <region>",
	Short: "Show population, access, health indicators and equity for a region",
	Long: `Show the context of one region: population and facility density, travel
access, DHS health indicators (when an indicators directory is configured)
and its place in the equity ranking. With --service, also count providers
of a capability or specialty and, when there are none, the nearest region
that has one.

Examples:
  neo region northern
  neo region "Upper East" --service cardiology
  neo region details volta
  neo region facilities ashanti --specialty pediatrics`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().RegionContext(args[0], regionService)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%s (capital %s)\n", res.Display, res.Capital)
			outputHuman("  Population:   %d\n", res.Population)
			outputHuman("  Facilities:   %d (%d people per facility)\n", res.FacilityCount, res.PopPerFacility)
			outputHuman("  Access:       %s, roads %s, travel x%.1f\n", res.Access.Classification, res.Access.RoadQuality, res.Access.Multiplier)
			labels := make([]string, 0, len(res.HealthIndicators))
			for l := range res.HealthIndicators {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			for _, l := range labels {
				v := "n/a"
				if p := res.HealthIndicators[l]; p != nil {
					v = fmt.Sprintf("%.1f", *p)
				}
				outputHuman("  %-40s %s\n", l, v)
			}
			if s := res.Service; s != nil {
				outputHuman("  %s providers: %d", s.Service, s.Providers)
				if s.NearestAlternative != "" {
					outputHuman(" (nearest: %s)", s.NearestAlternative)
				}
				outputHuman("\n")
			}
			outputHuman("  Equity rank:  %d of %d (score %.1f)\n", res.Equity.Rank, res.Equity.TotalRegions, res.Equity.Score)
		})
	},
}

var regionDetailCmd = &cobra.Command{
	Use:   "details <region>",
	Short: "Show facilities, specialties, deserts, NGOs and neighbours of a region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().RegionDetails(args[0])
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%s: %d facilities, %d NGOs, %d deserts\n", res.Name, res.FacilityCount, res.NGOCount, res.DesertCount)
			outputHuman("  Neighbours: %s\n", orNone(res.Neighbours))
			outputHuman("  NGOs:       %s\n", orNone(res.NGOs))
			for _, d := range res.Deserts {
				outputHuman("  Desert for %s (severity %.2f)\n", d.Specialty, d.Severity)
			}
		})
	},
}

var regionFacilitiesCmd = &cobra.Command{
	Use:   "facilities <region>",
	Short: "List the facilities of a region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().RegionFacilities(args[0], regionSpecialty, regionLimit)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for i, f := range res {
				printFacilityLine(i, f.FacilityRef, "")
			}
		})
	},
}

var equityCmd = &cobra.Command{
	Use:   "equity",
	Short: "Rank regions by composite healthcare need",
	Long: `Rank regions by an equity score combining infant mortality, child anemia,
uninsured women, facility delivery rate, population per facility and travel
difficulty. Rank 1 is the most underserved region. Missing indicators use
national defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mustLoadEngine().EquityRanking()
		return emit(res, func() {
			for _, r := range res {
				outputHuman("%2d. %-16s %6.1f  pop %9d  facilities %4d\n", r.Rank, r.Display, r.Score, r.Population, r.FacilityCount)
			}
		})
	},
}

var specialtiesCmd = &cobra.Command{
	Use:   "specialties",
	Short: "List specialties with facility counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mustLoadEngine().ListSpecialties()
		return emit(res, func() {
			for _, s := range res {
				outputHuman("  %-40s %5d\n", s.Specialty, s.FacilityCount)
			}
		})
	},
}

var specialtyDistributionCmd = &cobra.Command{
	Use:   "distribution",
	Short: "Count facilities per specialty per region",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mustLoadEngine().SpecialtyDistribution()
		return emit(res, func() {
			specs := make([]string, 0, len(res))
			for s := range res {
				specs = append(specs, s)
			}
			sort.Strings(specs)
			for _, s := range specs {
				outputHuman("%s\n", s)
				regions := make([]string, 0, len(res[s]))
				for r := range res[s] {
					regions = append(regions, r)
				}
				sort.Strings(regions)
				for _, r := range regions {
					outputHuman("  %-16s %4d\n", r, res[s][r])
				}
			}
		})
	},
}

var specialtyCmd = &cobra.Command{
	Use:   "specialty <specialty>",
	Short: "Show the capabilities and regional spread of a specialty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().SpecialtyOverview(args[0])
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			outputHuman("%s: %d facilities\n", res.Specialty, res.FacilityCount)
			outputHuman("  Deserts: %s\n", orNone(res.DesertRegions))
			for _, c := range res.Capabilities {
				outputHuman("  %-32s %4d  %5.1f%%\n", c.Key, c.Count, c.Percentage)
			}
		})
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview [national|region|specialty] [key]",
	Short: "Explore the landscape at national, region or specialty scope",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, key := query.ScopeNational, ""
		if len(args) > 0 {
			scope = args[0]
		}
		if len(args) > 1 {
			key = args[1]
		}
		res, err := mustLoadEngine().Overview(scope, key)
		if err != nil {
			exitWithQueryError(err)
		}
		return outputJSON(res)
	},
}
