package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sharckhai/neo-command/internal/config"
	"github.com/sharckhai/neo-command/internal/storage"
)

var (
	resolveDomain    string
	resolveShowVocab bool
)

func init() {
	resolveCmd.Flags().StringVar(&resolveDomain, "domain", "", "Only map onto capabilities, equipment or specialties")
	resolveCmd.Flags().BoolVar(&resolveShowVocab, "show-vocabulary", false, "Include the canonical vocabulary in the result")
	vocabCmd.AddCommand(vocabCacheCmd)
	rootCmd.AddCommand(vocabCmd, resolveCmd)
}

var vocabCmd = &cobra.Command{
	Use:   "vocab [capabilities|equipment|specialties]",
	Short: "List the canonical vocabulary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := ""
		if len(args) > 0 {
			domain = args[0]
		}
		res, err := mustLoadEngine().ListVocabulary(domain)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for _, section := range []struct {
				name  string
				items int
			}{{"capabilities", len(res.Capabilities)}, {"equipment", len(res.Equipment)}, {"specialties", len(res.Specialties)}} {
				if section.items > 0 {
					outputHuman("%s: %d\n", section.name, section.items)
				}
			}
			for _, it := range append(append(res.Capabilities, res.Equipment...), res.Specialties...) {
				outputHuman("  %-32s %s\n", it.Key, it.Display)
			}
		})
	},
}

var vocabCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show classification cache statistics for the current vocabulary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := mustFindWorkspace()
		v := mustLoadVocab()
		cache, err := storage.OpenVocabCache(config.VocabCachePath(root))
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		defer cache.Close()

		stats, err := cache.Stats(context.Background(), v.Version())
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		return emit(stats, func() {
			outputHuman("Vocabulary %s: %d cached phrases (%d without a match)\n", stats.Version, stats.Total, stats.NoMatch)
			for d, n := range stats.ByDomain {
				outputHuman("  %-14s %d\n", d, n)
			}
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <term>...",
	Short: "Map natural-language terms onto vocabulary keys",
	Long: `Map terms onto capability, equipment and specialty keys and recommend a
retrieval strategy: graph when at least 70% of terms map, raw_text when 20%
or fewer do, mixed otherwise.

Examples:
  neo resolve "c-section" "blood bank" "kangaroo care"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := mustLoadEngine().ResolveTerms(args, resolveDomain, resolveShowVocab)
		if err != nil {
			exitWithQueryError(err)
		}
		return emit(res, func() {
			for _, m := range res.Mapped {
				outputHuman("  %-24s -> %s:%s (%.2f)\n", m.Term, m.Domain, m.Key, m.Confidence)
			}
			for _, u := range res.Unmapped {
				outputHuman("  %-24s -> unmapped\n", u)
			}
			outputHuman("Coverage %.2f, strategy %s\n", res.Coverage, res.Strategy)
		})
	},
}
