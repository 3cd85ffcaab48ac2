package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhelmih/docureco/internal/baseline"
)

var (
	createBranch string
	createForce  bool
)

var baselineCreateCmd = &cobra.Command{
	Use:   "baseline-create <owner/repo>",
	Short: "Build the baseline traceability map for a repository",
	Long: `Scans the repository at the given branch, extracts requirements and
design elements from its SRS and SDD documents, classifies traceability
links, and persists the resulting map. Fails with exit code 2 when a map
already exists and --force is not set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		sl := newSlog()
		store, err := buildStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		gateway, err := buildGateway(cmd.Context(), cfg, sl)
		if err != nil {
			return err
		}

		creator := baseline.NewCreator(
			baseline.NewExtractor(gateway, sl),
			baseline.NewLinker(gateway, buildMatcher(cfg, sl), sl),
			store,
			buildScanner(cfg, sl),
			sl,
			baseline.CreatorOptions{
				ExtractConcurrency: cfg.Pipeline.ExtractConcurrency,
				Force:              createForce || cfg.Pipeline.ForceRecreate,
			},
		)

		result, err := creator.Run(cmd.Context(), args[0], createBranch)
		if err != nil {
			return err
		}

		printStats(cmd, result.Stats)
		fmt.Fprintf(cmd.OutOrStdout(), "Baseline map created for %s:%s (version %d)\n",
			args[0], createBranch, result.Map.Version)
		return nil
	},
}

func init() {
	baselineCreateCmd.Flags().StringVar(&createBranch, "branch", "main", "branch to map")
	baselineCreateCmd.Flags().BoolVar(&createForce, "force", false, "overwrite an existing map")
}
