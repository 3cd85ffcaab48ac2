package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhelmih/docureco/internal/baseline"
	"github.com/mhelmih/docureco/internal/models"
)

var (
	updateRepository string
	updateBranch     string
	updateCommitSHA  string
)

var baselineUpdateCmd = &cobra.Command{
	Use:   "baseline-update",
	Short: "Apply a commit's changes to the baseline traceability map",
	Long: `Diffs the commit's documentation files against their previous
revisions, invalidates exactly the links the changes touched, refreshes the
code inventory, regenerates links for added and modified elements, and saves
the map in one atomic replace. A repository without a baseline map is a
no-op.`,
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

		updater := baseline.NewUpdater(
			baseline.NewDiffAnalyzer(gateway, sl),
			baseline.NewRelinker(gateway, sl, cfg.Pipeline.RelinkBatchSize, cfg.Pipeline.RelinkConcurrency),
			store,
			buildScanner(cfg, sl),
			buildGitHub(cfg, sl),
			sl,
			baseline.UpdaterOptions{
				BatchSize:   cfg.Pipeline.RelinkBatchSize,
				Concurrency: cfg.Pipeline.RelinkConcurrency,
			},
		)

		result, err := updater.Run(cmd.Context(), updateRepository, updateBranch, updateCommitSHA)
		if err != nil {
			return err
		}
		if result.NoBaseline {
			fmt.Fprintf(cmd.OutOrStdout(), "No baseline map for %s:%s, nothing to update\n",
				updateRepository, updateBranch)
			return nil
		}

		printStats(cmd, result.Stats)
		fmt.Fprintf(cmd.OutOrStdout(), "Baseline map updated for %s:%s at %s (version %d)\n",
			updateRepository, updateBranch, updateCommitSHA, result.Map.Version)
		return nil
	},
}

func printStats(cmd *cobra.Command, stats models.RunStats) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"Processed: %d requirements, %d design elements, %d code components, %d links (batches ok/failed: %d/%d, llm retries: %d)\n",
		stats.Requirements, stats.DesignElements, stats.CodeComponents, stats.Links,
		stats.BatchesOK, stats.BatchesFailed, stats.LLMRetries)
}

func init() {
	baselineUpdateCmd.Flags().StringVar(&updateRepository, "repository", "", "repository (owner/repo)")
	baselineUpdateCmd.Flags().StringVar(&updateBranch, "branch", "main", "branch of the map")
	baselineUpdateCmd.Flags().StringVar(&updateCommitSHA, "commit_sha", "", "commit to apply")
	baselineUpdateCmd.MarkFlagRequired("repository")
	baselineUpdateCmd.MarkFlagRequired("commit_sha")
}
