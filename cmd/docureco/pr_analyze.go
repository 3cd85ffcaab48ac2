package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhelmih/docureco/internal/github"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/recommender"
)

var priorRecommendationsFile string

var prAnalyzeCmd = &cobra.Command{
	Use:   "pr-analyze <pr_url>",
	Short: "Analyze a pull request and recommend documentation updates",
	Long: `Classifies the PR's diffs, groups them into logical change sets,
traces their impact through the baseline traceability map, and prints
prioritized documentation-update recommendations as JSON. Read-only with
respect to the map.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		owner, repo, number, err := github.ParsePRURL(args[0])
		if err != nil {
			return err
		}

		var prior []models.DocumentRecommendations
		if priorRecommendationsFile != "" {
			data, err := os.ReadFile(priorRecommendationsFile)
			if err != nil {
				return fmt.Errorf("read prior recommendations: %w", err)
			}
			if err := json.Unmarshal(data, &prior); err != nil {
				return fmt.Errorf("decode prior recommendations: %w", err)
			}
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

		analyzer := recommender.NewAnalyzer(gateway, store, buildGitHub(cfg, sl),
			cfg.Pipeline.RelinkConcurrency, sl)

		analysis, err := analyzer.Run(cmd.Context(), owner, repo, number, prior)
		if err != nil {
			return err
		}
		if analysis.NoBaseline {
			fmt.Fprintf(cmd.OutOrStdout(), "No baseline map for %s/%s, nothing to analyze\n", owner, repo)
			return nil
		}

		out, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	prAnalyzeCmd.Flags().StringVar(&priorRecommendationsFile, "prior", "",
		"JSON file with recommendation groups already posted on the PR (for deduplication)")
}
