package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhelmih/docureco/internal/config"
)

var (
	configureGitHubToken string
	configureLLMKey      string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store credentials in the OS keychain",
	Long: `Saves the GitHub token and/or LLM API key in the OS keychain so they
do not have to live in config files or shell profiles. Environment variables
still take precedence when set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		km := config.NewKeyringManager()
		if !km.IsAvailable() {
			return fmt.Errorf("OS keychain is not available on this system; use environment variables instead")
		}
		if configureGitHubToken == "" && configureLLMKey == "" {
			return fmt.Errorf("nothing to store; pass --github-token and/or --llm-api-key")
		}

		if configureGitHubToken != "" {
			if err := km.SetGitHubToken(configureGitHubToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "GitHub token stored (%s)\n", config.MaskSecret(configureGitHubToken))
		}
		if configureLLMKey != "" {
			if err := km.SaveAPIKey(configureLLMKey); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "LLM API key stored (%s)\n", config.MaskSecret(configureLLMKey))
		}
		return nil
	},
}

func init() {
	configureCmd.Flags().StringVar(&configureGitHubToken, "github-token", "", "GitHub token to store")
	configureCmd.Flags().StringVar(&configureLLMKey, "llm-api-key", "", "LLM API key to store")
	rootCmd.AddCommand(configureCmd)
}
