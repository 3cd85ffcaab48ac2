package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mhelmih/docureco/internal/config"
	"github.com/mhelmih/docureco/internal/github"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/logging"
	"github.com/mhelmih/docureco/internal/scan"
	"github.com/mhelmih/docureco/internal/semantic"
	"github.com/mhelmih/docureco/internal/storage"
)

// newSlog builds the structured logger the internal components receive.
func newSlog() *slog.Logger {
	sl, _, err := logging.New(logging.DefaultConfig(verbose))
	if err != nil {
		return slog.Default()
	}
	return sl
}

// buildStore opens the configured graph-store backend.
func buildStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	case "sqlite":
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}

// buildGateway constructs the LLM gateway over the configured provider.
func buildGateway(ctx context.Context, cfg *config.Config, sl *slog.Logger) (*llm.Gateway, error) {
	var provider llm.Provider
	var err error
	switch cfg.LLM.Provider {
	case "gemini":
		provider, err = llm.NewGeminiProvider(ctx, cfg.LLM.GeminiKey, cfg.LLM.GeminiModel, sl)
	case "openai":
		provider, err = llm.NewOpenAIProvider(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIModel, sl)
	default:
		err = fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}
	return llm.NewGateway(provider, sl, llm.WithMaxRetries(cfg.LLM.MaxRetries)), nil
}

// buildScanner constructs the repository snapshot client.
func buildScanner(cfg *config.Config, sl *slog.Logger) *scan.Scanner {
	return scan.NewScanner(cfg.GitHub.Token, sl, scan.WithTimeout(cfg.Pipeline.ScanTimeout))
}

// buildGitHub constructs the PR and commit fetcher.
func buildGitHub(cfg *config.Config, sl *slog.Logger) *github.Client {
	return github.NewClient(cfg.GitHub.Token, cfg.GitHub.RateLimit, sl)
}

// buildMatcher picks the semantic matcher: embedding-backed when a key is
// configured, pass-through otherwise.
func buildMatcher(cfg *config.Config, sl *slog.Logger) semantic.Matcher {
	if cfg.LLM.EmbeddingKey != "" {
		return semantic.NewEmbeddingMatcher(cfg.LLM.EmbeddingKey, sl)
	}
	return semantic.Noop{}
}
