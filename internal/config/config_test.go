package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 10, cfg.GitHub.RateLimit)
	assert.Equal(t, 10, cfg.Pipeline.RelinkBatchSize)
	assert.Equal(t, 4, cfg.Pipeline.ExtractConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.ScanTimeout)
	assert.NotEmpty(t, cfg.Storage.LocalPath)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: postgres
  postgres_dsn: postgres://localhost/docureco
github:
  rate_limit: 3
llm:
  provider: openai
pipeline:
  relink_batch_size: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/docureco", cfg.Storage.PostgresDSN)
	assert.Equal(t, 3, cfg.GitHub.RateLimit)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Pipeline.RelinkBatchSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.ExtractConcurrency)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GEMINI_API_KEY", "gm_test")
	t.Setenv("FORCE_RECREATE", "true")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://x")

	cfg := Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, "ghp_test", cfg.GitHub.Token)
	assert.Equal(t, "gm_test", cfg.LLM.GeminiKey)
	assert.True(t, cfg.Pipeline.ForceRecreate)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://x", cfg.Storage.PostgresDSN)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.GitHub.Token = ""
	assert.Error(t, cfg.Validate())

	cfg.GitHub.Token = "ghp_x"
	cfg.LLM.GeminiKey = ""
	assert.Error(t, cfg.Validate())

	cfg.LLM.GeminiKey = "gm_x"
	require.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "other"
	assert.Error(t, cfg.Validate())

	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAIKey = "sk_x"
	require.NoError(t, cfg.Validate())

	cfg.Storage.Type = "postgres"
	assert.Error(t, cfg.Validate()) // DSN missing
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.GitHub.RateLimit = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.GitHub.RateLimit)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "sk-a...wxyz", MaskSecret("sk-abcdefghijklmnopqrstuvwxyz"))
}
