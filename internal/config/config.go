package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings.
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// GitHub configuration
	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm" mapstructure:"llm"`

	// Pipeline tuning knobs
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type GitHubConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

type LLMConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"` // "gemini", "openai"
	GeminiKey    string `yaml:"gemini_key" mapstructure:"gemini_key"`
	GeminiModel  string `yaml:"gemini_model" mapstructure:"gemini_model"`
	OpenAIKey    string `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIModel  string `yaml:"openai_model" mapstructure:"openai_model"`
	MaxRetries   int    `yaml:"max_retries" mapstructure:"max_retries"`
	EmbeddingKey string `yaml:"embedding_key" mapstructure:"embedding_key"`
}

type PipelineConfig struct {
	ExtractConcurrency int           `yaml:"extract_concurrency" mapstructure:"extract_concurrency"`
	RelinkConcurrency  int           `yaml:"relink_concurrency" mapstructure:"relink_concurrency"`
	RelinkBatchSize    int           `yaml:"relink_batch_size" mapstructure:"relink_batch_size"`
	ScanTimeout        time.Duration `yaml:"scan_timeout" mapstructure:"scan_timeout"`
	ForceRecreate      bool          `yaml:"force_recreate" mapstructure:"force_recreate"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".docureco", "maps.db"),
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			GeminiModel: "gemini-2.0-flash",
			OpenAIModel: "gpt-4o-mini",
			MaxRetries:  3,
		},
		Pipeline: PipelineConfig{
			ExtractConcurrency: 4,
			RelinkConcurrency:  4,
			RelinkBatchSize:    10,
			ScanTimeout:        5 * time.Minute,
		},
	}
}

// Load reads configuration from the given file (or standard locations),
// after loading .env files, and applies environment overrides last.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", map[string]any{
		"type":       cfg.Storage.Type,
		"local_path": cfg.Storage.LocalPath,
	})
	v.SetDefault("github", map[string]any{"rate_limit": cfg.GitHub.RateLimit})
	v.SetDefault("llm", map[string]any{
		"provider":     cfg.LLM.Provider,
		"gemini_model": cfg.LLM.GeminiModel,
		"openai_model": cfg.LLM.OpenAIModel,
		"max_retries":  cfg.LLM.MaxRetries,
	})
	v.SetDefault("pipeline", map[string]any{
		"extract_concurrency": cfg.Pipeline.ExtractConcurrency,
		"relink_concurrency":  cfg.Pipeline.RelinkConcurrency,
		"relink_batch_size":   cfg.Pipeline.RelinkBatchSize,
		"scan_timeout":        cfg.Pipeline.ScanTimeout,
	})

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".docureco")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".docureco"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine; defaults plus env cover it.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
	homeDir, _ := os.UserHomeDir()
	homeEnv := filepath.Join(homeDir, ".docureco", ".env")
	if _, err := os.Stat(homeEnv); err == nil {
		godotenv.Load(homeEnv)
	}
}

// applyEnvOverrides applies environment variable overrides.
// Secrets precedence: env var > OS keychain > config file. The keychain
// supplies only the GitHub token and the OpenAI key.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	} else {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if token, err := km.GetGitHubToken(); err == nil && token != "" {
				cfg.GitHub.Token = token
			}
		}
	}
	if limit := os.Getenv("GITHUB_RATE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cfg.GitHub.RateLimit = n
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	} else {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if key, err := km.GetAPIKey(); err == nil && key != "" {
				cfg.LLM.OpenAIKey = key
			}
		}
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.LLM.GeminiModel = model
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.LLM.OpenAIModel = model
	}
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		cfg.LLM.EmbeddingKey = key
	}

	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	if force := os.Getenv("FORCE_RECREATE"); force != "" {
		if b, err := strconv.ParseBool(force); err == nil {
			cfg.Pipeline.ForceRecreate = b
		}
	}
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, path[1:])
}

// Save writes the configuration to a YAML file, creating the directory when
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that the configuration can drive a pipeline run.
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is required; create a token at https://github.com/settings/tokens")
	}
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown llm provider %q (want gemini or openai)", c.LLM.Provider)
	}
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q (want sqlite or postgres)", c.Storage.Type)
	}
	return nil
}
