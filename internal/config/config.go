// Package config loads worker settings from defaults, a JSON config file, an
// optional .env file and ENRICHER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by models.quick_provider and models.deep_provider.
const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Models     ModelsConfig
	Ollama     OllamaConfig
	OpenRouter KeyConfig
	Anthropic  KeyConfig
	OpenAI     KeyConfig
	Rules      RulesConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string
}

type StorageConfig struct {
	Driver  string // sqlite | postgres
	DataDir string
	DSN     string
}

type QueueConfig struct {
	Transport     string // sqlite | redis
	RedisURL      string
	RedisKey      string
	DeadLetterKey string
	Concurrency   int
	PollInterval  time.Duration
	Lease         time.Duration
	MaxAttempts   int
}

type ModelsConfig struct {
	QuickProvider string
	QuickModel    string
	DeepProvider  string
	DeepModel     string
}

type OllamaConfig struct {
	BaseURL string
}

type KeyConfig struct {
	APIKey string
}

type RulesConfig struct {
	Path  string
	Watch bool
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4100,
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		Queue: QueueConfig{
			Transport:     "sqlite",
			RedisURL:      "redis://localhost:6379/0",
			RedisKey:      "enricher:queue:jobs",
			DeadLetterKey: "enricher:queue:failed",
			Concurrency:   4,
			PollInterval:  time.Second,
			Lease:         10 * time.Minute,
			MaxAttempts:   3,
		},
		Models: ModelsConfig{
			QuickProvider: ProviderOpenRouter,
			QuickModel:    "meta-llama/llama-3.3-70b-instruct",
			DeepProvider:  ProviderAnthropic,
			DeepModel:     "claude-sonnet-4-5",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the JSON config file, a .env file in the
// working directory, and the environment. Variables already set in the
// environment win over the .env file.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newFileBackend(ConfigFilePath()))
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// Validate checks the settings the worker needs: known drivers and
// transports, positive queue limits, and credentials for every provider
// bound to a depth.
func (c Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.driver=postgres requires ENRICHER_STORAGE_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q (want sqlite or postgres)", c.Storage.Driver))
	}

	switch c.Queue.Transport {
	case "sqlite":
	case "redis":
		if c.Queue.RedisURL == "" {
			errs = append(errs, errors.New("queue.transport=redis requires ENRICHER_QUEUE_REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue.transport %q (want sqlite or redis)", c.Queue.Transport))
	}

	if c.Queue.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("queue.concurrency must be at least 1, got %d", c.Queue.Concurrency))
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("queue.max_attempts must be at least 1, got %d", c.Queue.MaxAttempts))
	}
	if c.Queue.PollInterval <= 0 {
		errs = append(errs, errors.New("queue.poll_interval must be positive"))
	}

	for _, depth := range []struct{ name, provider, model string }{
		{"quick", c.Models.QuickProvider, c.Models.QuickModel},
		{"deep", c.Models.DeepProvider, c.Models.DeepModel},
	} {
		if depth.model == "" {
			errs = append(errs, fmt.Errorf("models.%s_model is empty", depth.name))
		}
		if err := c.checkProvider(depth.provider); err != nil {
			errs = append(errs, fmt.Errorf("models.%s_provider: %w", depth.name, err))
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log.format %q (want text or json)", c.Log.Format))
	}

	return errors.Join(errs...)
}

func (c Config) checkProvider(name string) error {
	var key, env string
	switch name {
	case ProviderOllama:
		if c.Ollama.BaseURL == "" {
			return errors.New("ollama requires ollama.base_url")
		}
		return nil
	case ProviderOpenRouter:
		key, env = c.OpenRouter.APIKey, "ENRICHER_OPENROUTER_API_KEY"
	case ProviderAnthropic:
		key, env = c.Anthropic.APIKey, "ENRICHER_ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		key, env = c.OpenAI.APIKey, "ENRICHER_OPENAI_API_KEY"
	default:
		return fmt.Errorf("unknown provider %q", name)
	}
	if key == "" {
		return fmt.Errorf("missing required config: %s API key. Set it via environment variable %s", name, env)
	}
	return nil
}
