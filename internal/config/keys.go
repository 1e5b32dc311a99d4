package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

// keySpec binds a dotted config key to its env var and Config field.
// Secret keys are read from the environment only.
type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "ENRICHER_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "ENRICHER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "ENRICHER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.driver", typ: kString, env: "ENRICHER_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ENRICHER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.dsn", typ: kString, env: "ENRICHER_STORAGE_DSN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DSN },
	},
	{
		key: "queue.transport", typ: kString, env: "ENRICHER_QUEUE_TRANSPORT",
		apply:   func(cfg *Config, v any) { cfg.Queue.Transport = v.(string) },
		extract: func(cfg Config) any { return cfg.Queue.Transport },
	},
	{
		key: "queue.redis_url", typ: kString, env: "ENRICHER_QUEUE_REDIS_URL",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Queue.RedisURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Queue.RedisURL },
	},
	{
		key: "queue.redis_key", typ: kString, env: "ENRICHER_QUEUE_REDIS_KEY",
		apply:   func(cfg *Config, v any) { cfg.Queue.RedisKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Queue.RedisKey },
	},
	{
		key: "queue.dead_letter_key", typ: kString, env: "ENRICHER_QUEUE_DEAD_LETTER_KEY",
		apply:   func(cfg *Config, v any) { cfg.Queue.DeadLetterKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Queue.DeadLetterKey },
	},
	{
		key: "queue.concurrency", typ: kInt, env: "ENRICHER_QUEUE_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Queue.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Queue.Concurrency },
	},
	{
		key: "queue.poll_interval", typ: kDuration, env: "ENRICHER_QUEUE_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Queue.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Queue.PollInterval },
	},
	{
		key: "queue.lease", typ: kDuration, env: "ENRICHER_QUEUE_LEASE",
		apply:   func(cfg *Config, v any) { cfg.Queue.Lease = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Queue.Lease },
	},
	{
		key: "queue.max_attempts", typ: kInt, env: "ENRICHER_QUEUE_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Queue.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Queue.MaxAttempts },
	},
	{
		key: "models.quick_provider", typ: kString, env: "ENRICHER_MODELS_QUICK_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Models.QuickProvider = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.QuickProvider },
	},
	{
		key: "models.quick_model", typ: kString, env: "ENRICHER_MODELS_QUICK_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Models.QuickModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.QuickModel },
	},
	{
		key: "models.deep_provider", typ: kString, env: "ENRICHER_MODELS_DEEP_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Models.DeepProvider = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.DeepProvider },
	},
	{
		key: "models.deep_model", typ: kString, env: "ENRICHER_MODELS_DEEP_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Models.DeepModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.DeepModel },
	},
	{
		key: "ollama.base_url", typ: kString, env: "ENRICHER_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "openrouter.api_key", typ: kString, env: "ENRICHER_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.APIKey },
	},
	{
		key: "anthropic.api_key", typ: kString, env: "ENRICHER_ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Anthropic.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Anthropic.APIKey },
	},
	{
		key: "openai.api_key", typ: kString, env: "ENRICHER_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "rules.path", typ: kString, env: "ENRICHER_RULES_PATH",
		apply:   func(cfg *Config, v any) { cfg.Rules.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Rules.Path },
	},
	{
		key: "rules.watch", typ: kBool, env: "ENRICHER_RULES_WATCH",
		apply:   func(cfg *Config, v any) { cfg.Rules.Watch = v.(bool) },
		extract: func(cfg Config) any { return cfg.Rules.Watch },
	},
	{
		key: "log.level", typ: kString, env: "ENRICHER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "ENRICHER_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts raw text to the Go type of the key.
func (s keySpec) parseValue(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parseValue(raw)
		if err != nil {
			return fmt.Errorf("parsing %s=%q: %w", s.key, raw, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parseValue(raw)
		if err != nil {
			slog.Warn("could not parse env var, keeping previous value", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
