package main

import (
	"fmt"

	"github.com/hakivo/enricher/internal/config"
	"github.com/hakivo/enricher/internal/llm"
	"github.com/hakivo/enricher/internal/llm/anthropic"
	"github.com/hakivo/enricher/internal/llm/ollama"
	"github.com/hakivo/enricher/internal/llm/openai"
	"github.com/hakivo/enricher/internal/llm/openrouter"
)

// newGenerator constructs the backend for a provider name. Ollama clients are
// shared so both depths hit the same server connection pool.
func newGenerator(cfg config.Config, provider string, shared *ollama.Client) (llm.Generator, error) {
	switch provider {
	case config.ProviderOllama:
		if shared != nil {
			return shared, nil
		}
		return ollama.New(cfg.Ollama.BaseURL), nil
	case config.ProviderOpenRouter:
		return openrouter.NewClient(cfg.OpenRouter.APIKey), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(cfg.Anthropic.APIKey), nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAI.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}

// newInvoker binds the configured backends and models to each depth.
// The returned Ollama client is non-nil when either depth uses Ollama.
func newInvoker(cfg config.Config) (*llm.Invoker, *ollama.Client, error) {
	var oc *ollama.Client
	if cfg.Models.QuickProvider == config.ProviderOllama || cfg.Models.DeepProvider == config.ProviderOllama {
		oc = ollama.New(cfg.Ollama.BaseURL)
	}

	quick, err := newGenerator(cfg, cfg.Models.QuickProvider, oc)
	if err != nil {
		return nil, nil, fmt.Errorf("quick model: %w", err)
	}
	deep, err := newGenerator(cfg, cfg.Models.DeepProvider, oc)
	if err != nil {
		return nil, nil, fmt.Errorf("deep model: %w", err)
	}

	inv := llm.NewInvoker(
		llm.Binding{
			Provider:  cfg.Models.QuickProvider,
			Generator: quick,
			Params:    llm.Params{Model: cfg.Models.QuickModel, MaxTokens: llm.QuickParams.MaxTokens, Temperature: llm.QuickParams.Temperature},
		},
		llm.Binding{
			Provider:  cfg.Models.DeepProvider,
			Generator: deep,
			Params:    llm.Params{Model: cfg.Models.DeepModel, MaxTokens: llm.DeepParams.MaxTokens, Temperature: llm.DeepParams.Temperature},
		},
	)
	return inv, oc, nil
}

// ollamaModels lists the models the worker needs pulled on its Ollama server.
func ollamaModels(cfg config.Config) []string {
	var models []string
	if cfg.Models.QuickProvider == config.ProviderOllama {
		models = append(models, cfg.Models.QuickModel)
	}
	if cfg.Models.DeepProvider == config.ProviderOllama {
		models = append(models, cfg.Models.DeepModel)
	}
	return models
}
