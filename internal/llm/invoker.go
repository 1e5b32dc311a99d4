package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Depth selects how thorough an analysis is.
type Depth string

const (
	DepthQuick Depth = "quick"
	DepthDeep  Depth = "deep"
)

// Params are the sampling parameters bound to a depth.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Default parameters per depth. The model name comes from configuration.
var (
	QuickParams = Params{MaxTokens: 1500, Temperature: 0.3}
	DeepParams  = Params{MaxTokens: 8000, Temperature: 0.2}
)

// Binding attaches a backend to a depth.
type Binding struct {
	Provider  string
	Generator Generator
	Params    Params
}

// Invoker routes generation calls to the backend bound to each depth.
type Invoker struct {
	bindings map[Depth]Binding
	logger   *slog.Logger
}

// NewInvoker creates an Invoker. Zero MaxTokens in a binding falls back to the
// depth's default parameters.
func NewInvoker(quick, deep Binding) *Invoker {
	if quick.Params.MaxTokens <= 0 {
		quick.Params.MaxTokens = QuickParams.MaxTokens
		quick.Params.Temperature = QuickParams.Temperature
	}
	if deep.Params.MaxTokens <= 0 {
		deep.Params.MaxTokens = DeepParams.MaxTokens
		deep.Params.Temperature = DeepParams.Temperature
	}
	return &Invoker{
		bindings: map[Depth]Binding{DepthQuick: quick, DepthDeep: deep},
		logger:   slog.Default(),
	}
}

// Model returns the configured model name for depth, used as model_used on
// records even when the call fails before a response arrives.
func (i *Invoker) Model(depth Depth) string {
	return i.bindings[depth].Params.Model
}

// Invoke sends prompt to the backend bound to depth and returns its raw text.
func (i *Invoker) Invoke(ctx context.Context, depth Depth, prompt, systemPrompt string) (Response, error) {
	b, ok := i.bindings[depth]
	if !ok || b.Generator == nil {
		return Response{}, fmt.Errorf("no model backend configured for depth %q", depth)
	}

	start := time.Now()
	resp, err := b.Generator.Generate(ctx, Request{
		Model:        b.Params.Model,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    b.Params.MaxTokens,
		Temperature:  b.Params.Temperature,
		JSON:         true,
	})
	if err != nil {
		return Response{}, err
	}
	if resp.Model == "" {
		resp.Model = b.Params.Model
	}

	i.logger.Debug("model invocation complete",
		"depth", depth,
		"provider", b.Provider,
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
