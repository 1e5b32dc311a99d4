// Package llm is the model invocation layer. It defines the provider-neutral
// Generator contract, the errors backends report, and the Invoker that binds
// a backend and its sampling parameters to each analysis depth.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single text-generation call.
type Request struct {
	Model        string
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	// JSON asks the backend for JSON output when it supports a JSON mode.
	JSON bool
}

// Usage reports token accounting returned by the provider, when available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the raw text returned by a provider plus metadata.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Generator is implemented by every model backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// ErrEmptyResponse is returned when a provider answers successfully but
// without any completion. A completion whose text is blank is not an error;
// it is returned as is and left to the caller's output handling.
var ErrEmptyResponse = errors.New("empty response from model")

// ProviderError is a non-success answer or transport failure from a backend.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 for transport failures
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Provider, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return e.Provider + ": request failed"
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimitError is returned on HTTP 429 once a backend has exhausted its
// own retries. Attempts is 0 when the retries happened inside a provider SDK
// and the count is not known.
type RateLimitError struct {
	Provider string
	Attempts int
}

func (e *RateLimitError) Error() string {
	if e.Attempts == 0 {
		return e.Provider + ": rate limited"
	}
	return fmt.Sprintf("%s: rate limited after %d attempts", e.Provider, e.Attempts)
}

// IsRateLimit reports whether err is or wraps a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
