// Package anthropic is the model backend for the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hakivo/enricher/internal/llm"
)

const providerName = "anthropic"

// Client wraps the Anthropic SDK client.
type Client struct {
	client *sdk.Client
}

// NewClient creates a Client. Extra request options (base URL, retries) are
// appended after the API key.
func NewClient(apiKey string, opts ...option.RequestOption) *Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := sdk.NewClient(all...)
	return &Client{client: &client}
}

// Generate implements llm.Generator. The SDK retries transient failures
// itself; whatever error remains is reported as an llm.ProviderError. A reply
// without text blocks yields an empty Text.
func (c *Client) Generate(ctx context.Context, r llm.Request) (llm.Response, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(r.Model),
		MaxTokens:   int64(r.MaxTokens),
		Temperature: sdk.Float(r.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(r.Prompt)),
		},
	}
	if r.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: r.SystemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, providerError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return llm.Response{
		Text:  sb.String(),
		Model: string(msg.Model),
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func providerError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return &llm.RateLimitError{Provider: providerName}
		}
		return &llm.ProviderError{Provider: providerName, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &llm.ProviderError{Provider: providerName, Err: err}
}
