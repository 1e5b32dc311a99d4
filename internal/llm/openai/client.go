// Package openai is the model backend for the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"net/http"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hakivo/enricher/internal/llm"
)

const providerName = "openai"

type Client struct {
	client *sdk.Client
}

func NewClient(apiKey string, opts ...option.RequestOption) *Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := sdk.NewClient(all...)
	return &Client{client: &client}
}

// Generate implements llm.Generator.
func (c *Client) Generate(ctx context.Context, r llm.Request) (llm.Response, error) {
	var msgs []sdk.ChatCompletionMessageParamUnion
	if r.SystemPrompt != "" {
		msgs = append(msgs, sdk.SystemMessage(r.SystemPrompt))
	}
	msgs = append(msgs, sdk.UserMessage(r.Prompt))

	params := sdk.ChatCompletionNewParams{
		Model:               sdk.ChatModel(r.Model),
		Messages:            msgs,
		MaxCompletionTokens: sdk.Int(int64(r.MaxTokens)),
		Temperature:         sdk.Float(r.Temperature),
	}
	if r.JSON {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Response{}, providerError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, &llm.ProviderError{Provider: providerName, Err: llm.ErrEmptyResponse}
	}

	return llm.Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func providerError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return &llm.RateLimitError{Provider: providerName}
		}
		return &llm.ProviderError{Provider: providerName, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &llm.ProviderError{Provider: providerName, Err: err}
}
