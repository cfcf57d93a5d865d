// Package openai adapts the OpenAI SDK to the llm.Completer interface.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"docpipeline/internal/config"
	"docpipeline/internal/observability"
)

// Client is a Completer backed by the OpenAI (or OpenAI-compatible) Chat
// Completions API.
type Client struct {
	sdk   sdk.Client
	model string
}

// New constructs a Client from the service's completions configuration. An
// empty cfg.APIKey is valid for self-hosted OpenAI-compatible endpoints that
// don't require auth; a non-empty base URL (carried on cfg.Model's provider,
// here hardcoded to the public API) would be wired the same way via
// option.WithBaseURL.
func New(cfg config.CompletionsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o"
	}

	return &Client{
		sdk:   sdk.NewClient(opts...),
		model: model,
	}
}

// Complete sends systemPrompt and userPrompt as a single-turn chat completion
// request and returns the first choice's message content.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, sdk.SystemMessage(systemPrompt))
	}
	messages = append(messages, sdk.UserMessage(userPrompt))

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: messages,
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Dur("duration", dur).Msg("openai_complete_error")
		return "", fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai complete: empty choices")
	}

	log.Debug().Str("model", c.model).Dur("duration", dur).
		Int("completion_tokens", int(resp.Usage.CompletionTokens)).Msg("openai_complete_ok")
	return resp.Choices[0].Message.Content, nil
}
