// Package anthropic adapts the Anthropic SDK to the llm.Completer interface.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"docpipeline/internal/config"
	"docpipeline/internal/observability"
)

const defaultMaxTokens int64 = 1024

// Client is a Completer backed by the Anthropic Messages API.
type Client struct {
	sdk       anthropicsdk.Client
	model     string
	maxTokens int64
}

// New constructs a Client from the service's completions configuration.
func New(cfg config.CompletionsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropicsdk.ModelClaude3_7SonnetLatest)
	}

	return &Client{
		sdk:       anthropicsdk.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

// Complete sends systemPrompt and userPrompt as a single-turn request and
// returns the concatenated text of the response.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Dur("duration", dur).Msg("anthropic_complete_error")
		return "", fmt.Errorf("anthropic complete: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	log.Debug().Str("model", c.model).Dur("duration", dur).Int("output_tokens", int(resp.Usage.OutputTokens)).Msg("anthropic_complete_ok")
	return sb.String(), nil
}
