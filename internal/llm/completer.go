// Package llm defines the Completer interface used by the summarizer, query
// rewriter, and extractor for plain text-in/text-out LLM calls. It is a
// deliberately narrower surface than a full chat/tool-calling Provider: this
// service never needs tool calls, streaming, or multi-turn images.
package llm

import (
	"context"
	"strings"
)

// Completer issues a single text completion request: a system instruction
// plus a user prompt, returning the model's text response.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// IsServiceUnavailable reports whether err looks like a transient
// "temporarily unavailable" response from an upstream provider (HTTP 503,
// or Anthropic's overloaded_error) rather than a permanent failure. Provider
// SDKs don't expose a common structured status-code type, so this matches
// on the error text the SDKs already embed in their error's Error() string.
func IsServiceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "overloaded")
}
