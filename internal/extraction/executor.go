// Package extraction implements the Extraction Job Coordinator (C8) and
// Extraction Executor (C9): per spec §4.8/§4.9, drives a collection's READY
// documents through a group's metadata configurations, retrieving supporting
// chunks from the vector index and calling an LLM to produce one value per
// (document, configuration).
package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"docpipeline/internal/cache"
	"docpipeline/internal/embedder"
	"docpipeline/internal/llm"
	"docpipeline/internal/model"
	"docpipeline/internal/retry"
	"docpipeline/internal/vectorindex"
)

const defaultRetrievalK = 25

// chunkStore is the narrow store surface the executor needs to resolve
// vector-query hits back to chunk text.
type chunkStore interface {
	GetChunksByIDs(ctx context.Context, ids []string) ([]model.DocumentChunk, error)
}

// Executor answers one (document, configuration) extraction request.
type Executor struct {
	store       chunkStore
	index       vectorindex.VectorIndex
	embedder    embedder.Embedder
	completer   llm.Completer
	retrieveK   int
	retryConfig retry.Config
	cache       *cache.ExtractedValueCache
}

// NewExecutor constructs an Executor. retryConfig should encode spec §4.9's
// 2s/4s/8s backoff over 3 retries (4 total attempts) on service-unavailable.
func NewExecutor(st chunkStore, index vectorindex.VectorIndex, emb embedder.Embedder, completer llm.Completer, retryConfig retry.Config) *Executor {
	return &Executor{store: st, index: index, embedder: emb, completer: completer, retrieveK: defaultRetrievalK, retryConfig: retryConfig}
}

// WithCache attaches a result cache, checked before every LLM call and
// populated after a successful one. c may be nil, in which case the executor
// behaves exactly as before.
func (e *Executor) WithCache(c *cache.ExtractedValueCache) *Executor {
	e.cache = c
	return e
}

var newlineCollapseRe = regexp.MustCompile(`\n{2,}`)

// Extract runs one (document, configuration) pair against vectorIndexName
// and returns the value to persist into ExtractedMetadata.ExtractedValue.
// It never returns an error for an upstream failure that has a defined
// sentinel outcome (Service Unavailable, Invalid Format); it returns an
// error only for failures with no such outcome (embedder/store failures),
// which the coordinator treats as a non-fatal, document-level failure.
func (e *Executor) Extract(ctx context.Context, doc model.SourceDocument, cfg model.MetadataConfiguration, vectorIndexName string) (string, error) {
	if cached, ok := e.cache.Get(ctx, doc.ID, cfg.ID, cfg.ExtractionPromptVersion); ok {
		return cached, nil
	}

	var query string
	if err := retry.Do(ctx, e.retryConfig, llm.IsServiceUnavailable, func(ctx context.Context) error {
		q, callErr := e.rewriteQuery(ctx, cfg.ExtractionPrompt)
		query = q
		return callErr
	}); err != nil {
		if llm.IsServiceUnavailable(err) {
			return model.SentinelServiceUnavailable, nil
		}
		return "", fmt.Errorf("rewrite query: %w", err)
	}

	vectors, err := e.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("embed query: no vector returned")
	}

	hits, err := e.index.Query(ctx, vectorIndexName, vectors[0], e.retrieveK, vectorindex.Filter{
		"source_document_name": doc.DisplayName,
	})
	if err != nil {
		return "", fmt.Errorf("query vector index: %w", err)
	}

	chunkIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		if id, ok := h.Payload["chunk_id"].(string); ok && id != "" {
			chunkIDs = append(chunkIDs, id)
		}
	}
	chunks, err := e.store.GetChunksByIDs(ctx, chunkIDs)
	if err != nil {
		return "", fmt.Errorf("resolve retrieved chunks: %w", err)
	}

	var raw string
	retryErr := retry.Do(ctx, e.retryConfig, llm.IsServiceUnavailable, func(ctx context.Context) error {
		out, callErr := e.completer.Complete(ctx, extractionSystemPrompt(), extractionUserPrompt(cfg, chunks))
		if callErr != nil {
			raw = ""
			return callErr
		}
		raw = out
		return nil
	})
	if retryErr != nil {
		if llm.IsServiceUnavailable(retryErr) {
			return model.SentinelServiceUnavailable, nil
		}
		return "", fmt.Errorf("extraction completion: %w", retryErr)
	}

	value := normalize(raw)
	result := e.validate(value, cfg.ValidationRules)
	if result != model.SentinelServiceUnavailable {
		e.cache.Set(ctx, doc.ID, cfg.ID, cfg.ExtractionPromptVersion, result)
	}
	return result, nil
}

func (e *Executor) rewriteQuery(ctx context.Context, extractionPrompt string) (string, error) {
	system := "Compose a single natural-language retrieval question covering every fact the instruction below asks for. Respond with only the question."
	return e.completer.Complete(ctx, system, extractionPrompt)
}

func extractionSystemPrompt() string {
	return "You extract one field from the provided document excerpts. " +
		"Respond with only the extracted value, nothing else. " +
		"If the value is not present in the excerpts, respond with exactly: Not Found"
}

func extractionUserPrompt(cfg model.MetadataConfiguration, chunks []model.DocumentChunk) string {
	var b strings.Builder
	b.WriteString("Instruction:\n")
	b.WriteString(cfg.ExtractionPrompt)
	b.WriteString("\n\nDocument excerpts:\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "- [%s] %s\n", c.Title, c.Summary)
	}
	return b.String()
}

// normalize applies spec §4.9's response normalization: trim whitespace,
// collapse repeated newlines, fold any occurrence of "Not Found" to the
// exact sentinel, and treat too-short responses as Not Found.
func normalize(raw string) string {
	v := strings.TrimSpace(raw)
	v = newlineCollapseRe.ReplaceAllString(v, "\n")
	if strings.Contains(v, model.SentinelNotFound) {
		return model.SentinelNotFound
	}
	if len(v) < 2 {
		return model.SentinelNotFound
	}
	return v
}

// validate enforces a configuration's validation_rules.regex, substituting
// the rules' default (or the Invalid Format sentinel) on mismatch. Sentinel
// values themselves are exempt from validation.
func (e *Executor) validate(value string, rules *model.ValidationRules) string {
	if value == model.SentinelNotFound || value == model.SentinelServiceUnavailable {
		return value
	}
	if rules == nil || rules.Regex == "" {
		return value
	}
	re, err := regexp.Compile(rules.Regex)
	if err != nil || re.MatchString(value) {
		return value
	}
	if rules.Default != "" {
		return rules.Default
	}
	return model.SentinelInvalidFormat
}
