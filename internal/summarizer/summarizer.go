// Package summarizer turns document chunks into titled summaries with
// embeddings, running a bounded pool of concurrent LLM/embedding calls per
// document, per spec §4.3.
package summarizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"docpipeline/internal/chunker"
	"docpipeline/internal/embedder"
	"docpipeline/internal/llm"
	"docpipeline/internal/observability"
	"docpipeline/internal/retry"
	"docpipeline/internal/util"
)

// Result is the output of summarizing one chunk.
type Result struct {
	ChunkIndex int
	Title      string
	Summary    string
	Embedding  []float32
	// FellBackToRawText is true when the LLM call failed after retries and
	// the chunk's own text was used as both title-source and summary,
	// per spec §4.3's fallback behavior.
	FellBackToRawText bool
}

// Summarizer turns a batch of chunks into Results, bounded to at most
// maxWorkers concurrent LLM/embedding calls.
type Summarizer interface {
	SummarizeAll(ctx context.Context, chunks []chunker.Chunk) ([]Result, error)
}

const systemPrompt = "Summarize the following document excerpt in 2-4 sentences. Respond with the summary only, no preamble."

var headingRe = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

// LLMSummarizer composes a Completer (for title/summary generation) and an
// Embedder (for the fixed-dimension vector), retrying transient failures
// via retry.Do before falling back to raw text.
type LLMSummarizer struct {
	completer   llm.Completer
	embedder    embedder.Embedder
	retryConfig retry.Config
	maxWorkers  int
}

// New constructs an LLMSummarizer. maxWorkers is clamped to spec §4.3's
// ceiling of 8 concurrent calls per document.
func New(completer llm.Completer, emb embedder.Embedder, retryConfig retry.Config, maxWorkers int) *LLMSummarizer {
	if maxWorkers <= 0 || maxWorkers > 8 {
		maxWorkers = 8
	}
	return &LLMSummarizer{completer: completer, embedder: emb, retryConfig: retryConfig, maxWorkers: maxWorkers}
}

// SummarizeAll summarizes every chunk concurrently, bounded to maxWorkers
// in flight, and returns results in the same order as the input chunks.
func (s *LLMSummarizer) SummarizeAll(ctx context.Context, chunks []chunker.Chunk) ([]Result, error) {
	results := make([]Result, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			r, err := s.summarizeOne(gctx, c)
			if err != nil {
				return fmt.Errorf("summarize chunk %d: %w", c.Index, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *LLMSummarizer) summarizeOne(ctx context.Context, c chunker.Chunk) (Result, error) {
	var summary string
	err := retry.Do(ctx, s.retryConfig, retry.AlwaysRetryable, func(ctx context.Context) error {
		out, err := s.completer.Complete(ctx, systemPrompt, c.Text)
		if err != nil {
			return err
		}
		summary = strings.TrimSpace(out)
		return nil
	})

	fellBack := false
	if err != nil || summary == "" {
		summary = c.Text
		fellBack = true
		observability.LoggerWithTrace(ctx).Warn().
			Err(err).
			Int("chunk", c.Index).
			Int("prompt_tokens_est", util.CountTokens(c.Text)).
			Msg("summarizer_fell_back_to_raw_text")
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, []string{summary})
	if err != nil {
		return Result{}, fmt.Errorf("embed chunk %d: %w", c.Index, err)
	}
	if len(embeddings) == 0 {
		return Result{}, fmt.Errorf("embed chunk %d: empty response", c.Index)
	}

	return Result{
		ChunkIndex:        c.Index,
		Title:             deriveTitle(c.Text, summary),
		Summary:           summary,
		Embedding:         embeddings[0],
		FellBackToRawText: fellBack,
	}, nil
}

// deriveTitle looks for a markdown heading in the first five lines of the
// original chunk text; falling back to the first clause of the summary.
func deriveTitle(rawText, summary string) string {
	lines := strings.Split(rawText, "\n")
	for i, line := range lines {
		if i >= 5 {
			break
		}
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return firstClause(summary)
}

func firstClause(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ".\n"); idx > 0 {
		s = s[:idx]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
