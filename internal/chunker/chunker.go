// Package chunker converts raw PDF document bytes into an ordered sequence
// of content chunks, preserving tabular blocks atomically.
package chunker

import (
	"context"
	"fmt"

	"docpipeline/internal/config"
)

// Chunk is one segment produced by a Chunker, ready for summarization.
type Chunk struct {
	Index        int
	Text         string
	HasTable     bool
}

// Chunker converts raw document bytes into an ordered list of Chunks.
type Chunker interface {
	Chunk(ctx context.Context, pdfBytes []byte) ([]Chunk, error)
}

// MarkdownChunker implements the PDF→markdown→table-atomic-segment→packed
// chunk pipeline of spec §4.2, generalized from the pack's fixed/markdown
// chunking strategies to respect atomic table segments.
type MarkdownChunker struct {
	ChunkSize    int
	ChunkOverlap int
}

// New constructs a MarkdownChunker from the service's chunker configuration.
func New(cfg config.ChunkerConfig) *MarkdownChunker {
	return &MarkdownChunker{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}
}

// ErrNoContent is returned when a document yields no extractable markdown;
// callers must treat this as a terminal ingestion failure.
var ErrNoContent = fmt.Errorf("no extractable content")

func (c *MarkdownChunker) Chunk(ctx context.Context, pdfBytes []byte) ([]Chunk, error) {
	text, err := extractPDFText(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	markdown := reconstructMarkdown(text)
	if isBlank(markdown) {
		return nil, ErrNoContent
	}

	segments := segmentMarkdown(markdown)
	packed := packSegments(segments, c.ChunkSize, c.ChunkOverlap)
	if len(packed) == 0 {
		return nil, ErrNoContent
	}

	chunks := make([]Chunk, 0, len(packed))
	for i, p := range packed {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		chunks = append(chunks, Chunk{Index: i, Text: p.text, HasTable: p.hasTable})
	}
	return chunks, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
