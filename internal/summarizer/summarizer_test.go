package summarizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipeline/internal/chunker"
	"docpipeline/internal/embedder"
	"docpipeline/internal/retry"
)

type fakeCompleter struct {
	fail   bool
	output string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.fail {
		return "", errors.New("upstream unavailable")
	}
	return f.output, nil
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestSummarizeAllSuccess(t *testing.T) {
	s := New(&fakeCompleter{output: "A concise summary."}, embedder.NewDeterministic(8, false, 1), fastRetry(), 2)

	chunks := []chunker.Chunk{
		{Index: 0, Text: "## Revenue\nTotal revenue rose 10%."},
		{Index: 1, Text: "Plain paragraph with no heading."},
	}
	results, err := s.SummarizeAll(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Revenue", results[0].Title)
	assert.False(t, results[0].FellBackToRawText)
	assert.Len(t, results[0].Embedding, 8)

	assert.NotEmpty(t, results[1].Title)
}

func TestSummarizeAllFallsBackOnCompleterFailure(t *testing.T) {
	s := New(&fakeCompleter{fail: true}, embedder.NewDeterministic(4, false, 1), fastRetry(), 1)

	chunks := []chunker.Chunk{{Index: 0, Text: "Some raw chunk text."}}
	results, err := s.SummarizeAll(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].FellBackToRawText)
	assert.Equal(t, "Some raw chunk text.", results[0].Summary)
}

func TestSummarizeAllPropagatesEmbedderError(t *testing.T) {
	s := New(&fakeCompleter{output: "ok"}, failingEmbedder{}, fastRetry(), 1)
	_, err := s.SummarizeAll(context.Background(), []chunker.Chunk{{Index: 0, Text: "x"}})
	assert.Error(t, err)
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedder down")
}
func (failingEmbedder) Name() string        { return "failing" }
func (failingEmbedder) Dimension() int      { return 1 }
func (failingEmbedder) Ping(context.Context) error { return nil }
