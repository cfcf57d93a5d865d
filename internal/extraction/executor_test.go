package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipeline/internal/model"
	"docpipeline/internal/retry"
	"docpipeline/internal/vectorindex"
)

type fakeChunkStore struct {
	byID map[string]model.DocumentChunk
}

func (f *fakeChunkStore) GetChunksByIDs(ctx context.Context, ids []string) ([]model.DocumentChunk, error) {
	out := make([]model.DocumentChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeIndex struct {
	hits []vectorindex.Result
	err  error
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, collection string, dim int, metric string) error {
	return nil
}
func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []vectorindex.Point) error {
	return nil
}
func (f *fakeIndex) Query(ctx context.Context, collection string, vector []float32, k int, filter vectorindex.Filter) ([]vectorindex.Result, error) {
	return f.hits, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2}
	}
	return out, nil
}
func (fakeEmbedder) Name() string               { return "fake" }
func (fakeEmbedder) Dimension() int              { return 2 }
func (fakeEmbedder) Ping(context.Context) error { return nil }

type scriptedCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	i := s.calls
	s.calls++
	var resp string
	var err error
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return resp, err
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, BaseDelay: 0, MaxDelay: 0}
}

func TestExtractReturnsNormalizedValue(t *testing.T) {
	store := &fakeChunkStore{byID: map[string]model.DocumentChunk{
		"c1": {ID: "c1", Title: "t1", Summary: "revenue was $5M"},
	}}
	index := &fakeIndex{hits: []vectorindex.Result{{ID: "p1", Payload: map[string]any{"chunk_id": "c1"}}}}
	completer := &scriptedCompleter{responses: []string{"What is the revenue?", "  $5M \n\n\n"}}
	e := NewExecutor(store, index, fakeEmbedder{}, completer, fastRetry())

	doc := model.SourceDocument{ID: "doc-1", DisplayName: "Doc One"}
	cfg := model.MetadataConfiguration{Name: "revenue", ExtractionPrompt: "What is the revenue?"}

	value, err := e.Extract(context.Background(), doc, cfg, "idx-1")
	require.NoError(t, err)
	assert.Equal(t, "$5M", value)
}

func TestExtractFallsBackToNotFoundOnShortResponse(t *testing.T) {
	store := &fakeChunkStore{}
	index := &fakeIndex{}
	completer := &scriptedCompleter{responses: []string{"q", "-"}}
	e := NewExecutor(store, index, fakeEmbedder{}, completer, fastRetry())

	value, err := e.Extract(context.Background(), model.SourceDocument{}, model.MetadataConfiguration{}, "idx-1")
	require.NoError(t, err)
	assert.Equal(t, model.SentinelNotFound, value)
}

func TestExtractReturnsServiceUnavailableSentinelAfterRetries(t *testing.T) {
	store := &fakeChunkStore{}
	index := &fakeIndex{}
	completer := &scriptedCompleter{
		responses: []string{"q", "", ""},
		errs:      []error{nil, errors.New("upstream 503 service unavailable"), errors.New("upstream 503 service unavailable")},
	}
	e := NewExecutor(store, index, fakeEmbedder{}, completer, fastRetry())

	value, err := e.Extract(context.Background(), model.SourceDocument{}, model.MetadataConfiguration{}, "idx-1")
	require.NoError(t, err)
	assert.Equal(t, model.SentinelServiceUnavailable, value)
}

func TestExtractAppliesValidationRules(t *testing.T) {
	store := &fakeChunkStore{}
	index := &fakeIndex{}
	completer := &scriptedCompleter{responses: []string{"q", "not-a-number"}}
	e := NewExecutor(store, index, fakeEmbedder{}, completer, fastRetry())

	cfg := model.MetadataConfiguration{
		ExtractionPrompt: "q",
		ValidationRules:  &model.ValidationRules{Regex: `^\d+$`, Default: "0"},
	}
	value, err := e.Extract(context.Background(), model.SourceDocument{}, cfg, "idx-1")
	require.NoError(t, err)
	assert.Equal(t, "0", value)
}
