package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipeline/internal/chunker"
	"docpipeline/internal/model"
	"docpipeline/internal/store"
	"docpipeline/internal/summarizer"
)

func noopLogger() zerolog.Logger { return zerolog.Nop() }

type fakeStore struct {
	mu          sync.Mutex
	pending     []model.SourceDocument
	chunks      map[string][]model.DocumentChunk
	transitions []model.DocumentStatus
}

func (f *fakeStore) ClaimPendingDocument(ctx context.Context) (model.SourceDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return model.SourceDocument{}, store.ErrNotFound
	}
	d := f.pending[0]
	f.pending = f.pending[1:]
	return d, nil
}

func (f *fakeStore) ReplaceChunks(ctx context.Context, documentID string, chunks []model.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chunks == nil {
		f.chunks = map[string][]model.DocumentChunk{}
	}
	f.chunks[documentID] = chunks
	return nil
}

func (f *fakeStore) UpdateDocumentStatus(ctx context.Context, id string, to model.DocumentStatus, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, to)
	return nil
}

type fakeBlobStore struct {
	data []byte
	err  error
}

func (f fakeBlobStore) Fetch(ctx context.Context, uri string) ([]byte, error) { return f.data, f.err }

type fakeChunker struct {
	chunks []chunker.Chunk
	err    error
}

func (f fakeChunker) Chunk(ctx context.Context, pdfBytes []byte) ([]chunker.Chunk, error) {
	return f.chunks, f.err
}

type fakeSummarizer struct{}

func (fakeSummarizer) SummarizeAll(ctx context.Context, chunks []chunker.Chunk) ([]summarizer.Result, error) {
	out := make([]summarizer.Result, len(chunks))
	for i, c := range chunks {
		out[i] = summarizer.Result{ChunkIndex: c.Index, Title: "t", Summary: "s", Embedding: []float32{0.1}}
	}
	return out, nil
}

func TestIngestOneTransitionsToDocumentStored(t *testing.T) {
	fs := &fakeStore{}
	p := newPool(fs, fakeBlobStore{data: []byte("bytes")}, fakeChunker{chunks: []chunker.Chunk{{Index: 0, Text: "hello"}}}, fakeSummarizer{}, 1, 0)

	doc := model.SourceDocument{ID: "doc-1", SourceURI: "uploads/doc-1.pdf"}
	err := p.ingestOne(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, fs.chunks["doc-1"], 1)
	assert.Equal(t, "t", fs.chunks["doc-1"][0].Title)
}

func TestIngestOneFailsOnEmptyChunks(t *testing.T) {
	fs := &fakeStore{}
	p := newPool(fs, fakeBlobStore{data: []byte("bytes")}, fakeChunker{chunks: nil}, fakeSummarizer{}, 1, 0)

	err := p.ingestOne(context.Background(), model.SourceDocument{ID: "doc-2"})
	assert.Error(t, err)
}

func TestIngestOneFailsOnBlobFetchError(t *testing.T) {
	fs := &fakeStore{}
	p := newPool(fs, fakeBlobStore{err: errors.New("not found")}, fakeChunker{}, fakeSummarizer{}, 1, 0)

	err := p.ingestOne(context.Background(), model.SourceDocument{ID: "doc-3"})
	assert.Error(t, err)
}

func TestProcessOneNoOpWhenNothingPending(t *testing.T) {
	fs := &fakeStore{}
	p := newPool(fs, fakeBlobStore{}, fakeChunker{}, fakeSummarizer{}, 1, 0)
	p.processOne(context.Background(), noopLogger())
	assert.Empty(t, fs.transitions)
}
