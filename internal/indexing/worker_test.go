package indexing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipeline/internal/model"
	"docpipeline/internal/store"
	"docpipeline/internal/vectorindex"
)

type fakeWorkerStore struct {
	mu           sync.Mutex
	ready        []model.SourceDocument
	reindexReady []model.SourceDocument
	chunks       map[string][]model.DocumentChunk
	memberships  map[string][]model.CollectionMembership
	collections  []model.Collection
	docStatus    map[string]model.DocumentStatus
	memStatus    map[string]model.MembershipIndexingStatus
}

func (f *fakeWorkerStore) ClaimDocumentStoredForIndexing(ctx context.Context) (model.SourceDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ready) == 0 {
		return model.SourceDocument{}, store.ErrNotFound
	}
	d := f.ready[0]
	f.ready = f.ready[1:]
	return d, nil
}

func (f *fakeWorkerStore) ClaimReadyDocumentForReindex(ctx context.Context) (model.SourceDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reindexReady) == 0 {
		return model.SourceDocument{}, store.ErrNotFound
	}
	d := f.reindexReady[0]
	f.reindexReady = f.reindexReady[1:]
	return d, nil
}

func (f *fakeWorkerStore) ListChunksByDocument(ctx context.Context, documentID string) ([]model.DocumentChunk, error) {
	return f.chunks[documentID], nil
}

func (f *fakeWorkerStore) UpdateDocumentStatus(ctx context.Context, id string, to model.DocumentStatus, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docStatus == nil {
		f.docStatus = map[string]model.DocumentStatus{}
	}
	f.docStatus[id] = to
	return nil
}

func (f *fakeWorkerStore) UpdateMembershipStatus(ctx context.Context, collectionID, documentID string, status model.MembershipIndexingStatus, progress int, errMsg, vectorPointID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memStatus == nil {
		f.memStatus = map[string]model.MembershipIndexingStatus{}
	}
	f.memStatus[collectionID+"/"+documentID] = status
	return nil
}

func (f *fakeWorkerStore) ListCollections(ctx context.Context) ([]model.Collection, error) {
	return f.collections, nil
}

func (f *fakeWorkerStore) ListMemberships(ctx context.Context, collectionID string) ([]model.CollectionMembership, error) {
	return f.memberships[collectionID], nil
}

type fakeVectorIndex struct {
	mu      sync.Mutex
	ensured []string
	points  map[string][]vectorindex.Point
	failing bool
}

func (f *fakeVectorIndex) EnsureCollection(ctx context.Context, collection string, dim int, metric string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, collection)
	return nil
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, collection string, points []vectorindex.Point) error {
	if f.failing {
		return errors.New("upsert failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points == nil {
		f.points = map[string][]vectorindex.Point{}
	}
	f.points[collection] = append(f.points[collection], points...)
	return nil
}

func (f *fakeVectorIndex) Query(ctx context.Context, collection string, vector []float32, k int, filter vectorindex.Filter) ([]vectorindex.Result, error) {
	return nil, nil
}

type fakeWorkerEmbedder struct{}

func (fakeWorkerEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (fakeWorkerEmbedder) Name() string          { return "fake" }
func (fakeWorkerEmbedder) Dimension() int        { return 2 }
func (fakeWorkerEmbedder) Ping(context.Context) error { return nil }

func TestIndexDocumentUpsertsAndAdvancesToReady(t *testing.T) {
	fs := &fakeWorkerStore{
		chunks: map[string][]model.DocumentChunk{
			"doc-1": {{ID: "c1", DocumentID: "doc-1", ChunkIndex: 0, Title: "t1", Summary: "s1"}},
		},
		collections: []model.Collection{{ID: "col-1", Name: "My Collection", VectorIndexName: ""}},
		memberships: map[string][]model.CollectionMembership{
			"col-1": {{CollectionID: "col-1", DocumentID: "doc-1"}},
		},
	}
	vi := &fakeVectorIndex{}
	w := newWorker(fs, vi, fakeWorkerEmbedder{}, 2, "cosine", nil)

	doc := model.SourceDocument{ID: "doc-1", DisplayName: "Doc One"}
	err := w.indexDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, model.StatusReady, fs.docStatus["doc-1"])
	assert.Equal(t, model.MembershipIndexed, fs.memStatus["col-1/doc-1"])
	require.Len(t, vi.points, 1)
}

func TestIndexDocumentMarksFailedOnUpsertError(t *testing.T) {
	fs := &fakeWorkerStore{
		chunks: map[string][]model.DocumentChunk{
			"doc-2": {{ID: "c1", DocumentID: "doc-2", ChunkIndex: 0}},
		},
		collections: []model.Collection{{ID: "col-1", Name: "C"}},
		memberships: map[string][]model.CollectionMembership{
			"col-1": {{CollectionID: "col-1", DocumentID: "doc-2"}},
		},
	}
	vi := &fakeVectorIndex{failing: true}
	w := newWorker(fs, vi, fakeWorkerEmbedder{}, 2, "cosine", nil)

	err := w.indexDocument(context.Background(), model.SourceDocument{ID: "doc-2"})
	assert.Error(t, err)
	assert.Equal(t, model.MembershipFailed, fs.memStatus["col-1/doc-2"])
}

func TestProcessOneNoOpWhenNothingReady(t *testing.T) {
	fs := &fakeWorkerStore{}
	w := newWorker(fs, &fakeVectorIndex{}, fakeWorkerEmbedder{}, 2, "cosine", nil)
	err := w.ProcessOne(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessOneFallsBackToReindexClaimWhenNoFreshDocuments(t *testing.T) {
	fs := &fakeWorkerStore{
		reindexReady: []model.SourceDocument{{ID: "doc-3", DisplayName: "Doc Three"}},
		chunks: map[string][]model.DocumentChunk{
			"doc-3": {{ID: "c1", DocumentID: "doc-3", ChunkIndex: 0, Title: "t1", Summary: "s1"}},
		},
		collections: []model.Collection{{ID: "col-1", Name: "C"}},
		memberships: map[string][]model.CollectionMembership{
			"col-1": {{CollectionID: "col-1", DocumentID: "doc-3"}},
		},
	}
	w := newWorker(fs, &fakeVectorIndex{}, fakeWorkerEmbedder{}, 2, "cosine", nil)

	err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, fs.docStatus["doc-3"])
	assert.Empty(t, fs.reindexReady)
}
