package extraction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipeline/internal/model"
	"docpipeline/internal/store"
)

type fakeCoordinatorStore struct {
	mu          sync.Mutex
	collection  model.Collection
	group       model.MetadataGroup
	configs     []model.MetadataConfiguration
	memberships []model.CollectionMembership
	documents   map[string]model.SourceDocument
	job         model.ExtractionJob
	extracted   []model.ExtractedMetadata
}

func (f *fakeCoordinatorStore) GetCollection(ctx context.Context, id string) (model.Collection, error) {
	return f.collection, nil
}
func (f *fakeCoordinatorStore) GetGroup(ctx context.Context, id string) (model.MetadataGroup, error) {
	return f.group, nil
}
func (f *fakeCoordinatorStore) ListGroupConfigs(ctx context.Context, groupID string) ([]model.MetadataConfiguration, error) {
	return f.configs, nil
}
func (f *fakeCoordinatorStore) ListMemberships(ctx context.Context, collectionID string) ([]model.CollectionMembership, error) {
	return f.memberships, nil
}
func (f *fakeCoordinatorStore) GetDocument(ctx context.Context, id string) (model.SourceDocument, error) {
	d, ok := f.documents[id]
	if !ok {
		return model.SourceDocument{}, store.ErrNotFound
	}
	return d, nil
}
func (f *fakeCoordinatorStore) CreateExtractionJob(ctx context.Context, collectionID, groupID, createdBy string, totalDocuments int) (model.ExtractionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job = model.ExtractionJob{ID: "job-1", CollectionID: collectionID, GroupID: groupID, Status: model.ExtractionPending, TotalDocuments: totalDocuments}
	return f.job, nil
}
func (f *fakeCoordinatorStore) GetExtractionJob(ctx context.Context, id string) (model.ExtractionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.job, nil
}
func (f *fakeCoordinatorStore) StartExtractionJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job.Status = model.ExtractionProcessing
	return nil
}
func (f *fakeCoordinatorStore) RecordExtractionProgress(ctx context.Context, id string, processedDelta, failedDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job.ProcessedDocuments += processedDelta
	f.job.FailedDocuments += failedDelta
	return nil
}
func (f *fakeCoordinatorStore) CompleteExtractionJob(ctx context.Context, id string, status model.ExtractionJobStatus, errDetails string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job.Status = status
	now := time.Now()
	f.job.CompletedAt = &now
	return nil
}
func (f *fakeCoordinatorStore) UpsertExtractedMetadata(ctx context.Context, m model.ExtractedMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracted = append(f.extracted, m)
	return nil
}

type fakeExecutor struct {
	value string
	err   error
}

func (f fakeExecutor) Extract(ctx context.Context, doc model.SourceDocument, cfg model.MetadataConfiguration, vectorIndexName string) (string, error) {
	return f.value, f.err
}

func TestCoordinatorRunCompletesSuccessfully(t *testing.T) {
	fs := &fakeCoordinatorStore{
		collection: model.Collection{ID: "col-1", VectorIndexName: "idx-1"},
		group:      model.MetadataGroup{ID: "grp-1"},
		configs:    []model.MetadataConfiguration{{Name: "revenue"}},
		memberships: []model.CollectionMembership{{CollectionID: "col-1", DocumentID: "doc-1"}},
		documents: map[string]model.SourceDocument{
			"doc-1": {ID: "doc-1", Status: model.StatusReady},
		},
	}
	c := newCoordinator(fs, fakeExecutor{value: "42"})
	c.interCallDelay = 0
	c.errorDelay = 0

	job, err := c.CreateJob(context.Background(), "col-1", "grp-1", "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, job.TotalDocuments)

	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.job.Status == model.ExtractionCompleted
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, fs.extracted, 1)
	assert.Equal(t, "42", fs.extracted[0].ExtractedValue)
}

func TestCoordinatorCreateJobFailsWithNoEligibleDocuments(t *testing.T) {
	fs := &fakeCoordinatorStore{
		collection: model.Collection{ID: "col-1"},
		group:      model.MetadataGroup{ID: "grp-1"},
	}
	c := newCoordinator(fs, fakeExecutor{})
	_, err := c.CreateJob(context.Background(), "col-1", "grp-1", "tester")
	assert.Error(t, err)
}
