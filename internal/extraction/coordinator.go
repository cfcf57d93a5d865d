package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docpipeline/internal/indexing"
	"docpipeline/internal/model"
	"docpipeline/internal/store"
)

// ErrNoEligibleDocuments is returned when a collection has no READY member
// documents to extract from.
var ErrNoEligibleDocuments = errors.New("extraction: no eligible documents")

// coordinatorStore is the narrow store surface the coordinator needs.
type coordinatorStore interface {
	GetCollection(ctx context.Context, id string) (model.Collection, error)
	GetGroup(ctx context.Context, id string) (model.MetadataGroup, error)
	ListGroupConfigs(ctx context.Context, groupID string) ([]model.MetadataConfiguration, error)
	ListMemberships(ctx context.Context, collectionID string) ([]model.CollectionMembership, error)
	GetDocument(ctx context.Context, id string) (model.SourceDocument, error)
	CreateExtractionJob(ctx context.Context, collectionID, groupID, createdBy string, totalDocuments int) (model.ExtractionJob, error)
	GetExtractionJob(ctx context.Context, id string) (model.ExtractionJob, error)
	StartExtractionJob(ctx context.Context, id string) error
	RecordExtractionProgress(ctx context.Context, id string, processedDelta, failedDelta int) error
	CompleteExtractionJob(ctx context.Context, id string, status model.ExtractionJobStatus, errDetails string) error
	UpsertExtractedMetadata(ctx context.Context, m model.ExtractedMetadata) error
}

// executor performs one (document, configuration) extraction.
type executor interface {
	Extract(ctx context.Context, doc model.SourceDocument, cfg model.MetadataConfiguration, vectorIndexName string) (string, error)
}

// Coordinator drives ExtractionJobs: one goroutine per active job, strictly
// sequential across documents and configurations within a job to respect
// upstream provider quotas (spec §5).
type Coordinator struct {
	store            coordinatorStore
	exec             executor
	interCallDelay   time.Duration
	errorDelay       time.Duration
}

// New constructs a Coordinator with spec §4.8's default inter-call delays
// (1s between configurations, 2s after an error).
func New(st *store.Store, exec executor) *Coordinator {
	return newCoordinator(st, exec)
}

func newCoordinator(st coordinatorStore, exec executor) *Coordinator {
	return &Coordinator{store: st, exec: exec, interCallDelay: time.Second, errorDelay: 2 * time.Second}
}

// CreateJob enumerates the collection's READY member documents and the
// group's configurations, creates the ExtractionJob row, and launches the
// background driver goroutine. Returns the job immediately in 'pending'
// status.
func (c *Coordinator) CreateJob(ctx context.Context, collectionID, groupID, createdBy string) (model.ExtractionJob, error) {
	col, err := c.store.GetCollection(ctx, collectionID)
	if err != nil {
		return model.ExtractionJob{}, fmt.Errorf("get collection: %w", err)
	}
	if _, err := c.store.GetGroup(ctx, groupID); err != nil {
		return model.ExtractionJob{}, fmt.Errorf("get group: %w", err)
	}

	docs, err := c.readyDocuments(ctx, col.ID)
	if err != nil {
		return model.ExtractionJob{}, fmt.Errorf("enumerate ready documents: %w", err)
	}
	if len(docs) == 0 {
		return model.ExtractionJob{}, ErrNoEligibleDocuments
	}

	job, err := c.store.CreateExtractionJob(ctx, col.ID, groupID, createdBy, len(docs))
	if err != nil {
		return model.ExtractionJob{}, fmt.Errorf("create extraction job: %w", err)
	}

	go c.run(context.Background(), job.ID, docs)
	return job, nil
}

func (c *Coordinator) readyDocuments(ctx context.Context, collectionID string) ([]model.SourceDocument, error) {
	memberships, err := c.store.ListMemberships(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	docs := make([]model.SourceDocument, 0, len(memberships))
	for _, m := range memberships {
		doc, err := c.store.GetDocument(ctx, m.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if doc.Status == model.StatusReady {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// run is the background driver for one job: sequential across documents,
// sequential across configurations within a document, committing progress
// after each document per spec §4.8/§5.
func (c *Coordinator) run(ctx context.Context, jobID string, docs []model.SourceDocument) {
	if err := c.store.StartExtractionJob(ctx, jobID); err != nil {
		return
	}
	job, err := c.store.GetExtractionJob(ctx, jobID)
	if err != nil {
		return
	}

	configs, err := c.store.ListGroupConfigs(ctx, job.GroupID)
	if err != nil {
		_ = c.store.CompleteExtractionJob(ctx, jobID, model.ExtractionFailed, err.Error())
		return
	}

	col, err := c.store.GetCollection(ctx, job.CollectionID)
	if err != nil {
		_ = c.store.CompleteExtractionJob(ctx, jobID, model.ExtractionFailed, err.Error())
		return
	}

	vectorIndexName := col.VectorIndexName
	if vectorIndexName == "" {
		// Legacy row created before store.CreateCollection started
		// persisting this column; derive the same name the indexing
		// worker upserted its points under.
		vectorIndexName = indexing.SanitizeIndexName(col.Name, col.ID)
	}

	anyFailed := false
	for _, doc := range docs {
		if c.isCancelled(ctx, jobID) {
			return
		}

		docFailed := false
		for i, cfg := range configs {
			value, execErr := c.exec.Extract(ctx, doc, cfg, vectorIndexName)
			if execErr != nil {
				docFailed = true
				time.Sleep(c.errorDelay)
			} else {
				_ = c.store.UpsertExtractedMetadata(ctx, model.ExtractedMetadata{
					CollectionID: col.ID,
					DocumentID:   doc.ID,
					GroupID:      job.GroupID,
					MetadataName: cfg.Name,
					ExtractionJobID: jobID,
					ExtractedValue: value,
					ExtractedBy:  "extraction-coordinator",
				})
			}

			if i < len(configs)-1 {
				time.Sleep(c.interCallDelay)
			}

			if c.isCancelled(ctx, jobID) {
				return
			}
		}

		if docFailed {
			anyFailed = true
			_ = c.store.RecordExtractionProgress(ctx, jobID, 0, 1)
		} else {
			_ = c.store.RecordExtractionProgress(ctx, jobID, 1, 0)
		}
	}

	status := model.ExtractionCompleted
	if anyFailed {
		status = model.ExtractionFailed
	}
	_ = c.store.CompleteExtractionJob(ctx, jobID, status, "")
}

// isCancelled polls the job row for an externally-applied Stop (status
// already flipped to 'failed' by StopExtractionJob before this driver
// reached a terminal state itself).
func (c *Coordinator) isCancelled(ctx context.Context, jobID string) bool {
	job, err := c.store.GetExtractionJob(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Status == model.ExtractionFailed && job.CompletedAt != nil
}
