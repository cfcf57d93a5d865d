// Package indexing implements the Indexing Job Coordinator (C7): given a
// collection and a set of documents, derives the vector index name,
// creates an IndexingJob, and drives DOCUMENT_STORED documents through
// INDEXING to READY (or FAILED), per spec §4.7.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"docpipeline/internal/model"
	"docpipeline/internal/store"
	"docpipeline/internal/vectorindex"
)

var nonWordRunRe = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeIndexName derives a vector-index name from a collection's display
// name, per spec §4.7: lowercase, non-word runs collapse to a single
// underscore, trimmed, suffixed with the collection id so two collections
// with colliding sanitized names still get distinct indexes.
func SanitizeIndexName(collectionName, collectionID string) string {
	base := nonWordRunRe.ReplaceAllString(strings.ToLower(collectionName), "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "collection"
	}
	return fmt.Sprintf("%s_%s", base, collectionID)
}

// coordinatorStore is the narrow store surface the coordinator needs.
type coordinatorStore interface {
	GetCollection(ctx context.Context, id string) (model.Collection, error)
	CreateIndexingJob(ctx context.Context, collectionID string, jobType model.IndexingJobType, documentIDs []string) (model.IndexingJob, error)
	AddMembership(ctx context.Context, collectionID, documentID string) error
	GetDocument(ctx context.Context, id string) (model.SourceDocument, error)
}

// Coordinator creates IndexingJobs and notifies an in-process Worker via a
// channel of job ids — an optimization, never the source of truth (the
// durable IndexingJob row is): per DESIGN NOTES §9, a worker restarted or
// lagging behind still discovers pending jobs by polling the store.
type Coordinator struct {
	store  coordinatorStore
	notify chan string
	dim    int
	metric string
}

// New constructs a Coordinator. dim/metric are the vector dimension and
// distance metric every collection's index is created with.
func New(st coordinatorStore, dim int, metric string) *Coordinator {
	return &Coordinator{store: st, notify: make(chan string, 64), dim: dim, metric: metric}
}

// Notifications exposes the work-notification channel for a Worker to
// consume.
func (c *Coordinator) Notifications() <-chan string { return c.notify }

// CreateJob validates the collection exists (its vector_index_name was
// already derived and persisted when the collection was created — see
// store.CreateCollection/SanitizeIndexName), filters documentIDs to those
// that actually exist (dropping unknown ids), creates the
// CollectionMembership rows and the IndexingJob, and emits a work
// notification.
func (c *Coordinator) CreateJob(ctx context.Context, collectionID string, documentIDs []string, jobType model.IndexingJobType) (model.IndexingJob, error) {
	col, err := c.store.GetCollection(ctx, collectionID)
	if err != nil {
		return model.IndexingJob{}, fmt.Errorf("get collection: %w", err)
	}

	valid := make([]string, 0, len(documentIDs))
	for _, id := range documentIDs {
		if _, err := c.store.GetDocument(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return model.IndexingJob{}, fmt.Errorf("get document %s: %w", id, err)
		}
		valid = append(valid, id)
	}

	for _, id := range valid {
		if err := c.store.AddMembership(ctx, col.ID, id); err != nil {
			return model.IndexingJob{}, fmt.Errorf("add membership: %w", err)
		}
	}

	job, err := c.store.CreateIndexingJob(ctx, col.ID, jobType, valid)
	if err != nil {
		return model.IndexingJob{}, fmt.Errorf("create indexing job: %w", err)
	}

	select {
	case c.notify <- job.ID:
	default:
		// Notification channel full: the Worker's periodic poll of
		// pending IndexingJob rows still picks this job up.
	}
	return job, nil
}

// EnsureVectorIndexName returns the collection's persisted vector_index_name,
// falling back to deriving one (without persisting it) for a legacy
// collection row that predates store.CreateCollection always setting it. In
// either case it ensures the named collection exists in the vector store
// itself, creating it with (dim, metric) if this is the first write to it.
func EnsureVectorIndexName(ctx context.Context, vi vectorindex.VectorIndex, col model.Collection, dim int, metric string) (string, error) {
	name := col.VectorIndexName
	if name == "" {
		name = SanitizeIndexName(col.Name, col.ID)
	}
	if err := vi.EnsureCollection(ctx, name, dim, metric); err != nil {
		return "", fmt.Errorf("ensure vector collection: %w", err)
	}
	return name, nil
}

// defaultWorkerPhaseTimeout is the indexing-phase wall-clock ceiling (spec §5).
const defaultWorkerPhaseTimeout = 5 * time.Minute
