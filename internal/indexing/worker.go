package indexing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docpipeline/internal/embedder"
	"docpipeline/internal/model"
	"docpipeline/internal/observability"
	"docpipeline/internal/store"
	"docpipeline/internal/vectorindex"
)

// workerStore is the narrow store surface Worker needs.
type workerStore interface {
	ClaimDocumentStoredForIndexing(ctx context.Context) (model.SourceDocument, error)
	ClaimReadyDocumentForReindex(ctx context.Context) (model.SourceDocument, error)
	ListChunksByDocument(ctx context.Context, documentID string) ([]model.DocumentChunk, error)
	UpdateDocumentStatus(ctx context.Context, id string, to model.DocumentStatus, detail string) error
	UpdateMembershipStatus(ctx context.Context, collectionID, documentID string, status model.MembershipIndexingStatus, progress int, errMsg, vectorPointID string) error
	ListCollections(ctx context.Context) ([]model.Collection, error)
	ListMemberships(ctx context.Context, collectionID string) ([]model.CollectionMembership, error)
}

// Worker drains DOCUMENT_STORED documents to READY, and READY documents
// named by a reindex IndexingJob back through INDEXING to READY, reusing
// the ingestion pool's claim-then-process shape (spec §4.7's "actual
// indexing worker, part of C6"). Polls on a ticker; the Coordinator's
// notify channel is consumed only to wake the poll early. Per spec, chunk
// embeddings are never persisted relationally (§3's DocumentChunk note);
// this Worker re-embeds each chunk's summary immediately before upserting
// it.
type Worker struct {
	store        workerStore
	index        vectorindex.VectorIndex
	embedder     embedder.Embedder
	dim          int
	metric       string
	phaseTimeout time.Duration
	pollInterval time.Duration
	wake         <-chan string
}

// NewWorker constructs a Worker. wake may be nil if no early-wake channel
// is available; the worker still makes progress via its poll ticker.
func NewWorker(st *store.Store, index vectorindex.VectorIndex, emb embedder.Embedder, dim int, metric string, wake <-chan string) *Worker {
	return newWorker(st, index, emb, dim, metric, wake)
}

func newWorker(st workerStore, index vectorindex.VectorIndex, emb embedder.Embedder, dim int, metric string, wake <-chan string) *Worker {
	return &Worker{
		store:        st,
		index:        index,
		embedder:     emb,
		dim:          dim,
		metric:       metric,
		phaseTimeout: defaultWorkerPhaseTimeout,
		pollInterval: 2 * time.Second,
		wake:         wake,
	}
}

// Run processes DOCUMENT_STORED documents until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	log := observability.LoggerWithTrace(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			w.drain(ctx, log)
		case <-ticker.C:
			w.drain(ctx, log)
		}
	}
}

// drain processes every currently-claimable document before returning,
// so a single notification (or tick) clears the whole backlog rather than
// indexing one document per wakeup.
func (w *Worker) drain(ctx context.Context, log *zerolog.Logger) {
	for {
		err := w.ProcessOne(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		log.Error().Err(err).Msg("indexing_process_one_error")
		return
	}
}

// ProcessOne claims and indexes at most one document: a fresh
// DOCUMENT_STORED document takes priority, falling back to a READY
// document named by a pending/processing reindex IndexingJob. Returns
// store.ErrNotFound if neither is currently available.
func (w *Worker) ProcessOne(ctx context.Context) error {
	doc, err := w.store.ClaimDocumentStoredForIndexing(ctx)
	if errors.Is(err, store.ErrNotFound) {
		doc, err = w.store.ClaimReadyDocumentForReindex(ctx)
	}
	if err != nil {
		return err
	}

	phaseCtx, cancel := context.WithTimeout(ctx, w.phaseTimeout)
	defer cancel()

	if err := w.indexDocument(phaseCtx, doc); err != nil {
		_ = w.store.UpdateDocumentStatus(ctx, doc.ID, model.StatusFailed, "index: "+truncate(err.Error(), 500))
		w.markMembershipsFailed(ctx, doc.ID, err.Error())
		return err
	}
	return nil
}

func (w *Worker) indexDocument(ctx context.Context, doc model.SourceDocument) error {
	chunks, err := w.store.ListChunksByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}

	collections, err := w.collectionsForDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("resolve collections: %w", err)
	}

	summaries := make([]string, len(chunks))
	for i, c := range chunks {
		summaries[i] = c.Summary
	}
	vectors, err := w.embedder.EmbedBatch(ctx, summaries)
	if err != nil {
		return fmt.Errorf("embed chunk summaries: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunk summaries: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for _, col := range collections {
		_ = w.store.UpdateMembershipStatus(ctx, col.ID, doc.ID, model.MembershipIndexing, 0, "", "")
		indexName, err := EnsureVectorIndexName(ctx, w.index, col, w.dim, w.metric)
		if err != nil {
			return err
		}

		points := make([]vectorindex.Point, 0, len(chunks))
		for i, c := range chunks {
			points = append(points, vectorindex.Point{
				ID:     uuid.NewString(),
				Vector: vectors[i],
				Payload: map[string]any{
					"source_document_name": doc.DisplayName,
					"document_id":           doc.ID,
					"chunk_id":              c.ID,
					"chunk_title":           c.Title,
					"has_table":             c.HasTable,
					"entity_label":          doc.EntityLabel,
				},
			})
		}
		if err := w.index.Upsert(ctx, indexName, points); err != nil {
			_ = w.store.UpdateMembershipStatus(ctx, col.ID, doc.ID, model.MembershipFailed, 0, err.Error(), "")
			return fmt.Errorf("upsert points: %w", err)
		}
		lastPoint := ""
		if len(points) > 0 {
			lastPoint = points[len(points)-1].ID
		}
		_ = w.store.UpdateMembershipStatus(ctx, col.ID, doc.ID, model.MembershipIndexed, 100, "", lastPoint)
	}

	return w.store.UpdateDocumentStatus(ctx, doc.ID, model.StatusReady, "")
}

func (w *Worker) collectionsForDocument(ctx context.Context, documentID string) ([]model.Collection, error) {
	all, err := w.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Collection
	for _, col := range all {
		members, err := w.store.ListMemberships(ctx, col.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.DocumentID == documentID {
				out = append(out, col)
				break
			}
		}
	}
	return out, nil
}

func (w *Worker) markMembershipsFailed(ctx context.Context, documentID, reason string) {
	collections, err := w.collectionsForDocument(ctx, documentID)
	if err != nil {
		return
	}
	for _, col := range collections {
		_ = w.store.UpdateMembershipStatus(ctx, col.ID, documentID, model.MembershipFailed, 0, reason, "")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
