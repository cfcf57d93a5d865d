// Package ingestion drives PENDING SourceDocuments through the lifecycle
// state machine up to DOCUMENT_STORED, per spec §4.5: a fixed-size worker
// pool claims rows by compare-and-set, fetches bytes, chunks, summarizes,
// and persists — each phase a short, independently-committed transaction.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"docpipeline/internal/blobstore"
	"docpipeline/internal/chunker"
	"docpipeline/internal/model"
	"docpipeline/internal/observability"
	"docpipeline/internal/store"
	"docpipeline/internal/summarizer"
)

const maxStatusDetailLen = 500

// documentStore is the narrow slice of *store.Store the pool needs,
// satisfied structurally; lets tests substitute an in-memory fake instead
// of a live Postgres pool, following the teacher's per-concern
// persistence.XStore interfaces (e.g. persistence.ProjectsStore).
type documentStore interface {
	ClaimPendingDocument(ctx context.Context) (model.SourceDocument, error)
	ReplaceChunks(ctx context.Context, documentID string, chunks []model.DocumentChunk) error
	UpdateDocumentStatus(ctx context.Context, id string, to model.DocumentStatus, detail string) error
}

// Pool is a fixed-size set of workers pulling PENDING documents and driving
// them to DOCUMENT_STORED or FAILED. Grounded on the teacher's
// channel+sync.WaitGroup ingestion loop shape (internal/documents/pipeline.go),
// generalized to claim work from the relational store instead of an
// in-memory channel of pre-split chunks.
type Pool struct {
	store        documentStore
	blobs        blobstore.BlobStore
	chunker      chunker.Chunker
	summarizer   summarizer.Summarizer
	workers      int
	phaseTimeout time.Duration
	pollInterval time.Duration
}

// New constructs a Pool. workers defaults to 3 (W_ing in spec §5) and
// phaseTimeout to 5 minutes if unset.
func New(st *store.Store, blobs blobstore.BlobStore, ch chunker.Chunker, summ summarizer.Summarizer, workers int, phaseTimeout time.Duration) *Pool {
	return newPool(st, blobs, ch, summ, workers, phaseTimeout)
}

func newPool(st documentStore, blobs blobstore.BlobStore, ch chunker.Chunker, summ summarizer.Summarizer, workers int, phaseTimeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 3
	}
	if phaseTimeout <= 0 {
		phaseTimeout = 5 * time.Minute
	}
	return &Pool{
		store:        st,
		blobs:        blobs,
		chunker:      ch,
		summarizer:   summ,
		workers:      workers,
		phaseTimeout: phaseTimeout,
		pollInterval: 2 * time.Second,
	}
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < p.workers; i++ {
		go func(workerID int) {
			p.workerLoop(ctx, workerID)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < p.workers; i++ {
		<-done
	}
}

func (p *Pool) workerLoop(ctx context.Context, workerID int) {
	log := observability.LoggerWithTrace(ctx).With().Int("worker", workerID).Logger()
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processOne(ctx, log)
		}
	}
}

// processOne claims at most one PENDING document and drives it to
// DOCUMENT_STORED or FAILED. Returns immediately (no-op) if none is
// available.
func (p *Pool) processOne(ctx context.Context, log zerolog.Logger) {
	doc, err := p.store.ClaimPendingDocument(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("claim_pending_document_error")
		return
	}

	phaseCtx, cancel := context.WithTimeout(ctx, p.phaseTimeout)
	defer cancel()

	if err := p.ingestOne(phaseCtx, doc); err != nil {
		log.Error().Err(err).Str("document_id", doc.ID).Msg("ingest_document_failed")
		detail := truncate(err.Error(), maxStatusDetailLen)
		if uerr := p.store.UpdateDocumentStatus(ctx, doc.ID, model.StatusFailed, "ingest: "+detail); uerr != nil {
			log.Error().Err(uerr).Str("document_id", doc.ID).Msg("mark_failed_error")
		}
		return
	}
	log.Info().Str("document_id", doc.ID).Msg("ingest_document_stored")
}

func (p *Pool) ingestOne(ctx context.Context, doc model.SourceDocument) error {
	data, err := p.blobs.Fetch(ctx, doc.SourceURI)
	if err != nil {
		return fmt.Errorf("fetch blob: %w", err)
	}

	chunks, err := p.chunker.Chunk(ctx, data)
	if err != nil {
		if errors.Is(err, chunker.ErrNoContent) {
			return errors.New("No content could be extracted")
		}
		return fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return errors.New("No content could be extracted")
	}

	summaries, err := p.summarizer.SummarizeAll(ctx, chunks)
	if err != nil {
		return fmt.Errorf("summarize chunks: %w", err)
	}

	docChunks := make([]model.DocumentChunk, 0, len(chunks))
	byIndex := make(map[int]summarizer.Result, len(summaries))
	for _, r := range summaries {
		byIndex[r.ChunkIndex] = r
	}
	for _, c := range chunks {
		r := byIndex[c.Index]
		docChunks = append(docChunks, model.DocumentChunk{
			DocumentID:   doc.ID,
			ChunkIndex:   c.Index,
			Title:        r.Title,
			Summary:      r.Summary,
			OriginalText: c.Text,
			HasTable:     c.HasTable,
		})
	}

	if err := p.store.ReplaceChunks(ctx, doc.ID, docChunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, model.StatusDocumentStored, ""); err != nil {
		return fmt.Errorf("transition document_stored: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
