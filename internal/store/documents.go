package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docpipeline/internal/model"
)

// CreateDocument inserts a new SourceDocument in PENDING status.
func (s *Store) CreateDocument(ctx context.Context, d model.SourceDocument) (model.SourceDocument, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = model.StatusPending
	row := s.pool.QueryRow(ctx, `
INSERT INTO source_documents (id, display_name, source_uri, entity_label, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, display_name, source_uri, entity_label, status, status_detail, metadata_extracted, created_at, updated_at`,
		d.ID, d.DisplayName, d.SourceURI, d.EntityLabel, d.Status)
	return scanDocument(row)
}

// GetDocument looks up a SourceDocument by id.
func (s *Store) GetDocument(ctx context.Context, id string) (model.SourceDocument, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, display_name, source_uri, entity_label, status, status_detail, metadata_extracted, created_at, updated_at
FROM source_documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SourceDocument{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns every SourceDocument, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]model.SourceDocument, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, display_name, source_uri, entity_label, status, status_detail, metadata_extracted, created_at, updated_at
FROM source_documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.SourceDocument
	for rows.Next() {
		d, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ClaimPendingDocument atomically claims one PENDING document for ingestion,
// transitioning it to PROCESSING, per spec §4.5's compare-and-set claim.
// Returns ErrNotFound if no PENDING document is available.
func (s *Store) ClaimPendingDocument(ctx context.Context) (model.SourceDocument, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE source_documents
SET status = 'PROCESSING', updated_at = NOW()
WHERE id = (
    SELECT id FROM source_documents
    WHERE status = 'PENDING'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING id, display_name, source_uri, entity_label, status, status_detail, metadata_extracted, created_at, updated_at`)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SourceDocument{}, ErrNotFound
	}
	return d, err
}

// ClaimDocumentStoredForIndexing atomically claims one DOCUMENT_STORED
// document, transitioning it to INDEXING, per spec §4.7's claim query.
func (s *Store) ClaimDocumentStoredForIndexing(ctx context.Context) (model.SourceDocument, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE source_documents
SET status = 'INDEXING', updated_at = NOW()
WHERE id = (
    SELECT id FROM source_documents
    WHERE status = 'DOCUMENT_STORED'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING id, display_name, source_uri, entity_label, status, status_detail, metadata_extracted, created_at, updated_at`)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SourceDocument{}, ErrNotFound
	}
	return d, err
}

// ClaimReadyDocumentForReindex atomically claims one READY document that is
// named by a pending or processing reindex IndexingJob, transitioning it to
// INDEXING, per spec §4.7's reindex edge (READY -> INDEXING). Returns
// ErrNotFound if no such document is currently available.
func (s *Store) ClaimReadyDocumentForReindex(ctx context.Context) (model.SourceDocument, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE source_documents
SET status = 'INDEXING', updated_at = NOW()
WHERE id = (
    SELECT sd.id
    FROM source_documents sd
    JOIN indexing_jobs ij ON sd.id = ANY(ij.document_ids)
    WHERE sd.status = 'READY'
      AND ij.job_type = 'reindex'
      AND ij.status IN ('pending', 'processing')
    ORDER BY sd.created_at ASC
    FOR UPDATE OF sd SKIP LOCKED
    LIMIT 1
)
RETURNING id, display_name, source_uri, entity_label, status, status_detail, metadata_extracted, created_at, updated_at`)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SourceDocument{}, ErrNotFound
	}
	return d, err
}

// UpdateDocumentStatus transitions a document's status after checking the
// move is legal per model.AllowedTransition, so the "status advances only in
// the allowed direction" invariant is enforced in exactly one place.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, to model.DocumentStatus, detail string) error {
	current, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !model.AllowedTransition(current.Status, to) {
		return fmt.Errorf("%w: %s -> %s not allowed", ErrConflict, current.Status, to)
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE source_documents SET status = $1, status_detail = $2, updated_at = NOW() WHERE id = $3`,
		to, detail, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMetadataExtracted marks a document as having completed at least one
// extraction pass.
func (s *Store) SetMetadataExtracted(ctx context.Context, id string, extracted bool) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE source_documents SET metadata_extracted = $1, updated_at = NOW() WHERE id = $2`, extracted, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (model.SourceDocument, error) {
	var d model.SourceDocument
	err := row.Scan(&d.ID, &d.DisplayName, &d.SourceURI, &d.EntityLabel, &d.Status, &d.StatusDetail,
		&d.MetadataExtracted, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func scanDocumentRow(rows pgx.Rows) (model.SourceDocument, error) {
	var d model.SourceDocument
	err := rows.Scan(&d.ID, &d.DisplayName, &d.SourceURI, &d.EntityLabel, &d.Status, &d.StatusDetail,
		&d.MetadataExtracted, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
