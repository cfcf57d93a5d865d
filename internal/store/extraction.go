package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docpipeline/internal/model"
)

// CreateExtractionJob inserts a new ExtractionJob in 'pending' status.
func (s *Store) CreateExtractionJob(ctx context.Context, collectionID, groupID, createdBy string, totalDocuments int) (model.ExtractionJob, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx, `
INSERT INTO extraction_jobs (id, collection_id, group_id, status, total_documents, created_by)
VALUES ($1, $2, $3, 'pending', $4, $5)
RETURNING id, collection_id, group_id, status, total_documents, processed_documents, failed_documents, started_at, completed_at, created_by, error_details`,
		id, collectionID, groupID, totalDocuments, createdBy)
	return scanExtractionJob(row)
}

// GetExtractionJob looks up an ExtractionJob by id.
func (s *Store) GetExtractionJob(ctx context.Context, id string) (model.ExtractionJob, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, collection_id, group_id, status, total_documents, processed_documents, failed_documents, started_at, completed_at, created_by, error_details
FROM extraction_jobs WHERE id = $1`, id)
	j, err := scanExtractionJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ExtractionJob{}, ErrNotFound
	}
	return j, err
}

// StartExtractionJob transitions a job to 'processing' and stamps started_at.
func (s *Store) StartExtractionJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE extraction_jobs SET status = 'processing', started_at = NOW() WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// StopExtractionJob cancels a job in 'pending' or 'processing' status, per
// spec §4.8: flips it to 'failed' with a fixed error detail. Returns
// ErrConflict if the job has already reached a terminal status.
func (s *Store) StopExtractionJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE extraction_jobs SET status = 'failed', completed_at = NOW(), error_details = 'Job stopped by user'
WHERE id = $1 AND status IN ('pending', 'processing')`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// RecordExtractionProgress increments processed/failed counters after each
// document is handled, per spec §4.8's per-document commit rule.
func (s *Store) RecordExtractionProgress(ctx context.Context, id string, processedDelta, failedDelta int) error {
	_, err := s.pool.Exec(ctx, `
UPDATE extraction_jobs SET processed_documents = processed_documents + $1, failed_documents = failed_documents + $2
WHERE id = $3`, processedDelta, failedDelta, id)
	return err
}

// CompleteExtractionJob marks a job 'completed' or 'failed' and stamps
// completed_at.
func (s *Store) CompleteExtractionJob(ctx context.Context, id string, status model.ExtractionJobStatus, errDetails string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE extraction_jobs SET status = $1, completed_at = NOW(), error_details = $2 WHERE id = $3`,
		status, errDetails, id)
	return err
}

// UpsertExtractedMetadata writes one field value, overwriting any prior
// value for the same (collection, document, group, name) key — re-running
// extraction for a document replaces its previous results per spec §4.9.
func (s *Store) UpsertExtractedMetadata(ctx context.Context, m model.ExtractedMetadata) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO extracted_metadata (collection_id, document_id, group_id, metadata_name, extraction_job_id, extracted_value, extracted_by, extracted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (collection_id, document_id, group_id, metadata_name) DO UPDATE SET
    extraction_job_id = EXCLUDED.extraction_job_id,
    extracted_value = EXCLUDED.extracted_value,
    extracted_by = EXCLUDED.extracted_by,
    extracted_at = EXCLUDED.extracted_at`,
		m.CollectionID, m.DocumentID, m.GroupID, m.MetadataName, m.ExtractionJobID, m.ExtractedValue, m.ExtractedBy)
	return err
}

// ExtractedMetadataFilter narrows ListExtractedMetadata beyond the
// required collection_id, per spec §6's `collection_id, filters` service
// operation signature. Zero-value fields are not applied.
type ExtractedMetadataFilter struct {
	DocumentID   string
	GroupID      string
	MetadataName string
}

// ListExtractedMetadata returns every extracted field for a collection,
// optionally narrowed by document, group, or configuration name.
func (s *Store) ListExtractedMetadata(ctx context.Context, collectionID string, filter ExtractedMetadataFilter) ([]model.ExtractedMetadata, error) {
	query := `
SELECT collection_id, document_id, group_id, metadata_name, extraction_job_id, extracted_value, extracted_by, extracted_at
FROM extracted_metadata WHERE collection_id = $1`
	args := []any{collectionID}

	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		query += fmt.Sprintf(" AND document_id = $%d", len(args))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		query += fmt.Sprintf(" AND group_id = $%d", len(args))
	}
	if filter.MetadataName != "" {
		args = append(args, filter.MetadataName)
		query += fmt.Sprintf(" AND metadata_name = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExtractedMetadata
	for rows.Next() {
		var m model.ExtractedMetadata
		var extractedAt time.Time
		if err := rows.Scan(&m.CollectionID, &m.DocumentID, &m.GroupID, &m.MetadataName,
			&m.ExtractionJobID, &m.ExtractedValue, &m.ExtractedBy, &extractedAt); err != nil {
			return nil, err
		}
		m.ExtractedAt = extractedAt
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanExtractionJob(row pgx.Row) (model.ExtractionJob, error) {
	var j model.ExtractionJob
	err := row.Scan(&j.ID, &j.CollectionID, &j.GroupID, &j.Status, &j.TotalDocuments,
		&j.ProcessedDocuments, &j.FailedDocuments, &j.StartedAt, &j.CompletedAt, &j.CreatedBy, &j.ErrorDetails)
	return j, err
}
