package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docpipeline/internal/model"
)

// CreateIndexingJob inserts a new IndexingJob in 'pending' status, covering
// either a fresh index or a reindex over an explicit set of document ids.
func (s *Store) CreateIndexingJob(ctx context.Context, collectionID string, jobType model.IndexingJobType, documentIDs []string) (model.IndexingJob, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx, `
INSERT INTO indexing_jobs (id, collection_id, job_type, status, document_ids, total_documents)
VALUES ($1, $2, $3, 'pending', $4, $5)
RETURNING id, collection_id, job_type, status, document_ids, total_documents, created_at, completed_at, error_details`,
		id, collectionID, jobType, documentIDs, len(documentIDs))
	return scanIndexingJob(row)
}

// GetIndexingJob looks up an IndexingJob by id.
func (s *Store) GetIndexingJob(ctx context.Context, id string) (model.IndexingJob, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, collection_id, job_type, status, document_ids, total_documents, created_at, completed_at, error_details
FROM indexing_jobs WHERE id = $1`, id)
	j, err := scanIndexingJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.IndexingJob{}, ErrNotFound
	}
	return j, err
}

// StartIndexingJob transitions a job from 'pending' to 'processing'.
func (s *Store) StartIndexingJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE indexing_jobs SET status = 'processing' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CompleteIndexingJob marks a job 'completed' or 'failed' and stamps
// completed_at.
func (s *Store) CompleteIndexingJob(ctx context.Context, id string, status model.IndexingJobStatus, errDetails string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE indexing_jobs SET status = $1, completed_at = NOW(), error_details = $2 WHERE id = $3`,
		status, errDetails, id)
	return err
}

func scanIndexingJob(row pgx.Row) (model.IndexingJob, error) {
	var j model.IndexingJob
	err := row.Scan(&j.ID, &j.CollectionID, &j.Type, &j.Status, &j.DocumentIDs, &j.TotalDocuments,
		&j.CreatedAt, &j.CompletedAt, &j.ErrorDetails)
	return j, err
}
