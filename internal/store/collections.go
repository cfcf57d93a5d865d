package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docpipeline/internal/model"
)

// CreateCollection inserts a new Collection. vectorIndexName must already be
// sanitized by the indexing package (see indexing.SanitizeIndexName). Returns
// ErrConflict wrapped with the offending name if a Collection with that name
// already exists (spec §6's "duplicate name" error case).
func (s *Store) CreateCollection(ctx context.Context, c model.Collection) (model.Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO collections (id, name, description, vector_index_name, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, description, vector_index_name, total_documents, indexed_documents, failed_documents, created_by, created_at, updated_at`,
		c.ID, c.Name, c.Description, c.VectorIndexName, c.CreatedBy)
	out, err := scanCollection(row)
	if err != nil && isUniqueViolation(err) {
		return model.Collection{}, fmt.Errorf("%w: collection name %q already exists", ErrConflict, c.Name)
	}
	return out, err
}

// GetCollection looks up a Collection by id.
func (s *Store) GetCollection(ctx context.Context, id string) (model.Collection, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, name, description, vector_index_name, total_documents, indexed_documents, failed_documents, created_by, created_at, updated_at
FROM collections WHERE id = $1`, id)
	c, err := scanCollection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Collection{}, ErrNotFound
	}
	return c, err
}

// ListCollections returns every Collection.
func (s *Store) ListCollections(ctx context.Context) ([]model.Collection, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, description, vector_index_name, total_documents, indexed_documents, failed_documents, created_by, created_at, updated_at
FROM collections ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Collection
	for rows.Next() {
		c, err := scanCollectionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddMembership associates a document with a collection in 'pending'
// indexing status, bumping the collection's total_documents counter.
func (s *Store) AddMembership(ctx context.Context, collectionID, documentID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO collection_memberships (collection_id, document_id, indexing_status)
VALUES ($1, $2, 'pending')
ON CONFLICT (collection_id, document_id) DO NOTHING`, collectionID, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE collections SET total_documents = total_documents + 1, updated_at = NOW() WHERE id = $1`,
		collectionID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateMembershipStatus transitions a CollectionMembership's indexing
// status and, on terminal states, updates the parent collection's
// aggregate counters.
func (s *Store) UpdateMembershipStatus(ctx context.Context, collectionID, documentID string, status model.MembershipIndexingStatus, progress int, errMsg, vectorPointID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
UPDATE collection_memberships
SET indexing_status = $1, indexing_progress = $2, error_message = $3, vector_point_id = $4,
    indexed_at = CASE WHEN $1 = 'indexed' THEN NOW() ELSE indexed_at END
WHERE collection_id = $5 AND document_id = $6`,
		status, progress, errMsg, vectorPointID, collectionID, documentID); err != nil {
		return err
	}

	switch status {
	case model.MembershipIndexed:
		if _, err := tx.Exec(ctx, `
UPDATE collections SET indexed_documents = indexed_documents + 1, updated_at = NOW() WHERE id = $1`,
			collectionID); err != nil {
			return err
		}
	case model.MembershipFailed:
		if _, err := tx.Exec(ctx, `
UPDATE collections SET failed_documents = failed_documents + 1, updated_at = NOW() WHERE id = $1`,
			collectionID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListMemberships returns every CollectionMembership for a collection.
func (s *Store) ListMemberships(ctx context.Context, collectionID string) ([]model.CollectionMembership, error) {
	rows, err := s.pool.Query(ctx, `
SELECT collection_id, document_id, indexing_status, indexing_progress, indexed_at, error_message, vector_point_id
FROM collection_memberships WHERE collection_id = $1`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CollectionMembership
	for rows.Next() {
		var m model.CollectionMembership
		if err := rows.Scan(&m.CollectionID, &m.DocumentID, &m.IndexingStatus, &m.IndexingProgress,
			&m.IndexedAt, &m.ErrorMessage, &m.VectorPointID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanCollection(row pgx.Row) (model.Collection, error) {
	var c model.Collection
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.VectorIndexName,
		&c.IndexingStats.TotalDocuments, &c.IndexingStats.IndexedDocuments, &c.IndexingStats.FailedDocuments,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanCollectionRow(rows pgx.Rows) (model.Collection, error) {
	var c model.Collection
	err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.VectorIndexName,
		&c.IndexingStats.TotalDocuments, &c.IndexingStats.IndexedDocuments, &c.IndexingStats.FailedDocuments,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
