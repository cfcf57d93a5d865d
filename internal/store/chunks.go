package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docpipeline/internal/model"
)

// ReplaceChunks deletes any existing chunks for a document and inserts the
// given set in one go, used by the ingestion pipeline's chunk-persist step
// and by reindex to regenerate chunk rows from scratch.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []model.DocumentChunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		meta, err := json.Marshal(c.ChunkMetadata)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO document_chunks (id, document_id, chunk_index, title, summary, original_text, has_table, chunk_metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, documentID, c.ChunkIndex, c.Title, c.Summary, c.OriginalText, c.HasTable, meta); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetChunksByIDs fetches a set of chunks by id, used by the extraction
// executor to resolve vector-query hits (which carry only chunk_id in their
// payload) back to their summarized text.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]model.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, chunk_index, title, summary, original_text, has_table, chunk_metadata
FROM document_chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListChunksByDocument returns chunks for a document in index order.
func (s *Store) ListChunksByDocument(ctx context.Context, documentID string) ([]model.DocumentChunk, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, chunk_index, title, summary, original_text, has_table, chunk_metadata
FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func scanChunkRows(rows pgx.Rows) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	for rows.Next() {
		var c model.DocumentChunk
		var meta []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Title, &c.Summary,
			&c.OriginalText, &c.HasTable, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.ChunkMetadata); err != nil {
				return nil, err
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
