// Package vectorindex adapts the vector-store dependencies demonstrated in
// the example pack (Qdrant and pgvector-via-pgx) behind one VectorIndex
// interface, generalized from the teacher's single-fixed-collection
// qdrant_vector.go/postgres_vector.go to per-Collection named indexes, per
// spec §4.4.
package vectorindex

import "context"

// Point is one (id, vector, payload) tuple to upsert. Payload must carry at
// least source_document_name, document_id, and chunk_id per spec §4.4;
// callers add chunk_title, has_table, and any domain tags on top.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Result is one similarity-query hit.
type Result struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Filter is a simple conjunctive equality predicate over payload fields.
type Filter map[string]string

// VectorIndex persists (id, vector, payload) points into named collections
// and serves filtered similarity queries. Upserting an existing id replaces
// the point atomically (spec §4.4's idempotency requirement).
type VectorIndex interface {
	// EnsureCollection creates the named collection with the given
	// dimension/metric if it doesn't already exist.
	EnsureCollection(ctx context.Context, collection string, dim int, metric string) error
	// Upsert writes a batch of points into collection in one call.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Query returns the k nearest points to vector, optionally constrained
	// by filter, ordered by similarity (best first).
	Query(ctx context.Context, collection string, vector []float32, k int, filter Filter) ([]Result, error)
}
