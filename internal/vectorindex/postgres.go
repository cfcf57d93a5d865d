package vectorindex

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var tableNameSafeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// PostgresIndex is a VectorIndex backed by the pgvector Postgres extension,
// selected by configuration as an interchangeable alternative to Qdrant
// (spec §4.4). Grounded on the teacher's postgres_vector.go, generalized
// from one fixed `embeddings` table to one table per Collection.
type PostgresIndex struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	ensured map[string]string // collection -> metric, once bootstrapped
}

// NewPostgresIndex wraps an already-open pool. Bootstraps the pgvector
// extension eagerly; per-collection tables are created lazily by
// EnsureCollection.
func NewPostgresIndex(ctx context.Context, pool *pgxpool.Pool) (*PostgresIndex, error) {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}
	return &PostgresIndex{pool: pool, ensured: make(map[string]string)}, nil
}

func (p *PostgresIndex) EnsureCollection(ctx context.Context, collection string, dim int, metric string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.ensured[collection]; ok {
		return nil
	}

	vecType := "vector"
	if dim > 0 {
		vecType = fmt.Sprintf("vector(%d)", dim)
	}
	table := tableName(collection)
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  vec %s,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb
)`, table, vecType))
	if err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	p.ensured[collection] = strings.ToLower(strings.TrimSpace(metric))
	return nil
}

func (p *PostgresIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	table := tableName(collection)
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pt := range points {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, vec, payload) VALUES ($1, $2::vector, $3)
ON CONFLICT (id) DO UPDATE SET vec = EXCLUDED.vec, payload = EXCLUDED.payload`, table),
			pt.ID, toVectorLiteral(pt.Vector), pt.Payload); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresIndex) Query(ctx context.Context, collection string, vector []float32, k int, filter Filter) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	table := tableName(collection)

	p.mu.Lock()
	metric := p.ensured[collection]
	p.mu.Unlock()

	op, scoreExpr := "<=>", "1 - (vec <=> $1::vector)"
	switch metric {
	case "l2", "euclidean":
		op, scoreExpr = "<->", "-(vec <-> $1::vector)"
	case "ip", "dot":
		op, scoreExpr = "<#>", "-(vec <#> $1::vector)"
	}

	args := []any{toVectorLiteral(vector), k}
	where := ""
	if len(filter) > 0 {
		where = "WHERE payload @> $3::jsonb"
		args = append(args, filterJSON(filter))
	}
	query := fmt.Sprintf(`SELECT id, %s AS score, payload FROM %s %s ORDER BY vec %s $1::vector LIMIT $2`,
		scoreExpr, table, where, op)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		var payload map[string]any
		if err := rows.Scan(&r.ID, &r.Score, &payload); err != nil {
			return nil, err
		}
		r.Payload = payload
		out = append(out, r)
	}
	return out, rows.Err()
}

func tableName(collection string) string {
	clean := tableNameSafeRe.ReplaceAllString(strings.ToLower(collection), "_")
	return "vec_" + clean
}

func toVectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}

func filterJSON(f Filter) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for k, v := range f {
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%q:%q", k, v)
	}
	b.WriteByte('}')
	return b.String()
}
