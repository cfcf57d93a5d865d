package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool (or a transaction) the store package
// needs. Satisfied directly by *pgxpool.Pool; lets tests substitute a
// transaction when a caller wants to batch several statements atomically.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	// ErrNotFound is returned when a lookup by id finds no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness or state-machine constraint
	// would be violated by the requested write.
	ErrConflict = errors.New("conflict")
)

// Store bundles every per-entity accessor behind the single DB connection
// pool, the way the teacher's persistence package groups its Postgres-backed
// stores under one pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-open, already-bootstrapped pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
