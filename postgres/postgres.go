// Package postgres implements reflex.Store on PostgreSQL via pgx.
package postgres

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/reflex"
)

// PGStore implements reflex.Store using PostgreSQL via pgx.
type PGStore struct {
	db     *pgxpool.Pool
	newUID func() string
}

var _ reflex.Store = (*PGStore)(nil)

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db, newUID: uuid.NewString}
}

// isNoRows checks if the error is a "no rows" error from pgx.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
