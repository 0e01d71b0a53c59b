// Package postgres adapts the generated repository queries to the store
// interfaces used by the limiter, tracker, ledger, processor and worker.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/repository"
)

// Store implements every store interface on PostgreSQL.
type Store struct {
	db      *sql.DB
	queries *repository.Queries
}

// New creates a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db, queries: repository.New(db)}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(q *repository.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func notFoundOr(err error, op, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(op, resource, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}
