// Package postgres implements the repo interfaces on plain database/sql
// with positional parameters, so stores work against both a live pool
// and test fakes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/repo"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}
