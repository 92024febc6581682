// Package billing is the tenant-scoped business data store read by the
// context assembler and written by the action executor. Every query filters
// on tenant_id.
package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist within the tenant.
	ErrNotFound = errors.New("billing: not found")
	// ErrInvalidState is returned when a row exists but cannot transition.
	ErrInvalidState = errors.New("billing: invalid state transition")
)

const previewLimit = 5

// expiringWindowDays bounds the service preview lists; alerts narrow further.
const expiringWindowDays = 30

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements the assistant's read and write collaborators.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	if db == nil {
		panic("billing: pgx pool required")
	}
	return &PostgresStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
