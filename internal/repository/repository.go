package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist or a conditional
	// update matched nothing.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("repository: conflict")
)

const uniqueViolation = "23505"

// pgExecutor abstracts the pool and a transaction so repositories can run in
// either.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresDB is a pgExecutor that can open transactions (pgxpool.Pool, pgxmock).
type postgresDB interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repositories that share a transaction.
type Store interface {
	Users() UserRepository
	Pets() PetRepository
	Transfers() PetTransferRepository
	Codes() VerificationCodeRepository
	References() ReferenceRepository

	// WithinTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Calls nested inside fn reuse the
	// outer transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
