package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	db      postgresDB
	exec    pgExecutor
	inTx    bool
	builder squirrel.StatementBuilderType
}

// NewPostgresStore wires a Store on top of a pool.
func NewPostgresStore(db postgresDB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		exec:    db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *PostgresStore) Users() UserRepository {
	return &userRepository{exec: s.exec}
}

func (s *PostgresStore) Pets() PetRepository {
	return &petRepository{exec: s.exec, builder: s.builder}
}

func (s *PostgresStore) Transfers() PetTransferRepository {
	return &petTransferRepository{exec: s.exec}
}

func (s *PostgresStore) Codes() VerificationCodeRepository {
	return &verificationCodeRepository{exec: s.exec}
}

func (s *PostgresStore) References() ReferenceRepository {
	return &referenceRepository{exec: s.exec}
}

// WithinTx implements Store.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txStore := &PostgresStore{db: s.db, exec: tx, inTx: true, builder: s.builder}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
