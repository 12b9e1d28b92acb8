package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/pet-registry/internal/domain"
)

// PetTransferRepository persists ownership transfer attempts. Every
// status-changing statement is conditional on status='pending' so terminal
// rows never change.
type PetTransferRepository interface {
	// Create inserts a pending transfer. ErrConflict means another pending
	// transfer exists for the pet.
	Create(ctx context.Context, transfer *domain.PetTransfer) error
	HasPending(ctx context.Context, petID string) (bool, error)
	FindPendingForUpdate(ctx context.Context, petID, toUserID, code string) (*domain.PetTransfer, error)
	MarkAccepted(ctx context.Context, id string, at time.Time) error
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	CancelPendingForPet(ctx context.Context, petID string, at time.Time) (int64, error)
	ListByPet(ctx context.Context, petID string) ([]domain.PetTransfer, error)
	ListPendingForRecipient(ctx context.Context, userID string) ([]domain.PetTransfer, error)
}

type petTransferRepository struct {
	exec pgExecutor
}

const transferColumns = `id, pet_id, from_user_id, to_user_id, code, status, created_at, accepted_at, cancelled_at, expires_at`

func (r *petTransferRepository) Create(ctx context.Context, transfer *domain.PetTransfer) error {
	const query = `
        INSERT INTO pet_transfers (pet_id, from_user_id, to_user_id, code, status, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`

	err := r.exec.QueryRow(ctx, query,
		transfer.PetID,
		transfer.FromUserID,
		transfer.ToUserID,
		transfer.Code,
		transfer.Status,
		transfer.CreatedAt,
		transfer.ExpiresAt,
	).Scan(&transfer.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *petTransferRepository) HasPending(ctx context.Context, petID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM pet_transfers WHERE pet_id=$1 AND status='pending')`

	var exists bool
	if err := r.exec.QueryRow(ctx, query, petID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *petTransferRepository) FindPendingForUpdate(ctx context.Context, petID, toUserID, code string) (*domain.PetTransfer, error) {
	const query = `
        SELECT ` + transferColumns + `
        FROM pet_transfers
        WHERE pet_id=$1 AND to_user_id=$2 AND code=$3 AND status='pending'
        FOR UPDATE`

	transfer, err := scanTransfer(r.exec.QueryRow(ctx, query, petID, toUserID, code))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return transfer, nil
}

func (r *petTransferRepository) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE pet_transfers SET status='accepted', accepted_at=$1 WHERE id=$2 AND status='pending'`
	return r.transition(ctx, query, at, id)
}

func (r *petTransferRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE pet_transfers SET status='cancelled', cancelled_at=$1 WHERE id=$2 AND status='pending'`
	return r.transition(ctx, query, at, id)
}

func (r *petTransferRepository) transition(ctx context.Context, query string, at time.Time, id string) error {
	cmd, err := r.exec.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *petTransferRepository) CancelPendingForPet(ctx context.Context, petID string, at time.Time) (int64, error) {
	const query = `UPDATE pet_transfers SET status='cancelled', cancelled_at=$1 WHERE pet_id=$2 AND status='pending'`

	cmd, err := r.exec.Exec(ctx, query, at, petID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *petTransferRepository) ListByPet(ctx context.Context, petID string) ([]domain.PetTransfer, error) {
	const query = `SELECT ` + transferColumns + ` FROM pet_transfers WHERE pet_id=$1 ORDER BY created_at DESC`
	return r.list(ctx, query, petID)
}

func (r *petTransferRepository) ListPendingForRecipient(ctx context.Context, userID string) ([]domain.PetTransfer, error) {
	const query = `SELECT ` + transferColumns + ` FROM pet_transfers WHERE to_user_id=$1 AND status='pending' ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *petTransferRepository) list(ctx context.Context, query string, arg any) ([]domain.PetTransfer, error) {
	rows, err := r.exec.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.PetTransfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *transfer)
	}
	return transfers, rows.Err()
}

func scanTransfer(row pgx.Row) (*domain.PetTransfer, error) {
	var transfer domain.PetTransfer
	if err := row.Scan(
		&transfer.ID,
		&transfer.PetID,
		&transfer.FromUserID,
		&transfer.ToUserID,
		&transfer.Code,
		&transfer.Status,
		&transfer.CreatedAt,
		&transfer.AcceptedAt,
		&transfer.CancelledAt,
		&transfer.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &transfer, nil
}
