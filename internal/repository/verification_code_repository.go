package repository

import (
	"context"
	"time"

	"github.com/spec-kit/pet-registry/internal/domain"
)

// VerificationCodeRepository manages one-time email verification codes.
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *domain.VerificationCode) error
	// HasUnusedSince reports whether the user has an unused code created at or
	// after since.
	HasUnusedSince(ctx context.Context, userID string, since time.Time) (bool, error)
	DeleteCreatedBefore(ctx context.Context, userID string, before time.Time) (int64, error)
	// FindLatestForUpdate locks the newest row matching user and code.
	FindLatestForUpdate(ctx context.Context, userID, code string) (*domain.VerificationCode, error)
	// MarkUsed flips used to true; ErrNotFound when it was already used.
	MarkUsed(ctx context.Context, id string) error
}

type verificationCodeRepository struct {
	exec pgExecutor
}

func (r *verificationCodeRepository) Create(ctx context.Context, code *domain.VerificationCode) error {
	const query = `
        INSERT INTO verification_codes (user_id, code, created_at, used, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`

	return r.exec.QueryRow(ctx, query,
		code.UserID,
		code.Code,
		code.CreatedAt,
		code.Used,
		code.IsActive,
	).Scan(&code.ID)
}

func (r *verificationCodeRepository) HasUnusedSince(ctx context.Context, userID string, since time.Time) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM verification_codes
            WHERE user_id=$1 AND used=FALSE AND is_active AND created_at >= $2
        )`

	var exists bool
	if err := r.exec.QueryRow(ctx, query, userID, since).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *verificationCodeRepository) DeleteCreatedBefore(ctx context.Context, userID string, before time.Time) (int64, error) {
	const query = `DELETE FROM verification_codes WHERE user_id=$1 AND created_at < $2`

	cmd, err := r.exec.Exec(ctx, query, userID, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *verificationCodeRepository) FindLatestForUpdate(ctx context.Context, userID, code string) (*domain.VerificationCode, error) {
	const query = `
        SELECT id, user_id, code, created_at, used, is_active
        FROM verification_codes
        WHERE user_id=$1 AND code=$2
        ORDER BY created_at DESC
        LIMIT 1
        FOR UPDATE`

	var vc domain.VerificationCode
	if err := r.exec.QueryRow(ctx, query, userID, code).Scan(
		&vc.ID,
		&vc.UserID,
		&vc.Code,
		&vc.CreatedAt,
		&vc.Used,
		&vc.IsActive,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &vc, nil
}

func (r *verificationCodeRepository) MarkUsed(ctx context.Context, id string) error {
	const query = `UPDATE verification_codes SET used=TRUE WHERE id=$1 AND used=FALSE`

	cmd, err := r.exec.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
