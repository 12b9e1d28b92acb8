package service

import (
	"errors"
	"net/http"

	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// Sentinel errors. Services return them wrapped in a DomainError so callers
// can match with errors.Is while transports render the DomainError.
var (
	ErrPetNotFound            = errors.New("pet not found")
	ErrInvalidRecipient       = errors.New("invalid transfer recipient")
	ErrCooldownActive         = errors.New("transfer cooldown active")
	ErrTransferAlreadyPending = errors.New("transfer already pending")
	ErrTransferNotFound       = errors.New("transfer not found")
	ErrTransferExpired        = errors.New("transfer expired")
	ErrNoPendingTransfer      = errors.New("no pending transfer")

	ErrUserNotFound      = errors.New("user not found")
	ErrCodeAlreadySent   = errors.New("verification code already sent")
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrCodeExpiredOrUsed = errors.New("verification code expired or used")
	ErrTokenAlreadyUsed  = errors.New("password change token already used")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidReference   = errors.New("invalid animal type or breed")
	ErrPhotoNotFound      = errors.New("photo not found")
	ErrStorageDisabled    = errors.New("photo storage disabled")
)

func errPetNotFound() error {
	return apperrors.NewDomainError(apperrors.KindNotFound, "PET_NOT_FOUND", "pet not found", http.StatusNotFound, nil).
		WithCause(ErrPetNotFound)
}

func errInvalidRecipient(message string) error {
	return apperrors.NewDomainError(apperrors.KindValidation, "INVALID_RECIPIENT", message, http.StatusBadRequest, nil).
		WithCause(ErrInvalidRecipient)
}

func errCooldownActive(remainingDays int) error {
	return apperrors.NewConflict("COOLDOWN_ACTIVE",
		"this pet cannot be transferred yet; try again later",
		map[string]any{"remaining_days": remainingDays}).
		WithCause(ErrCooldownActive)
}

func errTransferAlreadyPending() error {
	return apperrors.NewConflict("TRANSFER_ALREADY_PENDING", "a pending transfer already exists for this pet", nil).
		WithCause(ErrTransferAlreadyPending)
}

func errTransferNotFound() error {
	return apperrors.NewDomainError(apperrors.KindNotFound, "TRANSFER_NOT_FOUND", "transfer not found or not authorized", http.StatusNotFound, nil).
		WithCause(ErrTransferNotFound)
}

func errTransferExpired() error {
	return apperrors.NewExpired("TRANSFER_EXPIRED", "transfer expired", nil).WithCause(ErrTransferExpired)
}

func errNoPendingTransfer() error {
	return apperrors.NewDomainError(apperrors.KindNotFound, "NO_PENDING_TRANSFER", "no pending transfers", http.StatusNotFound, nil).
		WithCause(ErrNoPendingTransfer)
}

func errUserNotFound() error {
	return apperrors.NewDomainError(apperrors.KindNotFound, "USER_NOT_FOUND", "user not found", http.StatusNotFound, nil).
		WithCause(ErrUserNotFound)
}

func errCodeAlreadySent() error {
	return apperrors.NewRateLimited("CODE_ALREADY_SENT",
		"a verification code was already sent; wait before requesting another", nil).
		WithCause(ErrCodeAlreadySent)
}

func errInvalidCode() error {
	return apperrors.NewDomainError(apperrors.KindValidation, "INVALID_CODE", "invalid verification code", http.StatusBadRequest, nil).
		WithCause(ErrInvalidCode)
}

func errCodeExpiredOrUsed() error {
	return apperrors.NewExpired("CODE_EXPIRED_OR_USED", "verification code expired or already used", nil).
		WithCause(ErrCodeExpiredOrUsed)
}

func errTokenAlreadyUsed() error {
	return apperrors.NewDomainError(apperrors.KindUnauthorized, "TOKEN_ALREADY_USED", "token already used", http.StatusUnauthorized, nil).
		WithCause(ErrTokenAlreadyUsed)
}

func errInvalidCredentials() error {
	return apperrors.NewDomainError(apperrors.KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized, nil).
		WithCause(ErrInvalidCredentials)
}

func errAccountExists() error {
	return apperrors.NewDomainError(apperrors.KindConflict, "ACCOUNT_EXISTS", "username or email already registered", http.StatusConflict, nil).
		WithCause(ErrAccountExists)
}

func errInvalidReference(message, field string) error {
	return apperrors.NewDomainError(apperrors.KindValidation, "INVALID_REFERENCE", message, http.StatusBadRequest,
		map[string]any{"field": field}).
		WithCause(ErrInvalidReference)
}

func errPhotoNotFound() error {
	return apperrors.NewDomainError(apperrors.KindNotFound, "PHOTO_NOT_FOUND", "pet has no photo", http.StatusNotFound, nil).
		WithCause(ErrPhotoNotFound)
}

func errStorageDisabled() error {
	return apperrors.NewDomainError(apperrors.KindUnavailable, "STORAGE_DISABLED", "photo storage is not configured", http.StatusServiceUnavailable, nil).
		WithCause(ErrStorageDisabled)
}

// outcome labels a metric with the error code, or "ok".
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.CodeOf(err)
}
