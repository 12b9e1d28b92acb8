package dto

import (
	"time"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/service"
)

// StartTransferRequest names the recipient by id or email.
type StartTransferRequest struct {
	ToUserID string `json:"to_user_id"`
	ToEmail  string `json:"to_email"`
}

// AcceptTransferRequest carries the code handed over by the owner.
type AcceptTransferRequest struct {
	Code string `json:"code"`
}

// TransferStartedResponse is returned to the owner once; it is the only place
// the code is shown.
type TransferStartedResponse struct {
	TransferID   string                `json:"transfer_id"`
	TransferCode string                `json:"transfer_code"`
	Status       domain.TransferStatus `json:"status"`
	ExpiresAt    time.Time             `json:"expires_at"`
}

// NewTransferStartedResponse maps a freshly created transfer.
func NewTransferStartedResponse(t *domain.PetTransfer) TransferStartedResponse {
	return TransferStartedResponse{
		TransferID:   t.ID,
		TransferCode: t.Code,
		Status:       t.Status,
		ExpiresAt:    t.ExpiresAt,
	}
}

// TransferResponse is the listing shape of a transfer. It never carries the
// code.
type TransferResponse struct {
	ID          string                `json:"id"`
	PetID       string                `json:"pet_id"`
	FromUserID  string                `json:"from_user_id"`
	ToUserID    string                `json:"to_user_id"`
	Status      domain.TransferStatus `json:"status"`
	Expired     bool                  `json:"expired"`
	CreatedAt   time.Time             `json:"created_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
	AcceptedAt  *time.Time            `json:"accepted_at"`
	CancelledAt *time.Time            `json:"cancelled_at"`
}

// NewTransferResponses maps listings.
func NewTransferResponses(items []service.TransferListing) []TransferResponse {
	out := make([]TransferResponse, 0, len(items))
	for _, item := range items {
		t := item.Transfer
		out = append(out, TransferResponse{
			ID:          t.ID,
			PetID:       t.PetID,
			FromUserID:  t.FromUserID,
			ToUserID:    t.ToUserID,
			Status:      t.Status,
			Expired:     item.Expired,
			CreatedAt:   t.CreatedAt,
			ExpiresAt:   t.ExpiresAt,
			AcceptedAt:  t.AcceptedAt,
			CancelledAt: t.CancelledAt,
		})
	}
	return out
}
