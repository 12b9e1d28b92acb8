package domain

import "time"

// TransferStatus is the state of a PetTransfer. Only pending is non-terminal.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusAccepted  TransferStatus = "accepted"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusAccepted || s == TransferStatusCancelled
}

// PetTransfer is one attempt to move a pet from FromUserID to ToUserID. The
// recipient proves they were invited by presenting Code before ExpiresAt.
type PetTransfer struct {
	ID          string
	PetID       string
	FromUserID  string
	ToUserID    string
	Code        string
	Status      TransferStatus
	CreatedAt   time.Time
	AcceptedAt  *time.Time
	CancelledAt *time.Time
	ExpiresAt   time.Time
}

// IsExpired reports whether the transfer can no longer be accepted at now.
func (t PetTransfer) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
