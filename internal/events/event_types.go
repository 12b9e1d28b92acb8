package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTransferStarted        EventType = "transfer_started"
	EventTransferAccepted       EventType = "transfer_accepted"
	EventTransferCancelled      EventType = "transfer_cancelled"
	EventTransferExpired        EventType = "transfer_expired"
	EventVerificationCodeIssued EventType = "verification_code_issued"
	EventPasswordChanged        EventType = "password_changed"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TransferPayload accompanies every transfer_* event.
type TransferPayload struct {
	TransferID string    `json:"transfer_id"`
	PetID      string    `json:"pet_id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// VerificationCodeIssuedPayload carries what the notifier needs to deliver a
// code. It never leaves the process.
type VerificationCodeIssuedPayload struct {
	UserID string        `json:"user_id"`
	Email  string        `json:"-"`
	Code   string        `json:"-"`
	TTL    time.Duration `json:"ttl"`
}

// PasswordChangedPayload payload.
type PasswordChangedPayload struct {
	UserID          string `json:"user_id"`
	SessionsRevoked bool   `json:"sessions_revoked"`
}
