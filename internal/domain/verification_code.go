package domain

import "time"

// VerificationCode is a 6-digit one-time code proving control of an email
// address within a short window.
type VerificationCode struct {
	ID        string
	UserID    string
	Code      string
	CreatedAt time.Time
	Used      bool
	IsActive  bool
}

// ExpiresAt returns the last instant the code may be verified.
func (c VerificationCode) ExpiresAt(ttl time.Duration) time.Time {
	return c.CreatedAt.Add(ttl)
}

// IsValid reports whether the code is unused and still inside its window.
func (c VerificationCode) IsValid(now time.Time, ttl time.Duration) bool {
	return !c.Used && !now.After(c.ExpiresAt(ttl))
}
