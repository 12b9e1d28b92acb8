package dto

import (
	"time"

	"github.com/spec-kit/pet-registry/internal/domain"
)

// UserRegisterRequest payload for new customers.
type UserRegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login. Login accepts a username or an email.
type UserLoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identifier returns whichever login field was supplied.
func (r UserLoginRequest) Identifier() string {
	if r.Login != "" {
		return r.Login
	}
	return r.Email
}

// UserResponse is the single public shape of a user.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Phone     *string     `json:"phone"`
	Role      domain.Role `json:"role"`
	IsStaff   bool        `json:"is_staff"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		IsStaff:   u.IsStaff,
		CreatedAt: u.CreatedAt,
	}
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	User UserResponse `json:"user"`
	Auth AuthResponse `json:"auth"`
}
