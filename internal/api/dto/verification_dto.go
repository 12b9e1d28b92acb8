package dto

// VerificationRequest asks for a code to be emailed.
type VerificationRequest struct {
	Email string `json:"email"`
}

// VerificationRequestResponse acknowledges a code request. Code is only set
// when codes are echoed for local development.
type VerificationRequestResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	Code    string `json:"code,omitempty"`
}

// VerifyCodeRequest exchanges a code for a password change token.
type VerifyCodeRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// TemporaryTokenResponse carries the password change token.
type TemporaryTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// ChangePasswordRequest sets a new password.
type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// DetailResponse is a plain acknowledgement for transfer actions.
type DetailResponse struct {
	Detail string `json:"detail"`
}
