package domain

// TokenPurpose scopes what a bearer token may be used for.
type TokenPurpose string

const (
	// TokenPurposeAccess is a regular session token.
	TokenPurposeAccess TokenPurpose = "access"
	// TokenPurposePasswordChange is minted by a verified code and is honored
	// only by the password-change endpoint.
	TokenPurposePasswordChange TokenPurpose = "password_change"
)
