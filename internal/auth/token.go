package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/pet-registry/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret         []byte
	accessTTL      time.Duration
	passwordChange time.Duration
	now            func() time.Time
}

// NewTokenManager builds a new manager. Non-positive lifetimes fall back to
// 60 minutes for access tokens and 10 minutes for password-change tokens.
func NewTokenManager(secret string, accessTTL, passwordChangeTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 60 * time.Minute
	}
	if passwordChangeTTL <= 0 {
		passwordChangeTTL = 10 * time.Minute
	}
	return &TokenManager{
		secret:         []byte(secret),
		accessTTL:      accessTTL,
		passwordChange: passwordChangeTTL,
		now:            time.Now,
	}
}

// WithClock overrides the time source.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Claims describes JWT payload. Subject carries the user id and ID the jti.
type Claims struct {
	Role    domain.Role         `json:"role,omitempty"`
	Purpose domain.TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TTL returns the lifetime of tokens minted for purpose.
func (tm *TokenManager) TTL(purpose domain.TokenPurpose) time.Duration {
	if purpose == domain.TokenPurposePasswordChange {
		return tm.passwordChange
	}
	return tm.accessTTL
}

// GenerateToken builds and signs a JWT for the subject.
func (tm *TokenManager) GenerateToken(subjectID string, role domain.Role, purpose domain.TokenPurpose) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.TTL(purpose))
	claims := &Claims{
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature and expiry and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("token missing subject or id")
	}
	return claims, nil
}
