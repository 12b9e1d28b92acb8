package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

const (
	principalKey       = "auth_principal"
	temporaryClaimsKey = "auth_temporary_claims"
)

// Principal represents the authenticated caller.
type Principal struct {
	User   *domain.User
	Claims *Claims
}

// RevocationChecker answers whether a token was revoked after issuance.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	SubjectRevokedBefore(ctx context.Context, userID string) (time.Time, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens      *TokenManager
	users       repository.UserRepository
	revocations RevocationChecker
	logger      *zap.Logger
}

// NewAuthMiddleware constructs middleware. revocations may be nil, in which
// case no revocation checks are made.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, revocations RevocationChecker, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, revocations: revocations, logger: logger}
}

// Handle enforces access-token authentication for protected routes.
// Password-change tokens are rejected here.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	claims, err := m.bearerClaims(c)
	if err != nil {
		return err
	}
	if claims.Purpose != domain.TokenPurposeAccess {
		return apperrors.NewUnauthorized("token not valid for this endpoint")
	}

	ctx := c.UserContext()
	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive {
		return apperrors.NewUnauthorized("user is inactive")
	}

	if m.revocations != nil {
		before, err := m.revocations.SubjectRevokedBefore(ctx, user.ID)
		if err != nil {
			m.logger.Warn("session revocation check failed", zap.String("user_id", user.ID), zap.Error(err))
		} else if !before.IsZero() && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(before) {
			return apperrors.NewUnauthorized("token revoked")
		}
	}

	c.Locals(principalKey, &Principal{User: user, Claims: claims})
	return c.Next()
}

// HandleTemporary accepts only password-change tokens that were not used yet.
func (m *AuthMiddleware) HandleTemporary(c *fiber.Ctx) error {
	claims, err := m.bearerClaims(c)
	if err != nil {
		return err
	}
	if claims.Purpose != domain.TokenPurposePasswordChange {
		return apperrors.NewUnauthorized("password change token required")
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsTokenRevoked(c.UserContext(), claims.ID)
		if err != nil {
			m.logger.Error("token revocation check failed", zap.String("jti", claims.ID), zap.Error(err))
			return apperrors.NewUnavailable("token store unavailable")
		}
		if revoked {
			return apperrors.NewUnauthorized("token already used")
		}
	}

	c.Locals(temporaryClaimsKey, claims)
	return c.Next()
}

func (m *AuthMiddleware) bearerClaims(c *fiber.Ctx) (*Claims, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return claims, nil
}

// PrincipalFromContext retrieves the authenticated user.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// TemporaryClaimsFromContext retrieves password-change token claims.
func TemporaryClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(temporaryClaimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}
