package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/config"
	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/events"
	"github.com/spec-kit/pet-registry/internal/observability"
	"github.com/spec-kit/pet-registry/internal/repository"
	"github.com/spec-kit/pet-registry/internal/repository/redisstore"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// TokenRevoker records used password-change tokens and invalidated sessions.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, until time.Time) error
	RevokeSubjectBefore(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
}

// VerificationPolicy configures the code and password change flow.
type VerificationPolicy struct {
	CodeTTL        time.Duration
	BcryptCost     int
	RevokeSessions bool
	// SessionTTL bounds how long the session revocation marker is kept; it
	// should be at least the access token lifetime.
	SessionTTL time.Duration
	Password   auth.PasswordPolicy
}

// VerificationPolicyFromConfig converts env configuration into a policy.
func VerificationPolicyFromConfig(cfg config.Config) VerificationPolicy {
	return VerificationPolicy{
		CodeTTL:        cfg.Verification.CodeTTL(),
		BcryptCost:     cfg.Auth.BcryptCost,
		RevokeSessions: cfg.Auth.RevokeSessionsOnPasswordChange,
		SessionTTL:     time.Duration(cfg.Auth.AccessTokenTTLMinutes) * time.Minute,
		Password: auth.PasswordPolicy{
			MinLength: cfg.Auth.PasswordMinLength,
			MinScore:  cfg.Auth.PasswordMinScore,
		},
	}
}

// VerificationDependencies encapsulates collaborators of the verification flow.
type VerificationDependencies struct {
	Store      repository.Store
	Tokens     *auth.TokenManager
	Revoker    TokenRevoker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// TemporaryToken is the single-use password change credential.
type TemporaryToken struct {
	Token     string
	ExpiresAt time.Time
	ExpiresIn int
}

// VerificationService issues email codes and exchanges them for a password
// change token.
type VerificationService struct {
	store      repository.Store
	tokens     *auth.TokenManager
	revoker    TokenRevoker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     VerificationPolicy
	now        func() time.Time
	codeGen    func() (string, error)
}

// VerificationOption customizes a VerificationService.
type VerificationOption func(*VerificationService)

// WithVerificationClock overrides the time source.
func WithVerificationClock(now func() time.Time) VerificationOption {
	return func(s *VerificationService) { s.now = now }
}

// WithVerificationCodeGenerator overrides 6-digit code generation.
func WithVerificationCodeGenerator(gen func() (string, error)) VerificationOption {
	return func(s *VerificationService) { s.codeGen = gen }
}

// NewVerificationService builds the service.
func NewVerificationService(policy VerificationPolicy, deps VerificationDependencies, opts ...VerificationOption) *VerificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &VerificationService{
		store:      deps.Store,
		tokens:     deps.Tokens,
		revoker:    deps.Revoker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		policy:     policy,
		now:        func() time.Time { return time.Now().UTC() },
		codeGen:    GenerateVerificationCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCode issues a fresh 6-digit code for the active, non-staff user
// registered under email. Delivery happens asynchronously after commit.
func (s *VerificationService) RequestCode(ctx context.Context, email string) (code *domain.VerificationCode, err error) {
	defer func() { s.metrics.RecordVerification("request", outcome(err)) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required", map[string]any{"field": "email"})
	}

	var user *domain.User
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		found, err := tx.Users().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errUserNotFound()
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !found.IsActive || found.IsStaff {
			return errUserNotFound()
		}
		user = found

		now := s.now()
		windowStart := now.Add(-s.policy.CodeTTL)
		recent, err := tx.Codes().HasUnusedSince(ctx, user.ID, windowStart)
		if err != nil {
			return fmt.Errorf("check recent codes: %w", err)
		}
		if recent {
			return errCodeAlreadySent()
		}
		if _, err := tx.Codes().DeleteCreatedBefore(ctx, user.ID, windowStart); err != nil {
			return fmt.Errorf("purge old codes: %w", err)
		}

		value, err := s.codeGen()
		if err != nil {
			return err
		}
		created := &domain.VerificationCode{
			UserID:    user.ID,
			Code:      value,
			CreatedAt: now,
			IsActive:  true,
		}
		if err := tx.Codes().Create(ctx, created); err != nil {
			return fmt.Errorf("create verification code: %w", err)
		}
		code = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventVerificationCodeIssued, user.ID, events.VerificationCodeIssuedPayload{
		UserID: user.ID,
		Email:  user.Email,
		Code:   code.Code,
		TTL:    s.policy.CodeTTL,
	})
	return code, nil
}

// VerifyCode consumes the newest matching code and mints a password change
// token. The code is marked used in the same transaction, so it succeeds at
// most once.
func (s *VerificationService) VerifyCode(ctx context.Context, userID, code string) (token *TemporaryToken, err error) {
	defer func() { s.metrics.RecordVerification("verify", outcome(err)) }()

	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return nil, apperrors.NewValidationError("user_id and code are required", nil)
	}
	if !isID(userID) {
		return nil, errUserNotFound()
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errUserNotFound()
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !user.IsActive {
			return errUserNotFound()
		}

		vc, err := tx.Codes().FindLatestForUpdate(ctx, user.ID, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errInvalidCode()
			}
			return fmt.Errorf("lock verification code: %w", err)
		}
		if !vc.IsValid(s.now(), s.policy.CodeTTL) {
			return errCodeExpiredOrUsed()
		}
		if err := tx.Codes().MarkUsed(ctx, vc.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errCodeExpiredOrUsed()
			}
			return fmt.Errorf("mark code used: %w", err)
		}

		signed, exp, err := s.tokens.GenerateToken(user.ID, user.Role, domain.TokenPurposePasswordChange)
		if err != nil {
			return fmt.Errorf("sign password change token: %w", err)
		}
		token = &TemporaryToken{
			Token:     signed,
			ExpiresAt: exp,
			ExpiresIn: int(s.tokens.TTL(domain.TokenPurposePasswordChange).Seconds()),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ChangePassword sets a new password for the subject of a password change
// token and burns the token. When configured, access tokens issued before the
// change stop being accepted.
func (s *VerificationService) ChangePassword(ctx context.Context, claims *auth.Claims, newPassword string) (err error) {
	defer func() { s.metrics.RecordVerification("change_password", outcome(err)) }()

	if claims == nil || claims.Purpose != domain.TokenPurposePasswordChange {
		return apperrors.NewUnauthorized("password change token required")
	}
	if newPassword == "" {
		return apperrors.NewValidationError("new_password is required", map[string]any{"field": "new_password"})
	}

	user, err := s.store.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errUserNotFound()
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return errUserNotFound()
	}
	if err := s.policy.Password.Validate(newPassword, user.Username, user.Email); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.policy.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if s.revoker != nil {
		until := s.now().Add(s.tokens.TTL(domain.TokenPurposePasswordChange))
		if claims.ExpiresAt != nil {
			until = claims.ExpiresAt.Time
		}
		if err := s.revoker.RevokeToken(ctx, claims.ID, until); err != nil {
			if errors.Is(err, redisstore.ErrAlreadyRevoked) {
				return errTokenAlreadyUsed()
			}
			return apperrors.NewUnavailable("token store unavailable").(*apperrors.DomainError).WithCause(err)
		}
	}

	if err := s.store.Users().UpdatePassword(ctx, user.ID, hash); err != nil {
		// The jti is already burned; the user has to request a new code.
		s.logger.Error("password update failed after token was consumed",
			zap.String("user_id", user.ID),
			zap.String("jti", claims.ID),
			zap.Error(err))
		return fmt.Errorf("update password: %w", err)
	}

	sessionsRevoked := false
	if s.revoker != nil && s.policy.RevokeSessions {
		if err := s.revoker.RevokeSubjectBefore(ctx, user.ID, s.now(), s.policy.SessionTTL); err != nil {
			s.logger.Warn("failed to revoke sessions after password change",
				zap.String("user_id", user.ID), zap.Error(err))
		} else {
			sessionsRevoked = true
		}
	}

	s.publish(ctx, events.EventPasswordChanged, user.ID, events.PasswordChangedPayload{
		UserID:          user.ID,
		SessionsRevoked: sessionsRevoked,
	})
	return nil
}

func (s *VerificationService) publish(ctx context.Context, eventType events.EventType, actorID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: s.now(),
		Payload:   payload,
	})
}
