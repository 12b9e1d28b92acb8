package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/events"
	"github.com/spec-kit/pet-registry/internal/repository"
	"github.com/spec-kit/pet-registry/internal/repository/memory"
	"github.com/spec-kit/pet-registry/internal/repository/redisstore"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

type verificationFixture struct {
	store    *memory.Store
	clock    *fakeClock
	tokens   *auth.TokenManager
	revoker  *redisstore.TokenRevocationStore
	svc      *VerificationService
	user     *domain.User
	mu       sync.Mutex
	lastCode string
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.NewStore()
	clock := newFakeClock()
	logger := zaptest.NewLogger(t)
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager("test-secret", time.Hour, 10*time.Minute).WithClock(clock.Now)
	revoker := redisstore.NewTokenRevocationStore(client, "test")

	f := &verificationFixture{store: store, clock: clock, tokens: tokens, revoker: revoker}
	dispatcher.Subscribe(events.EventVerificationCodeIssued, func(_ context.Context, e events.Event) error {
		payload := e.Payload.(events.VerificationCodeIssuedPayload)
		f.mu.Lock()
		f.lastCode = payload.Code
		f.mu.Unlock()
		return nil
	})

	f.svc = NewVerificationService(VerificationPolicy{
		CodeTTL:        5 * time.Minute,
		BcryptCost:     4,
		RevokeSessions: true,
		SessionTTL:     time.Hour,
		Password:       auth.PasswordPolicy{MinLength: 8, MinScore: 2},
	}, VerificationDependencies{
		Store:      store,
		Tokens:     tokens,
		Revoker:    revoker,
		Dispatcher: dispatcher,
		Logger:     logger,
	}, WithVerificationClock(clock.Now))

	f.user = mustUser(t, store, "ana", domain.RoleCustomer)
	return f
}

func (f *verificationFixture) delivered() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCode
}

func TestRequestCodeUnknownOrStaffUser(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, "ghost@example.com")
	assertCode(t, err, ErrUserNotFound, "USER_NOT_FOUND")

	staff := &domain.User{Username: "staff", Email: "staff@example.com", Role: domain.RoleBranch, IsActive: true, IsStaff: true}
	if err := f.store.Users().Create(ctx, staff); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	_, err = f.svc.RequestCode(ctx, "staff@example.com")
	assertCode(t, err, ErrUserNotFound, "USER_NOT_FOUND")

	_, err = f.svc.RequestCode(ctx, "  ")
	if apperrors.KindOf(err) != apperrors.KindValidation {
		t.Fatalf("expected validation error for a blank email, got %v", err)
	}
}

func TestRequestCodeIsRateLimitedWithinWindow(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	first, err := f.svc.RequestCode(ctx, f.user.Email)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(first.Code) != 6 || f.delivered() != first.Code {
		t.Fatalf("expected a delivered 6-digit code, got %q / %q", first.Code, f.delivered())
	}

	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.RequestCode(ctx, f.user.Email)
	domainErr := assertCode(t, err, ErrCodeAlreadySent, "CODE_ALREADY_SENT")
	if domainErr.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", domainErr.HTTPStatus)
	}

	f.clock.Advance(3*time.Minute + time.Second)
	second, err := f.svc.RequestCode(ctx, f.user.Email)
	if err != nil {
		t.Fatalf("expected a new code after the window, got %v", err)
	}
	if first.Code != second.Code {
		if _, err := f.svc.VerifyCode(ctx, f.user.ID, first.Code); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected the purged code to be unknown, got %v", err)
		}
	}
}

func TestVerifyCodeIssuesSingleUseToken(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	code, err := f.svc.RequestCode(ctx, f.user.Email)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	wrong := "000000"
	if code.Code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.VerifyCode(ctx, f.user.ID, wrong)
	assertCode(t, err, ErrInvalidCode, "INVALID_CODE")

	token, err := f.svc.VerifyCode(ctx, f.user.ID, code.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if token.ExpiresIn != 600 {
		t.Fatalf("expected expires_in 600, got %d", token.ExpiresIn)
	}
	claims, err := f.tokens.ParseToken(token.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Purpose != domain.TokenPurposePasswordChange || claims.Subject != f.user.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	_, err = f.svc.VerifyCode(ctx, f.user.ID, code.Code)
	assertCode(t, err, ErrCodeExpiredOrUsed, "CODE_EXPIRED_OR_USED")
}

func TestVerifyCodeAfterTTL(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	code, err := f.svc.RequestCode(ctx, f.user.Email)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.svc.VerifyCode(ctx, f.user.ID, code.Code)
	assertCode(t, err, ErrCodeExpiredOrUsed, "CODE_EXPIRED_OR_USED")
}

func TestVerifyCodeUnknownUser(t *testing.T) {
	f := newVerificationFixture(t)
	_, err := f.svc.VerifyCode(context.Background(), "2f1c1c1e-8a9b-4c1d-9e7f-000000000000", "123456")
	assertCode(t, err, ErrUserNotFound, "USER_NOT_FOUND")
}

func TestChangePasswordBurnsToken(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	code, err := f.svc.RequestCode(ctx, f.user.Email)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	token, err := f.svc.VerifyCode(ctx, f.user.ID, code.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	claims, err := f.tokens.ParseToken(token.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if err := f.svc.ChangePassword(ctx, claims, "12345678"); apperrors.KindOf(err) != apperrors.KindValidation {
		t.Fatalf("expected weak password to be rejected, got %v", err)
	}

	const newPassword = "violet-lantern-harbor-91"
	if err := f.svc.ChangePassword(ctx, claims, newPassword); err != nil {
		t.Fatalf("change password: %v", err)
	}
	user, err := f.store.Users().GetByID(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, newPassword); err != nil {
		t.Fatalf("expected the new password to be stored: %v", err)
	}

	revoked, err := f.revoker.IsTokenRevoked(ctx, claims.ID)
	if err != nil || !revoked {
		t.Fatalf("expected token jti to be revoked, got %v / %v", revoked, err)
	}
	before, err := f.revoker.SubjectRevokedBefore(ctx, f.user.ID)
	if err != nil || before.IsZero() {
		t.Fatalf("expected a session revocation marker, got %v / %v", before, err)
	}

	err = f.svc.ChangePassword(ctx, claims, "another-strong-phrase-42")
	assertCode(t, err, ErrTokenAlreadyUsed, "TOKEN_ALREADY_USED")
}

func TestChangePasswordRejectsAccessToken(t *testing.T) {
	f := newVerificationFixture(t)
	signed, _, err := f.tokens.GenerateToken(f.user.ID, f.user.Role, domain.TokenPurposeAccess)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := f.tokens.ParseToken(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := f.svc.ChangePassword(context.Background(), claims, "violet-lantern-harbor-91"); apperrors.KindOf(err) != apperrors.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

type failingPasswordStore struct {
	repository.Store
}

func (s failingPasswordStore) Users() repository.UserRepository {
	return failingPasswordUsers{UserRepository: s.Store.Users()}
}

type failingPasswordUsers struct {
	repository.UserRepository
}

func (failingPasswordUsers) UpdatePassword(context.Context, string, string) error {
	return errors.New("connection reset")
}

func TestChangePasswordLogsConsumedTokenWhenUpdateFails(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	code, err := f.svc.RequestCode(ctx, f.user.Email)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	token, err := f.svc.VerifyCode(ctx, f.user.ID, code.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	claims, err := f.tokens.ParseToken(token.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	core, logs := observer.New(zap.ErrorLevel)
	svc := NewVerificationService(VerificationPolicy{
		CodeTTL:    5 * time.Minute,
		BcryptCost: 4,
		Password:   auth.PasswordPolicy{MinLength: 8, MinScore: 2},
	}, VerificationDependencies{
		Store:   failingPasswordStore{Store: f.store},
		Tokens:  f.tokens,
		Revoker: f.revoker,
		Logger:  zap.New(core),
	}, WithVerificationClock(f.clock.Now))

	if err := svc.ChangePassword(ctx, claims, "violet-lantern-harbor-91"); err == nil {
		t.Fatalf("expected update failure to surface")
	}

	entries := logs.FilterField(zap.String("jti", claims.ID)).All()
	if len(entries) != 1 {
		t.Fatalf("expected one error entry carrying the consumed jti, got %d", len(entries))
	}
	if entries[0].ContextMap()["user_id"] != f.user.ID {
		t.Fatalf("expected user_id on the entry, got %v", entries[0].ContextMap())
	}

	err = svc.ChangePassword(ctx, claims, "violet-lantern-harbor-91")
	assertCode(t, err, ErrTokenAlreadyUsed, "TOKEN_ALREADY_USED")
}
