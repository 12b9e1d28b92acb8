package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository/memory"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

func newUserService(t *testing.T) (*UserService, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Hour, 10*time.Minute)
	return NewUserService(UserDependencies{
		Users:      memory.NewStore().Users(),
		Tokens:     tokens,
		Passwords:  auth.PasswordPolicy{MinLength: 8, MinScore: 2},
		BcryptCost: 4,
	}), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newUserService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Username: "ana", Email: "Ana@Example.com", Password: "violet-lantern-harbor-91"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.User.Role != domain.RoleCustomer || session.User.Email != "ana@example.com" {
		t.Fatalf("unexpected user: %+v", session.User)
	}
	claims, err := tokens.ParseToken(session.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Purpose != domain.TokenPurposeAccess || claims.Subject != session.User.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	_, err = svc.Register(ctx, RegisterInput{Username: "ana", Email: "other@example.com", Password: "violet-lantern-harbor-91"})
	assertCode(t, err, ErrAccountExists, "ACCOUNT_EXISTS")

	if _, err := svc.Login(ctx, "ana", "violet-lantern-harbor-91"); err != nil {
		t.Fatalf("login by username: %v", err)
	}
	if _, err := svc.Login(ctx, "ana@example.com", "violet-lantern-harbor-91"); err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if _, err := svc.Login(ctx, "ana", "nope-nope-nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "ghost", "violet-lantern-harbor-91"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "a@example.com", Password: "violet-lantern-harbor-91"},
		{Username: "ana", Email: "not-an-email", Password: "violet-lantern-harbor-91"},
		{Username: "ana", Email: "a@example.com", Password: "short"},
	}
	for _, in := range cases {
		if _, err := svc.Register(ctx, in); apperrors.KindOf(err) != apperrors.KindValidation {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
}

func TestCreateUserWithClinicalRole(t *testing.T) {
	svc, _ := newUserService(t)
	user, err := svc.CreateUser(context.Background(), CreateUserInput{
		RegisterInput: RegisterInput{Username: "vet", Email: "vet@example.com", Password: "violet-lantern-harbor-91"},
		Role:          domain.RoleVeterinarian,
		IsStaff:       true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !user.Role.IsClinical() || !user.IsStaff {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, err := svc.CreateUser(context.Background(), CreateUserInput{
		RegisterInput: RegisterInput{Username: "x", Email: "x@example.com", Password: "violet-lantern-harbor-91"},
		Role:          "admin",
	}); apperrors.KindOf(err) != apperrors.KindValidation {
		t.Fatalf("expected unknown role rejection, got %v", err)
	}
}
