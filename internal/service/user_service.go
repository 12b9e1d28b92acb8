package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// UserService coordinates registration and login flows.
type UserService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	passwords  auth.PasswordPolicy
	bcryptCost int
}

// UserDependencies encapsulates repo requirements for the user service.
type UserDependencies struct {
	Users      repository.UserRepository
	Tokens     *auth.TokenManager
	Passwords  auth.PasswordPolicy
	BcryptCost int
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.Users,
		tokens:     deps.Tokens,
		passwords:  deps.Passwords,
		bcryptCost: deps.BcryptCost,
	}
}

// RegisterInput carries self-registration fields.
type RegisterInput struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// CreateUserInput is used by operators to provision accounts of any role.
type CreateUserInput struct {
	RegisterInput
	Role    domain.Role
	IsStaff bool
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a customer account and signs it in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	user, err := s.CreateUser(ctx, CreateUserInput{RegisterInput: in, Role: domain.RoleCustomer})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateUser validates and persists a new account.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" {
		return nil, apperrors.NewValidationError("username is required", map[string]any{"field": "username"})
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperrors.NewValidationError("a valid email is required", map[string]any{"field": "email"})
	}
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"field": "role"})
	}
	if err := s.passwords.Validate(in.Password, username, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		IsStaff:      in.IsStaff,
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		user.Phone = &phone
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, errAccountExists()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login authenticates by email or username.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperrors.NewValidationError("login and password are required", nil)
	}

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, errInvalidCredentials()
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials()
	}
	return s.issue(user)
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUserNotFound()
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *UserService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokens.GenerateToken(user.ID, user.Role, domain.TokenPurposeAccess)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
