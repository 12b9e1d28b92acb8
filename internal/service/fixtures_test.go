package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository/memory"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func mustUser(t *testing.T, store *memory.Store, username string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func mustPet(t *testing.T, store *memory.Store, owner *domain.User, name string) *domain.Pet {
	t.Helper()
	dog, ok := store.AnimalTypeBySlug("dog")
	if !ok {
		t.Fatalf("dog animal type not seeded")
	}
	pet := &domain.Pet{OwnerID: owner.ID, Name: name, AnimalTypeID: dog.ID, IsActive: true}
	if err := store.Pets().Create(context.Background(), pet); err != nil {
		t.Fatalf("create pet: %v", err)
	}
	return pet
}

func assertCode(t *testing.T, err error, sentinel error, code string) *apperrors.DomainError {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %v, got %v", sentinel, err)
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T", err)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, domainErr.Code)
	}
	return domainErr
}
