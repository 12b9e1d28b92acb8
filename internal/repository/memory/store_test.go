package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository"
)

func TestWithinTxRestoresSnapshotOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	user := &domain.User{Username: "ana", Email: "ana@example.com", Role: domain.RoleCustomer, IsActive: true}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().UpdatePassword(ctx, user.ID, "changed"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.PasswordHash == "changed" {
		t.Fatalf("expected password change to be rolled back")
	}
}

func TestTransferCreateEnforcesSinglePending(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	first := &domain.PetTransfer{PetID: "pet-1", FromUserID: "a", ToUserID: "b", Code: "c1", Status: domain.TransferStatusPending, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.Transfers().Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := &domain.PetTransfer{PetID: "pet-1", FromUserID: "a", ToUserID: "c", Code: "c2", Status: domain.TransferStatusPending, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.Transfers().Create(ctx, second); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := store.Transfers().MarkCancelled(ctx, first.ID, now); err != nil {
		t.Fatalf("cancel first: %v", err)
	}
	if err := store.Transfers().MarkAccepted(ctx, first.ID, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("terminal transfer must not transition, got %v", err)
	}
	if err := store.Transfers().Create(ctx, second); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}

	self := &domain.PetTransfer{PetID: "pet-2", FromUserID: "a", ToUserID: "a", Code: "c3", Status: domain.TransferStatusPending}
	if err := store.Transfers().Create(ctx, self); err == nil {
		t.Fatalf("expected self transfer to be rejected")
	}
}

func TestConcurrentTransactionsAreSerialized(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.WithinTx(ctx, func(tx repository.Store) error {
				pending, err := tx.Transfers().HasPending(ctx, "pet-1")
				if err != nil {
					return err
				}
				if pending {
					return repository.ErrConflict
				}
				return tx.Transfers().Create(ctx, &domain.PetTransfer{
					PetID: "pet-1", FromUserID: "a", ToUserID: "b", Code: "code",
					Status: domain.TransferStatusPending, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
				})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 || conflicts != 15 {
		t.Fatalf("expected 1 created and 15 conflicts, got %d/%d", created, conflicts)
	}
}

func TestFindLatestCodePrefersNewest(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	older := &domain.VerificationCode{UserID: "u", Code: "123456", CreatedAt: base, Used: true, IsActive: true}
	newer := &domain.VerificationCode{UserID: "u", Code: "123456", CreatedAt: base.Add(time.Minute), IsActive: true}
	for _, c := range []*domain.VerificationCode{older, newer} {
		if err := store.Codes().Create(ctx, c); err != nil {
			t.Fatalf("create code: %v", err)
		}
	}

	got, err := store.Codes().FindLatestForUpdate(ctx, "u", "123456")
	if err != nil {
		t.Fatalf("FindLatestForUpdate: %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("expected newest code %s, got %s", newer.ID, got.ID)
	}

	deleted, err := store.Codes().DeleteCreatedBefore(ctx, "u", base.Add(30*time.Second))
	if err != nil || deleted != 1 {
		t.Fatalf("expected one purged code, got %d (%v)", deleted, err)
	}
}

func TestPetListFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	dog, ok := store.AnimalTypeBySlug("dog")
	if !ok {
		t.Fatalf("dog animal type not seeded")
	}
	cat, _ := store.AnimalTypeBySlug("cat")

	owner := "owner-1"
	for _, p := range []domain.Pet{
		{OwnerID: owner, Name: "Rex", AnimalTypeID: dog.ID, IsActive: true},
		{OwnerID: owner, Name: "Misu", AnimalTypeID: cat.ID, IsActive: true},
		{OwnerID: owner, Name: "Rexy", AnimalTypeID: dog.ID, IsActive: false},
		{OwnerID: "owner-2", Name: "Rex II", AnimalTypeID: dog.ID, IsActive: true},
	} {
		pet := p
		if err := store.Pets().Create(ctx, &pet); err != nil {
			t.Fatalf("create pet: %v", err)
		}
	}

	pets, err := store.Pets().List(ctx, repository.PetFilter{OwnerID: &owner, Search: "rex"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pets) != 1 || pets[0].Name != "Rex" {
		t.Fatalf("unexpected pets: %+v", pets)
	}

	pets, _ = store.Pets().List(ctx, repository.PetFilter{AnimalTypeID: &dog.ID, IncludeInactive: true})
	if len(pets) != 3 {
		t.Fatalf("expected 3 dogs including inactive, got %d", len(pets))
	}
}
