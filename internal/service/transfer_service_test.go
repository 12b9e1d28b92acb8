package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/events"
	"github.com/spec-kit/pet-registry/internal/observability"
	"github.com/spec-kit/pet-registry/internal/repository/memory"
)

type transferFixture struct {
	store   *memory.Store
	clock   *fakeClock
	svc     *TransferService
	metrics *observability.Metrics
	owner   *domain.User
	other   *domain.User
	third   *domain.User
	pet     *domain.Pet
}

func newTransferFixture(t *testing.T, opts ...TransferOption) *transferFixture {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	metrics, err := observability.NewMetrics("test", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	logger := zaptest.NewLogger(t)

	opts = append([]TransferOption{WithTransferClock(clock.Now)}, opts...)
	svc := NewTransferService(TransferPolicy{CooldownDays: 7, TTL: 48 * time.Hour, CodeLength: 12}, TransferDependencies{
		Store:      store,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Metrics:    metrics,
		Logger:     logger,
	}, opts...)

	owner := mustUser(t, store, "ana", domain.RoleCustomer)
	return &transferFixture{
		store:   store,
		clock:   clock,
		svc:     svc,
		metrics: metrics,
		owner:   owner,
		other:   mustUser(t, store, "bruno", domain.RoleCustomer),
		third:   mustUser(t, store, "carla", domain.RoleCustomer),
		pet:     mustPet(t, store, owner, "Firulais"),
	}
}

func fixedCode(code string) TransferOption {
	return WithTransferCodeGenerator(func(int) (string, error) { return code, nil })
}

func TestTransferHappyPath(t *testing.T) {
	f := newTransferFixture(t, fixedCode("X7pQ2mN9ab3K"))
	ctx := context.Background()

	transfer, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.other.ID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if transfer.Code != "X7pQ2mN9ab3K" || transfer.Status != domain.TransferStatusPending {
		t.Fatalf("unexpected transfer: %+v", transfer)
	}
	if !transfer.ExpiresAt.Equal(f.clock.Now().Add(48 * time.Hour)) {
		t.Fatalf("expected expiry 48h from now, got %v", transfer.ExpiresAt)
	}

	if _, err := f.svc.Accept(ctx, f.other, f.pet.ID, "wrong-code-00"); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected not found for wrong code, got %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.third, f.pet.ID, "X7pQ2mN9ab3K"); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected not found for a different recipient, got %v", err)
	}

	f.clock.Advance(time.Hour)
	accepted, err := f.svc.Accept(ctx, f.other, f.pet.ID, "X7pQ2mN9ab3K")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != domain.TransferStatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("expected accepted transfer, got %+v", accepted)
	}

	pet, err := f.store.Pets().GetByID(ctx, f.pet.ID)
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	if pet.OwnerID != f.other.ID {
		t.Fatalf("expected owner %s, got %s", f.other.ID, pet.OwnerID)
	}
	if pet.LastTransferredAt == nil || !pet.LastTransferredAt.Equal(f.clock.Now()) {
		t.Fatalf("expected last_transferred_at stamped, got %v", pet.LastTransferredAt)
	}

	if _, err := f.svc.Accept(ctx, f.other, f.pet.ID, "X7pQ2mN9ab3K"); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected second accept to fail, got %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.Transfers.WithLabelValues("accept", "ok")); got != 1 {
		t.Fatalf("expected one successful accept recorded, got %v", got)
	}
}

func TestStartRejectsNonOwner(t *testing.T) {
	f := newTransferFixture(t)
	_, err := f.svc.Start(context.Background(), f.other, f.pet.ID, StartTransferInput{ToUserID: f.third.ID})
	assertCode(t, err, ErrPetNotFound, "PET_NOT_FOUND")
}

func TestStartRejectsSelfAndUnknownRecipient(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.owner.ID})
	assertCode(t, err, ErrInvalidRecipient, "INVALID_RECIPIENT")

	_, err = f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToEmail: "nobody@example.com"})
	assertCode(t, err, ErrInvalidRecipient, "INVALID_RECIPIENT")

	transfer, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToEmail: "BRUNO@example.com"})
	if err != nil {
		t.Fatalf("start by email: %v", err)
	}
	if transfer.ToUserID != f.other.ID {
		t.Fatalf("expected recipient %s, got %s", f.other.ID, transfer.ToUserID)
	}
	if len(transfer.Code) < 12 {
		t.Fatalf("expected a code of at least 12 characters, got %q", transfer.Code)
	}
}

func TestStartRejectsSecondPendingTransfer(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.other.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.third.ID})
	domainErr := assertCode(t, err, ErrTransferAlreadyPending, "TRANSFER_ALREADY_PENDING")
	if domainErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", domainErr.HTTPStatus)
	}
}

func TestConcurrentStartsCreateExactlyOnePendingTransfer(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := f.other
			if i%2 == 0 {
				to = f.third
			}
			_, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: to.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrTransferAlreadyPending):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", workers-1, successes, conflicts)
	}
	listing, err := f.svc.ListForPet(ctx, f.owner, f.pet.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing) != 1 {
		t.Fatalf("expected one stored transfer, got %d", len(listing))
	}
}

func TestAcceptAfterDeadlineCancelsTransfer(t *testing.T) {
	f := newTransferFixture(t, fixedCode("ExpiredCode01"))
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.other.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clock.Advance(49 * time.Hour)
	incoming, err := f.svc.ListIncoming(ctx, f.other)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 1 || !incoming[0].Expired || incoming[0].Transfer.Status != domain.TransferStatusPending {
		t.Fatalf("expected one pending transfer flagged expired, got %+v", incoming)
	}

	_, err = f.svc.Accept(ctx, f.other, f.pet.ID, "ExpiredCode01")
	assertCode(t, err, ErrTransferExpired, "TRANSFER_EXPIRED")

	history, err := f.svc.ListForPet(ctx, f.owner, f.pet.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 1 || history[0].Transfer.Status != domain.TransferStatusCancelled || history[0].Transfer.CancelledAt == nil {
		t.Fatalf("expected the expired transfer to be cancelled, got %+v", history)
	}

	pet, _ := f.store.Pets().GetByID(ctx, f.pet.ID)
	if pet.OwnerID != f.owner.ID {
		t.Fatalf("ownership must not change on expiry")
	}

	if _, err := f.svc.Accept(ctx, f.other, f.pet.ID, "ExpiredCode01"); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected not found after expiry, got %v", err)
	}
	if _, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.third.ID}); err != nil {
		t.Fatalf("expected a new transfer to be allowed after expiry, got %v", err)
	}
}

func TestAcceptRightAtDeadlineSucceeds(t *testing.T) {
	f := newTransferFixture(t, fixedCode("EdgeOfTime012"))
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.other.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(48 * time.Hour)
	if _, err := f.svc.Accept(ctx, f.other, f.pet.ID, "EdgeOfTime012"); err != nil {
		t.Fatalf("expected accept at the deadline to succeed, got %v", err)
	}
}

func TestCooldownAfterTransfer(t *testing.T) {
	f := newTransferFixture(t, fixedCode("Cooldown00001"))
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.other.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.other, f.pet.ID, "Cooldown00001"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	f.clock.Advance(3 * 24 * time.Hour)
	_, err := f.svc.Start(ctx, f.other, f.pet.ID, StartTransferInput{ToUserID: f.third.ID})
	domainErr := assertCode(t, err, ErrCooldownActive, "COOLDOWN_ACTIVE")
	if got := domainErr.Details["remaining_days"]; got != 4 {
		t.Fatalf("expected 4 remaining days, got %v", got)
	}

	f.clock.Advance(4*24*time.Hour - time.Minute)
	_, err = f.svc.Start(ctx, f.other, f.pet.ID, StartTransferInput{ToUserID: f.third.ID})
	domainErr = assertCode(t, err, ErrCooldownActive, "COOLDOWN_ACTIVE")
	if got := domainErr.Details["remaining_days"]; got != 1 {
		t.Fatalf("expected 1 remaining day, got %v", got)
	}

	f.clock.Advance(time.Minute)
	if _, err := f.svc.Start(ctx, f.other, f.pet.ID, StartTransferInput{ToUserID: f.third.ID}); err != nil {
		t.Fatalf("expected start once the cooldown elapsed, got %v", err)
	}
}

func TestCancelPendingTransfer(t *testing.T) {
	f := newTransferFixture(t, fixedCode("CancelMe00001"))
	ctx := context.Background()

	err := f.svc.Cancel(ctx, f.owner, f.pet.ID)
	assertCode(t, err, ErrNoPendingTransfer, "NO_PENDING_TRANSFER")

	if _, err := f.svc.Start(ctx, f.owner, f.pet.ID, StartTransferInput{ToUserID: f.other.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.Cancel(ctx, f.other, f.pet.ID); !errors.Is(err, ErrPetNotFound) {
		t.Fatalf("expected non-owner cancel to look like a missing pet, got %v", err)
	}
	if err := f.svc.Cancel(ctx, f.owner, f.pet.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.other, f.pet.ID, "CancelMe00001"); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected accept after cancel to fail, got %v", err)
	}
	if err := f.svc.Cancel(ctx, f.owner, f.pet.ID); !errors.Is(err, ErrNoPendingTransfer) {
		t.Fatalf("expected second cancel to find nothing, got %v", err)
	}
}

func TestAcceptUnknownPet(t *testing.T) {
	f := newTransferFixture(t)
	_, err := f.svc.Accept(context.Background(), f.other, "not-a-uuid", "whatever-code")
	assertCode(t, err, ErrPetNotFound, "PET_NOT_FOUND")
}

func TestTransferEventsArePublishedAfterCommit(t *testing.T) {
	store := memory.NewStore()
	logger := zaptest.NewLogger(t)
	dispatcher := events.NewInMemoryDispatcher(logger)
	svc := NewTransferService(TransferPolicy{CooldownDays: 7, TTL: time.Hour}, TransferDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	}, fixedCode("EventsCode001"))

	var got []events.EventType
	for _, typ := range []events.EventType{events.EventTransferStarted, events.EventTransferAccepted} {
		dispatcher.Subscribe(typ, func(_ context.Context, e events.Event) error {
			got = append(got, e.Type)
			return nil
		})
	}

	owner := mustUser(t, store, "dora", domain.RoleCustomer)
	to := mustUser(t, store, "eli", domain.RoleCustomer)
	pet := mustPet(t, store, owner, "Michi")
	ctx := context.Background()

	if _, err := svc.Start(ctx, owner, pet.ID, StartTransferInput{ToUserID: to.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Accept(ctx, to, pet.ID, "EventsCode001"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(got) != 2 || got[0] != events.EventTransferStarted || got[1] != events.EventTransferAccepted {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestRemainingDaysRoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		time.Minute:                   1,
		24 * time.Hour:                1,
		24*time.Hour + time.Second:    2,
		4 * 24 * time.Hour:            4,
		3*24*time.Hour + 12*time.Hour: 4,
	}
	for in, want := range cases {
		if got := remainingDays(in); got != want {
			t.Fatalf("remainingDays(%v) = %d, want %d", in, got, want)
		}
	}
}
