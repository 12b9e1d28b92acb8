package service

import (
	"context"
	"errors"
	"fmt"
	"math"
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
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// TransferPolicy is the ownership transfer configuration. It is fixed at
// construction.
type TransferPolicy struct {
	CooldownDays int
	TTL          time.Duration
	CodeLength   int
}

// TransferPolicyFromConfig converts env configuration into a policy.
func TransferPolicyFromConfig(cfg config.TransferConfig) TransferPolicy {
	return TransferPolicy{CooldownDays: cfg.CooldownDays, TTL: cfg.TTL(), CodeLength: cfg.CodeLength}
}

func (p TransferPolicy) cooldown() time.Duration {
	return time.Duration(p.CooldownDays) * 24 * time.Hour
}

// TransferDependencies encapsulates collaborators of the transfer engine.
type TransferDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// TransferService implements the pet ownership transfer protocol. Every
// mutating operation runs in one transaction that locks the pet row first and
// the transfer row second.
type TransferService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     TransferPolicy
	now        func() time.Time
	codeGen    CodeGenerator
}

// TransferOption customizes a TransferService.
type TransferOption func(*TransferService)

// WithTransferClock overrides the time source.
func WithTransferClock(now func() time.Time) TransferOption {
	return func(s *TransferService) { s.now = now }
}

// WithTransferCodeGenerator overrides transfer code generation.
func WithTransferCodeGenerator(gen CodeGenerator) TransferOption {
	return func(s *TransferService) { s.codeGen = gen }
}

// NewTransferService builds the engine.
func NewTransferService(policy TransferPolicy, deps TransferDependencies, opts ...TransferOption) *TransferService {
	if policy.CodeLength < minTransferCodeLength {
		policy.CodeLength = minTransferCodeLength
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TransferService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		policy:     policy,
		now:        func() time.Time { return time.Now().UTC() },
		codeGen:    GenerateTransferCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartTransferInput identifies the recipient by id or email.
type StartTransferInput struct {
	ToUserID string
	ToEmail  string
}

// TransferListing is a transfer plus whether its deadline has passed. Listing
// never writes, so a pending transfer past its deadline stays pending until
// somebody tries to accept it.
type TransferListing struct {
	Transfer domain.PetTransfer
	Expired  bool
}

// Start opens a pending transfer of petID from actor to the recipient and
// returns it with its code. Nobody is notified.
func (s *TransferService) Start(ctx context.Context, actor *domain.User, petID string, in StartTransferInput) (transfer *domain.PetTransfer, err error) {
	defer func() { s.metrics.RecordTransfer("start", outcome(err)) }()

	in.ToUserID = strings.TrimSpace(in.ToUserID)
	in.ToEmail = strings.TrimSpace(in.ToEmail)
	if in.ToUserID == "" && in.ToEmail == "" {
		return nil, apperrors.NewValidationError("recipient is required", map[string]any{"field": "to_user_id"})
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if !isID(petID) {
			return errPetNotFound()
		}
		pet, err := tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errPetNotFound()
			}
			return fmt.Errorf("lock pet: %w", err)
		}
		if !auth.CanStartTransfer(actor, pet) {
			return errPetNotFound()
		}

		recipient, err := s.resolveRecipient(ctx, tx, in)
		if err != nil {
			return err
		}
		if recipient.ID == actor.ID {
			return errInvalidRecipient("recipient cannot be the current owner")
		}

		now := s.now()
		if pet.LastTransferredAt != nil {
			nextAllowed := pet.LastTransferredAt.Add(s.policy.cooldown())
			if now.Before(nextAllowed) {
				return errCooldownActive(remainingDays(nextAllowed.Sub(now)))
			}
		}

		pending, err := tx.Transfers().HasPending(ctx, pet.ID)
		if err != nil {
			return fmt.Errorf("check pending transfer: %w", err)
		}
		if pending {
			return errTransferAlreadyPending()
		}

		code, err := s.codeGen(s.policy.CodeLength)
		if err != nil {
			return err
		}

		created := &domain.PetTransfer{
			PetID:      pet.ID,
			FromUserID: actor.ID,
			ToUserID:   recipient.ID,
			Code:       code,
			Status:     domain.TransferStatusPending,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.policy.TTL),
		}
		if err := tx.Transfers().Create(ctx, created); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return errTransferAlreadyPending()
			}
			return fmt.Errorf("create transfer: %w", err)
		}
		transfer = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTransferStarted, actor.ID, transfer)
	return transfer, nil
}

func (s *TransferService) resolveRecipient(ctx context.Context, tx repository.Store, in StartTransferInput) (*domain.User, error) {
	var (
		recipient *domain.User
		err       error
	)
	if in.ToUserID != "" {
		if !isID(in.ToUserID) {
			return nil, errInvalidRecipient("recipient does not exist")
		}
		recipient, err = tx.Users().GetByID(ctx, in.ToUserID)
	} else {
		recipient, err = tx.Users().GetByEmail(ctx, in.ToEmail)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidRecipient("recipient does not exist")
		}
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	if !recipient.IsActive {
		return nil, errInvalidRecipient("recipient does not exist")
	}
	return recipient, nil
}

// Accept moves petID to actor when code matches a pending transfer addressed
// to actor. A transfer found past its deadline is cancelled, the cancellation
// is committed, and TransferExpired is returned.
func (s *TransferService) Accept(ctx context.Context, actor *domain.User, petID, code string) (transfer *domain.PetTransfer, err error) {
	defer func() { s.metrics.RecordTransfer("accept", outcome(err)) }()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("code is required", map[string]any{"field": "code"})
	}

	expired := false
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if !isID(petID) {
			return errPetNotFound()
		}
		pet, err := tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errPetNotFound()
			}
			return fmt.Errorf("lock pet: %w", err)
		}
		if !pet.IsActive {
			return errPetNotFound()
		}

		pending, err := tx.Transfers().FindPendingForUpdate(ctx, pet.ID, actor.ID, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errTransferNotFound()
			}
			return fmt.Errorf("lock transfer: %w", err)
		}
		if !auth.CanAcceptTransfer(actor, pending) {
			return errTransferNotFound()
		}

		now := s.now()
		if pending.IsExpired(now) {
			if err := tx.Transfers().MarkCancelled(ctx, pending.ID, now); err != nil {
				return s.transitionError(err)
			}
			pending.Status = domain.TransferStatusCancelled
			pending.CancelledAt = &now
			expired = true
			transfer = pending
			return nil
		}

		if err := tx.Pets().TransferOwnership(ctx, pet.ID, actor.ID, now); err != nil {
			return fmt.Errorf("transfer ownership: %w", err)
		}
		if err := tx.Transfers().MarkAccepted(ctx, pending.ID, now); err != nil {
			return s.transitionError(err)
		}
		pending.Status = domain.TransferStatusAccepted
		pending.AcceptedAt = &now
		transfer = pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.publish(ctx, events.EventTransferExpired, actor.ID, transfer)
		return nil, errTransferExpired()
	}

	s.publish(ctx, events.EventTransferAccepted, actor.ID, transfer)
	return transfer, nil
}

func (s *TransferService) transitionError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errTransferNotFound()
	}
	return fmt.Errorf("update transfer: %w", err)
}

// Cancel cancels the pending transfer of petID. Only the current owner may
// cancel; zero matching rows yields NoPendingTransfer.
func (s *TransferService) Cancel(ctx context.Context, actor *domain.User, petID string) (err error) {
	defer func() { s.metrics.RecordTransfer("cancel", outcome(err)) }()

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if !isID(petID) {
			return errPetNotFound()
		}
		pet, err := tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errPetNotFound()
			}
			return fmt.Errorf("lock pet: %w", err)
		}
		if !auth.CanCancelTransfer(actor, pet) {
			return errPetNotFound()
		}

		cancelled, err := tx.Transfers().CancelPendingForPet(ctx, pet.ID, s.now())
		if err != nil {
			return fmt.Errorf("cancel transfer: %w", err)
		}
		if cancelled == 0 {
			return errNoPendingTransfer()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.EventTransferCancelled, actor.ID, &domain.PetTransfer{PetID: petID, FromUserID: actor.ID})
	return nil
}

// ListForPet returns the transfer history of a pet owned by actor.
func (s *TransferService) ListForPet(ctx context.Context, actor *domain.User, petID string) ([]TransferListing, error) {
	if !isID(petID) {
		return nil, errPetNotFound()
	}
	pet, err := s.store.Pets().GetByID(ctx, petID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errPetNotFound()
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}
	if !auth.CanListTransfers(actor, pet) {
		return nil, errPetNotFound()
	}

	transfers, err := s.store.Transfers().ListByPet(ctx, pet.ID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return s.listings(transfers), nil
}

// ListIncoming returns pending transfers addressed to actor.
func (s *TransferService) ListIncoming(ctx context.Context, actor *domain.User) ([]TransferListing, error) {
	transfers, err := s.store.Transfers().ListPendingForRecipient(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list incoming transfers: %w", err)
	}
	return s.listings(transfers), nil
}

func (s *TransferService) listings(transfers []domain.PetTransfer) []TransferListing {
	now := s.now()
	out := make([]TransferListing, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, TransferListing{
			Transfer: t,
			Expired:  t.Status == domain.TransferStatusPending && t.IsExpired(now),
		})
	}
	return out
}

func (s *TransferService) publish(ctx context.Context, eventType events.EventType, actorID string, t *domain.PetTransfer) {
	if s.dispatcher == nil || t == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: s.now(),
		Payload: events.TransferPayload{
			TransferID: t.ID,
			PetID:      t.PetID,
			FromUserID: t.FromUserID,
			ToUserID:   t.ToUserID,
			ExpiresAt:  t.ExpiresAt,
		},
	})
}

// remainingDays rounds a positive remaining duration up to whole days.
func remainingDays(remaining time.Duration) int {
	return int(math.Ceil(remaining.Hours() / 24))
}
