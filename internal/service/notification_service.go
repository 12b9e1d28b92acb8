package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/pet-registry/internal/events"
	"github.com/spec-kit/pet-registry/internal/notify"
)

// MessageQueue accepts messages for asynchronous delivery.
type MessageQueue interface {
	Enqueue(msg notify.Message) error
}

// NotificationService turns domain events into outbound messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      MessageQueue
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue MessageQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventVerificationCodeIssued, n.handleVerificationCodeIssued)
	n.dispatcher.Subscribe(events.EventTransferStarted, n.logTransferEvent)
	n.dispatcher.Subscribe(events.EventTransferAccepted, n.logTransferEvent)
	n.dispatcher.Subscribe(events.EventTransferCancelled, n.logTransferEvent)
	n.dispatcher.Subscribe(events.EventTransferExpired, n.logTransferEvent)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handlePasswordChanged)
}

func (n *NotificationService) handleVerificationCodeIssued(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VerificationCodeIssuedPayload)
	if !ok {
		return errors.New("unexpected verification payload")
	}
	if n.queue == nil {
		return errors.New("notification queue not configured")
	}

	if err := n.queue.Enqueue(notify.VerificationMessage(payload.Email, payload.Code, payload.TTL)); err != nil {
		n.logger.Warn("verification email not queued", zap.String("user_id", payload.UserID), zap.Error(err))
		return nil
	}
	n.logger.Debug("verification email queued", zap.String("user_id", payload.UserID))
	return nil
}

func (n *NotificationService) logTransferEvent(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TransferPayload)
	n.logger.Info(string(event.Type),
		zap.String("transfer_id", payload.TransferID),
		zap.String("pet_id", payload.PetID),
		zap.String("from_user_id", payload.FromUserID),
		zap.String("to_user_id", payload.ToUserID))
	return nil
}

func (n *NotificationService) handlePasswordChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.PasswordChangedPayload)
	n.logger.Info("password changed",
		zap.String("user_id", payload.UserID),
		zap.Bool("sessions_revoked", payload.SessionsRevoked))
	return nil
}
