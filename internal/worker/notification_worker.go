package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/pet-registry/internal/notify"
)

// ErrQueueFull is returned by Enqueue when the buffer is saturated.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("notification worker stopped")

// DeliveryRecorder observes delivery outcomes.
type DeliveryRecorder interface {
	RecordNotification(outcome string)
}

// NotificationWorker delivers messages asynchronously so request handlers
// never wait on SMTP.
type NotificationWorker struct {
	notifier notify.Notifier
	logger   *zap.Logger
	recorder DeliveryRecorder

	mu      sync.RWMutex
	queue   chan notify.Message
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker creates a worker with a buffered queue of size.
func NewNotificationWorker(notifier notify.Notifier, size int, logger *zap.Logger, recorder DeliveryRecorder) *NotificationWorker {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		notifier: notifier,
		logger:   logger,
		recorder: recorder,
		queue:    make(chan notify.Message, size),
	}
}

// Start launches the delivery loop. It returns immediately.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for msg := range w.queue {
			w.deliver(ctx, msg)
		}
	}()
}

// Enqueue schedules msg without blocking.
func (w *NotificationWorker) Enqueue(msg notify.Message) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- msg:
		return nil
	default:
		w.record("dropped")
		return ErrQueueFull
	}
}

// Stop drains pending messages and waits for the loop to exit.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *NotificationWorker) deliver(ctx context.Context, msg notify.Message) {
	if err := w.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		w.record("failed")
		return
	}
	w.record("sent")
}

func (w *NotificationWorker) record(outcome string) {
	if w.recorder != nil {
		w.recorder.RecordNotification(outcome)
	}
}
