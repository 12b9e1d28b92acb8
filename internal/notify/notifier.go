// Package notify delivers outbound email. Delivery is best effort: callers log
// failures and never roll back business state because of them.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier sends a message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage renders the verification-code email.
func VerificationMessage(to, code string, ttl time.Duration) Message {
	minutes := int(ttl / time.Minute)
	if minutes <= 0 {
		minutes = 5
	}
	body := fmt.Sprintf(`Your verification code is: %s

This code is valid for %d minutes. If you did not request this code, please contact our support team.

Regards,
PekPet Team
`, code, minutes)

	return Message{To: to, Subject: "Verification Code", Body: body}
}

// LogNotifier writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("email not sent; smtp disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
