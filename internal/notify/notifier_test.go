package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/pet-registry/internal/config"
)

func TestVerificationMessageMentionsCodeAndValidity(t *testing.T) {
	msg := VerificationMessage("ana@example.com", "004211", 5*time.Minute)
	if msg.To != "ana@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.Body, "004211") || !strings.Contains(msg.Body, "5 minutes") {
		t.Fatalf("body missing code or validity: %q", msg.Body)
	}
}

func TestSMTPNotifierSend(t *testing.T) {
	n := NewSMTPNotifier(config.NotificationConfig{
		EmailFrom: "noreply@example.com",
		SMTPHost:  "smtp.example.com",
		SMTPPort:  587,
		SMTPUser:  "mailer",
	})

	var gotAddr, gotFrom string
	var gotBody []byte
	n.send = func(addr string, _ smtp.Auth, from string, to []string, body []byte) error {
		gotAddr, gotFrom, gotBody = addr, from, body
		return nil
	}

	if err := n.Send(context.Background(), VerificationMessage("ana@example.com", "123456", 5*time.Minute)); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "noreply@example.com" {
		t.Fatalf("unexpected envelope %s/%s", gotAddr, gotFrom)
	}
	if !strings.Contains(string(gotBody), "Subject: Verification Code\r\n") {
		t.Fatalf("missing subject header: %q", gotBody)
	}
}

func TestSMTPNotifierWrapsFailure(t *testing.T) {
	n := NewSMTPNotifier(config.NotificationConfig{SMTPHost: "smtp.example.com", SMTPPort: 25})
	boom := errors.New("connection refused")
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	if err := n.Send(context.Background(), Message{To: "x@example.com"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
}
