package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainErrorPassesThroughWrappedDomainErrors(t *testing.T) {
	cause := errors.New("cooldown active")
	original := NewConflict("COOLDOWN_ACTIVE", "try later", map[string]any{"remaining_days": 4}).WithCause(cause)
	wrapped := fmt.Errorf("start transfer: %w", original)

	got := ToDomainError(wrapped)
	if got != original {
		t.Fatalf("expected the original domain error, got %#v", got)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected cause to be reachable through errors.Is")
	}
	if got.HTTPStatus != http.StatusBadRequest || got.Kind != KindConflict {
		t.Fatalf("unexpected status/kind: %d/%s", got.HTTPStatus, got.Kind)
	}
}

func TestToDomainErrorMapsNoRowsToNotFound(t *testing.T) {
	got := ToDomainError(sql.ErrNoRows)
	if got.Kind != KindNotFound || got.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected not found, got %s/%d", got.Kind, got.HTTPStatus)
	}
}

func TestToDomainErrorHidesUnexpectedErrors(t *testing.T) {
	got := ToDomainError(errors.New("connection reset by peer"))
	if got.Kind != KindInternal {
		t.Fatalf("expected internal kind, got %s", got.Kind)
	}
	if got.Message != "internal server error" {
		t.Fatalf("internal message leaked: %q", got.Message)
	}
}

func TestRateLimitedUsesTooManyRequests(t *testing.T) {
	err := NewRateLimited("CODE_ALREADY_SENT", "already sent", nil)
	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", err.HTTPStatus)
	}
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict kind, got %s", KindOf(err))
	}
	if CodeOf(nil) != "" {
		t.Fatalf("expected empty code for nil error")
	}
}
