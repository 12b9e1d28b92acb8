package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestTokenRevocationStore_RevokeToken(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewTokenRevocationStore(client, "test")
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "jti-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("RevokeToken returned error: %v", err)
	}

	revoked, err := store.IsTokenRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v (%v)", revoked, err)
	}
	if err := store.RevokeToken(ctx, "jti-1", time.Now().Add(10*time.Minute)); !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked on second revoke, got %v", err)
	}
	if ttl := server.TTL("test:revoked:jti:jti-1"); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	server.FastForward(11 * time.Minute)
	revoked, err = store.IsTokenRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected revocation to lapse with the token, got %v (%v)", revoked, err)
	}
}

func TestTokenRevocationStore_IgnoresAlreadyExpiredTokens(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewTokenRevocationStore(client, "test")

	if err := store.RevokeToken(context.Background(), "jti-old", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("RevokeToken returned error: %v", err)
	}
	if server.Exists("test:revoked:jti:jti-old") {
		t.Fatalf("expired token should not be stored")
	}
}

func TestTokenRevocationStore_SubjectMarker(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewTokenRevocationStore(client, "")
	ctx := context.Background()

	before, err := store.SubjectRevokedBefore(ctx, "user-1")
	if err != nil || !before.IsZero() {
		t.Fatalf("expected no marker, got %v (%v)", before, err)
	}

	at := time.Date(2025, 4, 2, 9, 30, 15, 0, time.UTC)
	if err := store.RevokeSubjectBefore(ctx, "user-1", at, time.Hour); err != nil {
		t.Fatalf("RevokeSubjectBefore returned error: %v", err)
	}

	before, err = store.SubjectRevokedBefore(ctx, "user-1")
	if err != nil {
		t.Fatalf("SubjectRevokedBefore returned error: %v", err)
	}
	if !before.Equal(at) {
		t.Fatalf("expected marker %v, got %v", at, before)
	}
}
