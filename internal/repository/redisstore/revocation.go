// Package redisstore keeps short-lived token state in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAlreadyRevoked is returned by RevokeToken when the jti was revoked
// before, i.e. the token has already been used once.
var ErrAlreadyRevoked = errors.New("token already revoked")

// TokenRevocationStore tracks single-use token ids and per-user "tokens issued
// before this instant are invalid" markers.
type TokenRevocationStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewTokenRevocationStore wires the store; prefix namespaces every key.
func NewTokenRevocationStore(client *redis.Client, prefix string) *TokenRevocationStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "pets"
	}
	return &TokenRevocationStore{client: client, prefix: prefix, now: time.Now}
}

// RevokeToken denylists jti until the token would have expired anyway. The
// write is atomic, so of two concurrent callers exactly one succeeds and the
// other gets ErrAlreadyRevoked.
func (s *TokenRevocationStore) RevokeToken(ctx context.Context, jti string, until time.Time) error {
	if s == nil || s.client == nil {
		return errors.New("redis client not configured")
	}
	if jti == "" {
		return errors.New("jti required")
	}

	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	created, err := s.client.SetNX(ctx, s.jtiKey(jti), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx revoked jti: %w", err)
	}
	if !created {
		return ErrAlreadyRevoked
	}
	return nil
}

// IsTokenRevoked reports whether jti was denylisted.
func (s *TokenRevocationStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if s == nil || s.client == nil {
		return false, errors.New("redis client not configured")
	}
	n, err := s.client.Exists(ctx, s.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked jti: %w", err)
	}
	return n > 0, nil
}

// RevokeSubjectBefore invalidates every token for userID issued before at.
// The marker lives for ttl, which should cover the longest token lifetime.
func (s *TokenRevocationStore) RevokeSubjectBefore(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return errors.New("redis client not configured")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	value := strconv.FormatInt(at.Unix(), 10)
	if err := s.client.Set(ctx, s.subjectKey(userID), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set subject marker: %w", err)
	}
	return nil
}

// SubjectRevokedBefore returns the marker for userID, or the zero time when
// none is set.
func (s *TokenRevocationStore) SubjectRevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	if s == nil || s.client == nil {
		return time.Time{}, errors.New("redis client not configured")
	}
	raw, err := s.client.Get(ctx, s.subjectKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis get subject marker: %w", err)
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode subject marker: %w", err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

func (s *TokenRevocationStore) jtiKey(jti string) string {
	return s.prefix + ":revoked:jti:" + jti
}

func (s *TokenRevocationStore) subjectKey(userID string) string {
	return s.prefix + ":revoked:subject:" + userID
}
