// Package idempotency marks ids as handled in Redis so redelivered webhooks and
// outbox events are processed once per TTL.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gostly/gostly-backend/pkg/redis"
)

// Scope is one independent namespace of claimed ids, for example Stripe
// event ids or handoff email deliveries.
type Scope struct {
	store redis.IdempotencyStore
	name  string
	ttl   time.Duration
}

// NewScope returns a scope whose claims expire after ttl (0 keeps them forever).
func NewScope(store redis.IdempotencyStore, name string, ttl time.Duration) (*Scope, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("scope name is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Scope{store: store, name: name, ttl: ttl}, nil
}

// Claim marks id as handled. duplicate is true when an earlier claim is
// still live, in which case the caller must skip the work.
func (s *Scope) Claim(ctx context.Context, id string) (duplicate bool, err error) {
	key, err := s.key(id)
	if err != nil {
		return false, err
	}
	set, err := s.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", s.name, err)
	}
	return !set, nil
}

// Release drops a claim so a failed attempt can be retried.
func (s *Scope) Release(ctx context.Context, id string) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	if err := s.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", s.name, err)
	}
	return nil
}

func (s *Scope) key(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("id is required")
	}
	return s.store.IdempotencyKey(s.name, id), nil
}
