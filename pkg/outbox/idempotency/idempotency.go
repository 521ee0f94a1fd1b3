// Package idempotency remembers which event ids have been handled so Pub/Sub
// redeliveries and gateway webhook retries take effect at most once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const processedScope = "evt:processed"

var (
	ErrMissingScope = errors.New("idempotency scope is required")
	ErrMissingID    = errors.New("event id is required")
)

// Store is the slice of the Redis client the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard claims ids with SETNX. A claim lives for ttl; zero keeps it forever.
type Guard struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("idempotency ttl %s is negative", ttl)
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim reports whether this call was the first to see id within scope.
func (g *Guard) Claim(ctx context.Context, scope, id string) (bool, error) {
	key, err := g.key(scope, id)
	if err != nil {
		return false, err
	}
	first, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return first, nil
}

// Release drops a claim so the next delivery is processed again.
func (g *Guard) Release(ctx context.Context, scope, id string) error {
	key, err := g.key(scope, id)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

// Consumer scopes the guard to the processed-event ids of one subscriber,
// so two consumers of the same topic never see each other's claims.
func (g *Guard) Consumer(name string) *Scoped {
	return g.Scope(consumerScope(name))
}

// Scope binds the guard to one scope for callers keyed by opaque string ids.
func (g *Guard) Scope(scope string) *Scoped {
	return &Scoped{guard: g, scope: scope}
}

type Scoped struct {
	guard *Guard
	scope string
}

// CheckAndMark returns true when id was already claimed in this scope.
func (s *Scoped) CheckAndMark(ctx context.Context, id string) (bool, error) {
	first, err := s.guard.Claim(ctx, s.scope, id)
	return !first, err
}

func (s *Scoped) Delete(ctx context.Context, id string) error {
	return s.guard.Release(ctx, s.scope, id)
}

func consumerScope(consumer string) string {
	if strings.TrimSpace(consumer) == "" {
		return ""
	}
	return processedScope + ":" + consumer
}

func (g *Guard) key(scope, id string) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return "", ErrMissingScope
	}
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingID
	}
	return g.store.IdempotencyKey(scope, id), nil
}
