package statestore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Suitable for single-instance deployments; multi-instance
// deployments should use the Redis implementation so the callback can land on
// any instance.
type InMemoryRepo struct {
	mu      sync.Mutex
	entries map[string]inMemoryEntry
	nowTime func() time.Time
}

type inMemoryEntry struct {
	state     ConnectState
	expiresAt time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		entries: make(map[string]inMemoryEntry),
		nowTime: time.Now,
	}
}

func (r *InMemoryRepo) Upsert(ctx context.Context, state string, cs *ConnectState, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if cs == nil {
		return errors.New("connect state cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[state] = inMemoryEntry{
		state:     *cs,
		expiresAt: r.nowTime().Add(ttl),
	}
	return nil
}

func (r *InMemoryRepo) Consume(ctx context.Context, state string) (*ConnectState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[state]
	if !exists {
		return nil, nil
	}
	delete(r.entries, state)

	if r.nowTime().After(entry.expiresAt) {
		return nil, nil
	}

	cs := entry.state
	return &cs, nil
}
