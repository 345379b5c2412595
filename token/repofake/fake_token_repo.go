package repofake

import (
	"context"
	"sync"

	"github.com/euterpe-music/euterpe/token"
)

// FakeTokenRepo is a thread-safe in-memory implementation of token.Repo.
// Mutate holds the repo lock for the whole callback, mirroring the row-lock
// discipline of the Postgres implementation.
type FakeTokenRepo struct {
	mu    sync.Mutex
	row   *token.OwnerToken
	Err   error // when set, all operations fail with this error
	Gets  int
	Saves int
}

var _ token.Repo = (*FakeTokenRepo)(nil)

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{}
}

func (r *FakeTokenRepo) Get(ctx context.Context) (*token.OwnerToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Gets++
	return copyRow(r.row), nil
}

func (r *FakeTokenRepo) Upsert(ctx context.Context, t *token.OwnerToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.row = copyRow(t)
	r.Saves++
	return nil
}

func (r *FakeTokenRepo) Mutate(ctx context.Context, fn token.MutateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	next, err := fn(ctx, copyRow(r.row))
	if err != nil {
		return err
	}
	if next != nil {
		r.row = copyRow(next)
		r.Saves++
	}
	return nil
}

// Current returns the stored row without counting as a Get.
func (r *FakeTokenRepo) Current() *token.OwnerToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyRow(r.row)
}

func copyRow(t *token.OwnerToken) *token.OwnerToken {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
