package token

import "context"

// MutateFunc receives the current owner token (nil if none exists) and
// returns the replacement row, or nil for no write. It runs while the
// implementation holds exclusive ownership of the row, so a check-then-act
// sequence inside it cannot interleave with another writer.
type MutateFunc func(ctx context.Context, current *OwnerToken) (*OwnerToken, error)

// Repo persists the singleton owner token.
type Repo interface {
	// Get returns the current owner token, or (nil, nil) if never connected.
	Get(ctx context.Context) (*OwnerToken, error)

	// Upsert atomically replaces the singleton row.
	Upsert(ctx context.Context, t *OwnerToken) error

	// Mutate runs fn under the row lock (SELECT ... FOR UPDATE in the
	// Postgres implementation) and writes the returned row in the same
	// transaction. An error from fn aborts without writing.
	Mutate(ctx context.Context, fn MutateFunc) error
}
