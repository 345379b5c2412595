// Package statestore holds the transient CSRF state issued when an admin
// starts a connect flow. Entries are single use and expire quickly.
package statestore

import (
	"context"
	"time"
)

// ConnectState is the payload stored against an OAuth state parameter.
type ConnectState struct {
	ID        string    `json:"id"`
	ReturnURL string    `json:"return_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo interface {
	// Upsert stores the state payload for at most ttl.
	Upsert(ctx context.Context, state string, cs *ConnectState, ttl time.Duration) error

	// Consume atomically retrieves and deletes the payload. Returns
	// (nil, nil) when the state is unknown or expired; a second Consume of
	// the same state always misses.
	Consume(ctx context.Context, state string) (*ConnectState, error)
}
