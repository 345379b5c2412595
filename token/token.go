// Package token defines the owner credential record and its storage contract.
//
// The whole application shares exactly one credential: the site owner's
// Spotify token. It is persisted as a single row keyed by OwnerID, encrypted
// at rest, and mutated in place by connects, reconnects and refreshes.
package token

import "time"

// OwnerID is the fixed primary key of the singleton owner token row.
const OwnerID = "owner"

// State describes whether the stored credential is usable.
type State string

const (
	// StateConnected means the stored refresh token is believed valid.
	StateConnected State = "connected"

	// StateInvalid means the provider rejected the refresh token (revoked or
	// expired). Terminal: only an admin reconnect can leave this state.
	StateInvalid State = "invalid"
)

// OwnerToken is the singleton owner credential. Token fields hold vault
// ciphertext, never plaintext.
type OwnerToken struct {
	ID string

	AccessTokenCiphertext  string
	RefreshTokenCiphertext string

	// ExpiresAt is derived from the provider's reported lifetime at issuance
	// or refresh time, never extended locally.
	ExpiresAt time.Time
	TokenType string
	Scope     string

	// Provider metadata, informational only.
	ExternalAccountID string
	DisplayName       string

	State State

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NeedsRefresh reports whether the access token is expired or expires within
// the buffer. An already-expired token is just the degenerate case.
func (t *OwnerToken) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(t.ExpiresAt)
}

// Usable reports whether the record can serve requests at all.
func (t *OwnerToken) Usable() bool {
	return t != nil && t.State == StateConnected
}
