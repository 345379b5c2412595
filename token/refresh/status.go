package refresh

import (
	"context"
	"time"
)

// Status is the read-only diagnostic view of the owner credential. It never
// carries token material.
type Status struct {
	Connected   bool       `json:"connected"`
	DisplayName string     `json:"display_name,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Status reports whether an owner account is connected and, if so, whose.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	row, err := c.repo.Get(ctx)
	if err != nil {
		return Status{}, err
	}
	if !row.Usable() {
		return Status{}, nil
	}
	expiresAt := row.ExpiresAt
	return Status{
		Connected:   true,
		DisplayName: row.DisplayName,
		ExpiresAt:   &expiresAt,
	}, nil
}
