// Package refresh coordinates keeping the owner's access token valid.
//
// A Spotify refresh token is one-time use in the sense that the provider may
// rotate it on refresh, so two concurrent refresh calls with the same stored
// value would make one of them fail with invalid_grant on a healthy
// credential. The coordinator therefore serializes refreshes at two levels:
// an in-process single-flight group, and the repo's row lock for deployments
// running more than one instance.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	errs "github.com/euterpe-music/euterpe/internal/errors"
	"github.com/euterpe-music/euterpe/spotify"
	"github.com/euterpe-music/euterpe/token"
	"github.com/euterpe-music/euterpe/vault"
)

const (
	// defaultRefreshBuffer is the lead time before expiry at which a refresh
	// is triggered proactively.
	defaultRefreshBuffer = 2 * time.Minute

	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 250 * time.Millisecond
	defaultAttemptTimeout = 10 * time.Second

	// defaultRefreshBudget bounds one whole refresh operation (all attempts
	// plus backoff). Waiters observe at most this much latency.
	defaultRefreshBudget = 35 * time.Second
)

// Exchanger is the slice of the Spotify client the coordinator needs.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*spotify.TokenResponse, error)
}

// Coordinator hands out valid plaintext access tokens, refreshing the stored
// credential when it is expired or inside the refresh buffer.
type Coordinator struct {
	repo      token.Repo
	vault     *vault.Vault
	exchanger Exchanger
	log       zerolog.Logger

	group singleflight.Group

	nowTime        func() time.Time
	refreshBuffer  time.Duration
	maxAttempts    int
	retryBaseDelay time.Duration
	attemptTimeout time.Duration
	refreshBudget  time.Duration
}

// Option modifies a Coordinator.
type Option func(*Coordinator)

// WithNowTime sets the clock (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

// WithRetryPolicy sets the bounded backoff for transient failures. A zero
// baseDelay disables sleeping between attempts.
func WithRetryPolicy(attempts int, baseDelay time.Duration) Option {
	return func(c *Coordinator) {
		c.maxAttempts = attempts
		c.retryBaseDelay = baseDelay
	}
}

// WithRefreshBuffer overrides the proactive-refresh lead time.
func WithRefreshBuffer(buffer time.Duration) Option {
	return func(c *Coordinator) {
		c.refreshBuffer = buffer
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

func NewCoordinator(repo token.Repo, v *vault.Vault, exchanger Exchanger, options ...Option) (*Coordinator, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewCoordinator] repo is required")
	}
	if v == nil {
		return nil, fmt.Errorf("[NewCoordinator] vault is required")
	}
	if exchanger == nil {
		return nil, fmt.Errorf("[NewCoordinator] exchanger is required")
	}

	c := &Coordinator{
		repo:           repo,
		vault:          v,
		exchanger:      exchanger,
		log:            zerolog.Nop(),
		nowTime:        time.Now,
		refreshBuffer:  defaultRefreshBuffer,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		attemptTimeout: defaultAttemptTimeout,
		refreshBudget:  defaultRefreshBudget,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// GetValidAccessToken returns a plaintext access token valid for at least the
// refresh buffer, refreshing first if necessary. Concurrent callers share one
// in-flight refresh; a caller whose context ends while waiting abandons the
// wait, but the refresh itself runs to completion so the rotated refresh
// token is never wasted.
func (c *Coordinator) GetValidAccessToken(ctx context.Context) (string, error) {
	row, err := c.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	if !row.Usable() {
		return "", errs.ErrNotConnected
	}

	if !row.NeedsRefresh(c.nowTime(), c.refreshBuffer) {
		return c.vault.Decrypt(row.AccessTokenCiphertext)
	}

	ch := c.group.DoChan(token.OwnerID, func() (interface{}, error) {
		return c.refreshOwnerToken()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for token refresh: %w", ctx.Err())
	}
}

// refreshOwnerToken performs one serialized refresh. It runs on a context
// detached from any caller: cancelling a waiter must not cancel the exchange.
// The whole decide-refresh-write sequence happens under the repo's row lock,
// and the expiry is re-checked once the lock is held in case another instance
// already refreshed.
func (c *Coordinator) refreshOwnerToken() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshBudget)
	defer cancel()

	var accessToken string
	var revokedErr error

	err := c.repo.Mutate(ctx, func(ctx context.Context, current *token.OwnerToken) (*token.OwnerToken, error) {
		if !current.Usable() {
			return nil, errs.ErrNotConnected
		}

		now := c.nowTime()
		if !current.NeedsRefresh(now, c.refreshBuffer) {
			plaintext, err := c.vault.Decrypt(current.AccessTokenCiphertext)
			if err != nil {
				return nil, err
			}
			accessToken = plaintext
			return nil, nil
		}

		refreshToken, err := c.vault.Decrypt(current.RefreshTokenCiphertext)
		if err != nil {
			return nil, err
		}

		resp, err := c.refreshWithRetry(ctx, refreshToken)
		if err != nil {
			if errs.Is(err, errs.ErrInvalidGrant) {
				// Fail closed: the refresh token is revoked. Persist the
				// Invalid state and hand every waiter NotConnected; only an
				// admin reconnect gets us out of here.
				c.log.Warn().Msg("refresh token revoked by provider; marking owner token invalid")
				revokedErr = fmt.Errorf("%w: refresh token revoked", errs.ErrNotConnected)
				invalid := *current
				invalid.State = token.StateInvalid
				invalid.UpdatedAt = now
				return &invalid, nil
			}
			return nil, err
		}

		accessCiphertext, err := c.vault.Encrypt(resp.AccessToken)
		if err != nil {
			return nil, err
		}

		next := *current
		next.AccessTokenCiphertext = accessCiphertext
		if resp.RefreshToken != "" {
			// Provider rotated the refresh token; the old one is now dead.
			rotated, err := c.vault.Encrypt(resp.RefreshToken)
			if err != nil {
				return nil, err
			}
			next.RefreshTokenCiphertext = rotated
		}
		next.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
		if resp.Scope != "" {
			next.Scope = resp.Scope
		}
		next.TokenType = resp.TokenType
		next.State = token.StateConnected
		next.UpdatedAt = now

		accessToken = resp.AccessToken
		c.log.Info().Time("expires_at", next.ExpiresAt).Msg("owner token refreshed")
		return &next, nil
	})
	if err != nil {
		return "", err
	}
	if revokedErr != nil {
		return "", revokedErr
	}
	return accessToken, nil
}

// refreshWithRetry retries transient failures with bounded doubling backoff.
// Terminal classifications (invalid_grant, invalid_client) propagate on the
// first occurrence.
func (c *Coordinator) refreshWithRetry(ctx context.Context, refreshToken string) (*spotify.TokenResponse, error) {
	var lastErr error
	delay := c.retryBaseDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		resp, err := c.exchanger.Refresh(attemptCtx, refreshToken)
		cancel()

		if err == nil {
			return resp, nil
		}
		if !errs.Is(err, errs.ErrUpstreamUnavailable) {
			return nil, err
		}

		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("transient refresh failure")

		if attempt < c.maxAttempts {
			if err := sleepContext(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %w", errs.ErrUpstreamUnavailable, err)
			}
			delay *= 2
		}
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
