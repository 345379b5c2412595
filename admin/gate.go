// Package admin gates the two privileged operations that may mutate the
// owner credential: connecting an account and reconnecting after revocation.
//
// Admin sessions are short-lived HMAC-signed JWTs handed out on a successful
// password check; they authorize the connect endpoints and nothing else.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/euterpe-music/euterpe/admin/statestore"
	"github.com/euterpe-music/euterpe/internal/config"
	errs "github.com/euterpe-music/euterpe/internal/errors"
	"github.com/euterpe-music/euterpe/spotify"
	"github.com/euterpe-music/euterpe/token"
	"github.com/euterpe-music/euterpe/vault"
)

const stateLength = 32

// Exchanger is the slice of the Spotify client the gate needs for the
// authorization-code flow.
type Exchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*spotify.TokenResponse, error)
	Profile(ctx context.Context, accessToken string) (*spotify.Profile, error)
}

// Gate authenticates the site owner and runs the connect/reconnect flows.
type Gate struct {
	securityCfg config.SecurityConfig
	oauthCfg    config.OAuthConfig
	exchanger   Exchanger
	vault       *vault.Vault
	repo        token.Repo
	states      statestore.Repo
	log         zerolog.Logger

	nowTime func() time.Time
	sleep   func(time.Duration)
}

// Option modifies a Gate.
type Option func(*Gate)

// WithNowTime sets the clock (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Gate) {
		g.nowTime = nowFunc
	}
}

// WithSleep overrides the failed-login delay function (tests pass a no-op).
func WithSleep(sleep func(time.Duration)) Option {
	return func(g *Gate) {
		g.sleep = sleep
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gate) {
		g.log = log
	}
}

func NewGate(
	securityCfg config.SecurityConfig,
	oauthCfg config.OAuthConfig,
	exchanger Exchanger,
	v *vault.Vault,
	repo token.Repo,
	states statestore.Repo,
	options ...Option,
) (*Gate, error) {
	if exchanger == nil {
		return nil, fmt.Errorf("[NewGate] exchanger is required")
	}
	if v == nil {
		return nil, fmt.Errorf("[NewGate] vault is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("[NewGate] token repo is required")
	}
	if states == nil {
		return nil, fmt.Errorf("[NewGate] state repo is required")
	}

	g := &Gate{
		securityCfg: securityCfg,
		oauthCfg:    oauthCfg,
		exchanger:   exchanger,
		vault:       v,
		repo:        repo,
		states:      states,
		log:         zerolog.Nop(),
		nowTime:     time.Now,
		sleep:       time.Sleep,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Authenticate checks the admin password and returns a signed session token.
// Comparison is constant-time in both configurations, and every failure pays
// the same fixed delay to blunt online guessing.
func (g *Gate) Authenticate(password string) (string, error) {
	if !g.passwordMatches(password) {
		g.sleep(g.securityCfg.GetFailedLoginDelay())
		return "", errs.ErrUnauthorized
	}

	now := g.nowTime()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.securityCfg.GetMaxSessionAge())),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(g.securityCfg.GetSessionSecret()))
	if err != nil {
		return "", fmt.Errorf("sign admin session: %w", err)
	}
	return signed, nil
}

func (g *Gate) passwordMatches(password string) bool {
	if hash := g.securityCfg.GetAdminPasswordHash(); hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	configured := g.securityCfg.GetAdminPassword()
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(password)) == 1
}

// Authorize validates a session token's signature and expiry. All failure
// modes collapse into ErrUnauthorized so callers cannot distinguish a forged
// token from an expired one.
func (g *Gate) Authorize(sessionToken string) error {
	if sessionToken == "" {
		return errs.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(sessionToken, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(g.securityCfg.GetSessionSecret()), nil
		},
		jwt.WithTimeFunc(g.nowTime),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return errs.ErrUnauthorized
	}
	return nil
}

// InitiateConnect starts an authorization-code flow: it mints a random state,
// stores it with a short TTL, and returns the provider redirect URL. Also
// used to reconnect after the stored token turned Invalid; the completed flow
// simply overwrites the row.
func (g *Gate) InitiateConnect(ctx context.Context) (string, error) {
	raw := make([]byte, stateLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(raw)

	cs := &statestore.ConnectState{
		ID:        uuid.NewString(),
		CreatedAt: g.nowTime(),
	}
	if err := g.states.Upsert(ctx, state, cs, g.oauthCfg.GetConnectStateTimeout()); err != nil {
		return "", fmt.Errorf("store connect state: %w", err)
	}

	return g.exchanger.AuthCodeURL(state), nil
}

// CompleteConnect finishes the flow from the OAuth redirect: verifies and
// consumes the state, exchanges the code, fetches the owner profile, and
// writes the encrypted singleton row. The write happens under the repo's row
// lock so it can never interleave with an in-flight refresh.
func (g *Gate) CompleteConnect(ctx context.Context, code, state string) error {
	cs, err := g.states.Consume(ctx, state)
	if err != nil {
		return fmt.Errorf("consume connect state: %w", err)
	}
	if cs == nil {
		return errs.ErrInvalidState
	}

	resp, err := g.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}
	if resp.RefreshToken == "" {
		return fmt.Errorf("%w: authorization-code exchange returned no refresh token", errs.ErrMalformedResponse)
	}

	// Metadata only; a profile failure must not abort the connect.
	var externalID, displayName string
	if profile, err := g.exchanger.Profile(ctx, resp.AccessToken); err != nil {
		g.log.Warn().Err(err).Msg("could not fetch owner profile; connecting without metadata")
	} else {
		externalID = profile.ID
		displayName = profile.DisplayName
	}

	accessCiphertext, err := g.vault.Encrypt(resp.AccessToken)
	if err != nil {
		return err
	}
	refreshCiphertext, err := g.vault.Encrypt(resp.RefreshToken)
	if err != nil {
		return err
	}

	now := g.nowTime()
	scope := resp.Scope
	if scope == "" {
		scope = g.oauthCfg.GetScope()
	}

	err = g.repo.Mutate(ctx, func(_ context.Context, current *token.OwnerToken) (*token.OwnerToken, error) {
		next := &token.OwnerToken{
			ID:                     token.OwnerID,
			AccessTokenCiphertext:  accessCiphertext,
			RefreshTokenCiphertext: refreshCiphertext,
			ExpiresAt:              now.Add(time.Duration(resp.ExpiresIn) * time.Second),
			TokenType:              resp.TokenType,
			Scope:                  scope,
			ExternalAccountID:      externalID,
			DisplayName:            displayName,
			State:                  token.StateConnected,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if current != nil {
			next.CreatedAt = current.CreatedAt
		}
		return next, nil
	})
	if err != nil {
		return err
	}

	g.log.Info().Str("account", externalID).Msg("owner account connected")
	return nil
}
