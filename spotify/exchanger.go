// Package spotify talks to the Spotify accounts service and Web API: the
// authorization-code and refresh-token grants, the owner profile lookup, and
// a thin authenticated API client for the analytics layer.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/euterpe-music/euterpe/internal/config"
	errs "github.com/euterpe-music/euterpe/internal/errors"
)

const (
	defaultAuthURL    = "https://accounts.spotify.com/authorize"
	defaultTokenURL   = "https://accounts.spotify.com/api/token"
	defaultProfileURL = "https://api.spotify.com/v1/me"

	maxResponseBytes = 1 << 20
)

// Exchanger performs the two token-endpoint grants and the profile lookup.
type Exchanger struct {
	cfg        config.OAuthConfig
	httpClient *http.Client
	authURL    string
	tokenURL   string
	profileURL string
}

// ExchangerOption modifies an Exchanger (primarily for testing).
type ExchangerOption func(*Exchanger)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.httpClient = client
	}
}

// WithEndpoints points the exchanger at alternative endpoints.
func WithEndpoints(authURL, tokenURL, profileURL string) ExchangerOption {
	return func(e *Exchanger) {
		if authURL != "" {
			e.authURL = authURL
		}
		if tokenURL != "" {
			e.tokenURL = tokenURL
		}
		if profileURL != "" {
			e.profileURL = profileURL
		}
	}
}

func NewExchanger(cfg config.OAuthConfig, options ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		authURL:    defaultAuthURL,
		tokenURL:   defaultTokenURL,
		profileURL: defaultProfileURL,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// AuthCodeURL builds the authorization redirect URL for the admin connect
// flow. show_dialog forces the Spotify login screen so the owner can see
// which account they are connecting.
func (e *Exchanger) AuthCodeURL(state string) string {
	conf := oauth2.Config{
		ClientID:    e.cfg.GetClientID(),
		RedirectURL: e.cfg.GetRedirectURI(),
		Scopes:      strings.Fields(e.cfg.GetScope()),
		Endpoint: oauth2.Endpoint{
			AuthURL:  e.authURL,
			TokenURL: e.tokenURL,
		},
	}
	return conf.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// ExchangeCode swaps an authorization code for tokens. The code is one-time
// use; an invalid, expired or reused code comes back as ErrInvalidGrant.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", e.cfg.GetRedirectURI())
	return e.tokenRequest(ctx, data)
}

// Refresh exchanges a refresh token for a new access token. ErrInvalidGrant
// here means the refresh token is revoked: terminal, no retry can succeed.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	return e.tokenRequest(ctx, data)
}

func (e *Exchanger) tokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	data.Set("client_id", e.cfg.GetClientID())
	data.Set("client_secret", e.cfg.GetClientSecret())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read token response: %w", errs.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyTokenError(resp.StatusCode, body)
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedResponse, err)
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: missing access_token or expires_in", errs.ErrMalformedResponse)
	}
	if tr.TokenType == "" {
		tr.TokenType = "Bearer"
	}
	return &tr, nil
}

// classifyTokenError maps token-endpoint failures onto the retry taxonomy:
// 5xx is transient, invalid_grant is terminal for the current token, and
// invalid_client means misconfigured credentials an operator must fix.
func classifyTokenError(status int, body []byte) error {
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: token endpoint status %d", errs.ErrUpstreamUnavailable, status)
	}

	var er errorResponse
	_ = json.Unmarshal(body, &er)

	switch er.Error {
	case "invalid_grant":
		return fmt.Errorf("%w: %s", errs.ErrInvalidGrant, er.ErrorDescription)
	case "invalid_client":
		return fmt.Errorf("%w: %s", errs.ErrInvalidClient, er.ErrorDescription)
	}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: token endpoint status 401", errs.ErrInvalidClient)
	}
	return fmt.Errorf("token endpoint rejected request: status %d oauth_error=%q", status, er.Error)
}

// Profile fetches the connected account's id and display name. Metadata only;
// failures here never invalidate a token.
func (e *Exchanger) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read profile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request failed: status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}
	return &p, nil
}
