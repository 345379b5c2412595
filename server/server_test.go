package server_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/euterpe-music/euterpe/admin"
	"github.com/euterpe-music/euterpe/admin/statestore"
	"github.com/euterpe-music/euterpe/internal/config"
	"github.com/euterpe-music/euterpe/server"
	"github.com/euterpe-music/euterpe/spotify"
	"github.com/euterpe-music/euterpe/token"
	"github.com/euterpe-music/euterpe/token/refresh"
	"github.com/euterpe-music/euterpe/token/repofake"
	"github.com/euterpe-music/euterpe/vault"
)

type fakeExchanger struct {
	exchangeCalls int
}

func (f *fakeExchanger) AuthCodeURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (*spotify.TokenResponse, error) {
	f.exchangeCalls++
	return &spotify.TokenResponse{
		AccessToken:  "access-" + code,
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "refresh-" + code,
		Scope:        "user-read-recently-played",
	}, nil
}

func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (*spotify.TokenResponse, error) {
	return &spotify.TokenResponse{
		AccessToken: "access-refreshed",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}, nil
}

func (f *fakeExchanger) Profile(ctx context.Context, accessToken string) (*spotify.Profile, error) {
	return &spotify.Profile{ID: "owner-account", DisplayName: "Owner"}, nil
}

type testFixture struct {
	server    *server.Server
	repo      *repofake.FakeTokenRepo
	vault     *vault.Vault
	exchanger *fakeExchanger
	states    *statestore.InMemoryRepo
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	t.Setenv("TOKEN_ENCRYPTION_KEY", key)
	t.Setenv("SECRET_KEY", "server-test-session-secret")
	t.Setenv("ADMIN_PASSWORD", "correct horse battery staple")
	t.Setenv("SPOTIFY_CLIENT_ID", "client-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "client-secret")
	t.Setenv("SPOTIFY_REDIRECT_URI", "http://localhost:8080/callback")
	t.Setenv("SPOTIFY_SCOPE", "user-read-recently-played")
	t.Setenv("ENV", "PROD")

	cfg := config.New()

	v, err := vault.New(cfg.GetEncryptionKey())
	require.NoError(t, err)

	repo := repofake.NewFakeTokenRepo()
	states := statestore.NewInMemoryRepo()
	exchanger := &fakeExchanger{}

	gate, err := admin.NewGate(cfg, cfg, exchanger, v, repo, states,
		admin.WithSleep(func(time.Duration) {}),
	)
	require.NoError(t, err)

	coordinator, err := refresh.NewCoordinator(repo, v, exchanger)
	require.NoError(t, err)

	return &testFixture{
		server:    server.New(cfg, gate, coordinator, zerolog.Nop()),
		repo:      repo,
		vault:     v,
		exchanger: exchanger,
		states:    states,
	}
}

func (f *testFixture) login(t *testing.T) *http.Cookie {
	t.Helper()

	form := url.Values{"password": {"correct horse battery staple"}}
	req := httptest.NewRequest(http.MethodPost, server.RouteAdminLogin, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "euterpe_admin_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	fixture := setupTestFixture(t)

	cookie := fixture.login(t)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	fixture := setupTestFixture(t)

	form := url.Values{"password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, server.RouteAdminLogin, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	for _, c := range rec.Result().Cookies() {
		require.NotEqual(t, "euterpe_admin_session", c.Name)
	}
}

func TestConnectRequiresSession(t *testing.T) {
	fixture := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, server.RouteAdminConnect, nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackRequiresSession(t *testing.T) {
	fixture := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, server.RouteCallback+"?code=abc&state=xyz", nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 0, fixture.exchanger.exchangeCalls)
	require.Nil(t, fixture.repo.Current())
}

func TestConnectThenCallbackStoresToken(t *testing.T) {
	fixture := setupTestFixture(t)
	cookie := fixture.login(t)

	req := httptest.NewRequest(http.MethodPost, server.RouteAdminConnect, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AuthorizeURL string `json:"authorize_url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	authorizeURL, err := url.Parse(body.AuthorizeURL)
	require.NoError(t, err)
	state := authorizeURL.Query().Get("state")
	require.NotEmpty(t, state)

	req = httptest.NewRequest(http.MethodGet,
		server.RouteCallback+"?code=grant&state="+url.QueryEscape(state), nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Result().Header.Get("Location"))

	row := fixture.repo.Current()
	require.NotNil(t, row)
	require.Equal(t, token.StateConnected, row.State)

	access, err := fixture.vault.Decrypt(row.AccessTokenCiphertext)
	require.NoError(t, err)
	require.Equal(t, "access-grant", access)
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	fixture := setupTestFixture(t)
	cookie := fixture.login(t)

	req := httptest.NewRequest(http.MethodGet,
		server.RouteCallback+"?code=grant&state=never-issued", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, fixture.exchanger.exchangeCalls)
	require.Nil(t, fixture.repo.Current())
}

func TestCallbackReportsProviderDenial(t *testing.T) {
	fixture := setupTestFixture(t)
	cookie := fixture.login(t)

	req := httptest.NewRequest(http.MethodGet,
		server.RouteCallback+"?error=access_denied", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, fixture.exchanger.exchangeCalls)
}

func TestStatusDisconnected(t *testing.T) {
	fixture := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, server.RouteStatus, nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// A disconnected status must not carry a zero-valued expiry.
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, false, body["connected"])
	require.NotContains(t, body, "expires_at")
}

func TestStatusConnected(t *testing.T) {
	fixture := setupTestFixture(t)

	access, err := fixture.vault.Encrypt("access")
	require.NoError(t, err)
	refreshCT, err := fixture.vault.Encrypt("refresh")
	require.NoError(t, err)

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, fixture.repo.Upsert(context.Background(), &token.OwnerToken{
		ID:                     token.OwnerID,
		AccessTokenCiphertext:  access,
		RefreshTokenCiphertext: refreshCT,
		ExpiresAt:              expiresAt,
		TokenType:              "Bearer",
		State:                  token.StateConnected,
		DisplayName:            "Owner",
	}))

	req := httptest.NewRequest(http.MethodGet, server.RouteStatus, nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status refresh.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.True(t, status.Connected)
	require.Equal(t, "Owner", status.DisplayName)
	require.NotNil(t, status.ExpiresAt)
	require.True(t, expiresAt.Equal(*status.ExpiresAt))
}

func TestStatusStoreUnavailable(t *testing.T) {
	fixture := setupTestFixture(t)
	fixture.repo.Err = context.DeadlineExceeded

	req := httptest.NewRequest(http.MethodGet, server.RouteStatus, nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	fixture := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, server.RouteAdminLogout, nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "euterpe_admin_session" {
			cleared = true
			require.Empty(t, c.Value)
			require.Less(t, c.MaxAge, 0)
		}
	}
	require.True(t, cleared)
}
