package spotify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	errs "github.com/euterpe-music/euterpe/internal/errors"
	"github.com/euterpe-music/euterpe/spotify"
)

type staticTokenSource struct {
	token string
	err   error
}

func (s *staticTokenSource) GetValidAccessToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

func TestAPIClientGet(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"name":"song"}]}`))
	}))
	defer ts.Close()

	client := spotify.NewAPIClient(&staticTokenSource{token: "access-token"},
		spotify.WithAPIBaseURL(ts.URL),
	)

	var out struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	query := url.Values{"limit": {"50"}}
	err := client.Get(context.Background(), "/v1/me/player/recently-played", query, &out)
	require.NoError(t, err)

	require.Equal(t, "Bearer access-token", gotAuth)
	require.Equal(t, "/v1/me/player/recently-played", gotPath)
	require.Equal(t, "limit=50", gotQuery)
	require.Len(t, out.Items, 1)
	require.Equal(t, "song", out.Items[0].Name)
}

func TestAPIClientPropagatesTokenSourceError(t *testing.T) {
	client := spotify.NewAPIClient(&staticTokenSource{err: errs.ErrNotConnected})

	err := client.Get(context.Background(), "/v1/me", nil, nil)
	require.ErrorIs(t, err, errs.ErrNotConnected)
}

func TestAPIClientStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "revoked token", status: http.StatusUnauthorized, wantErr: errs.ErrNotConnected},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: errs.ErrUpstreamUnavailable},
		{name: "server error", status: http.StatusBadGateway, wantErr: errs.ErrUpstreamUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer ts.Close()

			client := spotify.NewAPIClient(&staticTokenSource{token: "access-token"},
				spotify.WithAPIBaseURL(ts.URL),
			)
			err := client.Get(context.Background(), "/v1/me", nil, nil)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAPIClientUnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := spotify.NewAPIClient(&staticTokenSource{token: "access-token"},
		spotify.WithAPIBaseURL(ts.URL),
	)
	err := client.Get(context.Background(), "/v1/nope", nil, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotConnected)
	require.NotErrorIs(t, err, errs.ErrUpstreamUnavailable)
}
