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

	errs "github.com/euterpe-music/euterpe/internal/errors"
)

const defaultAPIBaseURL = "https://api.spotify.com"

// TokenSource yields a currently-valid plaintext access token. Satisfied by
// refresh.Coordinator.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// APIClient is the thin consumer the analytics layer uses to call the Spotify
// Web API with the owner's credential. It never caches tokens itself; every
// request goes through the coordinator.
type APIClient struct {
	source     TokenSource
	httpClient *http.Client
	baseURL    string
}

// APIClientOption modifies an APIClient.
type APIClientOption func(*APIClient)

// WithAPIBaseURL points the client at an alternative API host.
func WithAPIBaseURL(baseURL string) APIClientOption {
	return func(c *APIClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithAPIHTTPClient overrides the default HTTP client.
func WithAPIHTTPClient(client *http.Client) APIClientOption {
	return func(c *APIClient) {
		c.httpClient = client
	}
}

func NewAPIClient(source TokenSource, options ...APIClientOption) *APIClient {
	c := &APIClient{
		source:     source,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultAPIBaseURL,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET against the Web API and decodes the JSON
// response into v.
func (c *APIClient) Get(ctx context.Context, path string, query url.Values, v any) error {
	accessToken, err := c.source.GetValidAccessToken(ctx)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read api response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		// The coordinator just vouched for this token; a 401 means it was
		// revoked out from under us.
		return fmt.Errorf("%w: api rejected access token", errs.ErrNotConnected)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: api status %d", errs.ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("api request failed: status %d", resp.StatusCode)
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}
