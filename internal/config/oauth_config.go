package config

import "time"

// OAuthConfig describes the owner's registration with the Spotify accounts
// service. All values come from the environment; none have usable defaults.
type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScope() string
	GetConnectStateTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("SPOTIFY_CLIENT_ID", "")
}

func (OAuth) GetClientSecret() string {
	return GetEnv("SPOTIFY_CLIENT_SECRET", "")
}

func (OAuth) GetRedirectURI() string {
	return GetEnv("SPOTIFY_REDIRECT_URI", "")
}

func (OAuth) GetScope() string {
	return GetEnv("SPOTIFY_SCOPE", "")
}

// GetConnectStateTimeout bounds how long an authorization redirect may take
// before its state parameter is rejected.
func (OAuth) GetConnectStateTimeout() time.Duration {
	return 15 * time.Minute
}
