package config

import (
	"fmt"

	errs "github.com/euterpe-music/euterpe/internal/errors"
)

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Store
}

func New() Config {
	return mainConfig{}
}

// Validate fails fast when a required secret or credential is absent.
// Called once at startup; components assume a validated config afterwards.
func Validate(c Config) error {
	required := map[string]string{
		"SPOTIFY_CLIENT_ID":     c.GetClientID(),
		"SPOTIFY_CLIENT_SECRET": c.GetClientSecret(),
		"SPOTIFY_REDIRECT_URI":  c.GetRedirectURI(),
		"SPOTIFY_SCOPE":         c.GetScope(),
		"TOKEN_ENCRYPTION_KEY":  c.GetEncryptionKey(),
		"SECRET_KEY":            c.GetSessionSecret(),
		"DATABASE_URL":          c.GetDatabaseURL(),
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s", errs.ErrConfigMissing, name)
		}
	}
	if c.GetAdminPassword() == "" && c.GetAdminPasswordHash() == "" {
		return fmt.Errorf("%w: ADMIN_PASSWORD or ADMIN_PASSWORD_HASH", errs.ErrConfigMissing)
	}
	return nil
}
