package config

import "time"

type SecurityConfig interface {
	GetEncryptionKey() string
	GetAdminPassword() string
	GetAdminPasswordHash() string
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetFailedLoginDelay() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetEncryptionKey returns the base64-encoded AES-256 key protecting token
// material at rest.
func (Security) GetEncryptionKey() string {
	return GetEnv("TOKEN_ENCRYPTION_KEY", "")
}

func (Security) GetAdminPassword() string {
	return GetEnv("ADMIN_PASSWORD", "")
}

// GetAdminPasswordHash returns a bcrypt hash of the admin password. Preferred
// over ADMIN_PASSWORD; when set, the plaintext variable is ignored.
func (Security) GetAdminPasswordHash() string {
	return GetEnv("ADMIN_PASSWORD_HASH", "")
}

func (Security) GetSessionSecret() string {
	return GetEnv("SECRET_KEY", "")
}

func (Security) GetMaxSessionAge() time.Duration {
	return 30 * time.Minute // Admin sessions expire after 30 minutes
}

// GetFailedLoginDelay throttles password guessing on the admin gate.
func (Security) GetFailedLoginDelay() time.Duration {
	return 500 * time.Millisecond
}
