package errors

import (
	"errors"
	"fmt"
)

// Common error types for the owner-token core
var (
	// Configuration errors - fatal, detected at startup
	ErrKeyMissing    = errors.New("encryption key missing")
	ErrInvalidKey    = errors.New("invalid encryption key")
	ErrConfigMissing = errors.New("required configuration missing")

	// Crypto errors
	ErrDecryptionFailed = errors.New("decryption failed")

	// OAuth errors
	ErrInvalidGrant        = errors.New("invalid grant")
	ErrInvalidClient       = errors.New("invalid client credentials")
	ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")
	ErrMalformedResponse   = errors.New("malformed token response")

	// Store errors
	ErrStoreUnavailable = errors.New("token store unavailable")

	// Token lifecycle errors
	ErrNotConnected = errors.New("no owner account connected")

	// Admin errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidState = errors.New("invalid or expired state")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
