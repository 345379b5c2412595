// Package vault seals and unseals OAuth token material with AES-256-GCM.
//
// Ciphertexts are base64(nonce || sealed). Authenticated encryption is
// required here: a corrupted or tampered row must fail deterministically on
// decrypt rather than produce plausible-looking garbage that would then be
// sent to the Spotify API.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	errs "github.com/euterpe-music/euterpe/internal/errors"
)

const keyLength = 32 // AES-256

// Vault performs authenticated symmetric encryption of token strings.
type Vault struct {
	gcm cipher.AEAD
}

// New creates a Vault from a base64-encoded 32-byte key.
func New(base64Key string) (*Vault, error) {
	if base64Key == "" {
		return nil, errs.ErrKeyMissing
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", errs.ErrInvalidKey)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", errs.ErrInvalidKey, keyLength, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Vault{gcm: gcm}, nil
}

// Encrypt seals plaintext under a fresh nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := v.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any malformed, truncated or
// tampered input returns ErrDecryptionFailed; the offending payload is never
// included in the error.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errs.ErrDecryptionFailed
	}

	nonceSize := v.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", errs.ErrDecryptionFailed
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errs.ErrDecryptionFailed
	}
	return string(plaintext), nil
}
