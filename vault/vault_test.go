package vault_test

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	errs "github.com/euterpe-music/euterpe/internal/errors"
	"github.com/euterpe-music/euterpe/vault"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestRoundTrip(t *testing.T) {
	v, err := vault.New(testKey(t))
	require.NoError(t, err)

	for _, plaintext := range []string{
		"",
		"BQDi0ZL1...access-token",
		"AQB5l8s1...refresh-token-with-unicode-ü",
	} {
		ciphertext, err := v.Encrypt(plaintext)
		require.NoError(t, err)
		require.NotEqual(t, plaintext, ciphertext)

		decrypted, err := v.Decrypt(ciphertext)
		require.NoError(t, err)
		require.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v, err := vault.New(testKey(t))
	require.NoError(t, err)

	first, err := v.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := v.Encrypt("same plaintext")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	v, err := vault.New(testKey(t))
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("secret token")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = v.Decrypt(tampered)
	require.ErrorIs(t, err, errs.ErrDecryptionFailed)
}

func TestDecryptMalformedInput(t *testing.T) {
	v, err := vault.New(testKey(t))
	require.NoError(t, err)

	for _, input := range []string{
		"not base64 at all!!!",
		"",
		base64.StdEncoding.EncodeToString([]byte("short")), // shorter than a nonce
	} {
		_, err := v.Decrypt(input)
		require.ErrorIs(t, err, errs.ErrDecryptionFailed, "input %q", input)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	v1, err := vault.New(testKey(t))
	require.NoError(t, err)
	v2, err := vault.New(testKey(t))
	require.NoError(t, err)

	ciphertext, err := v1.Encrypt("secret token")
	require.NoError(t, err)

	_, err = v2.Decrypt(ciphertext)
	require.ErrorIs(t, err, errs.ErrDecryptionFailed)
}

func TestNewKeyValidation(t *testing.T) {
	_, err := vault.New("")
	require.ErrorIs(t, err, errs.ErrKeyMissing)

	_, err = vault.New("!!not-base64!!")
	require.ErrorIs(t, err, errs.ErrInvalidKey)

	shortKey := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = vault.New(shortKey)
	require.ErrorIs(t, err, errs.ErrInvalidKey)
}
