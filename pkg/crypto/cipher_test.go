package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAEADCipherRoundTrip(t *testing.T) {
	cipher, err := NewAEADCipher("test-secret")
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt("the-token")
	require.NoError(t, err)
	require.NotEqual(t, "the-token", ciphertext)

	plaintext, err := cipher.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "the-token", plaintext)
}

func TestAEADCipherRandomizedNonce(t *testing.T) {
	cipher, err := NewAEADCipher("test-secret")
	require.NoError(t, err)

	first, err := cipher.Encrypt("the-token")
	require.NoError(t, err)
	second, err := cipher.Encrypt("the-token")
	require.NoError(t, err)

	// Two encryptions of the same value never produce the same ciphertext.
	require.NotEqual(t, first, second)
}

func TestAEADCipherWrongKey(t *testing.T) {
	cipher, err := NewAEADCipher("test-secret")
	require.NoError(t, err)
	other, err := NewAEADCipher("another-secret")
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt("the-token")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestAEADCipherInvalidInput(t *testing.T) {
	_, err := NewAEADCipher("")
	require.Error(t, err)

	cipher, err := NewAEADCipher("test-secret")
	require.NoError(t, err)

	_, err = cipher.Decrypt("not base64 at all!!!")
	require.Error(t, err)

	_, err = cipher.Decrypt("c2hvcnQ=")
	require.Error(t, err)
}

func TestHMAC(t *testing.T) {
	digest := HMAC(sha256.New, []byte("payload"), []byte("secret"))
	require.Len(t, digest, 64)

	require.True(t, HMACEqual(digest, HMAC(sha256.New, []byte("payload"), []byte("secret"))))
	require.False(t, HMACEqual(digest, HMAC(sha256.New, []byte("payload"), []byte("other"))))
	require.False(t, HMACEqual(digest, HMAC(sha256.New, []byte("tampered"), []byte("secret"))))
}
