package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher("unit-test-secret")
	require.NoError(t, err)

	sealed, err := c.Encrypt("ya29.access-token-value")
	require.NoError(t, err)
	require.NotEqual(t, "ya29.access-token-value", sealed)

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token-value", plain)
}

func TestTokenCipher_EmptyStringPassesThrough(t *testing.T) {
	c, err := NewTokenCipher("unit-test-secret")
	require.NoError(t, err)

	sealed, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", sealed)

	plain, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", plain)
}

func TestTokenCipher_WrongKeyYieldsErrDecrypt(t *testing.T) {
	c1, err := NewTokenCipher("secret-one")
	require.NoError(t, err)
	c2, err := NewTokenCipher("secret-two")
	require.NoError(t, err)

	sealed, err := c1.Encrypt("refresh-token")
	require.NoError(t, err)

	_, err = c2.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestTokenCipher_GarbageYieldsErrDecrypt(t *testing.T) {
	c, err := NewTokenCipher("unit-test-secret")
	require.NoError(t, err)

	_, err = c.Decrypt("not-base64!!!")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Decrypt("QUJD") // valid base64, too short for a nonce
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewTokenCipher_RejectsEmptySecret(t *testing.T) {
	_, err := NewTokenCipher("")
	assert.Error(t, err)
}
