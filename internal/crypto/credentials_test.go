package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Run("rejects empty key", func(t *testing.T) {
		assert.Error(t, Init(""))
	})

	t.Run("rejects non-base64 key", func(t *testing.T) {
		assert.Error(t, Init("not-base64!!!"))
	})

	t.Run("rejects wrong-length key", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("too short"))
		assert.Error(t, Init(short))
	})

	t.Run("accepts generated key", func(t *testing.T) {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.NoError(t, Init(key))
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, Init(key))

	token, err := Encrypt("refresh-token-abc123")
	require.NoError(t, err)
	assert.NotEqual(t, "refresh-token-abc123", token)

	plaintext, err := Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-abc123", plaintext)

	t.Run("each encryption uses a fresh nonce", func(t *testing.T) {
		other, err := Encrypt("refresh-token-abc123")
		require.NoError(t, err)
		assert.NotEqual(t, token, other)
	})

	t.Run("tampered token fails", func(t *testing.T) {
		_, err := Decrypt(token + "x")
		assert.Error(t, err)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		otherKey, err := GenerateKey()
		require.NoError(t, err)
		require.NoError(t, Init(otherKey))
		_, err = Decrypt(token)
		assert.Error(t, err)
	})
}
