// Package crypto encrypts broker credentials at rest. The symmetric key is
// loaded from CREDENTIAL_ENCRYPTION_KEY once at process start; a missing or
// malformed key is a startup-time fatal, never a silent degrade.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var key *[32]byte

// Init parses the base64-encoded 32-byte key. Must be called before
// Encrypt/Decrypt; main calls it at startup and exits on error.
func Init(encodedKey string) error {
	if encodedKey == "" {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is not set")
	}

	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(raw))
	}

	var k [32]byte
	copy(k[:], raw)
	key = &k
	return nil
}

// GenerateKey returns a fresh base64-encoded key, for operator bootstrap.
func GenerateKey() (string, error) {
	var k [32]byte
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(k[:]), nil
}

// Encrypt seals a plaintext credential, returning a URL-safe base64 token.
func Encrypt(plaintext string) (string, error) {
	if key == nil {
		return "", fmt.Errorf("encryption key not initialized")
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a previously encrypted token back to plaintext.
func Decrypt(token string) (string, error) {
	if key == nil {
		return "", fmt.Errorf("encryption key not initialized")
	}

	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("failed to decode credential token: %w", err)
	}
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("credential token too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return "", fmt.Errorf("failed to decrypt credential")
	}
	return string(plaintext), nil
}
