package tokenkit

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// 256 bits of entropy per opaque token.
const refreshOpaqueByteLength = 32

var refreshTokenRandomSource io.Reader = rand.Reader

// GenerateRefreshOpaque returns a fresh opaque refresh token and the hash
// under which it is persisted. The plaintext never reaches the store.
func GenerateRefreshOpaque() (opaque string, tokenHash string, err error) {
	randomBytes := make([]byte, refreshOpaqueByteLength)
	if _, readErr := io.ReadFull(refreshTokenRandomSource, randomBytes); readErr != nil {
		return "", "", fmt.Errorf("refresh_token.random: %w", readErr)
	}
	opaque = base64.RawURLEncoding.EncodeToString(randomBytes)
	return opaque, HashRefreshOpaque(opaque), nil
}

// HashRefreshOpaque derives the storage key for an opaque refresh token.
func HashRefreshOpaque(opaque string) string {
	sum := sha256.Sum256([]byte(opaque))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
