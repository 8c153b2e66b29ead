package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenLength is the length of generated opaque tokens in bytes
const TokenLength = 32

// GenerateOpaqueToken generates a cryptographically secure random token for
// refresh tokens, emailed links and flow codes.
// Returns: token (hex string), token hash (SHA256 hex), error
func GenerateOpaqueToken() (string, string, error) {
	tokenBytes := make([]byte, TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("generate random token: %w", err)
	}

	token := hex.EncodeToString(tokenBytes)
	return token, HashOpaqueToken(token), nil
}

// HashOpaqueToken hashes a token for storage/lookup
func HashOpaqueToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
