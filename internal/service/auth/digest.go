package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Tokens are never stored as is, only their sha256 hex digest
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
