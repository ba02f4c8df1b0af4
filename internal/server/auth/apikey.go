package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashAPIKey returns the hex SHA-256 digest stored for a device key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// APIKeyMatches compares key against a stored digest in constant time.
func APIKeyMatches(storedHash, key string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashAPIKey(key))) == 1
}
