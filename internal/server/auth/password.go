// Package auth holds the identity primitives of the server: password
// hashing, session tokens, the role gate and device key digests.
package auth

import (
	"fmt"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// PasswordHasher hashes and checks passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// Hash returns the salted bcrypt hash of raw.
func (h *PasswordHasher) Hash(raw string) (string, error) {
	if raw == "" || len(raw) > maxPasswordBytes {
		return "", common.ErrInvalidPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether raw matches hash. The digest comparison inside
// bcrypt is constant time.
func (h *PasswordHasher) Verify(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
