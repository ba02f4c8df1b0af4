package auth

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Gate turns verified tokens into role-gated decisions. Roles are compared
// by exact membership; admin does not inherit other roles.
type Gate struct {
	verifier TokenVerifier
}

func NewGate(v TokenVerifier) *Gate {
	return &Gate{verifier: v}
}

// Authorize verifies token and checks that its role is one of roles. With no
// roles any authenticated principal passes.
func (g *Gate) Authorize(token string, roles ...models.Role) (*Claims, error) {
	claims, err := g.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
		return nil, common.ErrForbidden
	}
	return claims, nil
}

// RequiresEmailVerification reports whether accounts of role must verify
// their email before they can log in.
func RequiresEmailVerification(role models.Role) bool {
	return role != models.RoleAdmin
}
