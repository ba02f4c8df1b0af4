package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrEmptySecret is returned when a token issuer is built without a key.
var ErrEmptySecret = errors.New("token signing secret is empty")

// Claims are the session token contents.
type Claims struct {
	jwt.RegisteredClaims
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
}

// AccountID returns the token subject.
func (c *Claims) AccountID() string {
	return c.Subject
}

// Tokens mints and checks HS256 session tokens. The secret is fixed for the
// lifetime of the value; replacing it invalidates every outstanding token.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source used for issuing and verifying.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

// Issue signs a token for acc that expires after the configured TTL.
func (t *Tokens) Issue(acc *models.Account) (string, error) {
	signed, _, err := t.IssueWithExpiry(acc)
	return signed, err
}

// IssueWithExpiry is Issue that also returns the expiry instant.
func (t *Tokens) IssueWithExpiry(acc *models.Account) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Role:  acc.Role,
		Email: acc.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the signature, then the expiry, and returns the claims.
// Failures carry common.ErrTokenMalformed, ErrTokenBadSignature or
// ErrTokenExpired and never return partial claims.
func (t *Tokens) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, common.ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	default:
		return nil, common.ErrTokenMalformed
	}

	if !parsed.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, common.ErrTokenMalformed
	}
	return claims, nil
}
