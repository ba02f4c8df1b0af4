// Package otps persists the append-only log of one-time codes.
package otps

import (
	"context"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/server/models"
)

type Repository interface {
	// Create appends a code and fills in its ID.
	Create(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error)
	// Latest returns the most recently issued code for email, consumed or not.
	Latest(ctx context.Context, email string) (*models.OneTimeCode, error)
	// Consume marks the code consumed unless it already was. It reports
	// false when another caller consumed it first.
	Consume(ctx context.Context, id int64, at time.Time) (bool, error)
	// DeleteExpiredBefore removes codes whose expiry is older than cutoff.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
