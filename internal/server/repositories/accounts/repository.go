// Package accounts persists Account records.
package accounts

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/smartwaste/internal/server/models"
)

// ErrQRCodeTaken reports a collision on the generated scannable identifier.
// Callers regenerate and retry.
var ErrQRCodeTaken = errors.New("qr code already in use")

type Repository interface {
	Create(ctx context.Context, acc *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByQRCode(ctx context.Context, qr string) (*models.Account, error)
	MarkEmailVerified(ctx context.Context, id string) error
	AddRewards(ctx context.Context, id string, points int64) error
	List(ctx context.Context) ([]*models.Account, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	Delete(ctx context.Context, id string) error
}
