// Package devices persists the registry of trusted scanner devices.
package devices

import (
	"context"

	"github.com/dmitrijs2005/smartwaste/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, d *models.Device) (*models.Device, error)
	Get(ctx context.Context, id string) (*models.Device, error)
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Device, error)
	Count(ctx context.Context) (int64, error)
}
