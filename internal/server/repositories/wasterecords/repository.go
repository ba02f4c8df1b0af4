// Package wasterecords persists accepted waste uploads and the aggregates
// reported to users, buyers and admins.
package wasterecords

import (
	"context"

	"github.com/dmitrijs2005/smartwaste/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rec *models.WasteRecord) (*models.WasteRecord, error)
	Get(ctx context.Context, id string) (*models.WasteRecord, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.WasteRecord, error)
	// Totals aggregates all records, or one account's when accountID is set.
	Totals(ctx context.Context, accountID string) (models.Totals, error)
	ListRecyclables(ctx context.Context) ([]*models.RecyclableEntry, error)
	RecyclableStats(ctx context.Context) (*models.RecyclableStats, error)
}
