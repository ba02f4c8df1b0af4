package wasterecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/dbx"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.WasteRecord) (*models.WasteRecord, error) {
	query :=
		`INSERT INTO waste_records (id, device_id, account_id, organic, recyclable, hazardous, reward)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		rec.ID, rec.DeviceID, rec.AccountID,
		rec.Weights.Organic, rec.Weights.Recyclable, rec.Weights.Hazardous, rec.Reward,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.WasteRecord, error) {
	query :=
		`SELECT id, device_id, account_id, organic, recyclable, hazardous, reward, created_at
		 FROM waste_records
		 WHERE id = $1
		 `

	rec := &models.WasteRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.DeviceID, &rec.AccountID,
		&rec.Weights.Organic, &rec.Weights.Recyclable, &rec.Weights.Hazardous,
		&rec.Reward, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.WasteRecord, error) {
	query :=
		`SELECT id, device_id, account_id, organic, recyclable, hazardous, reward, created_at
		 FROM waste_records
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.WasteRecord
	for rows.Next() {
		rec := &models.WasteRecord{}
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.AccountID,
			&rec.Weights.Organic, &rec.Weights.Recyclable, &rec.Weights.Hazardous,
			&rec.Reward, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Totals(ctx context.Context, accountID string) (models.Totals, error) {
	query :=
		`SELECT COALESCE(SUM(organic), 0), COALESCE(SUM(recyclable), 0), COALESCE(SUM(hazardous), 0), COUNT(*)
		 FROM waste_records
		 `
	args := []any{}
	if accountID != "" {
		query += `WHERE account_id = $1`
		args = append(args, accountID)
	}

	var t models.Totals
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&t.Weights.Organic, &t.Weights.Recyclable, &t.Weights.Hazardous, &t.Entries)
	if err != nil {
		return models.Totals{}, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) ListRecyclables(ctx context.Context) ([]*models.RecyclableEntry, error) {
	query :=
		`SELECT w.id, w.recyclable, w.created_at, a.name, a.email
		 FROM waste_records w
		 JOIN accounts a ON a.id = w.account_id
		 WHERE w.recyclable > 0
		 ORDER BY w.created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.RecyclableEntry
	for rows.Next() {
		e := &models.RecyclableEntry{}
		if err := rows.Scan(&e.RecordID, &e.Recyclable, &e.CreatedAt, &e.UserName, &e.UserEmail); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) RecyclableStats(ctx context.Context) (*models.RecyclableStats, error) {
	stats := &models.RecyclableStats{Monthly: []models.MonthlyWeight{}}

	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(recyclable), 0), COUNT(*) FROM waste_records WHERE recyclable > 0`,
	).Scan(&stats.TotalWeight, &stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT date_trunc('month', created_at) AS month, SUM(recyclable)
		 FROM waste_records
		 WHERE recyclable > 0
		 GROUP BY month
		 ORDER BY month
		 `)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var month time.Time
		var weight float64
		if err := rows.Scan(&month, &weight); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		stats.Monthly = append(stats.Monthly, models.MonthlyWeight{Month: month.Format("2006-01"), Weight: weight})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stats, nil
}
