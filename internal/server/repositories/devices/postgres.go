package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

// Create inserts d. Any existing row with the same id, active or not,
// yields common.ErrDuplicateDevice.
func (r *PostgresRepository) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	query :=
		`INSERT INTO devices (device_id, api_key_hash, is_active, registered_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	var registeredBy sql.NullString
	if d.RegisteredBy != "" {
		registeredBy = sql.NullString{String: d.RegisteredBy, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, d.ID, d.APIKeyHash, d.Active, registeredBy).Scan(&d.CreatedAt)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return nil, common.ErrDuplicateDevice
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Device, error) {
	query :=
		`SELECT device_id, api_key_hash, is_active, registered_by, created_at FROM devices
		 WHERE device_id = $1
		 `

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET is_active = FALSE WHERE device_id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id, api_key_hash, is_active, registered_by, created_at FROM devices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*models.Device, error) {
	d := &models.Device{}
	var registeredBy sql.NullString
	if err := s.Scan(&d.ID, &d.APIKeyHash, &d.Active, &registeredBy, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.RegisteredBy = registeredBy.String
	return d, nil
}
