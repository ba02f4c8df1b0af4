package otps

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

func (r *PostgresRepository) Create(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	query :=
		`INSERT INTO otp_codes (email, code, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	if err := r.db.QueryRowContext(ctx, query, code.Email, code.Code, code.IssuedAt, code.ExpiresAt).Scan(&code.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return code, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, email string) (*models.OneTimeCode, error) {
	query :=
		`SELECT id, email, code, issued_at, expires_at, consumed_at FROM otp_codes
		 WHERE email = $1
		 ORDER BY id DESC
		 LIMIT 1
		 `

	c := &models.OneTimeCode{}
	var consumed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, email).Scan(&c.ID, &c.Email, &c.Code, &c.IssuedAt, &c.ExpiresAt, &consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if consumed.Valid {
		t := consumed.Time
		c.ConsumedAt = &t
	}
	return c, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id int64, at time.Time) (bool, error) {
	query :=
		`UPDATE otp_codes SET consumed_at = $1
		 WHERE id = $2 AND consumed_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
