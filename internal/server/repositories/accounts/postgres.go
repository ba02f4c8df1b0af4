package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/dbx"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
)

const selectColumns = `id, email, name, phone_no, role, password_hash, is_email_verified, qr_code, rewards, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts acc. Unique violations are reported as
// common.ErrDuplicateEmail, common.ErrDuplicatePhone or ErrQRCodeTaken.
func (r *PostgresRepository) Create(ctx context.Context, acc *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (id, email, name, phone_no, role, password_hash, is_email_verified, qr_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		acc.ID, acc.Email, acc.Name, acc.PhoneNo, string(acc.Role), acc.PasswordHash, acc.EmailVerified, acc.QRCode,
	).Scan(&acc.CreatedAt)

	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			switch constraint {
			case "accounts_email_key":
				return nil, common.ErrDuplicateEmail
			case "accounts_phone_no_key":
				return nil, common.ErrDuplicatePhone
			case "accounts_qr_code_key":
				return nil, ErrQRCodeTaken
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return acc, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByQRCode(ctx context.Context, qr string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE qr_code = $1`, qr)
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE accounts SET is_email_verified = TRUE WHERE id = $1`, id)
}

func (r *PostgresRepository) AddRewards(ctx context.Context, id string, points int64) error {
	return r.execOne(ctx, `UPDATE accounts SET rewards = rewards + $2 WHERE id = $1`, id, points)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	acc := &models.Account{}
	var role string
	err := s.Scan(&acc.ID, &acc.Email, &acc.Name, &acc.PhoneNo, &role, &acc.PasswordHash,
		&acc.EmailVerified, &acc.QRCode, &acc.Rewards, &acc.CreatedAt)
	if err != nil {
		return nil, err
	}
	acc.Role = models.Role(role)
	return acc, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

// execOne runs a statement that must touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
