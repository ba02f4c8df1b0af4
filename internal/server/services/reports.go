package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/repomanager"
)

// QRCode identifies an account to scanner devices.
type QRCode struct {
	AccountID string `json:"user_id"`
	Code      string `json:"qr_code"`
}

// Rewards is an account's balance with the uploads that earned it.
type Rewards struct {
	Total   int64                 `json:"total_rewards"`
	History []*models.WasteRecord `json:"reward_history"`
}

// UserStats summarises an account's uploads.
type UserStats struct {
	models.Totals
	TotalWeight  float64 `json:"total_weight"`
	TotalRewards int64   `json:"total_rewards"`
}

// ReportService serves the read-only views for each role.
type ReportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewReportService(db *sql.DB, m repomanager.RepositoryManager) *ReportService {
	return &ReportService{db: db, repomanager: m}
}

func (s *ReportService) account(ctx context.Context, id string) (*models.Account, error) {
	acc, err := s.repomanager.Accounts(s.db).GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrAccountNotFound
	}
	return acc, err
}

func (s *ReportService) QRCode(ctx context.Context, accountID string) (*QRCode, error) {
	acc, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &QRCode{AccountID: acc.ID, Code: acc.QRCode}, nil
}

func (s *ReportService) History(ctx context.Context, accountID string) ([]*models.WasteRecord, error) {
	return s.repomanager.WasteRecords(s.db).ListByAccount(ctx, accountID)
}

func (s *ReportService) Rewards(ctx context.Context, accountID string) (*Rewards, error) {
	acc, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	records, err := s.repomanager.WasteRecords(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	history := make([]*models.WasteRecord, 0, len(records))
	for _, r := range records {
		if r.Reward > 0 {
			history = append(history, r)
		}
	}
	return &Rewards{Total: acc.Rewards, History: history}, nil
}

func (s *ReportService) Stats(ctx context.Context, accountID string) (*UserStats, error) {
	acc, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	totals, err := s.repomanager.WasteRecords(s.db).Totals(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &UserStats{Totals: totals, TotalWeight: totals.Weights.Total(), TotalRewards: acc.Rewards}, nil
}

// Record returns one upload. Admins may read any record, end users only
// their own; anything else is reported as missing.
func (s *ReportService) Record(ctx context.Context, recordID, viewerID string, viewerRole models.Role) (*models.WasteRecord, error) {
	if !isUUID(recordID) {
		return nil, common.ErrWasteRecordNotFound
	}
	rec, err := s.repomanager.WasteRecords(s.db).Get(ctx, recordID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrWasteRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if viewerRole != models.RoleAdmin && rec.AccountID != viewerID {
		return nil, common.ErrWasteRecordNotFound
	}
	return rec, nil
}

func (s *ReportService) Recyclables(ctx context.Context) ([]*models.RecyclableEntry, error) {
	return s.repomanager.WasteRecords(s.db).ListRecyclables(ctx)
}

func (s *ReportService) RecyclableStats(ctx context.Context) (*models.RecyclableStats, error) {
	return s.repomanager.WasteRecords(s.db).RecyclableStats(ctx)
}

// Overview aggregates totals across all uploads, end users and devices.
func (s *ReportService) Overview(ctx context.Context) (*models.Overview, error) {
	totals, err := s.repomanager.WasteRecords(s.db).Totals(ctx, "")
	if err != nil {
		return nil, err
	}
	users, err := s.repomanager.Accounts(s.db).CountByRole(ctx, models.RoleEndUser)
	if err != nil {
		return nil, err
	}
	devices, err := s.repomanager.Devices(s.db).Count(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Overview{Totals: totals, EndUsers: users, Devices: devices}, nil
}
