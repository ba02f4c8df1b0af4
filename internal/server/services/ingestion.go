package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/dbx"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/metrics"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/smartwaste/internal/server/telemetry"
	"github.com/google/uuid"
)

// Upload sources, used as metric labels.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// UploadRequest is one device submission.
type UploadRequest struct {
	DeviceID string
	APIKey   string
	UserQR   string
	Weights  models.Weights
}

// DeviceValidator checks device credentials.
type DeviceValidator interface {
	Validate(ctx context.Context, deviceID, apiKey string) (bool, error)
}

// IngestionService authorizes device uploads on behalf of a scanned user
// and records the accepted ones.
type IngestionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	devices     DeviceValidator
	rates       models.RateTable
	sink        telemetry.Sink
	metrics     *metrics.Metrics
	log         logging.Logger
	now         func() time.Time
}

func NewIngestionService(db *sql.DB, m repomanager.RepositoryManager, devices DeviceValidator, rates models.RateTable, log logging.Logger) *IngestionService {
	return &IngestionService{
		db:          db,
		repomanager: m,
		devices:     devices,
		rates:       rates,
		sink:        telemetry.Nop{},
		log:         log.With("module", "ingestion"),
		now:         time.Now,
	}
}

func (s *IngestionService) WithTelemetry(sink telemetry.Sink) *IngestionService {
	s.sink = sink
	return s
}

func (s *IngestionService) WithMetrics(m *metrics.Metrics) *IngestionService {
	s.metrics = m
	return s
}

func (s *IngestionService) WithClock(now func() time.Time) *IngestionService {
	s.now = now
	return s
}

// AuthorizeUpload validates the device, resolves the scanned QR identifier
// and checks the weights, in that order. It returns an unpersisted record
// with the computed reward.
func (s *IngestionService) AuthorizeUpload(ctx context.Context, req UploadRequest) (*models.WasteRecord, error) {
	ok, err := s.devices.Validate(ctx, req.DeviceID, req.APIKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrDeviceUnauthorized
	}

	acc, err := s.repomanager.Accounts(s.db).GetByQRCode(ctx, req.UserQR)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, err
	}

	if err := req.Weights.Validate(); err != nil {
		return nil, err
	}

	return &models.WasteRecord{
		ID:        uuid.NewString(),
		DeviceID:  req.DeviceID,
		AccountID: acc.ID,
		Weights:   req.Weights,
		Reward:    s.rates.Reward(req.Weights),
		CreatedAt: s.now(),
	}, nil
}

// RecordUpload authorizes the upload, then stores the record and credits the
// reward in one transaction.
func (s *IngestionService) RecordUpload(ctx context.Context, source string, req UploadRequest) (*models.WasteRecord, error) {
	rec, err := s.AuthorizeUpload(ctx, req)
	if err != nil {
		s.metrics.Upload(source, uploadResult(err), 0)
		s.log.Warn(ctx, "upload rejected", "device_id", req.DeviceID, "source", source, "error", err)
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.WasteRecords(tx).Create(ctx, rec); err != nil {
			return err
		}
		if rec.Reward > 0 {
			return s.repomanager.Accounts(tx).AddRewards(ctx, rec.AccountID, rec.Reward)
		}
		return nil
	})
	if err != nil {
		s.metrics.Upload(source, "error", 0)
		return nil, err
	}

	s.sink.RecordUpload(rec)
	s.metrics.Upload(source, "accepted", rec.Reward)
	s.log.Info(ctx, "upload recorded", "record_id", rec.ID, "device_id", rec.DeviceID, "reward", rec.Reward, "source", source)
	return rec, nil
}

func uploadResult(err error) string {
	switch {
	case errors.Is(err, common.ErrDeviceUnauthorized):
		return "device_unauthorized"
	case errors.Is(err, common.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, common.ErrInvalidWeights):
		return "invalid_weights"
	default:
		return "error"
	}
}
