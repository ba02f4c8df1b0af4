package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/auth"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/repomanager"
)

// RegisteredDevice carries the raw API key, which is shown only once.
type RegisteredDevice struct {
	Device *models.Device
	APIKey string
}

// DeviceService is the device trust registry. Deactivation is one way: a
// deactivated id stays taken and cannot be registered again.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *DeviceService {
	return &DeviceService{db: db, repomanager: m, log: log.With("module", "devices")}
}

// Register stores a new active device. When apiKey is empty a key is
// generated. Only the key digest is persisted.
func (s *DeviceService) Register(ctx context.Context, deviceID, apiKey, adminID string) (*RegisteredDevice, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, common.ErrInvalidDeviceID
	}
	if apiKey == "" {
		key, err := newDeviceKey()
		if err != nil {
			return nil, fmt.Errorf("generating api key: %w", err)
		}
		apiKey = key
	}

	d := &models.Device{ID: deviceID, APIKeyHash: auth.HashAPIKey(apiKey), Active: true, RegisteredBy: adminID}
	created, err := s.repomanager.Devices(s.db).Create(ctx, d)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "device registered", "device_id", deviceID, "admin_id", adminID)
	return &RegisteredDevice{Device: created, APIKey: apiKey}, nil
}

// Validate reports whether the device exists, is active and apiKey matches.
// Errors are returned only for storage failures.
func (s *DeviceService) Validate(ctx context.Context, deviceID, apiKey string) (bool, error) {
	d, err := s.repomanager.Devices(s.db).Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	if !d.Active {
		return false, nil
	}
	return auth.APIKeyMatches(d.APIKeyHash, apiKey), nil
}

// Deactivate marks the device inactive. Deactivating an inactive device is
// a no-op.
func (s *DeviceService) Deactivate(ctx context.Context, deviceID string) error {
	if err := s.repomanager.Devices(s.db).Deactivate(ctx, deviceID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnknownDevice
		}
		return err
	}
	s.log.Info(ctx, "device deactivated", "device_id", deviceID)
	return nil
}

func (s *DeviceService) List(ctx context.Context) ([]*models.Device, error) {
	return s.repomanager.Devices(s.db).List(ctx)
}

func newDeviceKey() (string, error) {
	h, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	return common.DeviceKeyPrefix + strings.ToUpper(h), nil
}
