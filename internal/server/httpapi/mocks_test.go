package httpapi

import (
	"context"

	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
)

type mockAccounts struct {
	registerFunc func(ctx context.Context, in services.NewAccount) (*models.Account, error)
	loginFunc    func(ctx context.Context, email, password string) (*services.Session, error)
	getFunc      func(ctx context.Context, id string) (*models.Account, error)
	listFunc     func(ctx context.Context) ([]*models.Account, error)
	deleteFunc   func(ctx context.Context, id string) error
}

func (m *mockAccounts) Register(ctx context.Context, in services.NewAccount) (*models.Account, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, in)
	}
	return &models.Account{ID: "new", Email: in.Email, Role: in.Role}, nil
}

func (m *mockAccounts) Login(ctx context.Context, email, password string) (*services.Session, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAccounts) Get(ctx context.Context, id string) (*models.Account, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &models.Account{ID: id}, nil
}

func (m *mockAccounts) List(ctx context.Context) ([]*models.Account, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockAccounts) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockOTP struct {
	issueFunc  func(ctx context.Context, email string) (*services.IssueResult, error)
	verifyFunc func(ctx context.Context, email, code string) error
	resends    int
}

func (m *mockOTP) Issue(ctx context.Context, email string) (*services.IssueResult, error) {
	if m.issueFunc != nil {
		return m.issueFunc(ctx, email)
	}
	return &services.IssueResult{Email: email, Channel: "email"}, nil
}

func (m *mockOTP) Resend(ctx context.Context, email string) (*services.IssueResult, error) {
	m.resends++
	return m.Issue(ctx, email)
}

func (m *mockOTP) Verify(ctx context.Context, email, code string) error {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, email, code)
	}
	return nil
}

type mockDevices struct {
	registerFunc   func(ctx context.Context, deviceID, apiKey, adminID string) (*services.RegisteredDevice, error)
	deactivateFunc func(ctx context.Context, deviceID string) error
}

func (m *mockDevices) Register(ctx context.Context, deviceID, apiKey, adminID string) (*services.RegisteredDevice, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, deviceID, apiKey, adminID)
	}
	return &services.RegisteredDevice{Device: &models.Device{ID: deviceID, Active: true}, APIKey: apiKey}, nil
}

func (m *mockDevices) Deactivate(ctx context.Context, deviceID string) error {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, deviceID)
	}
	return nil
}

func (m *mockDevices) List(context.Context) ([]*models.Device, error) {
	return []*models.Device{{ID: "bin-1", Active: true}}, nil
}

type mockIngestion struct {
	recordFunc func(ctx context.Context, source string, req services.UploadRequest) (*models.WasteRecord, error)
}

func (m *mockIngestion) RecordUpload(ctx context.Context, source string, req services.UploadRequest) (*models.WasteRecord, error) {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, source, req)
	}
	return &models.WasteRecord{ID: "r1", DeviceID: req.DeviceID, Weights: req.Weights}, nil
}

type mockReports struct {
	recordFunc func(ctx context.Context, recordID, viewerID string, viewerRole models.Role) (*models.WasteRecord, error)
}

func (m *mockReports) Record(ctx context.Context, recordID, viewerID string, viewerRole models.Role) (*models.WasteRecord, error) {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, recordID, viewerID, viewerRole)
	}
	return &models.WasteRecord{ID: recordID, AccountID: viewerID}, nil
}

func (mockReports) QRCode(_ context.Context, id string) (*services.QRCode, error) {
	return &services.QRCode{AccountID: id, Code: "USER_ABCDEFGH"}, nil
}

func (mockReports) History(context.Context, string) ([]*models.WasteRecord, error) {
	return []*models.WasteRecord{}, nil
}

func (mockReports) Rewards(context.Context, string) (*services.Rewards, error) {
	return &services.Rewards{Total: 42}, nil
}

func (mockReports) Stats(context.Context, string) (*services.UserStats, error) {
	return &services.UserStats{TotalRewards: 42}, nil
}

func (mockReports) Recyclables(context.Context) ([]*models.RecyclableEntry, error) {
	return []*models.RecyclableEntry{{RecordID: "r1", Recyclable: 2}}, nil
}

func (mockReports) RecyclableStats(context.Context) (*models.RecyclableStats, error) {
	return &models.RecyclableStats{TotalWeight: 2, TotalEntries: 1}, nil
}

func (mockReports) Overview(context.Context) (*models.Overview, error) {
	return &models.Overview{EndUsers: 3, Devices: 1}, nil
}
