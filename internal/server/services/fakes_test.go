package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/dbx"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/auth"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/notify"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/devices"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/otps"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/wasterecords"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// --- in-memory repositories ---

// memStore backs every fake repository. The DBTX handed to the manager is
// ignored, so transactions only exercise the begin/commit path.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	codes    []*models.OneTimeCode
	devices  map[string]*models.Device
	records  []*models.WasteRecord

	qrCollisions int
	consumeLost  bool
	recordsErr   error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]*models.Account{},
		devices:  map[string]*models.Device{},
	}
}

type memManager struct{ s *memStore }

func (m memManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m memManager) Accounts(dbx.DBTX) accounts.Repository         { return memAccounts{m.s} }
func (m memManager) OTPs(dbx.DBTX) otps.Repository                 { return memOTPs{m.s} }
func (m memManager) Devices(dbx.DBTX) devices.Repository           { return memDevices{m.s} }
func (m memManager) WasteRecords(dbx.DBTX) wasterecords.Repository { return memRecords{m.s} }

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(_ context.Context, acc *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.qrCollisions > 0 {
		r.s.qrCollisions--
		return nil, accounts.ErrQRCodeTaken
	}
	for _, a := range r.s.accounts {
		switch {
		case a.Email == acc.Email:
			return nil, common.ErrDuplicateEmail
		case a.PhoneNo == acc.PhoneNo:
			return nil, common.ErrDuplicatePhone
		case a.QRCode == acc.QRCode:
			return nil, accounts.ErrQRCodeTaken
		}
	}
	c := *acc
	c.CreatedAt = time.Now()
	r.s.accounts[c.ID] = &c
	out := c
	return &out, nil
}

func (r memAccounts) find(match func(*models.Account) bool) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if match(a) {
			c := *a
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.ID == id })
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Email == email })
}

func (r memAccounts) GetByQRCode(_ context.Context, qr string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.QRCode == qr })
}

func (r memAccounts) update(id string, fn func(*models.Account)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(a)
	return nil
}

func (r memAccounts) MarkEmailVerified(_ context.Context, id string) error {
	return r.update(id, func(a *models.Account) { a.EmailVerified = true })
}

func (r memAccounts) AddRewards(_ context.Context, id string, points int64) error {
	return r.update(id, func(a *models.Account) { a.Rewards += points })
}

func (r memAccounts) List(context.Context) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r memAccounts) CountByRole(_ context.Context, role models.Role) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, a := range r.s.accounts {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

func (r memAccounts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.accounts, id)
	return nil
}

type memOTPs struct{ s *memStore }

func (r memOTPs) Create(_ context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *code
	c.ID = int64(len(r.s.codes) + 1)
	r.s.codes = append(r.s.codes, &c)
	code.ID = c.ID
	return code, nil
}

func (r memOTPs) Latest(_ context.Context, email string) (*models.OneTimeCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.codes) - 1; i >= 0; i-- {
		if r.s.codes[i].Email == email {
			c := *r.s.codes[i]
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memOTPs) Consume(_ context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.consumeLost {
		return false, nil
	}
	for _, c := range r.s.codes {
		if c.ID == id {
			if c.ConsumedAt != nil {
				return false, nil
			}
			c.ConsumedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r memOTPs) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.codes[:0]
	var n int64
	for _, c := range r.s.codes {
		if c.ExpiresAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.s.codes = kept
	return n, nil
}

type memDevices struct{ s *memStore }

func (r memDevices) Create(_ context.Context, d *models.Device) (*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.devices[d.ID]; ok {
		return nil, common.ErrDuplicateDevice
	}
	c := *d
	c.CreatedAt = time.Now()
	r.s.devices[c.ID] = &c
	out := c
	return &out, nil
}

func (r memDevices) Get(_ context.Context, id string) (*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *d
	return &c, nil
}

func (r memDevices) Deactivate(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return common.ErrorNotFound
	}
	d.Active = false
	return nil
}

func (r memDevices) List(context.Context) ([]*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Device, 0, len(r.s.devices))
	for _, d := range r.s.devices {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memDevices) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.devices)), nil
}

type memRecords struct{ s *memStore }

func (r memRecords) Create(_ context.Context, rec *models.WasteRecord) (*models.WasteRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.recordsErr != nil {
		return nil, r.s.recordsErr
	}
	c := *rec
	r.s.records = append(r.s.records, &c)
	return rec, nil
}

func (r memRecords) Get(_ context.Context, id string) (*models.WasteRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.records {
		if rec.ID == id {
			c := *rec
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memRecords) ListByAccount(_ context.Context, accountID string) ([]*models.WasteRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.WasteRecord
	for _, rec := range r.s.records {
		if rec.AccountID == accountID {
			c := *rec
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memRecords) Totals(_ context.Context, accountID string) (models.Totals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var t models.Totals
	for _, rec := range r.s.records {
		if accountID != "" && rec.AccountID != accountID {
			continue
		}
		t.Weights.Organic += rec.Weights.Organic
		t.Weights.Recyclable += rec.Weights.Recyclable
		t.Weights.Hazardous += rec.Weights.Hazardous
		t.Entries++
	}
	return t, nil
}

func (r memRecords) ListRecyclables(context.Context) ([]*models.RecyclableEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.RecyclableEntry
	for _, rec := range r.s.records {
		if rec.Weights.Recyclable <= 0 {
			continue
		}
		e := &models.RecyclableEntry{RecordID: rec.ID, Recyclable: rec.Weights.Recyclable, CreatedAt: rec.CreatedAt}
		if a, ok := r.s.accounts[rec.AccountID]; ok {
			e.UserName, e.UserEmail = a.Name, a.Email
		}
		out = append(out, e)
	}
	return out, nil
}

func (r memRecords) RecyclableStats(context.Context) (*models.RecyclableStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &models.RecyclableStats{}
	for _, rec := range r.s.records {
		if rec.Weights.Recyclable > 0 {
			st.TotalWeight += rec.Weights.Recyclable
			st.TotalEntries++
		}
	}
	return st, nil
}

// --- collaborators ---

type recordingDispatcher struct {
	mu      sync.Mutex
	bodies  map[string]string
	channel notify.Channel
	err     error
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{bodies: map[string]string{}, channel: notify.ChannelEmail}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, to, _, body string) (notify.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.bodies[to] = body
	return d.channel, nil
}

type denyThrottle struct{}

func (denyThrottle) Allow(context.Context, string) error { return common.ErrRateLimited }

type recordingSink struct {
	mu      sync.Mutex
	records []*models.WasteRecord
}

func (s *recordingSink) RecordUpload(rec *models.WasteRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// fixedClock is a settable clock shared by services under test.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// --- fixture ---

type fixture struct {
	db         *sql.DB
	store      *memStore
	clock      *fixedClock
	tokens     *auth.Tokens
	dispatcher *recordingDispatcher
	accounts   *AccountService
	otp        *OTPService
	devices    *DeviceService
	ingestion  *IngestionService
	reports    *ReportService
}

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := newMemStore()
	m := memManager{store}
	clock := &fixedClock{t: testEpoch}
	log := logging.Nop{}

	tokens, err := auth.NewTokens("test-secret", 300*time.Minute)
	require.NoError(t, err)
	tokens.WithClock(clock.Now)

	d := newRecordingDispatcher()
	devs := NewDeviceService(db, m, log)

	return &fixture{
		db:         db,
		store:      store,
		clock:      clock,
		tokens:     tokens,
		dispatcher: d,
		accounts:   NewAccountService(db, m, auth.NewPasswordHasher(bcrypt.MinCost), tokens, log),
		otp:        NewOTPService(db, m, d, log).WithClock(clock.Now),
		devices:    devs,
		ingestion:  NewIngestionService(db, m, devs, models.DefaultRates, log).WithClock(clock.Now),
		reports:    NewReportService(db, m),
	}
}

func (f *fixture) register(t *testing.T, email, phone string, role models.Role) *models.Account {
	t.Helper()
	acc, err := f.accounts.Create(context.Background(), NewAccount{
		Email: email, Name: "Test " + string(role), PhoneNo: phone, Role: role, Password: "secret-pass",
	})
	require.NoError(t, err)
	return acc
}
