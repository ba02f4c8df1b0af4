// Package services contains server-side business logic: the credential
// store, the one-time code manager, the device registry, upload ingestion
// and the reports built on top of them.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/auth"
	"github.com/dmitrijs2005/smartwaste/internal/server/metrics"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	qrAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	qrLength     = 8
	qrMaxRetries = 5
)

// Throttle rejects callers that exceed a budget for key.
type Throttle interface {
	Allow(ctx context.Context, key string) error
}

type noThrottle struct{}

func (noThrottle) Allow(context.Context, string) error { return nil }

// NewAccount is the input for creating an account.
type NewAccount struct {
	Email         string
	Name          string
	PhoneNo       string
	Role          models.Role
	Password      string
	EmailVerified bool
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

// AccountService is the credential store: it creates accounts, checks
// passwords and mints session tokens at login.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
	tokens      *auth.Tokens
	throttle    Throttle
	metrics     *metrics.Metrics
	log         logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher, tokens *auth.Tokens, log logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		throttle:    noThrottle{},
		log:         log.With("module", "accounts"),
	}
}

// WithThrottle limits login attempts per email.
func (s *AccountService) WithThrottle(t Throttle) *AccountService {
	s.throttle = t
	return s
}

func (s *AccountService) WithMetrics(m *metrics.Metrics) *AccountService {
	s.metrics = m
	return s
}

// Create validates the input, hashes the password and stores the account
// with a fresh scannable identifier.
func (s *AccountService) Create(ctx context.Context, in NewAccount) (*models.Account, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.ErrInvalidName
	}
	phone := strings.TrimSpace(in.PhoneNo)
	if phone == "" {
		return nil, common.ErrInvalidPhone
	}
	if !in.Role.Valid() {
		return nil, common.ErrInvalidRole
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	for attempt := 0; attempt < qrMaxRetries; attempt++ {
		qr, err := newQRCode()
		if err != nil {
			return nil, fmt.Errorf("generating qr code: %w", err)
		}

		acc := &models.Account{
			ID:            uuid.NewString(),
			Email:         email,
			Name:          name,
			PhoneNo:       phone,
			Role:          in.Role,
			PasswordHash:  hash,
			EmailVerified: in.EmailVerified,
			QRCode:        qr,
		}
		created, err := repo.Create(ctx, acc)
		if errors.Is(err, accounts.ErrQRCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}
	return nil, fmt.Errorf("could not allocate a unique qr code after %d attempts", qrMaxRetries)
}

// Register is the public sign-up path; only end users and buyers qualify.
func (s *AccountService) Register(ctx context.Context, in NewAccount) (*models.Account, error) {
	if !in.Role.SelfRegistrable() {
		return nil, common.ErrInvalidRole
	}
	in.EmailVerified = false

	acc, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account registered", "account_id", acc.ID, "role", acc.Role)
	return acc, nil
}

// VerifyPassword reports whether raw is the account's password.
func (s *AccountService) VerifyPassword(acc *models.Account, raw string) bool {
	return s.hasher.Verify(acc.PasswordHash, raw)
}

// Login checks credentials, then email verification, then issues a token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		s.metrics.Login("invalid_credentials")
		return nil, common.ErrInvalidCredentials
	}
	if err := s.throttle.Allow(ctx, email); err != nil {
		s.metrics.Login("throttled")
		return nil, err
	}

	acc, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(s.dummy(), password)
			s.metrics.Login("invalid_credentials")
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.VerifyPassword(acc, password) {
		s.metrics.Login("invalid_credentials")
		return nil, common.ErrInvalidCredentials
	}
	if auth.RequiresEmailVerification(acc.Role) && !acc.EmailVerified {
		s.metrics.Login("email_not_verified")
		return nil, common.ErrEmailNotVerified
	}

	token, expires, err := s.tokens.IssueWithExpiry(acc)
	if err != nil {
		return nil, err
	}
	s.metrics.Login("success")
	s.log.Info(ctx, "login succeeded", "account_id", acc.ID, "role", acc.Role)

	return &Session{Token: token, ExpiresAt: expires, Account: acc}, nil
}

// Get returns the account with id or common.ErrAccountNotFound.
func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	if !isUUID(id) {
		return nil, common.ErrAccountNotFound
	}
	acc, err := s.repomanager.Accounts(s.db).GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrAccountNotFound
	}
	return acc, err
}

func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	return s.repomanager.Accounts(s.db).List(ctx)
}

// Delete removes a non-admin account together with its uploads.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if acc.Role == models.RoleAdmin {
		return common.ErrProtectedAccount
	}
	if err := s.repomanager.Accounts(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		return err
	}
	s.log.Info(ctx, "account deleted", "account_id", id)
	return nil
}

// EnsureAdmin creates a verified admin account unless one already exists
// for email. It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password, phone, name string) (bool, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}

	existing, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, normalized)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			return false, fmt.Errorf("%w: %s belongs to a %s account", common.ErrDuplicateEmail, normalized, existing.Role)
		}
		return false, nil
	case !errors.Is(err, common.ErrorNotFound):
		return false, err
	}

	acc, err := s.Create(ctx, NewAccount{
		Email: normalized, Name: name, PhoneNo: phone, Role: models.RoleAdmin,
		Password: password, EmailVerified: true,
	})
	if err != nil {
		return false, err
	}
	s.log.Info(ctx, "admin account created", "account_id", acc.ID)
	return true, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

// isUUID reports whether id can name a row. Anything else would reach
// Postgres as an invalid uuid literal.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", common.ErrInvalidEmail
	}
	return email, nil
}

func newQRCode() (string, error) {
	s, err := common.RandomString(qrAlphabet, qrLength)
	if err != nil {
		return "", err
	}
	return common.QRCodePrefix + s, nil
}
