package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/dbx"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/metrics"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/notify"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/repomanager"
)

// otpRetention is how long expired codes are kept before purging.
const otpRetention = 24 * time.Hour

// Dispatcher delivers a message and reports which channel carried it.
type Dispatcher interface {
	Dispatch(ctx context.Context, to, subject, body string) (notify.Channel, error)
}

// IssueResult describes a freshly issued code. The code itself is never
// returned; it only travels through the notification channel.
type IssueResult struct {
	Email     string
	ExpiresAt time.Time
	Channel   notify.Channel
}

// Delivered reports whether the code went out by email rather than the
// console fallback.
func (r *IssueResult) Delivered() bool {
	return r.Channel == notify.ChannelEmail
}

// OTPService issues and verifies email one-time codes. Codes form an
// append-only log per email and only the newest entry is ever valid.
type OTPService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	dispatcher  Dispatcher
	throttle    Throttle
	metrics     *metrics.Metrics
	log         logging.Logger
	validity    time.Duration
	now         func() time.Time
	generate    func() (string, error)
}

func NewOTPService(db *sql.DB, m repomanager.RepositoryManager, d Dispatcher, log logging.Logger) *OTPService {
	return &OTPService{
		db:          db,
		repomanager: m,
		dispatcher:  d,
		throttle:    noThrottle{},
		log:         log.With("module", "otp"),
		validity:    models.OTPValidity,
		now:         time.Now,
		generate:    func() (string, error) { return common.RandomDigits(models.OTPLength) },
	}
}

func (s *OTPService) WithThrottle(t Throttle) *OTPService {
	s.throttle = t
	return s
}

func (s *OTPService) WithMetrics(m *metrics.Metrics) *OTPService {
	s.metrics = m
	return s
}

func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	s.now = now
	return s
}

// WithValidity overrides how long a code stays valid after issuance.
func (s *OTPService) WithValidity(d time.Duration) *OTPService {
	if d > 0 {
		s.validity = d
	}
	return s
}

func (s *OTPService) WithCodeGenerator(gen func() (string, error)) *OTPService {
	s.generate = gen
	return s
}

// Issue creates a new code for email, superseding earlier ones, and sends
// it. Delivery failures degrade to the console channel.
func (s *OTPService) Issue(ctx context.Context, email string) (*IssueResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.throttle.Allow(ctx, email); err != nil {
		return nil, err
	}

	acc, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownAccount
		}
		return nil, err
	}
	if acc.EmailVerified {
		return nil, common.ErrEmailAlreadyVerified
	}

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}
	now := s.now()
	otp := &models.OneTimeCode{Email: email, Code: code, IssuedAt: now, ExpiresAt: now.Add(s.validity)}
	if _, err := s.repomanager.OTPs(s.db).Create(ctx, otp); err != nil {
		return nil, err
	}

	subject := "Your Smart Waste verification code"
	body := fmt.Sprintf("Hello %s,\n\nYour verification code is %s. It expires in %d minutes.\n",
		acc.Name, code, int(s.validity.Minutes()))
	channel, err := s.dispatcher.Dispatch(ctx, email, subject, body)
	if err != nil {
		return nil, err
	}
	s.metrics.OTPIssued(string(channel))
	s.log.Info(ctx, "verification code issued", "account_id", acc.ID, "channel", channel)

	return &IssueResult{Email: email, ExpiresAt: otp.ExpiresAt, Channel: channel}, nil
}

// Resend behaves exactly like Issue.
func (s *OTPService) Resend(ctx context.Context, email string) (*IssueResult, error) {
	return s.Issue(ctx, email)
}

// Verify checks code against the newest code for email. On success the code
// is consumed and the account's email is marked verified in one
// transaction; of two concurrent calls with the same code at most one wins.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	err := s.verify(ctx, email, code)
	s.metrics.OTPVerified(verifyResult(err))
	return err
}

func (s *OTPService) verify(ctx context.Context, email, code string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	latest, err := s.repomanager.OTPs(s.db).Latest(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrNoActiveCode
		}
		return err
	}

	if subtle.ConstantTimeCompare([]byte(latest.Code), []byte(code)) != 1 {
		return common.ErrCodeMismatch
	}
	if latest.Consumed() {
		return common.ErrCodeAlreadyConsumed
	}
	now := s.now()
	if latest.Expired(now) {
		return common.ErrCodeExpired
	}

	acc, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnknownAccount
		}
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		won, err := s.repomanager.OTPs(tx).Consume(ctx, latest.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return common.ErrCodeAlreadyConsumed
		}
		return s.repomanager.Accounts(tx).MarkEmailVerified(ctx, acc.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "email verified", "account_id", acc.ID)
	return nil
}

// PurgeExpired deletes codes that expired more than a day ago.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repomanager.OTPs(s.db).DeleteExpiredBefore(ctx, s.now().Add(-otpRetention))
}

// RunPurge calls PurgeExpired every interval until ctx is cancelled.
func (s *OTPService) RunPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.Error(ctx, "purging expired codes failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Debug(ctx, "purged expired codes", "count", n)
			}
		}
	}
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrNoActiveCode):
		return "no_active_code"
	case errors.Is(err, common.ErrCodeMismatch):
		return "mismatch"
	case errors.Is(err, common.ErrCodeAlreadyConsumed):
		return "already_consumed"
	case errors.Is(err, common.ErrCodeExpired):
		return "expired"
	default:
		return "error"
	}
}
