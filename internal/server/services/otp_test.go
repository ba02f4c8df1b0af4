package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCode(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}

func TestSignupVerifyLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.otp.WithCodeGenerator(fixedCode("1234"))

	_, err := f.accounts.Register(ctx, NewAccount{
		Email: "a@x.com", Name: "A", PhoneNo: "+1", Role: models.RoleEndUser, Password: "p",
	})
	require.NoError(t, err)

	res, err := f.otp.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	assert.Equal(t, testEpoch.Add(models.OTPValidity), res.ExpiresAt)
	assert.Contains(t, f.dispatcher.bodies["a@x.com"], "1234")

	_, err = f.accounts.Login(ctx, "a@x.com", "p")
	require.ErrorIs(t, err, common.ErrEmailNotVerified)

	require.NoError(t, f.otp.Verify(ctx, "a@x.com", "1234"))

	sess, err := f.accounts.Login(ctx, "a@x.com", "p")
	require.NoError(t, err)
	claims, err := f.tokens.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEndUser, claims.Role)

	_, err = f.otp.Issue(ctx, "a@x.com")
	assert.ErrorIs(t, err, common.ErrEmailAlreadyVerified)
}

func TestOTPService_Issue_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.otp.Issue(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, common.ErrUnknownAccount)
}

func TestOTPService_Issue_GeneratesDigits(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "+1", models.RoleEndUser)

	_, err := f.otp.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)

	require.Len(t, f.store.codes, 1)
	code := f.store.codes[0].Code
	assert.Len(t, code, models.OTPLength)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "non-digit in %q", code)
	}
}

func TestOTPService_Issue_ConsoleFallbackAndFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "+1", models.RoleEndUser)

	f.dispatcher.channel = notify.ChannelConsole
	res, err := f.otp.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, res.Delivered())

	f.dispatcher.err = common.ErrNotifierUnavailable
	_, err = f.otp.Issue(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, common.ErrTransient)
}

func TestOTPService_Issue_Throttled(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "+1", models.RoleEndUser)
	f.otp.WithThrottle(denyThrottle{})

	_, err := f.otp.Issue(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, common.ErrRateLimited)
	assert.Empty(t, f.store.codes)
}

func TestOTPService_Verify_ExpiryBoundary(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"just inside", 9*time.Minute + 59*time.Second, nil},
		{"exactly at expiry", 10 * time.Minute, nil},
		{"just past", 10*time.Minute + time.Second, common.ErrCodeExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.otp.WithCodeGenerator(fixedCode("4321"))
			f.register(t, "a@x.com", "+1", models.RoleEndUser)

			_, err := f.otp.Issue(ctx, "a@x.com")
			require.NoError(t, err)

			f.clock.Set(testEpoch.Add(tt.elapsed))
			err = f.otp.Verify(ctx, "a@x.com", "4321")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOTPService_Verify_NewestCodeWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "+1", models.RoleEndUser)

	f.otp.WithCodeGenerator(fixedCode("1111"))
	_, err := f.otp.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	f.otp.WithCodeGenerator(fixedCode("2222"))
	_, err = f.otp.Resend(ctx, "a@x.com")
	require.NoError(t, err)

	assert.ErrorIs(t, f.otp.Verify(ctx, "a@x.com", "1111"), common.ErrCodeMismatch)
	assert.NoError(t, f.otp.Verify(ctx, "a@x.com", "2222"))
}

func TestOTPService_Verify_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.otp.WithCodeGenerator(fixedCode("5555"))
	f.register(t, "a@x.com", "+1", models.RoleEndUser)

	_, err := f.otp.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, f.otp.Verify(ctx, "a@x.com", "5555"))
	assert.ErrorIs(t, f.otp.Verify(ctx, "a@x.com", "5555"), common.ErrCodeAlreadyConsumed)
}

func TestOTPService_Verify_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.otp.WithCodeGenerator(fixedCode("7777"))
	f.register(t, "a@x.com", "+1", models.RoleEndUser)
	_, err := f.otp.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.otp.Verify(ctx, "a@x.com", "7777")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, common.ErrCodeAlreadyConsumed)
	}
	assert.Equal(t, 1, wins)
}

func TestOTPService_Verify_LostConsumeRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.otp.WithCodeGenerator(fixedCode("8888"))
	acc := f.register(t, "a@x.com", "+1", models.RoleEndUser)
	_, err := f.otp.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	f.store.consumeLost = true
	assert.ErrorIs(t, f.otp.Verify(ctx, "a@x.com", "8888"), common.ErrCodeAlreadyConsumed)

	got, err := f.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.EmailVerified)
}

func TestOTPService_Verify_NoCode(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "+1", models.RoleEndUser)

	err := f.otp.Verify(context.Background(), "a@x.com", "0000")
	assert.ErrorIs(t, err, common.ErrNoActiveCode)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOTPService_Verify_BeginFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newMemStore()
	m := memManager{store}
	svc := NewOTPService(db, m, newRecordingDispatcher(), logging.Nop{}).
		WithClock(func() time.Time { return testEpoch }).
		WithCodeGenerator(fixedCode("1234"))

	_, err = memAccounts{store}.Create(context.Background(), &models.Account{
		ID: "u1", Email: "a@x.com", PhoneNo: "+1", Role: models.RoleEndUser, QRCode: "USER_A",
	})
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), "a@x.com")
	require.NoError(t, err)

	beginErr := errors.New("begin failed")
	mock.ExpectBegin().WillReturnError(beginErr)
	err = svc.Verify(context.Background(), "a@x.com", "1234")
	assert.ErrorIs(t, err, beginErr)
	assert.Nil(t, store.codes[0].ConsumedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPService_PurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "+1", models.RoleEndUser)

	_, err := f.otp.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	f.clock.Set(testEpoch.Add(time.Hour))
	n, err := f.otp.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(testEpoch.Add(25 * time.Hour))
	n, err = f.otp.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOTPService_RunPurge_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.otp.RunPurge(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPurge did not return after cancel")
	}
}
