package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionguard/backend/internal/platform/clock"
	"sessionguard/backend/internal/policy/engine"
	"sessionguard/backend/internal/security"
	"sessionguard/backend/internal/securityconfig"
	sessiondomain "sessionguard/backend/internal/session/domain"
	sessionrepo "sessionguard/backend/internal/session/repository"
	sessionservice "sessionguard/backend/internal/session/service"
	tfdomain "sessionguard/backend/internal/twofactor/domain"
	tfrepo "sessionguard/backend/internal/twofactor/repository"
	tfservice "sessionguard/backend/internal/twofactor/service"
	"sessionguard/backend/internal/twofactor/totp"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	sessions  *sessionservice.Manager
	twoFactor *tfservice.Manager
	clock     *clock.Fake
}

func newFixture(t *testing.T, settings securityconfig.Static) *fixture {
	t.Helper()
	clk := clock.NewFake(t0)
	sessions := sessionservice.NewManager(sessionrepo.NewMemoryRepository(), settings, sessionservice.Options{Clock: clk})
	twoFactor := tfservice.NewManager(tfrepo.NewMemoryRepository(), security.NewBackupCodeHasher([]byte("k")), tfservice.Options{Clock: clk})
	policy, err := engine.NewOPAEvaluator(context.Background(), nil, nil)
	require.NoError(t, err)
	return &fixture{
		svc:       NewService(sessions, twoFactor, policy, settings, nil),
		sessions:  sessions,
		twoFactor: twoFactor,
		clock:     clk,
	}
}

func defaultSettings() securityconfig.Static {
	return securityconfig.Static{SessionTimeoutMinutes: 30, MaxConcurrentSessions: 5}
}

func (f *fixture) enroll(t *testing.T, userID string) *tfdomain.Enrollment {
	t.Helper()
	e, err := f.twoFactor.Provision(context.Background(), userID, "")
	require.NoError(t, err)
	ok, err := f.twoFactor.Confirm(context.Background(), userID, f.code(t, e))
	require.NoError(t, err)
	require.True(t, ok)
	return e
}

func (f *fixture) code(t *testing.T, e *tfdomain.Enrollment) string {
	t.Helper()
	secret, err := totp.DecodeSecret(e.Secret)
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, f.clock.Now())
	require.NoError(t, err)
	return code
}

func TestLogin_NoSecondFactor(t *testing.T) {
	f := newFixture(t, defaultSettings())
	s, err := f.svc.Login(context.Background(), LoginRequest{UserID: "u1", Meta: sessiondomain.ClientMeta{IPAddress: "10.0.0.1"}})
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, t0.Add(30*time.Minute), s.ExpiresAt, "timeout comes from settings")
	assert.Equal(t, "10.0.0.1", s.IPAddress)
}

func TestLogin_EnrolledRequiresCode(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.enroll(t, "u1")

	_, err := f.svc.Login(context.Background(), LoginRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrSecondFactorRequired)
}

func TestLogin_TOTP(t *testing.T) {
	f := newFixture(t, defaultSettings())
	e := f.enroll(t, "u1")

	s, err := f.svc.Login(context.Background(), LoginRequest{UserID: "u1", TOTPCode: f.code(t, e)})
	require.NoError(t, err)
	live, err := f.sessions.IsLive(context.Background(), s.Token)
	require.NoError(t, err)
	assert.True(t, live)
}

func TestLogin_BackupCodeSingleUse(t *testing.T) {
	f := newFixture(t, defaultSettings())
	e := f.enroll(t, "u1")

	_, err := f.svc.Login(context.Background(), LoginRequest{UserID: "u1", BackupCode: e.BackupCodes[0]})
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), LoginRequest{UserID: "u1", BackupCode: e.BackupCodes[0]})
	assert.ErrorIs(t, err, ErrSecondFactorFailed)
	assert.ErrorIs(t, err, tfdomain.ErrInvalidBackupCode)
}

func TestLogin_FailureMessageIsUniform(t *testing.T) {
	f := newFixture(t, defaultSettings())
	e := f.enroll(t, "u1")
	bad := "000000"
	if f.code(t, e) == bad {
		bad = "111111"
	}

	_, totpErr := f.svc.Login(context.Background(), LoginRequest{UserID: "u1", TOTPCode: bad})
	_, backupErr := f.svc.Login(context.Background(), LoginRequest{UserID: "u1", BackupCode: "ZZZZZZZZ"})

	require.Error(t, totpErr)
	require.Error(t, backupErr)
	assert.Equal(t, totpErr.Error(), backupErr.Error())
	assert.ErrorIs(t, totpErr, tfdomain.ErrInvalidCode)
	assert.ErrorIs(t, backupErr, tfdomain.ErrInvalidBackupCode)

	var sfe *SecondFactorError
	assert.True(t, errors.As(totpErr, &sfe))
}

func TestLogin_MandatoryRequiresEnrollment(t *testing.T) {
	settings := defaultSettings()
	settings.TwoFactorMandatory = true
	f := newFixture(t, settings)

	_, err := f.svc.Login(context.Background(), LoginRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrEnrollmentRequired)

	// Provisioned but unconfirmed still counts as not enrolled.
	_, err = f.twoFactor.Provision(context.Background(), "u1", "")
	require.NoError(t, err)
	_, err = f.svc.Login(context.Background(), LoginRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrEnrollmentRequired)
}

func TestLogin_MandatoryEnrolled(t *testing.T) {
	settings := defaultSettings()
	settings.TwoFactorMandatory = true
	f := newFixture(t, settings)
	e := f.enroll(t, "u1")

	_, err := f.svc.Login(context.Background(), LoginRequest{UserID: "u1", TOTPCode: f.code(t, e)})
	assert.NoError(t, err)
}

func TestLogin_QuotaReportedPrecisely(t *testing.T) {
	settings := defaultSettings()
	settings.MaxConcurrentSessions = 1
	f := newFixture(t, settings)

	_, err := f.svc.Login(context.Background(), LoginRequest{UserID: "u1"})
	require.NoError(t, err)
	_, err = f.svc.Login(context.Background(), LoginRequest{UserID: "u1"})
	assert.ErrorIs(t, err, sessiondomain.ErrSessionLimitExceeded)
	var le *sessiondomain.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 1, le.Limit)
}

func TestLogin_EmptyUser(t *testing.T) {
	f := newFixture(t, defaultSettings())
	_, err := f.svc.Login(context.Background(), LoginRequest{UserID: " "})
	assert.ErrorIs(t, err, sessiondomain.ErrInvalidUserID)
}
