// Package service implements TOTP two-factor enrollment, login verification and backup codes.
package service

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"sessionguard/backend/internal/audit"
	"sessionguard/backend/internal/platform/clock"
	"sessionguard/backend/internal/platform/storage"
	"sessionguard/backend/internal/security"
	"sessionguard/backend/internal/telemetry"
	"sessionguard/backend/internal/twofactor/domain"
	"sessionguard/backend/internal/twofactor/repository"
	"sessionguard/backend/internal/twofactor/totp"
)

const (
	// BackupCodeCount is the number of backup codes issued per Provision or Regenerate.
	BackupCodeCount = 8
	backupCodeBytes = 4

	// DefaultIssuer names the service in authenticator apps when no issuer is configured.
	DefaultIssuer = "SessionGuard"

	methodTOTP       = "totp"
	methodBackupCode = "backup_code"
	methodConfirm    = "confirm"
)

// Options holds the collaborators of a Manager. Zero values fall back to system clock,
// crypto/rand, no-op audit, no-op logger, no metrics and DefaultIssuer.
type Options struct {
	Clock   clock.Clock
	Random  clock.RandomSource
	Auditor audit.Auditor
	Logger  *zap.Logger
	Metrics *telemetry.Instruments
	Issuer  string
}

// Manager owns the two-factor credential lifecycle.
type Manager struct {
	repo    repository.Repository
	hasher  *security.BackupCodeHasher
	clock   clock.Clock
	random  clock.RandomSource
	auditor audit.Auditor
	log     *zap.Logger
	metrics *telemetry.Instruments
	issuer  string
}

// NewManager returns a Manager persisting to repo. hasher turns backup codes into their stored form.
func NewManager(repo repository.Repository, hasher *security.BackupCodeHasher, opts Options) *Manager {
	m := &Manager{
		repo:    repo,
		hasher:  hasher,
		clock:   opts.Clock,
		random:  opts.Random,
		auditor: opts.Auditor,
		log:     opts.Logger,
		metrics: opts.Metrics,
		issuer:  strings.TrimSpace(opts.Issuer),
	}
	if m.clock == nil {
		m.clock = clock.System()
	}
	if m.random == nil {
		m.random = clock.Crypto()
	}
	if m.auditor == nil {
		m.auditor = audit.Nop{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.issuer == "" {
		m.issuer = DefaultIssuer
	}
	return m
}

// Provision generates a fresh secret and backup codes for userID, replacing any existing credential
// and leaving it disabled until Confirm. accountName labels the entry in authenticator apps and
// defaults to userID. The returned Enrollment is the only time the plaintext codes are available.
func (m *Manager) Provision(ctx context.Context, userID, accountName string) (*domain.Enrollment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	accountName = strings.TrimSpace(accountName)
	if accountName == "" {
		accountName = userID
	}
	// ':' separates issuer from account in the otpauth label.
	accountName = strings.ReplaceAll(accountName, ":", "_")
	secret, err := clock.ReadBytes(m.random, totp.SecretSize)
	if err != nil {
		return nil, err
	}
	codes, err := m.newBackupCodes()
	if err != nil {
		return nil, err
	}
	uri, err := totp.EnrollmentURI(m.issuer, accountName, secret)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	cred := &domain.Credential{
		UserID:      userID,
		Secret:      secret,
		BackupCodes: m.hashCodes(codes),
		IsEnabled:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.Upsert(ctx, cred); err != nil {
		m.log.Error("twofactor: provision failed", zap.String("user_id", userID), zap.Error(err))
		m.auditor.Record(ctx, audit.OpTwoFactorProvision, userID, audit.OutcomeError, "")
		return nil, storage.Wrap("twofactor provision", err)
	}
	m.auditor.Record(ctx, audit.OpTwoFactorProvision, userID, audit.OutcomeSuccess, "")
	return &domain.Enrollment{
		Secret:      totp.EncodeSecret(secret),
		BackupCodes: codes,
		URI:         uri,
	}, nil
}

// Confirm enables a provisioned credential when code matches its secret. A mismatch returns false
// and changes nothing. Backup codes are never accepted here.
func (m *Manager) Confirm(ctx context.Context, userID, code string) (bool, error) {
	cred, err := m.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if !cred.HasSecret() {
		return false, domain.ErrCredentialNotFound
	}
	now := m.clock.Now()
	if !totp.Validate(cred.Secret, code, now, totp.DefaultSkew) {
		m.metrics.TwoFactorVerification(ctx, methodConfirm, false)
		m.auditor.Record(ctx, audit.OpTwoFactorConfirm, userID, audit.OutcomeFailure, "code mismatch")
		return false, nil
	}
	ok, err := m.repo.Enable(ctx, userID, cred.UpdatedAt, now)
	if err != nil {
		m.auditor.Record(ctx, audit.OpTwoFactorConfirm, userID, audit.OutcomeError, "")
		return false, storage.Wrap("twofactor enable", err)
	}
	m.metrics.TwoFactorVerification(ctx, methodConfirm, ok)
	if !ok {
		// Re-provisioned between load and enable; the code belonged to the old secret.
		m.auditor.Record(ctx, audit.OpTwoFactorConfirm, userID, audit.OutcomeFailure, "credential replaced")
		return false, nil
	}
	m.auditor.Record(ctx, audit.OpTwoFactorConfirm, userID, audit.OutcomeSuccess, "")
	return true, nil
}

// VerifyLogin checks a TOTP code for an enabled credential. Disabled credentials always fail.
func (m *Manager) VerifyLogin(ctx context.Context, userID, code string) (bool, error) {
	cred, err := m.load(ctx, userID)
	if err != nil {
		return false, err
	}
	ok := cred.IsEnabled && totp.Validate(cred.Secret, code, m.clock.Now(), totp.DefaultSkew)
	m.metrics.TwoFactorVerification(ctx, methodTOTP, ok)
	return ok, nil
}

// VerifyBackupCode consumes a backup code of an enabled credential. Each code succeeds at most once,
// including under concurrent submission. Matching is case-insensitive and ignores surrounding space.
func (m *Manager) VerifyBackupCode(ctx context.Context, userID, code string) (bool, error) {
	cred, err := m.load(ctx, userID)
	if err != nil {
		return false, err
	}
	normalized := security.NormalizeBackupCode(code)
	if !cred.IsEnabled || normalized == "" {
		m.metrics.TwoFactorVerification(ctx, methodBackupCode, false)
		return false, nil
	}
	hash, found := m.hasher.Match(normalized, cred.BackupCodes)
	if !found {
		m.metrics.TwoFactorVerification(ctx, methodBackupCode, false)
		m.auditor.Record(ctx, audit.OpTwoFactorBackupCodeUse, cred.UserID, audit.OutcomeFailure, "unknown code")
		return false, nil
	}
	ok, err := m.repo.ConsumeBackupCode(ctx, cred.UserID, hash, m.clock.Now())
	if err != nil {
		m.auditor.Record(ctx, audit.OpTwoFactorBackupCodeUse, cred.UserID, audit.OutcomeError, "")
		return false, storage.Wrap("twofactor consume backup code", err)
	}
	m.metrics.TwoFactorVerification(ctx, methodBackupCode, ok)
	if !ok {
		m.auditor.Record(ctx, audit.OpTwoFactorBackupCodeUse, cred.UserID, audit.OutcomeFailure, "already used")
		return false, nil
	}
	m.auditor.Record(ctx, audit.OpTwoFactorBackupCodeUse, cred.UserID, audit.OutcomeSuccess,
		"remaining "+strconv.Itoa(len(cred.BackupCodes)-1))
	return true, nil
}

// Disable turns two-factor off and wipes the secret and remaining backup codes.
// Enabling again requires a new Provision.
func (m *Manager) Disable(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	ok, err := m.repo.Reset(ctx, userID, m.clock.Now())
	if err != nil {
		m.log.Error("twofactor: disable failed", zap.String("user_id", userID), zap.Error(err))
		m.auditor.Record(ctx, audit.OpTwoFactorDisable, userID, audit.OutcomeError, "")
		return storage.Wrap("twofactor disable", err)
	}
	if !ok {
		return domain.ErrCredentialNotFound
	}
	m.auditor.Record(ctx, audit.OpTwoFactorDisable, userID, audit.OutcomeSuccess, "")
	return nil
}

// Status reports whether two-factor is enabled and how many backup codes remain.
// A user that never provisioned reports the zero Status.
func (m *Manager) Status(ctx context.Context, userID string) (domain.Status, error) {
	cred, err := m.repo.GetByUserID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Status{}, storage.Wrap("twofactor status", err)
	}
	if cred == nil {
		return domain.Status{}, nil
	}
	return domain.Status{IsEnabled: cred.IsEnabled, BackupCodesRemaining: len(cred.BackupCodes)}, nil
}

// RegenerateBackupCodes replaces all backup codes with a fresh set. The secret and IsEnabled are unchanged.
func (m *Manager) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	codes, err := m.newBackupCodes()
	if err != nil {
		return nil, err
	}
	ok, err := m.repo.ReplaceBackupCodes(ctx, userID, m.hashCodes(codes), m.clock.Now())
	if err != nil {
		m.auditor.Record(ctx, audit.OpTwoFactorBackupCodeRegen, userID, audit.OutcomeError, "")
		return nil, storage.Wrap("twofactor regenerate backup codes", err)
	}
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	m.auditor.Record(ctx, audit.OpTwoFactorBackupCodeRegen, userID, audit.OutcomeSuccess, "")
	return codes, nil
}

// load returns the user's credential or ErrCredentialNotFound.
func (m *Manager) load(ctx context.Context, userID string) (*domain.Credential, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrCredentialNotFound
	}
	cred, err := m.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storage.Wrap("twofactor get", err)
	}
	if cred == nil {
		return nil, domain.ErrCredentialNotFound
	}
	return cred, nil
}

func (m *Manager) newBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	seen := make(map[string]struct{}, BackupCodeCount)
	for len(codes) < BackupCodeCount {
		b, err := clock.ReadBytes(m.random, backupCodeBytes)
		if err != nil {
			return nil, err
		}
		code := strings.ToUpper(hex.EncodeToString(b))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func (m *Manager) hashCodes(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = m.hasher.Hash(c)
	}
	return out
}
