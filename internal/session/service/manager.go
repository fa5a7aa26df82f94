// Package service implements session issuance, activity tracking, quota enforcement,
// expiry and termination on top of an injected session repository.
package service

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"sessionguard/backend/internal/audit"
	"sessionguard/backend/internal/platform/clock"
	"sessionguard/backend/internal/platform/storage"
	"sessionguard/backend/internal/securityconfig"
	"sessionguard/backend/internal/session/domain"
	"sessionguard/backend/internal/session/repository"
	"sessionguard/backend/internal/telemetry"
)

// tokenBytes is the entropy of a session token (256 bits).
const tokenBytes = 32

// Options holds the collaborators of a Manager. Zero values fall back to system clock,
// crypto/rand, no-op audit, no-op logger and no metrics.
type Options struct {
	Clock   clock.Clock
	Random  clock.RandomSource
	Auditor audit.Auditor
	Logger  *zap.Logger
	Metrics *telemetry.Instruments
}

// Manager owns the session lifecycle. It holds no session state of its own.
type Manager struct {
	repo     repository.Repository
	settings securityconfig.Provider
	clock    clock.Clock
	random   clock.RandomSource
	auditor  audit.Auditor
	log      *zap.Logger
	metrics  *telemetry.Instruments
}

// NewManager returns a Manager persisting to repo and reading the concurrent-session quota from settings.
func NewManager(repo repository.Repository, settings securityconfig.Provider, opts Options) *Manager {
	m := &Manager{
		repo:     repo,
		settings: settings,
		clock:    opts.Clock,
		random:   opts.Random,
		auditor:  opts.Auditor,
		log:      opts.Logger,
		metrics:  opts.Metrics,
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
	return m
}

// CreateSession issues a new session for userID expiring timeoutMinutes from now.
// Returns an error matching domain.ErrSessionLimitExceeded (a *domain.LimitError) when the user
// already has MaxConcurrentSessions live sessions; nothing is created in that case.
func (m *Manager) CreateSession(ctx context.Context, userID string, meta domain.ClientMeta, timeoutMinutes int) (*domain.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if timeoutMinutes <= 0 {
		return nil, domain.ErrInvalidTimeout
	}
	cfg, err := m.settings.Get(ctx)
	if err != nil {
		m.auditor.Record(ctx, audit.OpSessionCreate, userID, audit.OutcomeError, "settings unavailable")
		return nil, storage.Wrap("security settings", err)
	}
	token, err := m.newToken()
	if err != nil {
		m.auditor.Record(ctx, audit.OpSessionCreate, userID, audit.OutcomeError, "token generation failed")
		return nil, err
	}
	now := m.clock.Now()
	s := &domain.Session{
		Token:        token,
		UserID:       userID,
		IPAddress:    strings.TrimSpace(meta.IPAddress),
		UserAgent:    strings.TrimSpace(meta.UserAgent),
		IsActive:     true,
		LastActivity: now,
		ExpiresAt:    now.Add(time.Duration(timeoutMinutes) * time.Minute),
		CreatedAt:    now,
	}
	created, err := m.repo.CreateWithinQuota(ctx, s, cfg.MaxConcurrentSessions, now)
	if err != nil {
		m.log.Error("session: create failed", zap.String("user_id", userID), zap.Error(err))
		m.auditor.Record(ctx, audit.OpSessionCreate, userID, audit.OutcomeError, "")
		return nil, storage.Wrap("session create", err)
	}
	if !created {
		m.metrics.SessionLimitExceeded(ctx)
		m.auditor.Record(ctx, audit.OpSessionCreate, userID, audit.OutcomeDenied,
			"limit "+strconv.Itoa(cfg.MaxConcurrentSessions))
		return nil, &domain.LimitError{Limit: cfg.MaxConcurrentSessions}
	}
	m.metrics.SessionCreated(ctx)
	m.auditor.Record(ctx, audit.OpSessionCreate, userID, audit.OutcomeSuccess, "")
	return s, nil
}

// UpdateActivity refreshes LastActivity for a live session. ExpiresAt is fixed at creation
// and is not extended. Unknown, terminated or expired tokens return domain.ErrSessionNotFound.
func (m *Manager) UpdateActivity(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrSessionNotFound
	}
	ok, err := m.repo.TouchActivity(ctx, token, m.clock.Now())
	if err != nil {
		return storage.Wrap("session touch", err)
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

// IsLive reports whether token names an active, unexpired session. Expiry is evaluated
// against the clock, so no sweep is required for an expired session to read as not live.
func (m *Manager) IsLive(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	s, err := m.repo.GetByToken(ctx, token)
	if err != nil {
		return false, storage.Wrap("session get", err)
	}
	return s.IsLive(m.clock.Now()), nil
}

// Get returns the session for token regardless of liveness.
func (m *Manager) Get(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}
	s, err := m.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, storage.Wrap("session get", err)
	}
	if s == nil {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Terminate flips one session inactive. Terminating an already inactive session is a no-op.
func (m *Manager) Terminate(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrSessionNotFound
	}
	s, err := m.repo.GetByToken(ctx, token)
	if err != nil {
		return storage.Wrap("session get", err)
	}
	if s == nil {
		return domain.ErrSessionNotFound
	}
	found, err := m.repo.Deactivate(ctx, token)
	if err != nil {
		m.auditor.Record(ctx, audit.OpSessionTerminate, s.UserID, audit.OutcomeError, "")
		return storage.Wrap("session deactivate", err)
	}
	if !found {
		return domain.ErrSessionNotFound
	}
	if s.IsActive {
		m.metrics.SessionsTerminated(ctx, "single", 1)
	}
	m.auditor.Record(ctx, audit.OpSessionTerminate, s.UserID, audit.OutcomeSuccess, "")
	return nil
}

// TerminateAllForUser flips every active session of userID and returns how many changed.
func (m *Manager) TerminateAllForUser(ctx context.Context, userID string) (int, error) {
	return m.terminateUser(ctx, audit.OpSessionTerminateUser, userID, "")
}

// TerminateOthersForUser flips every active session of userID except keepToken,
// e.g. "sign out other devices" from the current session.
func (m *Manager) TerminateOthersForUser(ctx context.Context, userID, keepToken string) (int, error) {
	if keepToken == "" {
		return 0, domain.ErrSessionNotFound
	}
	return m.terminateUser(ctx, audit.OpSessionTerminateOthers, userID, keepToken)
}

func (m *Manager) terminateUser(ctx context.Context, op, userID, keepToken string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, domain.ErrInvalidUserID
	}
	n, err := m.repo.DeactivateByUser(ctx, userID, keepToken)
	if err != nil {
		m.auditor.Record(ctx, op, userID, audit.OutcomeError, "")
		return 0, storage.Wrap("session deactivate user", err)
	}
	m.metrics.SessionsTerminated(ctx, "user", n)
	m.auditor.Record(ctx, op, userID, audit.OutcomeSuccess, "count "+strconv.Itoa(n))
	return n, nil
}

// TerminateAll flips every active session and returns how many changed.
func (m *Manager) TerminateAll(ctx context.Context) (int, error) {
	n, err := m.repo.DeactivateAll(ctx)
	if err != nil {
		m.auditor.Record(ctx, audit.OpSessionTerminateAll, "", audit.OutcomeError, "")
		return 0, storage.Wrap("session deactivate all", err)
	}
	m.metrics.SessionsTerminated(ctx, "all", n)
	m.log.Info("session: terminated all sessions", zap.Int("count", n))
	m.auditor.Record(ctx, audit.OpSessionTerminateAll, "", audit.OutcomeSuccess, "count "+strconv.Itoa(n))
	return n, nil
}

// ListActiveForUser returns the user's live sessions, most recently active first.
func (m *Manager) ListActiveForUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidUserID
	}
	list, err := m.repo.ListLive(ctx, userID, m.clock.Now())
	if err != nil {
		return nil, storage.Wrap("session list", err)
	}
	return list, nil
}

// ListAllActive returns every live session, most recently active first.
func (m *Manager) ListAllActive(ctx context.Context) ([]*domain.Session, error) {
	list, err := m.repo.ListLive(ctx, "", m.clock.Now())
	if err != nil {
		return nil, storage.Wrap("session list", err)
	}
	return list, nil
}

// SweepExpired flips every active session whose expiry has passed and returns the number of
// rows that transitioned. Rows already inactive are untouched, so repeated sweeps return 0 for them.
// Safe to run concurrently with itself.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	n, err := m.repo.DeactivateExpired(ctx, m.clock.Now())
	if err != nil {
		return 0, storage.Wrap("session sweep", err)
	}
	m.metrics.SessionsSwept(ctx, n)
	if n > 0 {
		m.auditor.Record(ctx, audit.OpSessionSweep, "", audit.OutcomeSuccess, "count "+strconv.Itoa(n))
	}
	return n, nil
}

// Statistics counts active rows split into genuinely live and expired-but-still-flagged.
func (m *Manager) Statistics(ctx context.Context) (domain.Stats, error) {
	st, err := m.repo.Stats(ctx, m.clock.Now())
	if err != nil {
		return domain.Stats{}, storage.Wrap("session stats", err)
	}
	return st, nil
}

func (m *Manager) newToken() (string, error) {
	b, err := clock.ReadBytes(m.random, tokenBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
