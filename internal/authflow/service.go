// Package authflow issues sessions after the login policy's second-factor requirements are met.
// Primary credential checks (passwords, SSO) happen before Login is called.
package authflow

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"sessionguard/backend/internal/platform/storage"
	policydomain "sessionguard/backend/internal/policy/domain"
	"sessionguard/backend/internal/policy/engine"
	"sessionguard/backend/internal/securityconfig"
	sessiondomain "sessionguard/backend/internal/session/domain"
	tfdomain "sessionguard/backend/internal/twofactor/domain"
)

var (
	// ErrSecondFactorRequired is returned when the policy requires a code and none was supplied.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrSecondFactorFailed is matched by every rejected TOTP or backup code.
	ErrSecondFactorFailed = errors.New("second factor verification failed")
	// ErrEnrollmentRequired is returned when two-factor is mandatory and the user has not enrolled.
	ErrEnrollmentRequired = errors.New("two-factor enrollment required")
)

// SecondFactorError reports a rejected code with one message regardless of method.
// Unwrap exposes tfdomain.ErrInvalidCode or tfdomain.ErrInvalidBackupCode for server-side logging.
type SecondFactorError struct {
	cause error
}

func (e *SecondFactorError) Error() string { return ErrSecondFactorFailed.Error() }

func (e *SecondFactorError) Unwrap() error { return e.cause }

// Is matches ErrSecondFactorFailed.
func (e *SecondFactorError) Is(target error) bool { return target == ErrSecondFactorFailed }

// SessionIssuer creates sessions.
type SessionIssuer interface {
	CreateSession(ctx context.Context, userID string, meta sessiondomain.ClientMeta, timeoutMinutes int) (*sessiondomain.Session, error)
}

// TwoFactorVerifier checks second factors.
type TwoFactorVerifier interface {
	Status(ctx context.Context, userID string) (tfdomain.Status, error)
	VerifyLogin(ctx context.Context, userID, code string) (bool, error)
	VerifyBackupCode(ctx context.Context, userID, code string) (bool, error)
}

// LoginRequest carries an already authenticated user and an optional second factor.
// TOTPCode takes precedence when both codes are set.
type LoginRequest struct {
	UserID     string
	Meta       sessiondomain.ClientMeta
	TOTPCode   string
	BackupCode string
}

// Service runs the login sequence.
type Service struct {
	sessions  SessionIssuer
	twoFactor TwoFactorVerifier
	policy    engine.Evaluator
	settings  securityconfig.Provider
	log       *zap.Logger
}

// NewService returns a login Service. log may be nil.
func NewService(sessions SessionIssuer, twoFactor TwoFactorVerifier, policy engine.Evaluator, settings securityconfig.Provider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{sessions: sessions, twoFactor: twoFactor, policy: policy, settings: settings, log: log}
}

// Login evaluates the login policy, verifies the second factor when required and issues a session
// with the configured timeout. Session quota errors are returned unchanged.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*sessiondomain.Session, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, sessiondomain.ErrInvalidUserID
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, storage.Wrap("security settings", err)
	}
	status, err := s.twoFactor.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	decision, err := s.policy.EvaluateLogin(ctx, policydomain.LoginInput{
		UserID:             userID,
		TwoFactorMandatory: cfg.TwoFactorMandatory,
		TwoFactorEnabled:   status.IsEnabled,
	})
	if err != nil {
		s.log.Warn("authflow: policy evaluation failed, applying built-in decision",
			zap.String("user_id", userID), zap.Error(err))
	}
	if decision.EnrollmentRequired {
		return nil, ErrEnrollmentRequired
	}
	if decision.SecondFactorRequired {
		if err := s.verifySecondFactor(ctx, userID, req); err != nil {
			return nil, err
		}
	}
	return s.sessions.CreateSession(ctx, userID, req.Meta, cfg.SessionTimeoutMinutes)
}

func (s *Service) verifySecondFactor(ctx context.Context, userID string, req LoginRequest) error {
	totpCode := strings.TrimSpace(req.TOTPCode)
	backupCode := strings.TrimSpace(req.BackupCode)
	switch {
	case totpCode != "":
		ok, err := s.twoFactor.VerifyLogin(ctx, userID, totpCode)
		if err != nil && !errors.Is(err, tfdomain.ErrCredentialNotFound) {
			return err
		}
		if !ok {
			s.log.Info("authflow: totp rejected", zap.String("user_id", userID))
			return &SecondFactorError{cause: tfdomain.ErrInvalidCode}
		}
	case backupCode != "":
		ok, err := s.twoFactor.VerifyBackupCode(ctx, userID, backupCode)
		if err != nil && !errors.Is(err, tfdomain.ErrCredentialNotFound) {
			return err
		}
		if !ok {
			s.log.Info("authflow: backup code rejected", zap.String("user_id", userID))
			return &SecondFactorError{cause: tfdomain.ErrInvalidBackupCode}
		}
	default:
		return ErrSecondFactorRequired
	}
	return nil
}
