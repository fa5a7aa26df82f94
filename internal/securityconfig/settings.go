// Package securityconfig supplies the security tunables read by the session and two-factor core:
// session timeout, concurrent-session quota and whether two-factor is mandatory.
package securityconfig

import (
	"context"
	"errors"
)

// Settings holds the security tunables.
type Settings struct {
	// SessionTimeoutMinutes is the fixed time-to-live of a new session (> 0).
	SessionTimeoutMinutes int
	// MaxConcurrentSessions is the number of live sessions a user may hold at once (>= 1).
	MaxConcurrentSessions int
	// TwoFactorMandatory requires every user to enroll in and pass two-factor at login.
	TwoFactorMandatory bool
}

// Validate reports whether the settings are usable.
func (s Settings) Validate() error {
	if s.SessionTimeoutMinutes <= 0 {
		return errors.New("securityconfig: session timeout minutes must be positive")
	}
	if s.MaxConcurrentSessions < 1 {
		return errors.New("securityconfig: max concurrent sessions must be at least 1")
	}
	return nil
}

// Provider returns the current settings. Implementations may read from a store on each call.
type Provider interface {
	Get(ctx context.Context) (Settings, error)
}

// Static is a Provider that always returns the same settings.
type Static Settings

// Get returns the static settings.
func (s Static) Get(context.Context) (Settings, error) {
	return Settings(s), nil
}
