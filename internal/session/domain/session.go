package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for session lifecycle. Storage failures are reported separately via storage.ErrUnavailable.
var (
	ErrSessionLimitExceeded = errors.New("concurrent session limit reached")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidTimeout       = errors.New("session timeout must be positive")
	ErrInvalidUserID        = errors.New("user id is required")
)

// LimitError reports the quota that blocked CreateSession. It matches ErrSessionLimitExceeded.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("concurrent session limit reached (max %d)", e.Limit)
}

// Is reports whether target is ErrSessionLimitExceeded.
func (e *LimitError) Is(target error) bool { return target == ErrSessionLimitExceeded }

// Session is a server-side record of a user's right to act for a bounded time.
// A session is live iff IsActive and ExpiresAt is after now. Once inactive it never reactivates.
type Session struct {
	Token        string
	UserID       string
	IPAddress    string // empty when unknown
	UserAgent    string // empty when unknown
	IsActive     bool
	LastActivity time.Time
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// IsLive reports whether the session is active and unexpired at now.
func (s *Session) IsLive(now time.Time) bool {
	return s != nil && s.IsActive && s.ExpiresAt.After(now)
}

// ClientMeta carries optional client details recorded on a new session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// Stats is a diagnostic aggregate over rows flagged active.
// ExpiredButFlaggedActive > 0 means a sweep is overdue.
type Stats struct {
	TotalActive             int
	ExpiredButFlaggedActive int
	ValidActive             int
}
