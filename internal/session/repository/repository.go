package repository

import (
	"context"
	"time"

	"sessionguard/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Implementations must make CreateWithinQuota
// atomic with respect to other calls for the same user.
type Repository interface {
	// GetByToken returns the session for token, or nil if not found.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	// CreateWithinQuota inserts s only if the user has fewer than maxLive live sessions at now.
	// Returns created=false (and no error) when the quota is already reached.
	CreateWithinQuota(ctx context.Context, s *domain.Session, maxLive int, now time.Time) (created bool, err error)
	// TouchActivity sets last_activity for a live session. Returns false if no live session matched.
	TouchActivity(ctx context.Context, token string, at time.Time) (bool, error)
	// Deactivate flips one session to inactive. Returns false if the token is unknown.
	Deactivate(ctx context.Context, token string) (bool, error)
	// DeactivateByUser flips all active sessions of the user, except keepToken when non-empty.
	DeactivateByUser(ctx context.Context, userID, keepToken string) (int, error)
	// DeactivateAll flips every active session.
	DeactivateAll(ctx context.Context) (int, error)
	// DeactivateExpired flips active sessions with expires_at <= now.
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
	// ListLive returns live sessions ordered by last_activity descending. Empty userID lists all users.
	ListLive(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// Stats counts active rows split by expiry at now.
	Stats(ctx context.Context, now time.Time) (domain.Stats, error)
}
