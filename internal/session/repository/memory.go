package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"sessionguard/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository. A single mutex makes CreateWithinQuota atomic.
// Intended for tests and single-instance development; sessions are lost on restart.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

// GetByToken returns a copy of the session for token, or nil if not found.
func (r *MemoryRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// CreateWithinQuota inserts s if the user has fewer than maxLive live sessions at now.
func (r *MemoryRepository) CreateWithinQuota(ctx context.Context, s *domain.Session, maxLive int, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	live := 0
	for _, existing := range r.sessions {
		if existing.UserID == s.UserID && existing.IsLive(now) {
			live++
		}
	}
	if live >= maxLive {
		return false, nil
	}
	cp := *s
	r.sessions[s.Token] = &cp
	return true, nil
}

// TouchActivity sets LastActivity on a live session.
func (r *MemoryRepository) TouchActivity(ctx context.Context, token string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok || !s.IsLive(at) {
		return false, nil
	}
	s.LastActivity = at
	return true, nil
}

// Deactivate marks the session inactive. Returns false only for unknown tokens.
func (r *MemoryRepository) Deactivate(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

// DeactivateByUser marks the user's active sessions inactive, except keepToken.
func (r *MemoryRepository) DeactivateByUser(ctx context.Context, userID, keepToken string) (int, error) {
	return r.deactivateWhere(func(s *domain.Session) bool {
		return s.UserID == userID && s.Token != keepToken
	}), nil
}

// DeactivateAll marks every active session inactive.
func (r *MemoryRepository) DeactivateAll(ctx context.Context) (int, error) {
	return r.deactivateWhere(func(*domain.Session) bool { return true }), nil
}

// DeactivateExpired marks active sessions with ExpiresAt <= now inactive.
func (r *MemoryRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	return r.deactivateWhere(func(s *domain.Session) bool { return !s.ExpiresAt.After(now) }), nil
}

// ListLive returns copies of live sessions, most recently active first.
func (r *MemoryRepository) ListLive(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if !s.IsLive(now) || (userID != "" && s.UserID != userID) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

// Stats counts active sessions split by expiry at now.
func (r *MemoryRepository) Stats(ctx context.Context, now time.Time) (domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st domain.Stats
	for _, s := range r.sessions {
		if !s.IsActive {
			continue
		}
		st.TotalActive++
		if s.ExpiresAt.After(now) {
			st.ValidActive++
		} else {
			st.ExpiredButFlaggedActive++
		}
	}
	return st, nil
}

func (r *MemoryRepository) deactivateWhere(match func(*domain.Session) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.IsActive && match(s) {
			s.IsActive = false
			n++
		}
	}
	return n
}
