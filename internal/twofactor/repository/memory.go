package repository

import (
	"context"
	"sync"
	"time"

	"sessionguard/backend/internal/twofactor/domain"
)

// MemoryRepository is an in-process Repository for tests and single-instance development.
type MemoryRepository struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential
}

// NewMemoryRepository returns an empty in-memory credential repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{creds: make(map[string]*domain.Credential)}
}

func clone(c *domain.Credential) *domain.Credential {
	cp := *c
	cp.Secret = append([]byte(nil), c.Secret...)
	cp.BackupCodes = append([]string(nil), c.BackupCodes...)
	return &cp
}

// GetByUserID returns a copy of the credential, or nil if not found.
func (r *MemoryRepository) GetByUserID(ctx context.Context, userID string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, c *domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := clone(c)
	if existing, ok := r.creds[c.UserID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	r.creds[c.UserID] = cp
	return nil
}

func (r *MemoryRepository) Enable(ctx context.Context, userID string, expectedUpdatedAt, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok || !c.UpdatedAt.Equal(expectedUpdatedAt) || len(c.Secret) == 0 {
		return false, nil
	}
	c.IsEnabled = true
	c.UpdatedAt = at
	return true, nil
}

func (r *MemoryRepository) Reset(ctx context.Context, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return false, nil
	}
	c.IsEnabled = false
	c.Secret = nil
	c.BackupCodes = nil
	c.UpdatedAt = at
	return true, nil
}

func (r *MemoryRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok || !c.IsEnabled {
		return false, nil
	}
	for i, h := range c.BackupCodes {
		if h == codeHash {
			c.BackupCodes = append(c.BackupCodes[:i:i], c.BackupCodes[i+1:]...)
			c.UpdatedAt = at
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return false, nil
	}
	c.BackupCodes = append([]string(nil), hashes...)
	c.UpdatedAt = at
	return true, nil
}
