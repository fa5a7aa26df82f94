package repository

import (
	"context"
	"time"

	"sessionguard/backend/internal/twofactor/domain"
)

// Repository defines persistence for two-factor credentials, one per user.
type Repository interface {
	// GetByUserID returns the credential for the user, or nil if none exists.
	GetByUserID(ctx context.Context, userID string) (*domain.Credential, error)
	// Upsert creates or fully replaces the user's credential.
	Upsert(ctx context.Context, c *domain.Credential) error
	// Enable marks the credential enabled only if it was not modified since expectedUpdatedAt.
	// Returns false when the row is missing or was replaced concurrently.
	Enable(ctx context.Context, userID string, expectedUpdatedAt, at time.Time) (bool, error)
	// Reset disables the credential and wipes its secret and backup codes. Returns false if missing.
	Reset(ctx context.Context, userID string, at time.Time) (bool, error)
	// ConsumeBackupCode removes codeHash from an enabled credential in one atomic step.
	// Returns false if the credential is missing, disabled, or does not hold codeHash.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string, at time.Time) (bool, error)
	// ReplaceBackupCodes overwrites the stored backup code hashes. Returns false if missing.
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) (bool, error)
}

// SecretSealer encrypts TOTP secrets at rest, bound to additional data.
type SecretSealer interface {
	Seal(plaintext, additional []byte) ([]byte, error)
	Open(sealed, additional []byte) ([]byte, error)
}
