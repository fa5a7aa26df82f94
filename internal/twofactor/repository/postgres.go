package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sessionguard/backend/internal/twofactor/domain"
)

// Backup code hashes are hex, so a comma is a safe separator when crossing the driver boundary.
const (
	getCredentialSQL = `SELECT user_id, secret, array_to_string(backup_codes, ','), is_enabled, created_at, updated_at
FROM two_factor_credentials WHERE user_id = $1`

	upsertCredentialSQL = `INSERT INTO two_factor_credentials (user_id, secret, backup_codes, is_enabled, created_at, updated_at)
VALUES ($1, $2, string_to_array($3, ','), $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
  secret = EXCLUDED.secret,
  backup_codes = EXCLUDED.backup_codes,
  is_enabled = EXCLUDED.is_enabled,
  updated_at = EXCLUDED.updated_at`

	enableSQL = `UPDATE two_factor_credentials SET is_enabled = true, updated_at = $3
WHERE user_id = $1 AND updated_at = $2 AND secret IS NOT NULL`

	resetSQL = `UPDATE two_factor_credentials SET is_enabled = false, secret = NULL, backup_codes = '{}', updated_at = $2
WHERE user_id = $1`

	consumeBackupCodeSQL = `UPDATE two_factor_credentials
SET backup_codes = array_remove(backup_codes, $2), updated_at = $3
WHERE user_id = $1 AND is_enabled AND $2 = ANY(backup_codes)`

	replaceBackupCodesSQL = `UPDATE two_factor_credentials SET backup_codes = string_to_array($2, ','), updated_at = $3
WHERE user_id = $1`
)

// PostgresRepository stores credentials in two_factor_credentials with the secret sealed by a SecretSealer.
type PostgresRepository struct {
	db     *sql.DB
	sealer SecretSealer
}

// NewPostgresRepository returns a credential repository. sealer must not be nil.
func NewPostgresRepository(db *sql.DB, sealer SecretSealer) *PostgresRepository {
	return &PostgresRepository{db: db, sealer: sealer}
}

// GetByUserID returns the credential with the secret opened, or nil if not found.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Credential, error) {
	var (
		c      domain.Credential
		sealed []byte
		codes  string
	)
	err := r.db.QueryRowContext(ctx, getCredentialSQL, userID).
		Scan(&c.UserID, &sealed, &codes, &c.IsEnabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(sealed) > 0 {
		secret, err := r.sealer.Open(sealed, []byte(c.UserID))
		if err != nil {
			return nil, fmt.Errorf("open totp secret for %s: %w", c.UserID, err)
		}
		c.Secret = secret
	}
	c.BackupCodes = splitCodes(codes)
	return &c, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, c *domain.Credential) error {
	var sealed []byte
	if len(c.Secret) > 0 {
		var err error
		sealed, err = r.sealer.Seal(c.Secret, []byte(c.UserID))
		if err != nil {
			return fmt.Errorf("seal totp secret: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, upsertCredentialSQL,
		c.UserID, sealed, strings.Join(c.BackupCodes, ","), c.IsEnabled, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *PostgresRepository) Enable(ctx context.Context, userID string, expectedUpdatedAt, at time.Time) (bool, error) {
	return r.execAffected(ctx, enableSQL, userID, expectedUpdatedAt, at)
}

func (r *PostgresRepository) Reset(ctx context.Context, userID string, at time.Time) (bool, error) {
	return r.execAffected(ctx, resetSQL, userID, at)
}

func (r *PostgresRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string, at time.Time) (bool, error) {
	return r.execAffected(ctx, consumeBackupCodeSQL, userID, codeHash, at)
}

func (r *PostgresRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) (bool, error) {
	return r.execAffected(ctx, replaceBackupCodesSQL, userID, strings.Join(hashes, ","), at)
}

func (r *PostgresRepository) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func splitCodes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
