package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sessionguard/backend/internal/session/domain"
)

const (
	sessionColumns = `token, user_id, ip_address, user_agent, is_active, last_activity, expires_at, created_at`

	getSessionSQL = `SELECT ` + sessionColumns + ` FROM sessions WHERE token = $1`

	// Serializes quota checks per user for the life of the transaction.
	lockUserSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	countLiveByUserSQL = `SELECT count(*) FROM sessions WHERE user_id = $1 AND is_active AND expires_at > $2`

	insertSessionSQL = `INSERT INTO sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	touchActivitySQL = `UPDATE sessions SET last_activity = $2
WHERE token = $1 AND is_active AND expires_at > $2`

	deactivateSQL = `UPDATE sessions SET is_active = false WHERE token = $1`

	existsSQL = `SELECT EXISTS (SELECT 1 FROM sessions WHERE token = $1)`

	deactivateByUserSQL = `UPDATE sessions SET is_active = false
WHERE user_id = $1 AND is_active AND token <> $2`

	deactivateAllSQL = `UPDATE sessions SET is_active = false WHERE is_active`

	deactivateExpiredSQL = `UPDATE sessions SET is_active = false WHERE is_active AND expires_at <= $1`

	listLiveSQL = `SELECT ` + sessionColumns + ` FROM sessions
WHERE is_active AND expires_at > $1 AND ($2::text = '' OR user_id = $2)
ORDER BY last_activity DESC, created_at DESC`

	statsSQL = `SELECT
  count(*),
  count(*) FILTER (WHERE expires_at <= $1),
  count(*) FILTER (WHERE expires_at > $1)
FROM sessions WHERE is_active`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByToken returns the session for token, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, getSessionSQL, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// CreateWithinQuota counts and inserts inside one transaction holding a per-user advisory lock,
// so concurrent logins for the same user cannot both slip under the limit.
func (r *PostgresRepository) CreateWithinQuota(ctx context.Context, s *domain.Session, maxLive int, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, lockUserSQL, s.UserID); err != nil {
		return false, err
	}
	var live int
	if err := tx.QueryRowContext(ctx, countLiveByUserSQL, s.UserID, now).Scan(&live); err != nil {
		return false, err
	}
	if live >= maxLive {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, insertSessionSQL, insertSessionArgs(s)...); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// TouchActivity sets last_activity on a live session. Returns false if nothing matched.
func (r *PostgresRepository) TouchActivity(ctx context.Context, token string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, touchActivitySQL, token, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Deactivate marks the session inactive. Returns false only when the token does not exist;
// an already inactive session is reported as found.
func (r *PostgresRepository) Deactivate(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, deactivateSQL, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, existsSQL, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// DeactivateByUser marks all active sessions of the user inactive, except keepToken.
func (r *PostgresRepository) DeactivateByUser(ctx context.Context, userID, keepToken string) (int, error) {
	return r.execCount(ctx, deactivateByUserSQL, userID, keepToken)
}

// DeactivateAll marks every active session inactive.
func (r *PostgresRepository) DeactivateAll(ctx context.Context) (int, error) {
	return r.execCount(ctx, deactivateAllSQL)
}

// DeactivateExpired marks active sessions whose expiry has passed inactive.
func (r *PostgresRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	return r.execCount(ctx, deactivateExpiredSQL, now)
}

// ListLive returns live sessions, most recently active first. Empty userID lists all users.
func (r *PostgresRepository) ListLive(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, listLiveSQL, now, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats counts active rows split by whether they have expired at now.
func (r *PostgresRepository) Stats(ctx context.Context, now time.Time) (domain.Stats, error) {
	var st domain.Stats
	err := r.db.QueryRowContext(ctx, statsSQL, now).Scan(&st.TotalActive, &st.ExpiredButFlaggedActive, &st.ValidActive)
	return st, err
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// insertSessionArgs binds s in sessionColumns order. Unknown client details are stored as ''
// because ip_address and user_agent are NOT NULL.
func insertSessionArgs(s *domain.Session) []any {
	return []any{
		s.Token,
		s.UserID,
		s.IPAddress,
		s.UserAgent,
		s.IsActive,
		s.LastActivity,
		s.ExpiresAt,
		s.CreatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		ip, agent sql.NullString
	)
	if err := row.Scan(&s.Token, &s.UserID, &ip, &agent, &s.IsActive, &s.LastActivity, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	if ip.Valid {
		s.IPAddress = ip.String
	}
	if agent.Valid {
		s.UserAgent = agent.String
	}
	return &s, nil
}
