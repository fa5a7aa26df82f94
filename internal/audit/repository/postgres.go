package repository

import (
	"context"
	"database/sql"

	"sessionguard/backend/internal/audit"
)

const (
	insertEventSQL = `INSERT INTO audit_events (id, actor_id, target_user_id, operation, outcome, detail, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

	listByTargetSQL = `SELECT id, actor_id, target_user_id, operation, outcome, detail, occurred_at
FROM audit_events WHERE target_user_id = $1
ORDER BY occurred_at DESC, id
LIMIT $2 OFFSET $3`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Emit persists e. Re-emitting the same event ID is a no-op.
func (r *PostgresRepository) Emit(ctx context.Context, e audit.Event) error {
	detail := sql.NullString{String: e.Detail, Valid: e.Detail != ""}
	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.ID, e.ActorID, e.TargetUserID, e.Operation, e.Outcome, detail, e.OccurredAt)
	return err
}

// ListByTarget returns events about userID, paginated by limit and offset.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByTarget(ctx context.Context, userID string, limit, offset int32) ([]audit.Event, error) {
	rows, err := r.db.QueryContext(ctx, listByTargetSQL, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []audit.Event
	for rows.Next() {
		var (
			e      audit.Event
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TargetUserID, &e.Operation, &e.Outcome, &detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
