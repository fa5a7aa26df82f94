package repository

import (
	"context"
	"database/sql"
	"errors"

	"sessionguard/backend/internal/policy/domain"
)

const (
	policyColumns = `id, name, rules, enabled, created_at`

	getPolicySQL = `SELECT ` + policyColumns + ` FROM login_policies WHERE id = $1`

	listEnabledPoliciesSQL = `SELECT ` + policyColumns + ` FROM login_policies WHERE enabled ORDER BY created_at, id`

	savePolicySQL = `INSERT INTO login_policies (` + policyColumns + `) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, rules = EXCLUDED.rules, enabled = EXCLUDED.enabled`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	var p domain.Policy
	err := r.db.QueryRowContext(ctx, getPolicySQL, id).Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListEnabled returns all enabled policies. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, listEnabledPoliciesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Save creates or updates the policy. The policy must have ID set.
func (r *PostgresRepository) Save(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx, savePolicySQL, p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt)
	return err
}
