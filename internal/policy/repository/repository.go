package repository

import (
	"context"

	"sessionguard/backend/internal/policy/domain"
)

// Repository defines persistence for login policies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	// ListEnabled returns enabled policies in creation order.
	ListEnabled(ctx context.Context) ([]*domain.Policy, error)
	Save(ctx context.Context, p *domain.Policy) error
}
