package repository

import (
	"context"

	"sessionguard/backend/internal/audit"
)

// Repository defines persistence for audit events. Events are append-only.
type Repository interface {
	// Emit stores e; it makes a Repository usable as an audit.Sink.
	Emit(ctx context.Context, e audit.Event) error
	// ListByTarget returns events about userID, newest first.
	ListByTarget(ctx context.Context, userID string, limit, offset int32) ([]audit.Event, error)
}
