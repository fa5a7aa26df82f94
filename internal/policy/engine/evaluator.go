package engine

import (
	"context"

	"sessionguard/backend/internal/policy/domain"
)

// Evaluator decides the second-factor requirements of a login.
type Evaluator interface {
	// EvaluateLogin returns the decision for in. On error the returned decision is
	// domain.DefaultLoginDecision(in), which callers may still act on.
	EvaluateLogin(ctx context.Context, in domain.LoginInput) (domain.LoginDecision, error)
}
