package audit

import "context"

type contextKey struct{ name string }

var actorIDKey = contextKey{"actor_id"}

// WithActor returns a context carrying the id of the user or administrator performing the call.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorFromContext returns the actor id and true if set; otherwise "", false.
func ActorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorIDKey).(string)
	return v, ok && v != ""
}
