// Package ctxutil provides context utilities that can be safely imported anywhere.
// It imports no other package of this module so it never causes import cycles.
package ctxutil

import "context"

// ActorKey is the context key for the operator performing a governance action.
type ActorKey struct{}

// WithActorID returns a context carrying the operator identity.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// ActorFromContext returns the operator identity, or empty string if not set.
// Governance log entries record it in their payload.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}
