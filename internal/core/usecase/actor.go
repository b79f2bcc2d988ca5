package usecase

import "context"

type actorCtxKey struct{}

const systemActor = "system"

// WithActor records who is performing the mutations made with ctx; the name
// ends up on every audit entry.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorCtxKey{}).(string)
	if actor == "" {
		return systemActor
	}
	return actor
}
