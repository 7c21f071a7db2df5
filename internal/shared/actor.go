package shared

import "context"

// Actor identifies the authenticated user performing an operation. Services
// receive it explicitly instead of reaching into ambient auth state.
type Actor struct {
	UserID   int64
	OutletID int64
	Role     string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
