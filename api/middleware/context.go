package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/harvestlink-backend/pkg/auth"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the authenticated buyer or farmer.
func ActorFromContext(ctx context.Context) (pkgAuth.Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	actor, ok := ctx.Value(ctxActor).(pkgAuth.Actor)
	return actor, ok && actor != nil
}

func BuyerFromContext(ctx context.Context) (pkgAuth.Buyer, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return pkgAuth.Buyer{}, false
	}
	buyer, ok := actor.(pkgAuth.Buyer)
	return buyer, ok
}

func FarmerFromContext(ctx context.Context) (pkgAuth.Farmer, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return pkgAuth.Farmer{}, false
	}
	farmer, ok := actor.(pkgAuth.Farmer)
	return farmer, ok
}

// WithActor injects the actor into the context. Used by Auth and handler tests.
func WithActor(ctx context.Context, actor pkgAuth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func actorKey(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.ActorID().String()
}
