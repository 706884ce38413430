package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/transport"
)

type contextKey int

const actorKey contextKey = iota

// getActor extracts the caller identity from context.
func getActor(ctx context.Context) access.Actor {
	v, _ := ctx.Value(actorKey).(access.Actor)
	return v
}

// headerIdentityMiddleware resolves the caller from the HTTP request headers
// the same way the JSON API does. Tools decide whether identity is needed.
func headerIdentityMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				ctx = context.WithValue(ctx, actorKey, transport.ActorFromHeaders(extra.Header))
			}
			return next(ctx, method, req)
		}
	}
}

// staticIdentityMiddleware injects a fixed identity for stdio sessions.
func staticIdentityMiddleware(actor access.Actor) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, actorKey, actor)
			return next(ctx, method, req)
		}
	}
}
