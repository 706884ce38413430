package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rpggio/livesync/internal/domain/access"
)

// Identity headers set by the fronting auth layer.
const (
	HeaderUserUID   = "x-user-uid"
	HeaderUserEmail = "x-user-email"
)

type actorKey struct{}

// ActorFromContext returns the request identity. Missing identity yields
// an anonymous actor.
func ActorFromContext(ctx context.Context) access.Actor {
	actor, _ := ctx.Value(actorKey{}).(access.Actor)
	return actor
}

// WithActor stores an identity in ctx.
func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// IdentityMiddleware resolves the caller from the identity headers, or,
// when both are absent, from the claims of a bearer JWT. The token is not
// verified here; verification belongs to the auth layer in front of the
// server.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFromHeaders(r.Header)
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// ActorFromHeaders resolves an identity from request headers.
func ActorFromHeaders(h http.Header) access.Actor {
	actor := access.Actor{
		UID:   strings.TrimSpace(h.Get(HeaderUserUID)),
		Email: strings.ToLower(strings.TrimSpace(h.Get(HeaderUserEmail))),
	}
	if !actor.Anonymous() {
		return actor
	}

	auth := h.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return actor
	}
	if claimed, ok := actorFromToken(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))); ok {
		return claimed
	}
	return actor
}

func actorFromToken(token string) (access.Actor, bool) {
	if token == "" {
		return access.Actor{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return access.Actor{}, false
	}

	uid, _ := claims["user_id"].(string)
	if strings.TrimSpace(uid) == "" {
		uid, _ = claims.GetSubject()
	}
	email, _ := claims["email"].(string)
	actor := access.Actor{
		UID:   strings.TrimSpace(uid),
		Email: strings.ToLower(strings.TrimSpace(email)),
	}
	return actor, !actor.Anonymous()
}
