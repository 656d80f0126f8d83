// Package auth resolves the identity behind an HTTP request.
package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Skryldev/reviewkit/models"
)

// Resolver turns a request into an identity. ok is false when the caller is
// anonymous or presented bad credentials; the two are not distinguished.
type Resolver interface {
	Resolve(r *http.Request) (identity models.Identity, ok bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (models.Identity, bool)

func (f ResolverFunc) Resolve(r *http.Request) (models.Identity, bool) { return f(r) }

// JWTResolver reads an "Authorization: Bearer <token>" header.
type JWTResolver struct {
	Issuer *Issuer
	Log    *zap.Logger
}

func (j JWTResolver) Resolve(r *http.Request) (models.Identity, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return models.Identity{}, false
	}
	claims, err := j.Issuer.Verify(token)
	if err != nil {
		if j.Log != nil {
			j.Log.Debug("rejected bearer token", zap.Error(err))
		}
		return models.Identity{}, false
	}
	return models.Identity{Email: claims.Email}, true
}

type identityKey struct{}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(identityKey{}).(models.Identity)
	if !ok {
		return nil
	}
	return &identity
}

// Middleware resolves the caller once per request and stores the identity in
// the request context. Anonymous requests pass through untouched; handlers
// decide whether they need an identity.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, ok := resolver.Resolve(r); ok {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}
