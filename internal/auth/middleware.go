package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/blog-platform/internal/model"
)

// CookieName is the cookie the login handlers set and the middleware reads.
const CookieName = "token"

// contextKey is the key the Principal is stored under.
//
// WHY AN EMPTY STRUCT TYPE?
// context.WithValue accepts any comparable key. A plain string such as
// "principal" could be written or read by any package that knows it. An
// unexported type can only be named inside this package, so WithPrincipal
// and PrincipalFromContext are the only way in or out. The empty struct takes
// no memory.
type contextKey struct{}

// RequireAuth rejects requests without a valid token with 401 and otherwise
// stores the caller's Principal in the request context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := principalFromRequest(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth attaches the Principal when a valid token is present and lets
// anonymous requests through untouched. An invalid token is treated as no
// token at all.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, err := principalFromRequest(r, tokens); err == nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, or nil when the
// request is anonymous.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(contextKey{}).(*model.Principal)
	return p
}

var errNoToken = errors.New("auth: no token")

// principalFromRequest reads the token from the Authorization header
// ("Bearer <jwt>") or, failing that, the session cookie.
func principalFromRequest(r *http.Request, tokens *TokenService) (*model.Principal, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if raw, ok := strings.CutPrefix(h, "Bearer "); ok && raw != "" {
			return tokens.Validate(strings.TrimSpace(raw))
		}
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, errNoToken
	}
	return tokens.Validate(cookie.Value)
}
