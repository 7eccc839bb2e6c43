package auth

import (
	"context"
	"net/http"
	"strings"

	"anonchat/pkg/utils"
)

type ctxKey struct{}

// Viewer identifies the authenticated user for a request.
type Viewer struct {
	ID       string
	Username string
}

// FromContext returns the viewer attached by Middleware, if any.
func FromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(ctxKey{}).(Viewer)
	return v, ok
}

// Middleware extracts and verifies the bearer token, attaching the viewer
// to the request context. Paths in open are served without a token
// (register, login, health, docs).
func (s *Service) Middleware(open map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/docs") {
				next.ServeHTTP(w, r)
				return
			}
			tok := bearerToken(r)
			if tok == "" {
				utils.JSONError(w, http.StatusUnauthorized, "missing token")
				return
			}
			id, name, err := s.Verify(tok)
			if err != nil {
				utils.JSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKey{}, Viewer{ID: id, Username: name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// websocket clients cannot always set headers; allow a query token
	return r.URL.Query().Get("token")
}
