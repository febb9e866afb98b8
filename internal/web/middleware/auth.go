package middleware

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/JonMunkholm/streakflow/internal/logging"
)

// SessionReader extracts the signed-in principal from a request.
type SessionReader interface {
	FromRequest(r *http.Request) (*core.Principal, error)
}

// Gate decides whether a principal may use the API at all.
type Gate interface {
	Authorize(p *core.Principal) error
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Session resolves the session cookie and stores the principal in the
// request context. It never rejects a request; anonymous requests simply
// carry no principal. The email is attached to request-scoped log entries.
func Session(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := sessions.FromRequest(r)
			if err != nil {
				if !errors.Is(err, core.ErrAuthenticationRequired) {
					logging.FromContext(r.Context()).Warn("session: unreadable cookie", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := core.ContextWithPrincipal(r.Context(), p)
			ctx = logging.WithAttrs(ctx, "email", p.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth runs the gate on the principal stored by Session. Requests
// without a session get 401; a missing email or a foreign domain get 403.
// Rejections are rendered by onError.
func RequireAuth(gate Gate, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := core.PrincipalFromContext(r.Context())
			if err := gate.Authorize(p); err != nil {
				logging.FromContext(r.Context()).Warn("auth: request denied",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"reason", err.Error(),
				)
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
