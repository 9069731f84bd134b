package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/passport/internal/passport/service"
	"github.com/aussiebroadwan/passport/pkg/httpx"
)

type passportCtxKey struct{}

// SessionMiddleware runs the verification state machine once per request
// and threads the resulting Passport through the request context. Every
// handler downstream sees the same per-request session state; there is no
// process-wide current session.
func SessionMiddleware(svc *service.SessionService, cookieName string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			transport := NewCookieTransport(cookieName, w, r)
			p := svc.Begin(r.Context(), transport, httpx.ClientIP(r), r.UserAgent())

			ctx := context.WithValue(r.Context(), passportCtxKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PassportFromContext returns the request's Passport, or nil when the
// request did not pass through SessionMiddleware.
func PassportFromContext(ctx context.Context) *service.Passport {
	p, _ := ctx.Value(passportCtxKey{}).(*service.Passport)
	return p
}

// RequireSession rejects requests that do not carry a verified session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PassportFromContext(r.Context())
		if p == nil || !p.Authenticated() {
			httpx.WriteError(w, http.StatusUnauthorized, "no active session")
			return
		}
		next.ServeHTTP(w, r)
	})
}
