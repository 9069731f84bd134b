package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/passport/internal/passport/service"
	"github.com/aussiebroadwan/passport/internal/passport/store"
	"github.com/aussiebroadwan/passport/pkg/httpx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	cookieName   string
	internalKey  string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	SessionService *service.SessionService
	TOTPService    *service.TOTPService
}

func NewRouter(
	cookieName, internalKey, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		cookieName:   cookieName,
		internalKey:  internalKey,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerTOTP()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{}
	session := SessionMiddleware(r.SessionService, r.cookieName)

	// Read endpoints - lenient rate limit
	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			session,
			RequireSession,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			session,
			RequireSession,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// Revocation endpoints - moderate rate limit
	r.Mux.Handle("DELETE /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			session,
			RequireSession,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeByID),
			session,
			RequireSession,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeMany),
			session,
			RequireSession,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Session issuance - internal callers only, strict rate limit
	r.Mux.Handle("POST /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			RequireInternalKey(r.internalKey),
			session,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTOTP() {
	h := &TOTPHandler{TOTPService: r.TOTPService}

	// Both carry shared secrets, so internal key plus strict limits.
	r.Mux.Handle("POST /v1/totp/secret",
		httpx.Chain(http.HandlerFunc(h.HandleSecret),
			RequireInternalKey(r.internalKey),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/totp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			RequireInternalKey(r.internalKey),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
