package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/passport/internal/passport/service"
	"github.com/aussiebroadwan/passport/pkg/httpx"
	"github.com/aussiebroadwan/passport/pkg/idx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

// SessionHandler serves the session endpoints. All session state comes from
// the request's Passport; the handler itself is stateless.
type SessionHandler struct{}

// HandleGet handles GET /v1/session, returning the current session record.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p := PassportFromContext(r.Context())
	sess, _ := p.Session()

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, sess)
}

// HandleList handles GET /v1/sessions, listing the account's active
// sessions newest first.
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := PassportFromContext(ctx)

	sessions, err := p.List(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list sessions", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleRevoke handles DELETE /v1/session, ending the current session.
func (h *SessionHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := PassportFromContext(ctx)

	if _, err := p.Revoke(ctx); err != nil {
		slogx.FromContext(ctx).Error("failed to revoke session", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeByID handles DELETE /v1/sessions/{id}. Ids belonging to other
// accounts simply do not match, so the response is 404 either way.
func (h *SessionHandler) HandleRevokeByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := PassportFromContext(ctx)

	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "unknown session")
		return
	}

	deleted, err := p.RevokeByID(ctx, id)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to revoke session", "session_id", id, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	if !deleted {
		httpx.WriteError(w, http.StatusNotFound, "unknown session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeMany handles DELETE /v1/sessions. By default every session
// for the account is revoked; ?others=true keeps the current one.
func (h *SessionHandler) HandleRevokeMany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := PassportFromContext(ctx)

	var (
		revoked int64
		err     error
	)
	if r.URL.Query().Get("others") == "true" {
		revoked, err = p.RevokeOthers(ctx)
	} else {
		revoked, err = p.RevokeAll(ctx)
	}
	if err != nil {
		slogx.FromContext(ctx).Error("failed to revoke sessions", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"revoked": revoked})
}

// HandleCreate handles POST /v1/sessions. The caller has already
// authenticated the principal by whatever means it owns; this endpoint
// only mints the session, so it sits behind the internal service key.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	p := PassportFromContext(ctx)

	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	if err := p.Start(ctx, req.AccountID); err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyAuthenticated):
			httpx.WriteError(w, http.StatusConflict, "a session is already active")
		case errors.Is(err, service.ErrTooManySessions):
			httpx.WriteError(w, http.StatusTooManyRequests, "too many active sessions")
		default:
			log.Error("failed to start session", "account_id", req.AccountID, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to start session")
		}
		return
	}

	sess, _ := p.Session()
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, sess)
}

// RequireInternalKey guards endpoints reserved for the service that owns
// credentials. The comparison is constant time; an unset key disables the
// endpoints entirely.
func RequireInternalKey(key string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Internal-Key")
			if key == "" || presented == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				httpx.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
