package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/passport/internal/passport/service"
	"github.com/aussiebroadwan/passport/pkg/httpx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

// TOTPHandler exposes the code primitives to the internal caller that owns
// secret storage. Secrets pass through these endpoints, so they sit behind
// the internal service key and are never logged.
type TOTPHandler struct {
	TOTPService *service.TOTPService
}

// HandleSecret handles POST /v1/totp/secret, minting a fresh shared secret
// and its provisioning URI for an account.
func (h *TOTPHandler) HandleSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == "" {
		httpx.WriteError(w, http.StatusBadRequest, "account is required")
		return
	}

	enrollment, err := h.TOTPService.Enroll(req.Account)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to generate TOTP secret", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

// HandleVerify handles POST /v1/totp/verify, checking a submitted code
// against a secret. Valid and invalid codes take the same path; the only
// difference is the verdict in the body.
func (h *TOTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Secret == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "secret and code are required")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{
		"valid": h.TOTPService.Verify(req.Secret, req.Code),
	})
}
