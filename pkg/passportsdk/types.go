package passportsdk

import "time"

// Session mirrors the service's session record.
type Session struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	SignedInAt time.Time `json:"signed_in_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	SignedInIP string    `json:"signed_in_ip,omitempty"`
	LastSeenIP string    `json:"last_seen_ip,omitempty"`
	Device     *Device   `json:"device,omitempty"`
}

// Device is the normalized fingerprint bound to a session at creation.
type Device struct {
	System  string `json:"system"`
	Browser string `json:"browser"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of critical dependencies.
type HealthChecks struct {
	Database string `json:"database"`
}

// SessionListResponse is the body of GET /v1/sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// RevokeResponse is the body of DELETE /v1/sessions.
type RevokeResponse struct {
	Revoked int64 `json:"revoked"`
}

// TOTPSecretResponse is the body of POST /v1/totp/secret.
type TOTPSecretResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// TOTPVerifyResponse is the body of POST /v1/totp/verify.
type TOTPVerifyResponse struct {
	Valid bool `json:"valid"`
}
