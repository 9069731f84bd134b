// Package passportsdk is a Go client for the passport session service.
//
// The Client covers the public, cookie-authenticated surface: inspecting
// and revoking the caller's sessions. InternalClient adds the endpoints
// reserved for the service that owns credentials: session issuance and the
// TOTP primitives, authenticated by the shared internal key.
//
// The session cookie is managed by the http.Client's cookie jar; a Client
// built by New carries its own jar, so one Client is one browser.
package passportsdk
