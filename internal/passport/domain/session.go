package domain

import (
	"time"

	"github.com/aussiebroadwan/passport/pkg/devicex"
	"github.com/aussiebroadwan/passport/pkg/idx"
)

// Session describes one login session. The same record lives in two places:
// sealed inside the client-held token, and as a row in the session store.
// A record with no matching store row is dead, whatever the token says.
type Session struct {
	// ID is generated at creation and immutable.
	ID idx.ID `json:"id"`
	// AccountID identifies the authenticated principal; immutable for the
	// record's life. Accounts themselves belong to the caller, we only hold
	// the opaque id.
	AccountID string `json:"account_id"`

	SignedInAt time.Time `json:"signed_in_at"`
	// LastSeenAt is bumped on refresh; SignedInAt <= LastSeenAt <= now.
	LastSeenAt time.Time `json:"last_seen_at"`

	SignedInIP string `json:"signed_in_ip,omitempty"`
	LastSeenIP string `json:"last_seen_ip,omitempty"`

	// Device is captured at creation and compared on verify, never mutated.
	// When absent the device check is disabled for this session's whole
	// life; it cannot be retrofitted.
	Device *devicex.Device `json:"device,omitempty"`

	// LastVerifiedAt is when the store last confirmed this session exists.
	// It lives only inside the token; the store row has no such column.
	LastVerifiedAt time.Time `json:"last_verified_at"`
}
