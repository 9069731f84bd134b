// Package token seals session records into the opaque strings the cookie
// transport carries, and opens them again. A token is
// base64url(nonce || ciphertext) with no padding; everything inside is
// protected by the AEAD.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/aussiebroadwan/passport/internal/passport/domain"
	"github.com/aussiebroadwan/passport/pkg/cryptox"
)

// ErrInvalidToken covers every Extract failure: bad encoding, tamper, wrong
// key, or malformed payload. Callers (and external observers) must not be
// able to tell which stage rejected the token.
var ErrInvalidToken = errors.New("token: invalid session token")

// Codec converts between session records and opaque token strings.
type Codec struct {
	aead *cryptox.AEAD
}

func NewCodec(aead *cryptox.AEAD) *Codec {
	return &Codec{aead: aead}
}

// Create serializes and seals a session record. The only error path is the
// crypto layer itself (RNG failure); there is no fallback.
func (c *Codec) Create(s domain.Session) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	blob, err := c.aead.Seal(payload)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// Extract opens a token back into a session record, failing closed with
// ErrInvalidToken on any structural or cryptographic error.
func (c *Codec) Extract(token string) (domain.Session, error) {
	blob, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return domain.Session{}, ErrInvalidToken
	}

	payload, err := c.aead.Open(blob)
	if err != nil {
		return domain.Session{}, ErrInvalidToken
	}

	var s domain.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return domain.Session{}, ErrInvalidToken
	}
	if s.ID.IsZero() || s.AccountID == "" {
		return domain.Session{}, ErrInvalidToken
	}

	return s, nil
}
