package service

import (
	"fmt"

	"github.com/aussiebroadwan/passport/pkg/totpx"
)

// TOTPService wraps the code verifier with deployment config. Secret
// storage belongs to the caller; this service only mints secrets and
// checks codes against them.
type TOTPService struct {
	// Issuer names this deployment in provisioning URIs (e.g. "Passport").
	Issuer string
	// Algorithm selects the HMAC hash for code derivation.
	Algorithm totpx.Algorithm
	// SecretLength is 16 or 32 Base32 characters.
	SecretLength int
}

// Enrollment is a freshly minted secret plus the URI an authenticator app
// enrolls from.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// Enroll generates a new shared secret for the account. The caller must
// store the secret and confirm the user can produce a valid code before
// relying on it.
func (s *TOTPService) Enroll(account string) (Enrollment, error) {
	length := s.SecretLength
	if length == 0 {
		length = totpx.SecretLength16
	}

	secret, err := totpx.GenerateSecret(length)
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	return Enrollment{
		Secret: secret,
		URI:    totpx.ProvisioningURI(secret, s.Issuer, account, s.Algorithm),
	}, nil
}

// Verify reports whether the submitted code is valid for the secret within
// the sliding window.
func (s *TOTPService) Verify(secret, code string) bool {
	return totpx.Verify(secret, code, s.Algorithm)
}
