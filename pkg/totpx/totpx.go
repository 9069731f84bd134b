// Package totpx implements RFC 6238 time-based one-time passwords with the
// fixed parameters used by standard authenticator apps: 6 digits, 30-second
// time step, Base32 secrets without padding. The HMAC hash is selectable
// between SHA-1 (the authenticator-app default) and SHA-256.
package totpx

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/url"
	"strings"
	"time"
)

const (
	// Digits is the length of every generated code.
	Digits = 6
	// Period is the time-step size in seconds.
	Period = 30

	// SecretLength16 and SecretLength32 are the two supported secret sizes.
	SecretLength16 = 16
	SecretLength32 = 32

	// alphabet is the RFC 4648 Base32 alphabet, no padding.
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
)

var (
	ErrBadSecret       = errors.New("totpx: malformed secret")
	ErrBadSecretLength = errors.New("totpx: secret length must be 16 or 32")
)

// Algorithm selects the HMAC hash used for code derivation.
type Algorithm int

const (
	AlgorithmSHA1 Algorithm = iota
	AlgorithmSHA256
)

func (a Algorithm) String() string {
	if a == AlgorithmSHA256 {
		return "SHA256"
	}
	return "SHA1"
}

func (a Algorithm) newHash() func() hash.Hash {
	if a == AlgorithmSHA256 {
		return sha256.New
	}
	return sha1.New
}

// ParseAlgorithm maps a config string to an Algorithm. Unknown values fall
// back to SHA-1 for compatibility with standard authenticator apps.
func ParseAlgorithm(s string) Algorithm {
	if strings.EqualFold(strings.TrimSpace(s), "SHA256") {
		return AlgorithmSHA256
	}
	return AlgorithmSHA1
}

// GenerateSecret returns a fresh shared secret of the given length (16 or 32
// Base32 symbols) drawn from crypto/rand. A failing random source is an
// error, never a weaker substitute.
func GenerateSecret(length int) (string, error) {
	if length != SecretLength16 && length != SecretLength32 {
		return "", ErrBadSecretLength
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("totpx: failed to generate secret: %w", err)
	}

	// 32 symbols divide 256 evenly, so masking to 5 bits is unbiased.
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[b&31]
	}
	return string(out), nil
}

// Code derives the zero-padded code for a secret at the given time slice
// (unix seconds / Period). Dynamic truncation per RFC 6238: take the 4 bytes
// at the offset named by the low nibble of the last HMAC byte, mask the sign
// bit, reduce mod 10^Digits.
func Code(secret string, timeSlice int64, algo Algorithm) (string, error) {
	key, err := base32Decode(secret)
	if err != nil {
		return "", err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(timeSlice))

	mac := hmac.New(algo.newHash(), key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF

	return fmt.Sprintf("%0*d", Digits, value%1_000_000), nil
}

// Verify reports whether submitted matches the code for the current time
// slice or one slice either side, tolerating clock drift between the server
// and the authenticator device.
func Verify(secret, submitted string, algo Algorithm) bool {
	return VerifyAt(secret, submitted, time.Now(), algo)
}

// VerifyAt is Verify against an explicit clock. Every candidate slice is
// compared in constant time and the loop never exits early on a match, so
// timing reveals nothing about which slice (if any) matched.
func VerifyAt(secret, submitted string, now time.Time, algo Algorithm) bool {
	slice := now.Unix() / Period

	match := false
	for _, ts := range []int64{slice - 1, slice, slice + 1} {
		code, err := Code(secret, ts, algo)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(submitted)) == 1 {
			match = true
		}
	}
	return match
}

// ProvisioningURI builds the otpauth:// URI that authenticator apps consume,
// typically rendered as a QR code by the caller.
//
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
func ProvisioningURI(secret, issuer, account string, algo Algorithm) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=%s",
		url.PathEscape(issuer),
		url.PathEscape(account),
		secret,
		url.QueryEscape(issuer),
		algo,
	)
}

// base32Decode maps each symbol to 5 bits, re-chunks into bytes and discards
// any trailing partial byte. Unlike encoding/base32 it takes no padding, and
// a symbol outside the alphabet fails the whole decode.
func base32Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrBadSecret
	}

	out := make([]byte, 0, len(s)*5/8)
	var acc uint
	var bits uint
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(alphabet, s[i])
		if idx < 0 {
			return nil, ErrBadSecret
		}
		acc = acc<<5 | uint(idx)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
		}
	}
	return out, nil
}
