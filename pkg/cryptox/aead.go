package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the required secret key length in bytes.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the length of the nonce prepended to every sealed blob.
	NonceSize = chacha20poly1305.NonceSizeX
)

// ErrDecrypt is returned for every possible Open failure: truncated input,
// wrong key, or a flipped bit anywhere in the blob. Callers must not be able
// to tell these apart.
var ErrDecrypt = errors.New("cryptox: decryption failed")

// AEAD seals and opens opaque byte strings with XChaCha20-Poly1305 under a
// single server-held secret key. The output format is nonce||ciphertext with
// a 24-byte nonce drawn fresh from crypto/rand on every Seal, so the same
// plaintext never encrypts to the same blob twice.
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD builds an AEAD from a 32-byte secret key. The key is provisioned
// once at process start; it is never logged or echoed back in errors.
func NewAEAD(key []byte) (*AEAD, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: invalid secret key: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

// Seal encrypts and authenticates plaintext. A failure of the random source
// is a hard error; we never fall back to a predictable nonce, since reusing
// a nonce under the same key breaks the whole scheme.
func (a *AEAD) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+a.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: nonce generation failed: %w", err)
	}
	return a.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open splits the nonce off the front of blob, verifies the authentication
// tag and returns the plaintext. Any tamper, truncation or key mismatch
// yields ErrDecrypt.
func (a *AEAD) Open(blob []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, ErrDecrypt
	}
	plaintext, err := a.aead.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// LoadKey reads the base64-encoded secret key from the file at path, or from
// the PASSPORT_SECRET_KEY environment variable when path is empty. The
// decoded key must be exactly KeySize bytes.
func LoadKey(path string) ([]byte, error) {
	var encoded string

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cryptox: failed to read secret key file: %w", err)
		}
		encoded = string(data)
	} else {
		encoded = os.Getenv("PASSPORT_SECRET_KEY")
		if encoded == "" {
			return nil, errors.New("cryptox: secret key is not set")
		}
	}

	key, err := decodeBase64(encoded)
	if err != nil {
		return nil, errors.New("cryptox: secret key is not valid base64")
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptox: secret key must decode to %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// GenerateKey returns a fresh random secret key, base64-encoded for storage
// in configuration. Used by the keygen subcommand.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate secret key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// decodeBase64 accepts both padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
