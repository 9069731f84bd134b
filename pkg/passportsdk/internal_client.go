package passportsdk

import (
	"context"
	"net/http"
)

// InternalClient extends Client with the endpoints reserved for the
// service that owns credentials, authenticated by the shared internal key.
type InternalClient struct {
	*Client
	InternalKey string
}

// NewInternal creates an internal client with its own cookie jar.
func NewInternal(baseURL, internalKey string) *InternalClient {
	return &InternalClient{Client: New(baseURL), InternalKey: internalKey}
}

func (c *InternalClient) headers() map[string]string {
	return map[string]string{"X-Internal-Key": c.InternalKey}
}

// CreateSession issues a session for the account the caller has already
// authenticated. The cookie lands in this client's jar.
func (c *InternalClient) CreateSession(ctx context.Context, accountID string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/sessions",
		map[string]string{"account_id": accountID}, c.headers())
	if err != nil {
		return nil, err
	}

	var session Session
	if err := decodeJSON(resp, &session, http.StatusCreated); err != nil {
		return nil, err
	}

	return &session, nil
}

// NewTOTPSecret mints a fresh TOTP secret and provisioning URI for an
// account. Storing the secret is the caller's job.
func (c *InternalClient) NewTOTPSecret(ctx context.Context, account string) (*TOTPSecretResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/totp/secret",
		map[string]string{"account": account}, c.headers())
	if err != nil {
		return nil, err
	}

	var secret TOTPSecretResponse
	if err := decodeJSON(resp, &secret, http.StatusOK); err != nil {
		return nil, err
	}

	return &secret, nil
}

// VerifyTOTP checks a submitted code against a secret.
func (c *InternalClient) VerifyTOTP(ctx context.Context, secret, code string) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/totp/verify",
		map[string]string{"secret": secret, "code": code}, c.headers())
	if err != nil {
		return false, err
	}

	var verdict TOTPVerifyResponse
	if err := decodeJSON(resp, &verdict, http.StatusOK); err != nil {
		return false, err
	}

	return verdict.Valid, nil
}
