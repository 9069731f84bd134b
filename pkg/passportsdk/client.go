package passportsdk

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Client is a client for the passport service's cookie-authenticated
// endpoints. The session cookie lives in the underlying http.Client's jar.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client with its own cookie jar.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/livez", nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// GetReadiness checks if the service is ready.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/readyz", nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// GetSession returns the current session record.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/session", nil, nil)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := decodeJSON(resp, &session, http.StatusOK); err != nil {
		return nil, err
	}

	return &session, nil
}

// ListSessions returns the account's active sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/sessions", nil, nil)
	if err != nil {
		return nil, err
	}

	var body SessionListResponse
	if err := decodeJSON(resp, &body, http.StatusOK); err != nil {
		return nil, err
	}

	return body.Sessions, nil
}

// RevokeSession ends the current session and drops its cookie.
func (c *Client) RevokeSession(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/session", nil, nil)
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}

// RevokeSessionByID revokes one of the account's sessions by id.
func (c *Client) RevokeSessionByID(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/sessions/"+id, nil, nil)
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}

// RevokeAllSessions revokes every session for the account, including the
// current one, and returns how many were revoked.
func (c *Client) RevokeAllSessions(ctx context.Context) (int64, error) {
	return c.revokeMany(ctx, "/v1/sessions")
}

// RevokeOtherSessions revokes every session for the account except the
// current one.
func (c *Client) RevokeOtherSessions(ctx context.Context) (int64, error) {
	return c.revokeMany(ctx, "/v1/sessions?others=true")
}

func (c *Client) revokeMany(ctx context.Context, path string) (int64, error) {
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return 0, err
	}

	var body RevokeResponse
	if err := decodeJSON(resp, &body, http.StatusOK); err != nil {
		return 0, err
	}

	return body.Revoked, nil
}
