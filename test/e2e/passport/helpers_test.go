package passport_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	httpapi "github.com/aussiebroadwan/passport/internal/passport/http"
	"github.com/aussiebroadwan/passport/internal/passport/service"
	"github.com/aussiebroadwan/passport/internal/passport/store/drivers/sqlite"
	"github.com/aussiebroadwan/passport/internal/passport/token"
	"github.com/aussiebroadwan/passport/pkg/cryptox"
	"github.com/aussiebroadwan/passport/pkg/totpx"
	"github.com/stretchr/testify/require"
)

/*
 * Common helpers for passport service end-to-end tests. Each test gets its
 * own TLS httptest server over a temp SQLite store, so rate limit buckets
 * and session rows never leak between tests.
 */

const (
	internalKey = "test-internal-key-12345"
	accountID   = "acct-e2e-1"
)

type testServer struct {
	*httptest.Server
	SessionService *service.SessionService
}

// setupPassportServer wires the full stack the way app.New does, minus the
// process concerns. The TLS server matters: the session cookie is Secure,
// and the client jar only presents it over https.
func setupPassportServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "passport.db") + "?_busy_timeout=5000")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	key := make([]byte, cryptox.KeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	aead, err := cryptox.NewAEAD(key)
	require.NoError(t, err)

	// A zero trust window forces the store check on every request, so
	// revocations are visible immediately without sleeping through the
	// window.
	policy := service.DefaultPolicy()
	policy.TrustWindow = 0

	svc := &service.SessionService{
		Store:  st,
		Codec:  token.NewCodec(aead),
		Policy: policy,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httpapi.NewRouter("", internalKey, "test", st, logger)
	router.SessionService = svc
	router.TOTPService = &service.TOTPService{Issuer: "Passport", Algorithm: totpx.AlgorithmSHA1}
	router.ApplyRoutes()

	srv := httptest.NewTLSServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, SessionService: svc}
}

// newClient returns an HTTP client with its own cookie jar, i.e. its own
// browser.
func (ts *testServer) newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	base := ts.Server.Client()
	return &http.Client{Transport: base.Transport, Jar: jar}
}

// signIn issues a session for the account through the internal issuance
// endpoint and returns a client holding its cookie.
func (ts *testServer) signIn(t *testing.T, account string) *http.Client {
	t.Helper()

	client := ts.newClient(t)
	resp := doJSON(t, client, http.MethodPost, ts.URL+"/v1/sessions",
		map[string]string{"account_id": account},
		map[string]string{"X-Internal-Key": internalKey},
	)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return client
}

// doJSON sends a request with an optional JSON body and extra headers.
func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeBody decodes a JSON response body into out and closes it.
func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
