package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/passport/internal/passport/domain"
	"github.com/aussiebroadwan/passport/internal/passport/store"
	"github.com/aussiebroadwan/passport/internal/passport/token"
	"github.com/aussiebroadwan/passport/pkg/cryptox"
	"github.com/aussiebroadwan/passport/pkg/devicex"
	"github.com/aussiebroadwan/passport/pkg/idx"
	"github.com/stretchr/testify/require"
)

const (
	testUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	otherAgent    = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/119.0"
)

// fakeStore is an in-memory store.Store that counts accesses, so tests can
// assert the trust window really skips the store.
type fakeStore struct {
	rows map[idx.ID]domain.Session

	accesses int
	readErr  error
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[idx.ID]domain.Session)}
}

func (f *fakeStore) Sessions() store.Sessions     { return f }
func (f *fakeStore) ApplyMigrations() error       { return nil }
func (f *fakeStore) Close() error                 { return nil }
func (f *fakeStore) Ping(_ context.Context) error { return nil }

func (f *fakeStore) Create(_ context.Context, s domain.Session) error {
	f.accesses++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.rows[s.ID] = s
	return nil
}

func (f *fakeStore) Exists(_ context.Context, id idx.ID) (bool, error) {
	f.accesses++
	if f.readErr != nil {
		return false, f.readErr
	}
	_, ok := f.rows[id]
	return ok, nil
}

func (f *fakeStore) ListByAccount(_ context.Context, accountID string) ([]domain.Session, error) {
	f.accesses++
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []domain.Session
	for _, s := range f.rows {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) TouchLastSeen(_ context.Context, id idx.ID, lastSeenAt time.Time, ip string) (bool, error) {
	f.accesses++
	if f.writeErr != nil {
		return false, f.writeErr
	}
	s, ok := f.rows[id]
	if !ok {
		return false, nil
	}
	s.LastSeenAt = lastSeenAt
	s.LastSeenIP = ip
	f.rows[id] = s
	return true, nil
}

func (f *fakeStore) Delete(_ context.Context, id idx.ID, accountID string) (bool, error) {
	f.accesses++
	if f.writeErr != nil {
		return false, f.writeErr
	}
	s, ok := f.rows[id]
	if !ok || s.AccountID != accountID {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

func (f *fakeStore) DeleteByAccount(_ context.Context, accountID string) (int64, error) {
	f.accesses++
	var n int64
	for id, s := range f.rows {
		if s.AccountID == accountID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteByAccountExcept(_ context.Context, accountID string, keep idx.ID) (int64, error) {
	f.accesses++
	var n int64
	for id, s := range f.rows {
		if s.AccountID == accountID && id != keep {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteSignedInBefore(_ context.Context, accountID string, cutoff time.Time) (int64, error) {
	f.accesses++
	var n int64
	for id, s := range f.rows {
		if s.AccountID == accountID && s.SignedInAt.Before(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteExpired(_ context.Context, signedInCutoff, lastSeenCutoff time.Time) (int64, error) {
	f.accesses++
	var n int64
	for id, s := range f.rows {
		if s.SignedInAt.Before(signedInCutoff) || s.LastSeenAt.Before(lastSeenCutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountByAccount(_ context.Context, accountID string) (int64, error) {
	f.accesses++
	if f.readErr != nil {
		return 0, f.readErr
	}
	var n int64
	for _, s := range f.rows {
		if s.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

// fakeTransport records token traffic so tests can assert cookie behavior.
type fakeTransport struct {
	token string

	setCalls   int
	clearCalls int
	setErr     error
}

func (f *fakeTransport) Token() (string, bool) { return f.token, f.token != "" }

func (f *fakeTransport) SetToken(token string, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls++
	f.token = token
	return nil
}

func (f *fakeTransport) ClearToken() {
	f.clearCalls++
	f.token = ""
}

type fixture struct {
	svc   *SessionService
	store *fakeStore
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key := make([]byte, cryptox.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	aead, err := cryptox.NewAEAD(key)
	require.NoError(t, err)

	f := &fixture{
		store: newFakeStore(),
		clock: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = &SessionService{
		Store:  f.store,
		Codec:  token.NewCodec(aead),
		Policy: DefaultPolicy(),
		Now:    func() time.Time { return f.clock },
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

// signIn starts a session and returns the transport holding its token.
func (f *fixture) signIn(t *testing.T, accountID string) *fakeTransport {
	t.Helper()

	tr := &fakeTransport{}
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	require.NoError(t, p.Start(context.Background(), accountID))
	require.NotEmpty(t, tr.token)
	return tr
}

func TestBeginNoToken(t *testing.T) {
	f := newFixture(t)

	tr := &fakeTransport{}
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.False(t, p.Authenticated())
	require.Zero(t, tr.clearCalls, "nothing to clear when no token was presented")
	require.Zero(t, f.store.accesses)
}

func TestBeginGarbageToken(t *testing.T) {
	f := newFixture(t)

	tr := &fakeTransport{token: "not-a-real-token"}
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.False(t, p.Authenticated())
	require.Equal(t, 1, tr.clearCalls)
	require.Zero(t, f.store.accesses)
}

func TestStartCreatesSession(t *testing.T) {
	f := newFixture(t)

	tr := &fakeTransport{}
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	require.NoError(t, p.Start(context.Background(), "acct-1"))

	require.True(t, p.Authenticated())
	sess, ok := p.Session()
	require.True(t, ok)
	require.Equal(t, "acct-1", sess.AccountID)
	require.False(t, sess.ID.IsZero())
	require.Equal(t, "203.0.113.9", sess.SignedInIP)
	require.NotNil(t, sess.Device)
	require.Equal(t, devicex.Derive(testUserAgent), *sess.Device)
	require.Len(t, f.store.rows, 1)
	require.NotEmpty(t, tr.token)

	// Starting again on the same passport is a caller bug.
	require.ErrorIs(t, p.Start(context.Background(), "acct-1"), ErrAlreadyAuthenticated)
}

func TestStartEnforcesSessionCap(t *testing.T) {
	f := newFixture(t)
	f.svc.Policy.MaxActiveSessions = 2

	f.signIn(t, "acct-1")
	f.signIn(t, "acct-1")

	tr := &fakeTransport{}
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	require.ErrorIs(t, p.Start(context.Background(), "acct-1"), ErrTooManySessions)
	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
	require.Len(t, f.store.rows, 2)

	// The cap is per account.
	f.signIn(t, "acct-2")
}

func TestStartSweepsExpiredRows(t *testing.T) {
	f := newFixture(t)
	f.svc.Policy.MaxActiveSessions = 1

	f.signIn(t, "acct-1")
	f.advance(f.svc.Policy.Lifetime() + time.Hour)

	// The old row is beyond the lifetime, so it no longer counts against
	// the cap and gets swept during sign-in.
	f.signIn(t, "acct-1")
	require.Len(t, f.store.rows, 1)
}

func TestTrustWindowSkipsStore(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")
	issued := tr.token

	f.advance(2 * time.Second)
	before := f.store.accesses
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.True(t, p.Authenticated())
	require.Equal(t, before, f.store.accesses, "trusted verify must not hit the store")
	require.Equal(t, issued, tr.token, "trusted verify must not rewrite the token")
}

func TestVerifyAfterTrustWindowHitsStore(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")
	issued := tr.token

	f.advance(f.svc.Policy.TrustWindow)
	before := f.store.accesses
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.True(t, p.Authenticated())
	require.Greater(t, f.store.accesses, before)
	require.NotEqual(t, issued, tr.token, "verify time bump re-emits the token")

	// Within the update window the store row keeps its old last-seen time.
	sess, _ := p.Session()
	require.True(t, f.store.rows[sess.ID].LastSeenAt.Equal(sess.SignedInAt))
}

func TestRefreshUpdatesLastSeen(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	f.advance(time.Minute)
	p := f.svc.Begin(context.Background(), tr, "198.51.100.7", testUserAgent)

	require.True(t, p.Authenticated())
	sess, _ := p.Session()
	require.True(t, sess.LastSeenAt.Equal(f.clock))
	require.Equal(t, "198.51.100.7", sess.LastSeenIP)
	require.True(t, f.store.rows[sess.ID].LastSeenAt.Equal(f.clock))
	require.Equal(t, "198.51.100.7", f.store.rows[sess.ID].LastSeenIP)
}

func TestLifetimeBoundaryIsExpired(t *testing.T) {
	f := newFixture(t)
	f.svc.Policy.MaxOfflineDays = 2 * f.svc.Policy.LifetimeDays // isolate the lifetime check
	tr := f.signIn(t, "acct-1")

	f.advance(f.svc.Policy.Lifetime())
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
	require.Empty(t, f.store.rows, "expired session row is deleted on presentation")
}

func TestMaxOfflineBoundaryIsExpired(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	f.advance(f.svc.Policy.MaxOffline())
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
	require.Empty(t, f.store.rows)
}

func TestJustInsideLifetimeStillValid(t *testing.T) {
	f := newFixture(t)
	f.svc.Policy.MaxOfflineDays = 2 * f.svc.Policy.LifetimeDays
	tr := f.signIn(t, "acct-1")

	f.advance(f.svc.Policy.Lifetime() - time.Second)
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	require.True(t, p.Authenticated())
}

func TestMissingRowRevokes(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	for id := range f.store.rows {
		delete(f.store.rows, id)
	}

	// Within the trust window the token is still believed.
	f.advance(time.Second)
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	require.True(t, p.Authenticated())

	// Once the window lapses the missing row wins.
	f.advance(f.svc.Policy.TrustWindow)
	p = f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
}

func TestStoreReadFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	f.advance(f.svc.Policy.TrustWindow)
	f.store.readErr = errors.New("disk on fire")
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
}

func TestDeviceMismatchRevokes(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	f.advance(f.svc.Policy.TrustWindow)
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", otherAgent)

	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
	require.Empty(t, f.store.rows, "a mismatched device kills the session for good")
}

func TestNoDeviceOnRecordDisablesCheck(t *testing.T) {
	f := newFixture(t)

	// Signing in with an empty User-Agent binds no device.
	tr := &fakeTransport{}
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", "")
	require.NoError(t, p.Start(context.Background(), "acct-1"))
	sess, _ := p.Session()
	require.Nil(t, sess.Device)

	f.advance(f.svc.Policy.TrustWindow)
	p = f.svc.Begin(context.Background(), tr, "203.0.113.9", otherAgent)
	require.True(t, p.Authenticated())
}

func TestConcurrentRevocationDuringRefresh(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	// Make Exists succeed but the last-seen write find no row, as if the
	// row were deleted between the two store calls.
	f.advance(time.Minute)
	sess, err := f.svc.Codec.Extract(tr.token)
	require.NoError(t, err)

	hijacked := &hijackStore{fakeStore: f.store, dropOnTouch: sess.ID}
	f.svc.Store = hijacked
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
}

// hijackStore deletes a row just before the last-seen write reaches it.
type hijackStore struct {
	*fakeStore
	dropOnTouch idx.ID
}

func (h *hijackStore) Sessions() store.Sessions { return h }

func (h *hijackStore) TouchLastSeen(ctx context.Context, id idx.ID, lastSeenAt time.Time, ip string) (bool, error) {
	if id == h.dropOnTouch {
		delete(h.fakeStore.rows, id)
	}
	return h.fakeStore.TouchLastSeen(ctx, id, lastSeenAt, ip)
}

func TestRefreshWriteFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	f.advance(time.Minute)
	f.store.writeErr = errors.New("disk still on fire")
	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)

	// The durable row lags but the token stays valid until the next
	// store-backed check.
	require.True(t, p.Authenticated())
	sess, _ := p.Session()
	require.True(t, sess.LastVerifiedAt.Equal(f.clock))
	require.True(t, sess.LastSeenAt.Before(f.clock))
}

func TestRevokeCurrent(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")

	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	deleted, err := p.Revoke(context.Background())
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, p.Authenticated())
	require.Empty(t, tr.token)
	require.Empty(t, f.store.rows)

	_, err = p.Revoke(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRevokeByIDIsAccountScoped(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "acct-1")
	trB := f.signIn(t, "acct-2")

	var victim idx.ID
	for id, s := range f.store.rows {
		if s.AccountID == "acct-1" {
			victim = id
		}
	}

	p := f.svc.Begin(context.Background(), trB, "203.0.113.9", testUserAgent)
	deleted, err := p.RevokeByID(context.Background(), victim)
	require.NoError(t, err)
	require.False(t, deleted, "one account cannot revoke another's session")
	require.Len(t, f.store.rows, 2)
}

func TestRevokeAll(t *testing.T) {
	f := newFixture(t)
	tr1 := f.signIn(t, "acct-1")
	f.signIn(t, "acct-1")
	f.signIn(t, "acct-2")

	issued := tr1.token
	p := f.svc.Begin(context.Background(), tr1, "203.0.113.9", testUserAgent)
	n, err := p.RevokeAll(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.False(t, p.Authenticated())
	require.Empty(t, tr1.token)

	// A previously issued token is dead once the trust window lapses.
	f.advance(f.svc.Policy.TrustWindow)
	replay := &fakeTransport{token: issued}
	p = f.svc.Begin(context.Background(), replay, "203.0.113.9", testUserAgent)
	require.False(t, p.Authenticated())
	require.Empty(t, replay.token)
}

func TestRevokeOthers(t *testing.T) {
	f := newFixture(t)
	tr1 := f.signIn(t, "acct-1")
	f.signIn(t, "acct-1")
	f.signIn(t, "acct-1")

	p := f.svc.Begin(context.Background(), tr1, "203.0.113.9", testUserAgent)
	n, err := p.RevokeOthers(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.True(t, p.Authenticated(), "the current session survives")
	require.Len(t, f.store.rows, 1)
}

func TestListRequiresAuth(t *testing.T) {
	f := newFixture(t)
	tr := f.signIn(t, "acct-1")
	f.signIn(t, "acct-1")

	p := f.svc.Begin(context.Background(), tr, "203.0.113.9", testUserAgent)
	sessions, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	anon := f.svc.Begin(context.Background(), &fakeTransport{}, "203.0.113.9", testUserAgent)
	_, err = anon.List(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRemoveExpired(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "acct-1")
	f.advance(f.svc.Policy.Lifetime() + time.Hour)
	f.signIn(t, "acct-1")

	n, err := f.svc.RemoveExpired(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Zero(t, n, "sign-in already swept the stale row")
	require.Len(t, f.store.rows, 1)
}
