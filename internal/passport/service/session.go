package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/passport/internal/passport/domain"
	"github.com/aussiebroadwan/passport/internal/passport/store"
	"github.com/aussiebroadwan/passport/internal/passport/token"
	"github.com/aussiebroadwan/passport/pkg/devicex"
	"github.com/aussiebroadwan/passport/pkg/idx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

var (
	ErrNotAuthenticated     = errors.New("no authenticated session")
	ErrAlreadyAuthenticated = errors.New("a session is already active")
	ErrTooManySessions      = errors.New("too many active sessions for account")
)

// Transport carries the opaque session token between the service and the
// client, typically as a cookie. Token reports whether a token was presented
// at all; SetToken and ClearToken instruct the client to store or drop it.
type Transport interface {
	Token() (string, bool)
	SetToken(token string, ttl time.Duration) error
	ClearToken()
}

// Policy holds the time windows and limits governing session validity.
type Policy struct {
	// LifetimeDays is the absolute session lifetime measured from sign-in.
	LifetimeDays int
	// MaxOfflineDays revokes a session not seen for this many days.
	MaxOfflineDays int
	// TrustWindow is how long a store-backed verification is trusted
	// before the store is consulted again.
	TrustWindow time.Duration
	// UpdateAfter is the minimum gap between last-seen writes to the
	// store. Inside the gap only the token's verify time is bumped.
	UpdateAfter time.Duration
	// MaxActiveSessions caps concurrent sessions per account. The cap is
	// soft under concurrent sign-ins; revocation stays exact regardless.
	MaxActiveSessions int64
}

// DefaultPolicy returns the stock policy: a year-long session that dies
// after a week offline, with a five second trust window.
func DefaultPolicy() Policy {
	return Policy{
		LifetimeDays:      365,
		MaxOfflineDays:    7,
		TrustWindow:       5 * time.Second,
		UpdateAfter:       30 * time.Second,
		MaxActiveSessions: 30,
	}
}

// Lifetime returns the absolute lifetime as a duration.
func (p Policy) Lifetime() time.Duration {
	return time.Duration(p.LifetimeDays) * 24 * time.Hour
}

// MaxOffline returns the offline limit as a duration.
func (p Policy) MaxOffline() time.Duration {
	return time.Duration(p.MaxOfflineDays) * 24 * time.Hour
}

// SessionService owns the session lifecycle: verifying inbound tokens
// against policy and the store, starting new sessions, and revoking them.
// It is safe for concurrent use; all per-request state lives in the
// Passport values it hands out.
type SessionService struct {
	Store  store.Store
	Codec  *token.Codec
	Policy Policy

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC().Truncate(time.Second)
	}
	return time.Now().UTC().Truncate(time.Second)
}

// Passport is the request-scoped view of the session state. Begin produces
// one per request; it is not safe to share across requests.
type Passport struct {
	svc       *SessionService
	transport Transport
	clientIP  string
	userAgent string

	session *domain.Session
}

// Begin runs the verification state machine against whatever token the
// transport presents and returns the resulting Passport. It never fails:
// any crypto, policy, or store problem collapses to an unauthenticated
// passport, clearing the client's token where the state machine calls for
// it.
func (s *SessionService) Begin(ctx context.Context, t Transport, clientIP, userAgent string) *Passport {
	log := slogx.FromContext(ctx)
	p := &Passport{svc: s, transport: t, clientIP: clientIP, userAgent: userAgent}

	raw, ok := t.Token()
	if !ok || raw == "" {
		return p
	}

	sess, err := s.Codec.Extract(raw)
	if err != nil {
		// Garbage token. Nothing to revoke, just drop it client-side.
		t.ClearToken()
		return p
	}

	now := s.now()
	if now.Sub(sess.SignedInAt) >= s.Policy.Lifetime() ||
		now.Sub(sess.LastSeenAt) >= s.Policy.MaxOffline() {
		if _, err := s.Store.Sessions().Delete(ctx, sess.ID, sess.AccountID); err != nil {
			log.Warn("failed to delete expired session row", "session_id", sess.ID, "error", err)
		}
		t.ClearToken()
		return p
	}

	if now.Sub(sess.LastVerifiedAt) < s.Policy.TrustWindow {
		// Recently verified. Trust the token as-is, no store hit and no
		// cookie rewrite.
		p.session = &sess
		return p
	}

	exists, err := s.Store.Sessions().Exists(ctx, sess.ID)
	if err != nil {
		// A store we cannot read is a store with no row in it.
		log.Warn("session store read failed, treating session as revoked", "session_id", sess.ID, "error", err)
		exists = false
	}
	if !exists {
		t.ClearToken()
		return p
	}

	if sess.Device != nil {
		if current := devicex.Derive(userAgent); *sess.Device != current {
			// The token is valid but the client changed shape. Assume
			// theft and kill the session for good.
			log.Warn("session device mismatch, revoking session",
				"session_id", sess.ID, "account_id", sess.AccountID)
			if _, err := s.Store.Sessions().Delete(ctx, sess.ID, sess.AccountID); err != nil {
				log.Warn("failed to delete mismatched session row", "session_id", sess.ID, "error", err)
			}
			t.ClearToken()
			return p
		}
	}

	sess.LastVerifiedAt = now
	if now.Sub(sess.LastSeenAt) >= s.Policy.UpdateAfter {
		updated, err := s.Store.Sessions().TouchLastSeen(ctx, sess.ID, now, clientIP)
		switch {
		case err != nil:
			// The durable row lags; the token stays valid until the next
			// trust-window expiry forces a re-check.
			log.Warn("failed to refresh session row", "session_id", sess.ID, "error", err)
		case !updated:
			// The row vanished between Exists and the write. Revoked.
			t.ClearToken()
			return p
		default:
			sess.LastSeenAt = now
			sess.LastSeenIP = clientIP
		}
	}

	if err := s.emit(t, sess); err != nil {
		log.Warn("failed to re-emit session token", "session_id", sess.ID, "error", err)
	}

	p.session = &sess
	return p
}

// RemoveExpired deletes the account's store rows older than the lifetime
// window. Start calls it before counting; it is also callable standalone
// for maintenance.
func (s *SessionService) RemoveExpired(ctx context.Context, accountID string) (int64, error) {
	cutoff := s.now().Add(-s.Policy.Lifetime())
	n, err := s.Store.Sessions().DeleteSignedInBefore(ctx, accountID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired sessions: %w", err)
	}
	return n, nil
}

func (s *SessionService) emit(t Transport, sess domain.Session) error {
	tok, err := s.Codec.Create(sess)
	if err != nil {
		return err
	}
	return t.SetToken(tok, s.Policy.Lifetime())
}

// Authenticated reports whether a verified session backs this request.
func (p *Passport) Authenticated() bool { return p.session != nil }

// Session returns a copy of the verified session record, if any.
func (p *Passport) Session() (domain.Session, bool) {
	if p.session == nil {
		return domain.Session{}, false
	}
	return *p.session, true
}

// Start creates a new session for the account, persists the row, and sets
// the token on the transport. Any failure past the insert rolls the row
// back so no half-created session survives.
func (p *Passport) Start(ctx context.Context, accountID string) error {
	if p.session != nil {
		return ErrAlreadyAuthenticated
	}

	s := p.svc
	if _, err := s.RemoveExpired(ctx, accountID); err != nil {
		slogx.FromContext(ctx).Warn("expired session sweep failed during sign-in", "account_id", accountID, "error", err)
	}

	count, err := s.Store.Sessions().CountByAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to count active sessions: %w", err)
	}
	if count >= s.Policy.MaxActiveSessions {
		return ErrTooManySessions
	}

	now := s.now()
	sess := domain.Session{
		ID:             idx.NewAt(now),
		AccountID:      accountID,
		SignedInAt:     now,
		LastSeenAt:     now,
		SignedInIP:     p.clientIP,
		LastSeenIP:     p.clientIP,
		LastVerifiedAt: now,
	}
	if d := devicex.Derive(p.userAgent); !d.IsZero() {
		sess.Device = &d
	}

	if err := s.Store.Sessions().Create(ctx, sess); err != nil {
		return fmt.Errorf("failed to create session row: %w", err)
	}

	if err := s.emit(p.transport, sess); err != nil {
		if _, derr := s.Store.Sessions().Delete(ctx, sess.ID, accountID); derr != nil {
			slogx.FromContext(ctx).Warn("failed to roll back session row", "session_id", sess.ID, "error", derr)
		}
		return fmt.Errorf("failed to emit session token: %w", err)
	}

	p.session = &sess
	return nil
}

// Revoke ends the current session: deletes its row, clears the client's
// token, and resets the passport. Reports whether a row was deleted.
func (p *Passport) Revoke(ctx context.Context) (bool, error) {
	if p.session == nil {
		return false, ErrNotAuthenticated
	}
	return p.RevokeByID(ctx, p.session.ID)
}

// RevokeByID deletes one of the current account's sessions by id. Ids from
// other accounts never match, so a guessed id cannot revoke across
// accounts. Revoking the current session also clears the transport.
func (p *Passport) RevokeByID(ctx context.Context, id idx.ID) (bool, error) {
	if p.session == nil {
		return false, ErrNotAuthenticated
	}

	deleted, err := p.svc.Store.Sessions().Delete(ctx, id, p.session.AccountID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	if id == p.session.ID {
		p.reset()
	}
	return deleted, nil
}

// RevokeAll deletes every session for the current account, including this
// one, and returns how many rows were removed.
func (p *Passport) RevokeAll(ctx context.Context) (int64, error) {
	if p.session == nil {
		return 0, ErrNotAuthenticated
	}

	n, err := p.svc.Store.Sessions().DeleteByAccount(ctx, p.session.AccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	p.reset()
	return n, nil
}

// RevokeOthers deletes every session for the current account except this
// one.
func (p *Passport) RevokeOthers(ctx context.Context) (int64, error) {
	if p.session == nil {
		return 0, ErrNotAuthenticated
	}

	n, err := p.svc.Store.Sessions().DeleteByAccountExcept(ctx, p.session.AccountID, p.session.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke other sessions: %w", err)
	}
	return n, nil
}

// List returns the current account's active sessions, newest first.
func (p *Passport) List(ctx context.Context) ([]domain.Session, error) {
	if p.session == nil {
		return nil, ErrNotAuthenticated
	}

	sessions, err := p.svc.Store.Sessions().ListByAccount(ctx, p.session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (p *Passport) reset() {
	p.session = nil
	p.transport.ClearToken()
}
