package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/passport/internal/passport/domain"
	"github.com/aussiebroadwan/passport/pkg/idx"
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement this; the session lifecycle depends only on the
// interface, never on a driver.
type Store interface {
	Sessions() Sessions

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Sessions is the persisted side of the session records. The row schema
// mirrors domain.Session minus LastVerifiedAt, which exists only in the
// token.
type Sessions interface {
	// Create inserts a new session row (id minted by the service).
	Create(ctx context.Context, s domain.Session) error

	// Exists reports whether a row with the given id is present. This is
	// the revocation check: a missing row means the session is dead.
	Exists(ctx context.Context, id idx.ID) (bool, error)

	// ListByAccount returns the account's sessions, newest sign-in first.
	ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error)

	// TouchLastSeen updates last_seen_at and last_seen_ip for a row and
	// reports whether a row was actually updated. Zero rows means the
	// session vanished concurrently.
	TouchLastSeen(ctx context.Context, id idx.ID, lastSeenAt time.Time, ip string) (bool, error)

	// Delete removes one session scoped to an account, so one account can
	// never revoke another's session by guessing ids. Reports whether a
	// row was deleted.
	Delete(ctx context.Context, id idx.ID, accountID string) (bool, error)

	// DeleteByAccount removes all of an account's sessions, returning the
	// number of rows deleted.
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)

	// DeleteByAccountExcept removes all of an account's sessions but the
	// given one.
	DeleteByAccountExcept(ctx context.Context, accountID string, keep idx.ID) (int64, error)

	// DeleteSignedInBefore removes the account's sessions whose sign-in
	// predates the cutoff. Self-healing for orphaned rows whose cookie was
	// deleted client-side.
	DeleteSignedInBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error)

	// DeleteExpired is the store-wide housekeeping sweep: rows signed in
	// before signedInCutoff or idle since lastSeenCutoff.
	DeleteExpired(ctx context.Context, signedInCutoff, lastSeenCutoff time.Time) (int64, error)

	// CountByAccount returns the number of active sessions for an account,
	// for the max-active-sessions cap.
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}
