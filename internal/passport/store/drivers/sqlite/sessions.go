package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/passport/internal/passport/domain"
	"github.com/aussiebroadwan/passport/pkg/devicex"
	"github.com/aussiebroadwan/passport/pkg/idx"
)

type sessionsRepo struct {
	db *sql.DB
}

func (r *sessionsRepo) Create(ctx context.Context, s domain.Session) error {
	var system, browser sql.NullString
	if s.Device != nil {
		system = sql.NullString{String: s.Device.System, Valid: true}
		browser = sql.NullString{String: s.Device.Browser, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, account_id, signed_in_at, last_seen_at,
			signed_in_ip, last_seen_ip, device_system, device_browser
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.AccountID, s.SignedInAt.Unix(), s.LastSeenAt.Unix(),
		mapStringNull(s.SignedInIP), mapStringNull(s.LastSeenIP), system, browser,
	)
	return err
}

func (r *sessionsRepo) Exists(ctx context.Context, id idx.ID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE id = ?`, id.String(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *sessionsRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, signed_in_at, last_seen_at,
		       signed_in_ip, last_seen_ip, device_system, device_browser
		FROM sessions
		WHERE account_id = ?
		ORDER BY signed_in_at DESC, id DESC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) TouchLastSeen(ctx context.Context, id idx.ID, lastSeenAt time.Time, ip string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = ?, last_seen_ip = ? WHERE id = ?`,
		lastSeenAt.Unix(), mapStringNull(ip), id.String(),
	)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *sessionsRepo) Delete(ctx context.Context, id idx.ID, accountID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND account_id = ?`,
		id.String(), accountID,
	)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *sessionsRepo) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = ?`, accountID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteByAccountExcept(ctx context.Context, accountID string, keep idx.ID) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = ? AND id <> ?`,
		accountID, keep.String(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteSignedInBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = ? AND signed_in_at < ?`,
		accountID, cutoff.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, signedInCutoff, lastSeenCutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE signed_in_at < ? OR last_seen_at < ?`,
		signedInCutoff.Unix(), lastSeenCutoff.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE account_id = ?`, accountID,
	).Scan(&count)
	return count, err
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanSession(rows *sql.Rows) (domain.Session, error) {
	var (
		id, accountID          string
		signedInAt, lastSeenAt int64
		signedInIP, lastSeenIP sql.NullString
		system, browser        sql.NullString
	)

	err := rows.Scan(&id, &accountID, &signedInAt, &lastSeenAt,
		&signedInIP, &lastSeenIP, &system, &browser)
	if err != nil {
		return domain.Session{}, err
	}

	s := domain.Session{
		ID:         idx.ID(id),
		AccountID:  accountID,
		SignedInAt: time.Unix(signedInAt, 0).UTC(),
		LastSeenAt: time.Unix(lastSeenAt, 0).UTC(),
		SignedInIP: mapNullString(signedInIP),
		LastSeenIP: mapNullString(lastSeenIP),
	}
	if system.Valid || browser.Valid {
		s.Device = &devicex.Device{System: system.String, Browser: browser.String}
	}
	return s, nil
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
