package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG stores limiter state in the auth_limiter table so lockouts survive restarts and span replicas.
type PG struct {
	q   pgxQuerier
	pol Policy
}

// NewPG constructs a PostgreSQL-backed limiter over a pool or transaction.
func NewPG(q pgxQuerier, pol Policy) *PG {
	return &PG{q: q, pol: pol}
}

// Allow implements Limiter.
func (l *PG) Allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE subject=$1`
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, q, subject).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	if left := time.Until(blockedUntil); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

// Success implements Limiter.
func (l *PG) Success(ctx context.Context, subject string) error {
	_, err := l.q.Exec(ctx, `DELETE FROM auth_limiter WHERE subject=$1`, subject)
	return err
}

// Failure implements Limiter. The counter restarts when the previous window has elapsed.
func (l *PG) Failure(ctx context.Context, subject string) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter (subject, fail_count, window_start, blocked_until)
VALUES ($1, 1, now(), 'epoch')
ON CONFLICT (subject) DO UPDATE SET
  fail_count = CASE WHEN now() - auth_limiter.window_start > $2::interval
    THEN 1 ELSE auth_limiter.fail_count + 1 END,
  window_start = CASE WHEN now() - auth_limiter.window_start > $2::interval
    THEN now() ELSE auth_limiter.window_start END
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, q, subject, l.pol.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.pol.MaxFails {
		return false, 0, nil
	}

	const block = `UPDATE auth_limiter SET blocked_until=$2, fail_count=0, window_start=now() WHERE subject=$1`
	if _, err := l.q.Exec(ctx, block, subject, time.Now().Add(l.pol.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.pol.BlockFor, nil
}
