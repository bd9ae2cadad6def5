package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var pol = Policy{Window: 5 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute}

func TestSubject(t *testing.T) {
	a := Subject("User@Mail.com ", "1.2.3.4")
	require.Equal(t, a, Subject("user@mail.com", "1.2.3.4"))
	require.NotEqual(t, a, Subject("user@mail.com", "5.6.7.8"))
	require.Len(t, a, 64)
}

func TestMemory_LocksAtThresholdAndResets(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemory(pol)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "s")
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := l.Failure(ctx, "s")
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, pol.BlockFor, dur)

	ok, left, err := l.Allow(ctx, "s")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, pol.BlockFor, left)

	now = now.Add(pol.BlockFor + time.Second)
	ok, _, err = l.Allow(ctx, "s")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Success(ctx, "s"))
	ok, _, _ = l.Allow(ctx, "s")
	require.True(t, ok)
}

func TestMemory_WindowExpiryForgetsFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := NewMemory(pol)
	l.now = func() time.Time { return now }

	_, _, _ = l.Failure(ctx, "s")
	_, _, _ = l.Failure(ctx, "s")
	now = now.Add(pol.Window + time.Second)
	blocked, _, err := l.Failure(ctx, "s")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestPG_Allow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	l := NewPG(mock, pol)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter WHERE subject=\$1`).
		WithArgs("s").
		WillReturnError(pgx.ErrNoRows)
	ok, _, err := l.Allow(ctx, "s")
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("s").
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Now().Add(time.Minute)))
	ok, left, err := l.Allow(ctx, "s")
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, left, time.Duration(0))

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("s").
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Unix(0, 0)))
	ok, _, err = l.Allow(ctx, "s")
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("s").
		WillReturnError(errors.New("db down"))
	_, _, err = l.Allow(ctx, "s")
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_FailureAndSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	l := NewPG(mock, pol)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO auth_limiter`).
		WithArgs("s", pol.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(1))
	blocked, _, err := l.Failure(ctx, "s")
	require.NoError(t, err)
	require.False(t, blocked)

	mock.ExpectQuery(`INSERT INTO auth_limiter`).
		WithArgs("s", pol.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE auth_limiter SET blocked_until=\$2`).
		WithArgs("s", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	blocked, dur, err := l.Failure(ctx, "s")
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, pol.BlockFor, dur)

	mock.ExpectExec(`DELETE FROM auth_limiter WHERE subject=\$1`).
		WithArgs("s").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, l.Success(ctx, "s"))

	require.NoError(t, mock.ExpectationsWereMet())
}
