package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"id", "email", "pwd_hash", "salt_auth", "first_name", "last_name", "image", "color", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    "a@b.c",
		PwdHash:  []byte("h"),
		SaltAuth: []byte("s"),
		Profile:  model.Profile{FirstName: "Ann", LastName: "Lee", Color: 2},
	}

	mock.ExpectExec(`INSERT INTO users \(id, email, pwd_hash, salt_auth, first_name, last_name, image, color\)`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth, "Ann", "Lee", "", 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth, "Ann", "Lee", "", 2).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(id, "a@b.c", []byte("h"), []byte("s"), "Ann", "Lee", "img", 3, now))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, id, u.Profile.ID)
	require.Equal(t, "a@b.c", u.Profile.Email)
	require.Equal(t, 3, u.Profile.Color)

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("x@y.z").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(id, "x@y.z", []byte("h"), []byte("s"), "", "", "", 0, time.Now()))
	u, err := r.GetByEmail(ctx, "x@y.z")
	require.NoError(t, err)
	require.Equal(t, "x@y.z", u.Email)

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("x@y.z").
		WillReturnError(context.Canceled)
	_, err = r.GetByEmail(ctx, "x@y.z")
	require.True(t, errors.Is(err, context.Canceled))
}

func TestUserRepo_Profiles(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())

	out, err := r.Profiles(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, out)

	mock.ExpectQuery(`FROM users WHERE id = ANY\(\$1::uuid\[\]\)`).
		WithArgs([]string{a.String(), b.String()}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "first_name", "last_name", "image", "color"}).
			AddRow(a, "a@x", "A", "", "", 1).
			AddRow(b, "b@x", "B", "", "", 2))
	out, err = r.Profiles(ctx, []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "B", out[b].FirstName)

	require.NoError(t, mock.ExpectationsWereMet())
}
