package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, pwd_hash, salt_auth, first_name, last_name, image, color)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	p := u.Profile
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Email, u.PwdHash, u.SaltAuth, p.FirstName, p.LastName, p.Image, p.Color)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

const selectUser = `
SELECT id, email, pwd_hash, salt_auth, first_name, last_name, image, color, created_at
FROM users`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	p := &u.Profile
	if err := row.Scan(&u.ID, &u.Email, &u.PwdHash, &u.SaltAuth, &p.FirstName, &p.LastName, &p.Image, &p.Color, &u.CreatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	p.ID, p.Email = u.ID, u.Email
	return &u, nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, selectUser+` WHERE id=$1`, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, selectUser+` WHERE email=$1`, email))
}

// Profiles selects display attributes for a set of users.
func (r *UserRepo) Profiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Profile, error) {
	out := make(map[uuid.UUID]model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `
SELECT id, email, first_name, last_name, image, color
FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.db.Pool.Query(ctx, q, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Image, &p.Color); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
