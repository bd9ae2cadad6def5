package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
)

// ChannelRepo implements ChannelRepository using PostgreSQL.
type ChannelRepo struct{ db *DB }

// NewChannelRepo constructs a channel repository.
func NewChannelRepo(db *DB) *ChannelRepo { return &ChannelRepo{db: db} }

// Create inserts the channel and its members in one transaction; member order is kept in position.
func (r *ChannelRepo) Create(ctx context.Context, c *model.Channel) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const ins = `INSERT INTO channels (id, name, admin_id, created_at) VALUES ($1,$2,$3,$4)`
	const mem = `INSERT INTO channel_members (channel_id, user_id, position) VALUES ($1,$2,$3)`

	if _, err = tx.Exec(ctx, ins, c.ID, c.Name, c.Admin, c.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	for i, userID := range c.Members {
		if _, err = tx.Exec(ctx, mem, c.ID, userID, i); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("member[%d]: %w", i, errs.ErrNotFound)
			}
			return err
		}
	}
	return nil
}

// Get loads a channel and its ordered members.
func (r *ChannelRepo) Get(ctx context.Context, id uuid.UUID) (*model.Channel, error) {
	const q = `SELECT id, name, admin_id, created_at FROM channels WHERE id=$1`
	var c model.Channel
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Admin, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	members, err := r.MembersOf(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Members = members
	return &c, nil
}

// MembersOf returns members ordered by join position. A channel always has its admin as a member,
// so an empty result means the channel does not exist.
func (r *ChannelRepo) MembersOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT user_id FROM channel_members WHERE channel_id=$1 ORDER BY position ASC`
	rows, err := r.db.Pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("members: %w: %v", errs.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errs.ErrNotFound
	}
	return out, nil
}

// ListForUser returns the user's channels, newest first, with members loaded.
func (r *ChannelRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Channel, error) {
	const q = `
SELECT c.id, c.name, c.admin_id, c.created_at
FROM channels c JOIN channel_members m ON m.channel_id = c.id
WHERE m.user_id=$1
ORDER BY c.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	var out []model.Channel
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.Admin, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		members, err := r.MembersOf(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Members = members
	}
	return out, nil
}
