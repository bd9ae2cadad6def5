package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
)

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

// Create inserts a message row. Payload fields are flattened into NOT NULL columns;
// the schema CHECK constraints mirror model.Message.Validate.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO messages (id, sender_id, recipient_id, channel_id, message_type,
  content, file_url, file_name, file_size, content_type, is_read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	cols := flatten(m.Payload)
	_, err := r.db.Pool.Exec(ctx, q,
		m.ID, m.Sender, nullable(m.Recipient), nullable(m.Channel), string(m.Payload.Type()),
		cols.content, cols.att.URL, cols.att.Name, cols.att.Size, cols.att.ContentType,
		m.Read, m.CreatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isForeignKeyViolation(err):
		return fmt.Errorf("create message: %w", errs.ErrNotFound)
	case isCheckViolation(err):
		return fmt.Errorf("create message: %w", errs.ErrValidation)
	default:
		return fmt.Errorf("create message: %w: %v", errs.ErrUnavailable, err)
	}
}

const selectMessage = `
SELECT id, sender_id, recipient_id, channel_id, message_type,
  content, file_url, file_name, file_size, content_type, is_read, created_at
FROM messages`

// FindConversation returns both directions of a contact conversation, oldest first.
func (r *MessageRepo) FindConversation(ctx context.Context, a, b uuid.UUID) ([]model.Message, error) {
	const q = selectMessage + `
WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
ORDER BY created_at ASC, id ASC`
	return r.query(ctx, q, a, b)
}

// FindChannelHistory returns the messages of a channel, oldest first.
func (r *MessageRepo) FindChannelHistory(ctx context.Context, channelID uuid.UUID) ([]model.Message, error) {
	const q = selectMessage + `
WHERE channel_id=$1
ORDER BY created_at ASC, id ASC`
	return r.query(ctx, q, channelID)
}

func (r *MessageRepo) query(ctx context.Context, q string, args ...any) ([]model.Message, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w: %v", errs.ErrUnavailable, err)
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var (
		m         model.Message
		recipient uuid.NullUUID
		channel   uuid.NullUUID
		typ       string
		content   string
		att       model.Attachment
		read      bool
		createdAt time.Time
	)
	if err := row.Scan(&m.ID, &m.Sender, &recipient, &channel, &typ,
		&content, &att.URL, &att.Name, &att.Size, &att.ContentType, &read, &createdAt); err != nil {
		return model.Message{}, err
	}
	p, err := unflatten(model.MessageType(typ), content, att)
	if err != nil {
		return model.Message{}, fmt.Errorf("message %s: %w", m.ID, err)
	}
	if recipient.Valid {
		m.Recipient = recipient.UUID
	}
	if channel.Valid {
		m.Channel = channel.UUID
	}
	m.Payload, m.Read, m.CreatedAt = p, read, createdAt
	return m, nil
}

type payloadColumns struct {
	content string
	att     model.Attachment
}

func flatten(p model.Payload) payloadColumns {
	switch v := p.(type) {
	case model.Text:
		return payloadColumns{content: v.Content}
	case model.Image:
		return payloadColumns{att: v.Attachment}
	case model.File:
		return payloadColumns{att: v.Attachment}
	}
	return payloadColumns{}
}

func unflatten(t model.MessageType, content string, att model.Attachment) (model.Payload, error) {
	switch t {
	case model.TypeText:
		return model.Text{Content: content}, nil
	case model.TypeImage:
		return model.Image{Attachment: att}, nil
	case model.TypeFile:
		return model.File{Attachment: att}, nil
	}
	return nil, fmt.Errorf("unknown message type %q", t)
}
