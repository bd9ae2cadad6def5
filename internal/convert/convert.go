// Package convert maps domain models to the wire and API representations.
package convert

import (
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/api/chatv1"
	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
	"github.com/and161185/goph-chat/internal/wire"
)

// ToWireProfile converts a domain profile.
func ToWireProfile(p model.Profile) wire.Profile {
	return wire.Profile{
		ID:        p.ID.String(),
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Image:     p.Image,
		Color:     p.Color,
	}
}

// ToWireMessage renders an enriched message for delivery.
func ToWireMessage(m model.EnrichedMessage) *wire.Message {
	out := &wire.Message{
		ID:        m.ID.String(),
		Sender:    ToWireProfile(m.SenderProfile),
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
	if m.RecipientProfile != nil {
		rp := ToWireProfile(*m.RecipientProfile)
		out.Recipient = &rp
	}
	if m.IsChannel() {
		out.ChannelID = m.Channel.String()
	}
	if m.Payload != nil {
		out.MessageType = string(m.Payload.Type())
	}
	switch p := m.Payload.(type) {
	case model.Text:
		out.Content = p.Content
	case model.Image:
		setAttachment(out, p.Attachment)
	case model.File:
		setAttachment(out, p.Attachment)
	}
	return out
}

func setAttachment(out *wire.Message, a model.Attachment) {
	out.FileURL, out.FileName, out.FileSize, out.ContentType = a.URL, a.Name, a.Size, a.ContentType
}

// ToWireMessages converts a history page.
func ToWireMessages(ms []model.EnrichedMessage) []wire.Message {
	out := make([]wire.Message, len(ms))
	for i, m := range ms {
		out[i] = *ToWireMessage(m)
	}
	return out
}

// ToAPIChannel converts a domain channel.
func ToAPIChannel(c model.Channel) chatv1.Channel {
	return chatv1.Channel{
		ID:        c.ID.String(),
		Name:      c.Name,
		Admin:     c.Admin.String(),
		Members:   UUIDStrings(c.Members),
		CreatedAt: c.CreatedAt,
	}
}

// ToAPIChannels converts a channel list.
func ToAPIChannels(cs []model.Channel) []chatv1.Channel {
	out := make([]chatv1.Channel, len(cs))
	for i, c := range cs {
		out[i] = ToAPIChannel(c)
	}
	return out
}

// PresenceMap renders a presence snapshot keyed by user id string.
func PresenceMap(snap map[uuid.UUID]bool) map[string]bool {
	out := make(map[string]bool, len(snap))
	for id, online := range snap {
		out[id.String()] = online
	}
	return out
}

// UUIDStrings renders ids as strings.
func UUIDStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ParseUUID parses a client supplied id; failures wrap errs.ErrValidation.
func ParseUUID(field, s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", errs.ErrValidation, field)
	}
	return id, nil
}

// ParseUUIDs parses a list of client supplied ids.
func ParseUUIDs(field string, ss []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ss))
	for i, s := range ss {
		id, err := ParseUUID(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
