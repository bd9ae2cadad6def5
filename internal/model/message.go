package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/errs"
)

// MessageType is the kind of content a message carries.
type MessageType string

// Supported message types.
const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
)

// Payload is the content of a message. Exactly one of Text, Image or File.
type Payload interface {
	Type() MessageType
	validate() error
}

// Text is a plain text payload.
type Text struct {
	Content string
}

// Attachment describes an uploaded object referenced by an image or file message.
type Attachment struct {
	URL         string
	Name        string
	Size        int64
	ContentType string
}

// Image is an image attachment payload.
type Image struct{ Attachment }

// File is a generic file attachment payload.
type File struct{ Attachment }

// Type implements Payload.
func (Text) Type() MessageType { return TypeText }

// Type implements Payload.
func (Image) Type() MessageType { return TypeImage }

// Type implements Payload.
func (File) Type() MessageType { return TypeFile }

func (t Text) validate() error {
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("%w: text message requires content", errs.ErrValidation)
	}
	return nil
}

func (i Image) validate() error { return i.Attachment.validate(TypeImage) }

func (f File) validate() error { return f.Attachment.validate(TypeFile) }

func (a Attachment) validate(t MessageType) error {
	switch {
	case a.URL == "":
		return fmt.Errorf("%w: %s message requires file url", errs.ErrValidation, t)
	case a.Name == "":
		return fmt.Errorf("%w: %s message requires file name", errs.ErrValidation, t)
	case a.Size <= 0:
		return fmt.Errorf("%w: %s message requires positive file size", errs.ErrValidation, t)
	case a.ContentType == "":
		return fmt.Errorf("%w: %s message requires content type", errs.ErrValidation, t)
	}
	return nil
}

// ValidatePayload checks that p is non-nil and carries every field its type requires.
func ValidatePayload(p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: empty payload", errs.ErrValidation)
	}
	return p.validate()
}

// Message is a persisted chat message. Exactly one of Recipient and Channel is set.
type Message struct {
	ID        uuid.UUID
	Sender    uuid.UUID
	Recipient uuid.UUID // contact messages only
	Channel   uuid.UUID // channel messages only
	Payload   Payload
	Read      bool
	CreatedAt time.Time
}

// IsChannel reports whether the message belongs to a channel conversation.
func (m Message) IsChannel() bool { return m.Channel != uuid.Nil }

// Validate checks the addressing and payload invariants.
func (m Message) Validate() error {
	if m.Sender == uuid.Nil {
		return fmt.Errorf("%w: empty sender", errs.ErrValidation)
	}
	if (m.Recipient == uuid.Nil) == (m.Channel == uuid.Nil) {
		return fmt.Errorf("%w: exactly one of recipient and channel must be set", errs.ErrValidation)
	}
	return ValidatePayload(m.Payload)
}

// EnrichedMessage is a persisted message with display attributes for client rendering.
type EnrichedMessage struct {
	Message
	SenderProfile    Profile
	RecipientProfile *Profile // contact messages only
}

// Enrich attaches profiles to m. Users missing from profiles get a bare profile carrying only their ID.
func Enrich(m Message, profiles map[uuid.UUID]Profile) EnrichedMessage {
	lookup := func(id uuid.UUID) Profile {
		if p, ok := profiles[id]; ok {
			return p
		}
		return Profile{ID: id}
	}
	em := EnrichedMessage{Message: m, SenderProfile: lookup(m.Sender)}
	if !m.IsChannel() {
		rp := lookup(m.Recipient)
		em.RecipientProfile = &rp
	}
	return em
}

// Participants returns the distinct users whose profiles a message needs.
func (m Message) Participants() []uuid.UUID {
	if m.IsChannel() || m.Recipient == m.Sender {
		return []uuid.UUID{m.Sender}
	}
	return []uuid.UUID{m.Sender, m.Recipient}
}
