package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
)

// payloadFields is the message body portion of a send event.
type payloadFields struct {
	RequestID   string `validate:"max=64"`
	MessageType string `validate:"required,oneof=text image file"`
	Content     string `validate:"required_if=MessageType text,max=65536"`
	FileURL     string `validate:"required_unless=MessageType text,omitempty,url"`
	FileName    string `validate:"required_unless=MessageType text,max=255"`
	FileSize    int64  `validate:"required_unless=MessageType text,gte=0,lte=5242880"`
	ContentType string `validate:"required_unless=MessageType text,max=255"`
}

// Validator checks send events and converts them to domain payloads.
type Validator struct{ v *validator.Validate }

// NewValidator returns a Validator. It is safe for concurrent use.
func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// DirectSend validates a send-direct event.
func (x *Validator) DirectSend(in Inbound) (uuid.UUID, model.Payload, error) {
	if in.Type != TypeSendDirect {
		return uuid.Nil, nil, fmt.Errorf("%w: unexpected event type %q", errs.ErrValidation, in.Type)
	}
	if in.ChannelID != "" {
		return uuid.Nil, nil, fmt.Errorf("%w: channelId is not allowed in %s", errs.ErrValidation, in.Type)
	}
	to, err := x.id(in.Recipient, "recipient")
	if err != nil {
		return uuid.Nil, nil, err
	}
	p, err := x.payload(in)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return to, p, nil
}

// ChannelSend validates a send-channel event.
func (x *Validator) ChannelSend(in Inbound) (uuid.UUID, model.Payload, error) {
	if in.Type != TypeSendChannel {
		return uuid.Nil, nil, fmt.Errorf("%w: unexpected event type %q", errs.ErrValidation, in.Type)
	}
	if in.Recipient != "" {
		return uuid.Nil, nil, fmt.Errorf("%w: recipient is not allowed in %s", errs.ErrValidation, in.Type)
	}
	ch, err := x.id(in.ChannelID, "channelId")
	if err != nil {
		return uuid.Nil, nil, err
	}
	p, err := x.payload(in)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return ch, p, nil
}

func (x *Validator) id(s, field string) (uuid.UUID, error) {
	if err := x.v.Var(s, "required,uuid"); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", errs.ErrValidation, field)
	}
	id, err := uuid.FromString(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", errs.ErrValidation, field)
	}
	return id, nil
}

func (x *Validator) payload(in Inbound) (model.Payload, error) {
	f := payloadFields{
		RequestID:   in.RequestID,
		MessageType: in.MessageType,
		Content:     in.Content,
		FileURL:     in.FileURL,
		FileName:    in.FileName,
		FileSize:    in.FileSize,
		ContentType: in.ContentType,
	}
	if err := x.v.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrValidation, describe(err))
	}

	var p model.Payload
	switch model.MessageType(f.MessageType) {
	case model.TypeText:
		if f.FileURL != "" || f.FileName != "" || f.FileSize != 0 || f.ContentType != "" {
			return nil, fmt.Errorf("%w: file fields are not allowed in a text message", errs.ErrValidation)
		}
		p = model.Text{Content: f.Content}
	case model.TypeImage, model.TypeFile:
		if f.Content != "" {
			return nil, fmt.Errorf("%w: content is not allowed in a %s message", errs.ErrValidation, f.MessageType)
		}
		att := model.Attachment{URL: f.FileURL, Name: f.FileName, Size: f.FileSize, ContentType: f.ContentType}
		if f.MessageType == string(model.TypeImage) {
			if !strings.HasPrefix(f.ContentType, "image/") {
				return nil, fmt.Errorf("%w: image message requires an image/* content type", errs.ErrValidation)
			}
			p = model.Image{Attachment: att}
		} else {
			p = model.File{Attachment: att}
		}
	}
	if err := model.ValidatePayload(p); err != nil {
		return nil, err
	}
	return p, nil
}

// describe flattens validator errors into "field:tag" pairs.
func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
