// Package chatv1 is the chat.v1.Chat gRPC API: request/response types, the service descriptor
// and a client. Messages travel as JSON (content-subtype "json").
package chatv1

import (
	"time"

	"github.com/and161185/goph-chat/internal/wire"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Image     string `json:"image,omitempty"`
	Color     int    `json:"color,omitempty"`
}

// RegisterResponse returns the created profile.
type RegisterResponse struct {
	User wire.Profile `json:"user"`
}

// LoginRequest exchanges credentials for an access token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the access token used for RPCs and Connect.
type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        wire.Profile `json:"user"`
}

// ConversationRequest selects the conversation with Contact.
type ConversationRequest struct {
	Contact string `json:"contact"`
}

// ChannelHistoryRequest selects a channel's messages.
type ChannelHistoryRequest struct {
	ChannelID string `json:"channelId"`
}

// HistoryResponse lists messages oldest first.
type HistoryResponse struct {
	Messages []wire.Message `json:"messages"`
}

// Channel is a channel as returned to clients.
type Channel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Admin     string    `json:"admin"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateChannelRequest creates a channel administered by the caller.
type CreateChannelRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

// ChannelResponse returns a single channel.
type ChannelResponse struct {
	Channel Channel `json:"channel"`
}

// ListChannelsRequest lists the caller's channels.
type ListChannelsRequest struct{}

// ListChannelsResponse lists channels newest first.
type ListChannelsResponse struct {
	Channels []Channel `json:"channels"`
}

// UploadRequest describes an attachment the caller wants to upload.
type UploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// UploadResponse is a presigned PUT target and the URL to reference in the message.
type UploadResponse struct {
	Key       string    `json:"key"`
	PutURL    string    `json:"putUrl"`
	FileURL   string    `json:"fileUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}
