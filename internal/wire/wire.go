// Package wire defines the events exchanged over a live chat connection.
package wire

import "time"

// Inbound event types.
const (
	TypeAuth        = "auth"
	TypeSendDirect  = "send-direct"
	TypeSendChannel = "send-channel"
	TypePing        = "ping"
	TypeLogout      = "logout"
)

// Outbound event types.
const (
	TypeHandshakeAck      = "handshake-ack"
	TypePresenceSnapshot  = "presence-snapshot"
	TypePresence          = "presence"
	TypeReceiveMessage    = "receive-message"
	TypeReceiveChannelMsg = "receive-channel-message"
	TypeSendAck           = "send-ack"
	TypeSendFailed        = "send-failed"
	TypePong              = "pong"
	TypeError             = "error"
)

// Failure codes carried by send-failed and error events.
const (
	CodeInvalid      = "invalid"
	CodeUnavailable  = "unavailable"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeProtocol     = "protocol"
)

// Inbound is a client event. Only the fields relevant to Type are set.
type Inbound struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`

	Token string `json:"token,omitempty"`

	Recipient string `json:"recipient,omitempty"`
	ChannelID string `json:"channelId,omitempty"`

	MessageType string `json:"messageType,omitempty"`
	Content     string `json:"content,omitempty"`
	FileURL     string `json:"fileUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Profile is the display data attached to delivered messages.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Image     string `json:"image,omitempty"`
	Color     int    `json:"color"`
}

// Message is a persisted message as rendered to clients.
type Message struct {
	ID          string    `json:"id"`
	Sender      Profile   `json:"sender"`
	Recipient   *Profile  `json:"recipient,omitempty"`
	ChannelID   string    `json:"channelId,omitempty"`
	MessageType string    `json:"messageType"`
	Content     string    `json:"content,omitempty"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	FileSize    int64     `json:"fileSize,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Failure describes why a request was rejected.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is a server event.
type Event struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`

	UserID       string `json:"userId,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
	Online       *bool  `json:"online,omitempty"`

	Presence map[string]bool `json:"presence,omitempty"`
	Message  *Message        `json:"message,omitempty"`
	Error    *Failure        `json:"error,omitempty"`
}

// HandshakeAck confirms authentication of a connection.
func HandshakeAck(userID, connID string) Event {
	return Event{Type: TypeHandshakeAck, UserID: userID, ConnectionID: connID}
}

// PresenceSnapshot lists the users online when a connection registers.
func PresenceSnapshot(online map[string]bool) Event {
	if online == nil {
		online = map[string]bool{}
	}
	return Event{Type: TypePresenceSnapshot, Presence: online}
}

// PresenceChanged announces a user's online transition.
func PresenceChanged(userID string, online bool) Event {
	return Event{Type: TypePresence, UserID: userID, Online: &online}
}

// Receive delivers a message to a connection.
func Receive(m *Message) Event {
	t := TypeReceiveMessage
	if m.ChannelID != "" {
		t = TypeReceiveChannelMsg
	}
	return Event{Type: t, Message: m}
}

// SendAck acknowledges a persisted send to the originating connection.
func SendAck(requestID string, m *Message) Event {
	return Event{Type: TypeSendAck, RequestID: requestID, Message: m}
}

// SendFailed reports a rejected send.
func SendFailed(requestID, code, msg string) Event {
	return Event{Type: TypeSendFailed, RequestID: requestID, Error: &Failure{Code: code, Message: msg}}
}

// Pong answers a ping.
func Pong(requestID string) Event {
	return Event{Type: TypePong, RequestID: requestID}
}

// Error reports a protocol-level problem that is not tied to a send.
func Error(requestID, code, msg string) Event {
	return Event{Type: TypeError, RequestID: requestID, Error: &Failure{Code: code, Message: msg}}
}
