package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeJoinRoom      = "joinRoom"
	InboundTypeAuthenticate  = "authenticate"
	InboundTypeSendMessage   = "sendMessage"
	InboundTypeClearMessages = "clearMessages"
	InboundTypeRotateURL     = "rotateUrl"
	InboundTypeDeleteMessage = "deleteMessage"

	OutboundTypeEvent = "event"
	OutboundTypeAck   = "ack"
	OutboundTypeError = "error"

	EventInvalidRoom      = "invalidRoom"
	EventInitMessages     = "initMessages"
	EventNewMessage       = "newMessage"
	EventMessagesCleared  = "messagesCleared"
	EventMessageDeleted   = "messageDeleted"
	EventRoomRotated      = "roomRotated"
	EventSessionExpired   = "sessionExpired"
	EventURLRotated       = "urlRotated"
	EventAuthenticateResp = "authenticate"
)

// LivePathPrefix is the public path under which a room token is shared.
const LivePathPrefix = "/live/"

// LivePath builds the shareable path for a room token.
func LivePath(token string) string {
	return LivePathPrefix + token
}

// JoinRoomData requests admission to the room addressed by a token.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// AuthenticateData carries the admin secret.
type AuthenticateData struct {
	Password string `json:"password"`
}

// SendMessageData is a message published by the presenter.
type SendMessageData struct {
	Text string `json:"text"`
}

// DeleteMessageData names the message to remove.
type DeleteMessageData struct {
	ID int64 `json:"id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Ref   string `json:"ref,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is a log entry on the wire.
type Message struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// MessageDeleted carries the id of a removed message.
type MessageDeleted struct {
	ID int64 `json:"id"`
}

// RoomPath tells a presenter which token and path are current.
type RoomPath struct {
	RoomID string `json:"roomId"`
	Path   string `json:"path"`
}

// AuthResponse answers a successful authenticate request.
// CurrentRoomPath holds the bare room token.
type AuthResponse struct {
	Success         bool      `json:"success"`
	CurrentRoomPath string    `json:"currentRoomPath"`
	CurrentMessages []Message `json:"currentMessages"`
}

// AuthFailure answers a rejected authenticate request.
type AuthFailure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Notice is the payload of terminal notifications shown to viewers.
type Notice struct {
	Message string `json:"message"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
