package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventInvalidRoom rejects a join with a stale or unknown token.
	EventInvalidRoom EventKind = iota
	// EventInitMessages delivers the log snapshot to a newly admitted viewer.
	EventInitMessages
	// EventNewMessage carries a published message.
	EventNewMessage
	// EventMessagesCleared tells members the log was emptied.
	EventMessagesCleared
	// EventMessageDeleted carries the id of a removed message.
	EventMessageDeleted
	// EventRoomRotated tells members of the old group that their token died.
	EventRoomRotated
	// EventSessionExpired tells everyone the room was wiped after inactivity.
	EventSessionExpired
	// EventURLRotated gives the rotating presenter the new token.
	EventURLRotated
	// EventAuthResult answers an authentication attempt.
	EventAuthResult
	// EventError notifies a client about a domain error.
	EventError
)

var eventNames = [...]string{
	EventInvalidRoom:     "invalid_room",
	EventInitMessages:    "init_messages",
	EventNewMessage:      "new_message",
	EventMessagesCleared: "messages_cleared",
	EventMessageDeleted:  "message_deleted",
	EventRoomRotated:     "room_rotated",
	EventSessionExpired:  "session_expired",
	EventURLRotated:      "url_rotated",
	EventAuthResult:      "auth_result",
	EventError:           "error",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the room.
// A single Event value may be shared by many clients and must not be modified.
type Event struct {
	Kind      EventKind
	Room      string // new token; set for URLRotated, and RoomRotated/SessionExpired sent to presenters
	Message   Message
	Messages  []Message // EventInitMessages
	MessageID int64     // EventMessageDeleted
	Auth      *AuthResult
	Error     *CoreError

	// Terminal means the connection has no further use and should be closed
	// once the event is written.
	Terminal bool
}

// AuthResult is the direct reply to CommandAuthenticate.
type AuthResult struct {
	Ref      string
	Success  bool
	Token    string
	Messages []Message
	Reason   string
}
