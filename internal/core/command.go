package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom asks to be admitted to the room addressed by a token.
	CommandJoinRoom CommandKind = iota
	// CommandAuthenticate presents the admin secret.
	CommandAuthenticate
	// CommandSendMessage appends a message to the log.
	CommandSendMessage
	// CommandClearMessages empties the log.
	CommandClearMessages
	// CommandDeleteMessage removes one message by id.
	CommandDeleteMessage
	// CommandRotateURL replaces the room token.
	CommandRotateURL
)

var commandNames = [...]string{
	CommandJoinRoom:      "join_room",
	CommandAuthenticate:  "authenticate",
	CommandSendMessage:   "send_message",
	CommandClearMessages: "clear_messages",
	CommandDeleteMessage: "delete_message",
	CommandRotateURL:     "rotate_url",
}

func (k CommandKind) String() string {
	if int(k) >= 0 && int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "unknown"
}

// Privileged reports whether the command requires an authenticated session.
func (k CommandKind) Privileged() bool {
	switch k {
	case CommandSendMessage, CommandClearMessages, CommandDeleteMessage, CommandRotateURL:
		return true
	default:
		return false
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	Room      string // token for CommandJoinRoom
	Secret    string // CommandAuthenticate
	Ref       string // echoed back in the authentication result
	Text      string // CommandSendMessage
	MessageID int64  // CommandDeleteMessage

	// set by the hub before the command reaches the event loop
	verified bool
}
