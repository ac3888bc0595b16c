package http

import (
	"encoding/json"

	"github.com/coder/websocket"

	"github.com/vovakirdan/liveboard-server/internal/core"
	"github.com/vovakirdan/liveboard-server/internal/proto"
)

// Close codes sent to viewers whose connection has no further use.
const (
	StatusInvalidRoom    websocket.StatusCode = 4001
	StatusRoomRotated    websocket.StatusCode = 4002
	StatusSessionExpired websocket.StatusCode = 4003
)

const (
	noticeInvalidRoom    = "This link is invalid or the session has expired."
	noticeRoomRotated    = "The room address has changed. Ask the presenter for the new link."
	noticeSessionExpired = "The session expired after a long period of inactivity."
	noticeAuthFailed     = "Wrong password."
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// inboundToCommand maps a client frame to a hub command. Payloads may be
// objects ({"password": "..."}) or bare values ("...") for the single-argument events.
func inboundToCommand(inbound proto.Inbound, maxMessageBytes int64) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, badRequest("roomId is required")
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: join.RoomID}, nil
	case proto.InboundTypeAuthenticate:
		var password string
		if err := json.Unmarshal(inbound.Data, &password); err != nil {
			var auth proto.AuthenticateData
			if err := json.Unmarshal(inbound.Data, &auth); err != nil {
				return nil, badRequest("password is required")
			}
			password = auth.Password
		}
		return &core.Command{Kind: core.CommandAuthenticate, Secret: password, Ref: inbound.Ref}, nil
	case proto.InboundTypeSendMessage:
		var text string
		if err := json.Unmarshal(inbound.Data, &text); err != nil {
			var msg proto.SendMessageData
			if err := json.Unmarshal(inbound.Data, &msg); err != nil {
				return nil, badRequest("text is required")
			}
			text = msg.Text
		}
		if maxMessageBytes > 0 && int64(len(text)) > maxMessageBytes {
			return nil, badRequest("message is too long")
		}
		return &core.Command{Kind: core.CommandSendMessage, Text: text}, nil
	case proto.InboundTypeDeleteMessage:
		var id int64
		if err := json.Unmarshal(inbound.Data, &id); err != nil {
			var del proto.DeleteMessageData
			if err := json.Unmarshal(inbound.Data, &del); err != nil {
				return nil, badRequest("id is required")
			}
			id = del.ID
		}
		return &core.Command{Kind: core.CommandDeleteMessage, MessageID: id}, nil
	case proto.InboundTypeClearMessages:
		return &core.Command{Kind: core.CommandClearMessages}, nil
	case proto.InboundTypeRotateURL:
		return &core.Command{Kind: core.CommandRotateURL}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func messagesToProto(msgs []core.Message) []proto.Message {
	out := make([]proto.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToProto(m))
	}
	return out
}

func messageToProto(m core.Message) proto.Message {
	return proto.Message{ID: m.ID, Text: m.Text, CreatedAt: m.CreatedAt.UnixMilli()}
}

func event(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventInvalidRoom:
		return event(proto.EventInvalidRoom, proto.Notice{Message: noticeInvalidRoom})
	case core.EventInitMessages:
		return event(proto.EventInitMessages, messagesToProto(ev.Messages))
	case core.EventNewMessage:
		return event(proto.EventNewMessage, messageToProto(ev.Message))
	case core.EventMessagesCleared:
		return event(proto.EventMessagesCleared, nil)
	case core.EventMessageDeleted:
		return event(proto.EventMessageDeleted, proto.MessageDeleted{ID: ev.MessageID})
	case core.EventRoomRotated:
		if ev.Terminal {
			return event(proto.EventRoomRotated, proto.Notice{Message: noticeRoomRotated})
		}
		if ev.Room != "" {
			return event(proto.EventRoomRotated, proto.RoomPath{RoomID: ev.Room, Path: proto.LivePath(ev.Room)})
		}
		return event(proto.EventRoomRotated, nil)
	case core.EventSessionExpired:
		if ev.Room != "" {
			return event(proto.EventSessionExpired, proto.RoomPath{RoomID: ev.Room, Path: proto.LivePath(ev.Room)})
		}
		return event(proto.EventSessionExpired, proto.Notice{Message: noticeSessionExpired})
	case core.EventURLRotated:
		return event(proto.EventURLRotated, proto.RoomPath{RoomID: ev.Room, Path: proto.LivePath(ev.Room)})
	case core.EventAuthResult:
		out := proto.Outbound{Type: proto.OutboundTypeAck, Event: proto.EventAuthenticateResp}
		if ev.Auth == nil || !ev.Auth.Success {
			failure := proto.AuthFailure{Success: false, Message: noticeAuthFailed}
			if ev.Auth != nil {
				out.Ref = ev.Auth.Ref
				if ev.Auth.Reason != "" {
					failure.Message = ev.Auth.Reason
				}
			}
			out.Data = failure
			return out
		}
		out.Ref = ev.Auth.Ref
		out.Data = proto.AuthResponse{
			Success:         true,
			CurrentRoomPath: ev.Auth.Token,
			CurrentMessages: messagesToProto(ev.Auth.Messages),
		}
		return out
	case core.EventError:
		if ev.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

// closeFor returns the close status for a terminal event.
func closeFor(ev *core.Event) *closeError {
	switch ev.Kind {
	case core.EventInvalidRoom:
		return &closeError{status: StatusInvalidRoom, reason: "invalid room"}
	case core.EventRoomRotated:
		return &closeError{status: StatusRoomRotated, reason: "room rotated"}
	case core.EventSessionExpired:
		return &closeError{status: StatusSessionExpired, reason: "session expired"}
	default:
		return &closeError{status: websocket.StatusNormalClosure, reason: "closing"}
	}
}
