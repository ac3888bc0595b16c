package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/liveboard-server/internal/proto"
)

// frame mirrors proto.Outbound with raw data for decoding by event name.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Ref   string          `json:"ref"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:3000/ws", "WebSocket address")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password")
	text := flag.String("text", "hello from smoke test", "message text to publish")
	rotate := flag.Bool("rotate", false, "rotate the room link after publishing")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(typ, ref string, data any) error {
		in := proto.Inbound{Type: typ, Ref: ref}
		if data != nil {
			raw, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", typ, err)
			}
			in.Data = raw
		}
		if err := wsjson.Write(ctx, conn, in); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := mustSend(proto.InboundTypeAuthenticate, "auth", proto.AuthenticateData{Password: *password}); err != nil {
		return err
	}

	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch {
		case out.Type == proto.OutboundTypeError && out.Error != nil:
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		case out.Type == proto.OutboundTypeAck && out.Ref == "auth":
			var resp proto.AuthResponse
			if err := json.Unmarshal(out.Data, &resp); err != nil {
				return fmt.Errorf("unmarshal auth: %w", err)
			}
			if !resp.Success {
				return fmt.Errorf("authentication failed: %s", out.Data)
			}
			fmt.Printf("Authenticated: path=%s messages=%d\n", proto.LivePath(resp.CurrentRoomPath), len(resp.CurrentMessages))
			if err := mustSend(proto.InboundTypeSendMessage, "", proto.SendMessageData{Text: *text}); err != nil {
				return err
			}
		case out.Event == proto.EventNewMessage:
			var msg proto.Message
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Published: id=%d text=%q\n", msg.ID, msg.Text)
			if !*rotate {
				return nil
			}
			if err := mustSend(proto.InboundTypeRotateURL, "", nil); err != nil {
				return err
			}
		case out.Event == proto.EventURLRotated:
			var path proto.RoomPath
			if err := json.Unmarshal(out.Data, &path); err != nil {
				return fmt.Errorf("unmarshal rotation: %w", err)
			}
			fmt.Printf("Rotated: path=%s\n", path.Path)
			return nil
		default:
			fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)
		}
	}
}
