package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/liveboard-server/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_watch: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:3000", "server base address")
	room := flag.String("room", "", "room token or /live/<token> path")
	flag.Parse()

	token := strings.TrimPrefix(*room, proto.LivePathPrefix)
	if token == "" {
		return errors.New("-room is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	conn, _, err := websocket.Dial(dialCtx, strings.TrimRight(*base, "/")+proto.LivePath(token), nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				fmt.Printf("Closed by server: status=%d\n", status)
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		printFrame(out)
	}
}

func printFrame(out frame) {
	switch out.Event {
	case proto.EventInitMessages:
		var msgs []proto.Message
		if err := json.Unmarshal(out.Data, &msgs); err == nil {
			fmt.Printf("Joined, %d message(s)\n", len(msgs))
			for _, m := range msgs {
				printMessage(m)
			}
		}
	case proto.EventNewMessage:
		var m proto.Message
		if err := json.Unmarshal(out.Data, &m); err == nil {
			printMessage(m)
		}
	case proto.EventMessageDeleted:
		var d proto.MessageDeleted
		if err := json.Unmarshal(out.Data, &d); err == nil {
			fmt.Printf("Deleted message %d\n", d.ID)
		}
	case proto.EventMessagesCleared:
		fmt.Println("All messages cleared")
	case proto.EventInvalidRoom, proto.EventRoomRotated, proto.EventSessionExpired:
		var n proto.Notice
		_ = json.Unmarshal(out.Data, &n)
		fmt.Printf("%s: %s\n", out.Event, n.Message)
	default:
		if out.Error != nil {
			fmt.Printf("Error %s: %s\n", out.Error.Code, out.Error.Msg)
			return
		}
		fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)
	}
}

func printMessage(m proto.Message) {
	ts := time.UnixMilli(m.CreatedAt).Format(time.TimeOnly)
	fmt.Printf("[%s] #%d %s\n", ts, m.ID, m.Text)
}
