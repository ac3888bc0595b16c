package core

import (
	"context"
	"testing"
	"time"
)

const testSecret = "let-me-in"

func testVerifier() Verifier {
	return VerifierFunc(func(secret string) bool { return secret == testSecret })
}

// startHub runs a hub for the duration of the test.
func startHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(testVerifier(), opts)
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()

	c := NewClient(id)
	hub.RegisterClient(c)
	return c
}

func currentToken(t *testing.T, hub *Hub) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := hub.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap.Token
}

func snapshot(t *testing.T, hub *Hub) Snapshot {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := hub.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

// authenticateClient performs a successful authentication and consumes the ack.
func authenticateClient(t *testing.T, c *Client) *AuthResult {
	t.Helper()

	c.Commands <- &Command{Kind: CommandAuthenticate, Secret: testSecret, Ref: "auth"}
	ev := mustEvent(t, c.Events, EventAuthResult)
	if ev.Auth == nil || !ev.Auth.Success {
		t.Fatalf("expected successful authentication, got %+v", ev.Auth)
	}
	return ev.Auth
}

func joinClient(t *testing.T, c *Client, token string) *Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinRoom, Room: token}
	return mustEvent(t, c.Events, EventInitMessages)
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns the very next event without skipping any.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
	}
	return nil
}

func expectNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %v: %+v", ev.Kind, ev)
		}
	case <-time.After(wait):
	}
}

func expectClosed(t *testing.T, c *Client, reason string) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Events:
			if !ok {
				if c.CloseReason() != reason {
					t.Fatalf("close reason = %q, want %q", c.CloseReason(), reason)
				}
				return
			}
		case <-deadline:
			t.Fatalf("event channel of %s not closed", c.ID)
		}
	}
}

// barrier waits until every envelope queued before it has been processed.
func barrier(t *testing.T, hub *Hub) {
	t.Helper()
	_ = snapshot(t, hub)
}

// newDirectHub builds a hub driven synchronously through dispatch, without Run.
func newDirectHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = time.Hour
	}
	hub := NewHub(testVerifier(), opts)
	t.Cleanup(hub.monitor.Stop)
	hub.monitor.Reset()
	return hub
}

func directRegister(hub *Hub, id string) *Client {
	c := NewClient(id)
	hub.dispatch(envelope{op: opRegister, client: c})
	return c
}

func directCommand(hub *Hub, c *Client, cmd *Command) {
	hub.verify(cmd)
	hub.dispatch(envelope{op: opCommand, client: c, cmd: cmd})
}

// drain empties a client's queue and returns what was in it.
func drain(c *Client) []*Event {
	var out []*Event
	for {
		select {
		case ev, ok := <-c.Events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}
