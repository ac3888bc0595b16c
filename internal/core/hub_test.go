package core

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestHubJoinAdmitsCurrentToken(t *testing.T) {
	hub := startHub(t, Options{})

	viewer := connect(t, hub, "v")
	ev := joinClient(t, viewer, currentToken(t, hub))
	if len(ev.Messages) != 0 {
		t.Fatalf("expected empty log, got %+v", ev.Messages)
	}
	if ev.Terminal {
		t.Fatalf("init must not be terminal")
	}
	if got := snapshot(t, hub).Viewers; got != 1 {
		t.Fatalf("viewers = %d, want 1", got)
	}
}

func TestHubJoinRejectsUnknownToken(t *testing.T) {
	hub := startHub(t, Options{})

	viewer := connect(t, hub, "v")
	viewer.Commands <- &Command{Kind: CommandJoinRoom, Room: "deadbeef"}

	ev := nextEvent(t, viewer.Events)
	if ev.Kind != EventInvalidRoom || !ev.Terminal {
		t.Fatalf("expected terminal invalid room, got %+v", ev)
	}
	if got := snapshot(t, hub).Viewers; got != 0 {
		t.Fatalf("rejected viewer must not be subscribed, viewers = %d", got)
	}
}

func TestHubAuthenticate(t *testing.T) {
	hub := startHub(t, Options{})
	admin := connect(t, hub, "a")

	admin.Commands <- &Command{Kind: CommandAuthenticate, Secret: "wrong", Ref: "1"}
	ev := mustEvent(t, admin.Events, EventAuthResult)
	if ev.Auth.Success || ev.Auth.Ref != "1" || ev.Auth.Reason == "" {
		t.Fatalf("expected failed auth with reason, got %+v", ev.Auth)
	}

	auth := authenticateClient(t, admin)
	if auth.Token != currentToken(t, hub) {
		t.Fatalf("auth token %q does not match current token", auth.Token)
	}
	if len(auth.Messages) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", auth.Messages)
	}

	// A later failed attempt does not downgrade the session.
	admin.Commands <- &Command{Kind: CommandAuthenticate, Secret: "wrong", Ref: "2"}
	mustEvent(t, admin.Events, EventAuthResult)
	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "still admin"}
	msgEv := mustEvent(t, admin.Events, EventNewMessage)
	if msgEv.Message.Text != "still admin" {
		t.Fatalf("unexpected message: %+v", msgEv.Message)
	}
}

func TestHubAuthenticateReturnsExistingLog(t *testing.T) {
	hub := startHub(t, Options{})
	first := connect(t, hub, "a1")
	authenticateClient(t, first)
	first.Commands <- &Command{Kind: CommandSendMessage, Text: "one"}
	mustEvent(t, first.Events, EventNewMessage)

	second := connect(t, hub, "a2")
	auth := authenticateClient(t, second)
	if len(auth.Messages) != 1 || auth.Messages[0].Text != "one" {
		t.Fatalf("expected snapshot with one message, got %+v", auth.Messages)
	}
}

func TestHubUnprivilegedActionsAreDropped(t *testing.T) {
	hub := startHub(t, Options{})
	token := currentToken(t, hub)

	admin := connect(t, hub, "a")
	authenticateClient(t, admin)
	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "keep me"}
	kept := mustEvent(t, admin.Events, EventNewMessage).Message

	intruder := connect(t, hub, "x")
	joinClient(t, intruder, token)
	watcher := connect(t, hub, "w")
	joinClient(t, watcher, token)

	intruder.Commands <- &Command{Kind: CommandSendMessage, Text: "spam"}
	intruder.Commands <- &Command{Kind: CommandClearMessages}
	intruder.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: kept.ID}
	intruder.Commands <- &Command{Kind: CommandRotateURL}
	barrier(t, hub)

	snap := snapshot(t, hub)
	if snap.Token != token {
		t.Fatalf("token changed by unprivileged rotate")
	}
	if len(snap.Messages) != 1 || snap.Messages[0].ID != kept.ID {
		t.Fatalf("log changed by unprivileged actions: %+v", snap.Messages)
	}
	expectNoEvent(t, intruder.Events, 50*time.Millisecond)
	expectNoEvent(t, watcher.Events, 50*time.Millisecond)
	expectNoEvent(t, admin.Events, 50*time.Millisecond)
}

func TestHubPublishDeliveredExactlyOnce(t *testing.T) {
	hub := startHub(t, Options{})
	token := currentToken(t, hub)

	// The presenter joined as a viewer before authenticating, so it is both a
	// group member and privileged; it must still see each event once.
	admin := connect(t, hub, "a")
	joinClient(t, admin, token)
	authenticateClient(t, admin)

	viewer := connect(t, hub, "v")
	joinClient(t, viewer, token)

	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "hello"}

	adminEv := nextEvent(t, admin.Events)
	viewerEv := nextEvent(t, viewer.Events)
	if adminEv.Kind != EventNewMessage || viewerEv.Kind != EventNewMessage {
		t.Fatalf("expected new message events, got %v and %v", adminEv.Kind, viewerEv.Kind)
	}
	if adminEv.Message.ID != viewerEv.Message.ID || adminEv.Message.Text != "hello" {
		t.Fatalf("admin and viewer disagree: %+v vs %+v", adminEv.Message, viewerEv.Message)
	}
	expectNoEvent(t, admin.Events, 50*time.Millisecond)
	expectNoEvent(t, viewer.Events, 50*time.Millisecond)
}

func TestHubWhitespaceMessageStoredVerbatim(t *testing.T) {
	hub := startHub(t, Options{})
	admin := connect(t, hub, "a")
	authenticateClient(t, admin)

	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "   \n\t"}
	ev := mustEvent(t, admin.Events, EventNewMessage)
	if ev.Message.Text != "   \n\t" {
		t.Fatalf("text altered: %q", ev.Message.Text)
	}
	if msgs := snapshot(t, hub).Messages; len(msgs) != 1 || msgs[0].Text != "   \n\t" {
		t.Fatalf("expected whitespace message in log, got %+v", msgs)
	}
}

func TestHubDeleteIsIdempotent(t *testing.T) {
	hub := startHub(t, Options{})
	token := currentToken(t, hub)

	admin := connect(t, hub, "a")
	authenticateClient(t, admin)
	viewer := connect(t, hub, "v")
	joinClient(t, viewer, token)

	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "first"}
	first := mustEvent(t, admin.Events, EventNewMessage).Message
	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "second"}
	second := mustEvent(t, admin.Events, EventNewMessage).Message

	for i := 0; i < 2; i++ {
		admin.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: first.ID}
		ev := mustEvent(t, admin.Events, EventMessageDeleted)
		if ev.MessageID != first.ID {
			t.Fatalf("deleted id = %d, want %d", ev.MessageID, first.ID)
		}
		vev := mustEvent(t, viewer.Events, EventMessageDeleted)
		if vev.MessageID != first.ID {
			t.Fatalf("viewer deleted id = %d, want %d", vev.MessageID, first.ID)
		}
	}

	snap := snapshot(t, hub)
	if len(snap.Messages) != 1 || snap.Messages[0].ID != second.ID {
		t.Fatalf("unexpected log after double delete: %+v", snap.Messages)
	}
}

// applyEvent replays a broadcast onto a local copy of the log, as a viewer would.
func applyEvent(log []Message, ev *Event) []Message {
	switch ev.Kind {
	case EventInitMessages:
		return append([]Message(nil), ev.Messages...)
	case EventNewMessage:
		return append(log, ev.Message)
	case EventMessagesCleared:
		return nil
	case EventMessageDeleted:
		out := log[:0:0]
		for _, m := range log {
			if m.ID != ev.MessageID {
				out = append(out, m)
			}
		}
		return out
	default:
		return log
	}
}

func TestHubViewersConvergeAndReplayMatches(t *testing.T) {
	hub := startHub(t, Options{})
	token := currentToken(t, hub)

	admin := connect(t, hub, "a")
	authenticateClient(t, admin)

	viewers := []*Client{connect(t, hub, "v1"), connect(t, hub, "v2")}
	logs := make([][]Message, len(viewers))
	for i, v := range viewers {
		logs[i] = applyEvent(nil, joinClient(t, v, token))
	}

	publish := func(text string) Message {
		admin.Commands <- &Command{Kind: CommandSendMessage, Text: text}
		return mustEvent(t, admin.Events, EventNewMessage).Message
	}

	m1 := publish("one")
	publish("two")
	admin.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: m1.ID}
	mustEvent(t, admin.Events, EventMessageDeleted)
	admin.Commands <- &Command{Kind: CommandClearMessages}
	mustEvent(t, admin.Events, EventMessagesCleared)
	publish("three")
	m4 := publish("four")
	publish("five")
	admin.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: m4.ID}
	mustEvent(t, admin.Events, EventMessageDeleted)
	barrier(t, hub)

	// two publishes, a delete, a clear, three publishes, a delete
	const expected = 2 + 1 + 1 + 3 + 1
	for i, v := range viewers {
		for n := 0; n < expected; n++ {
			logs[i] = applyEvent(logs[i], nextEvent(t, v.Events))
		}
	}

	snap := snapshot(t, hub)
	fresh := connect(t, hub, "late")
	replay := applyEvent(nil, joinClient(t, fresh, token))

	for i := range viewers {
		if !reflect.DeepEqual(logs[i], snap.Messages) {
			t.Fatalf("viewer %d log %+v differs from room %+v", i, logs[i], snap.Messages)
		}
	}
	if !reflect.DeepEqual(replay, snap.Messages) {
		t.Fatalf("fresh join snapshot %+v differs from room %+v", replay, snap.Messages)
	}
	if len(snap.Messages) != 2 || snap.Messages[0].Text != "three" || snap.Messages[1].Text != "five" {
		t.Fatalf("unexpected final log: %+v", snap.Messages)
	}
}

func TestHubRotationScenario(t *testing.T) {
	hub := startHub(t, Options{})

	admin := connect(t, hub, "A")
	auth := authenticateClient(t, admin)
	t0 := auth.Token
	if len(auth.Messages) != 0 {
		t.Fatalf("expected empty log, got %+v", auth.Messages)
	}

	viewer := connect(t, hub, "V")
	joinClient(t, viewer, t0)

	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "hello"}
	adminMsg := nextEvent(t, admin.Events)
	viewerMsg := nextEvent(t, viewer.Events)
	if adminMsg.Kind != EventNewMessage || viewerMsg.Kind != EventNewMessage || adminMsg.Message.ID != viewerMsg.Message.ID {
		t.Fatalf("expected matching new message events, got %+v / %+v", adminMsg, viewerMsg)
	}

	admin.Commands <- &Command{Kind: CommandRotateURL}

	rotated := nextEvent(t, viewer.Events)
	if rotated.Kind != EventRoomRotated || !rotated.Terminal {
		t.Fatalf("viewer expected terminal room rotated, got %+v", rotated)
	}
	urlEv := nextEvent(t, admin.Events)
	if urlEv.Kind != EventURLRotated {
		t.Fatalf("admin expected url rotated, got %+v", urlEv)
	}
	t1 := urlEv.Room
	if t1 == "" || t1 == t0 {
		t.Fatalf("expected a new token, got %q (old %q)", t1, t0)
	}
	expectNoEvent(t, admin.Events, 50*time.Millisecond)

	late := connect(t, hub, "L")
	late.Commands <- &Command{Kind: CommandJoinRoom, Room: t0}
	if ev := nextEvent(t, late.Events); ev.Kind != EventInvalidRoom {
		t.Fatalf("join with old token: got %v, want invalid room", ev.Kind)
	}

	// Messages survive a manual rotation.
	fresh := connect(t, hub, "F")
	init := joinClient(t, fresh, t1)
	if len(init.Messages) != 1 || init.Messages[0].Text != "hello" {
		t.Fatalf("expected log to survive rotation, got %+v", init.Messages)
	}

	// The presenter is not rejected by the token it rotated away from.
	admin.Commands <- &Command{Kind: CommandJoinRoom, Room: t0}
	barrier(t, hub)
	expectNoEvent(t, admin.Events, 50*time.Millisecond)
}

func TestHubRotationOnlyNotifiesOldGroup(t *testing.T) {
	hub := startHub(t, Options{})
	admin := connect(t, hub, "a")
	authenticateClient(t, admin)

	admin.Commands <- &Command{Kind: CommandRotateURL}
	t1 := mustEvent(t, admin.Events, EventURLRotated).Room

	viewer := connect(t, hub, "v")
	joinClient(t, viewer, t1)

	// A second rotation reaches the viewer of t1 exactly once.
	admin.Commands <- &Command{Kind: CommandRotateURL}
	if ev := nextEvent(t, viewer.Events); ev.Kind != EventRoomRotated {
		t.Fatalf("expected room rotated, got %v", ev.Kind)
	}
	expectNoEvent(t, viewer.Events, 50*time.Millisecond)

	// Broadcasts for the new token no longer reach the old group.
	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "after"}
	mustEvent(t, admin.Events, EventNewMessage)
	expectNoEvent(t, viewer.Events, 50*time.Millisecond)
}

func TestHubRotationGivesOtherPresentersNewToken(t *testing.T) {
	hub := startHub(t, Options{})
	actor := connect(t, hub, "a")
	authenticateClient(t, actor)
	other := connect(t, hub, "b")
	authenticateClient(t, other)

	actor.Commands <- &Command{Kind: CommandRotateURL}
	token := mustEvent(t, actor.Events, EventURLRotated).Room

	ev := nextEvent(t, other.Events)
	if ev.Kind != EventRoomRotated || ev.Terminal {
		t.Fatalf("expected non-terminal room rotated, got %+v", ev)
	}
	if ev.Room != token {
		t.Fatalf("other presenter got token %q, want %q", ev.Room, token)
	}
	expectNoEvent(t, other.Events, 50*time.Millisecond)
}

func TestHubClearOnRotate(t *testing.T) {
	hub := startHub(t, Options{ClearOnRotate: true})
	admin := connect(t, hub, "a")
	authenticateClient(t, admin)

	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "gone soon"}
	mustEvent(t, admin.Events, EventNewMessage)
	admin.Commands <- &Command{Kind: CommandRotateURL}

	if ev := nextEvent(t, admin.Events); ev.Kind != EventMessagesCleared {
		t.Fatalf("expected messages cleared before new token, got %v", ev.Kind)
	}
	mustEvent(t, admin.Events, EventURLRotated)
	if n := len(snapshot(t, hub).Messages); n != 0 {
		t.Fatalf("log not cleared on rotate, size %d", n)
	}
}

func TestHubIdleExpiry(t *testing.T) {
	hub := startHub(t, Options{IdleTimeout: 300 * time.Millisecond})
	t0 := currentToken(t, hub)

	admin := connect(t, hub, "a")
	authenticateClient(t, admin)
	viewer := connect(t, hub, "v")
	joinClient(t, viewer, t0)
	idle := connect(t, hub, "idle")

	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "soon wiped"}
	mustEvent(t, admin.Events, EventNewMessage)

	adminEv := mustEvent(t, admin.Events, EventSessionExpired)
	if adminEv.Terminal || adminEv.Room == "" || adminEv.Room == t0 {
		t.Fatalf("presenter expiry must carry the new token and stay open: %+v", adminEv)
	}
	viewerEv := mustEvent(t, viewer.Events, EventSessionExpired)
	if !viewerEv.Terminal {
		t.Fatalf("viewer expiry must be terminal")
	}
	idleEv := mustEvent(t, idle.Events, EventSessionExpired)
	if !idleEv.Terminal {
		t.Fatalf("connected non-member expiry must be terminal")
	}

	snap := snapshot(t, hub)
	if len(snap.Messages) != 0 {
		t.Fatalf("log not cleared on expiry: %+v", snap.Messages)
	}
	if snap.Token != adminEv.Room {
		t.Fatalf("expired token %q does not match current %q", adminEv.Room, snap.Token)
	}

	// Privilege survives the expiry.
	admin.Commands <- &Command{Kind: CommandSendMessage, Text: "back"}
	if ev := mustEvent(t, admin.Events, EventNewMessage); ev.Message.Text != "back" {
		t.Fatalf("unexpected message after expiry: %+v", ev.Message)
	}

	late := connect(t, hub, "late")
	late.Commands <- &Command{Kind: CommandJoinRoom, Room: t0}
	mustEvent(t, late.Events, EventInvalidRoom)
}

func TestHubStaleExpiryLosesToLaterMutation(t *testing.T) {
	hub := newDirectHub(t, Options{})
	admin := directRegister(hub, "a")
	directCommand(hub, admin, &Command{Kind: CommandAuthenticate, Secret: testSecret})

	fired := hub.monitor.gen
	directCommand(hub, admin, &Command{Kind: CommandSendMessage, Text: "fresh"})
	token := hub.room.CurrentToken()

	hub.dispatch(envelope{op: opExpire, gen: fired})
	if hub.room.CurrentToken() != token || len(hub.room.Messages()) != 1 {
		t.Fatalf("stale expiry was applied")
	}

	hub.dispatch(envelope{op: opExpire, gen: hub.monitor.gen})
	if hub.room.CurrentToken() == token || len(hub.room.Messages()) != 0 {
		t.Fatalf("current expiry was not applied")
	}
	if !hub.monitor.Current(hub.monitor.gen) {
		t.Fatalf("expiry must re-arm the monitor")
	}
}

func TestHubEvictsSlowClient(t *testing.T) {
	hub := newDirectHub(t, Options{})
	admin := directRegister(hub, "a")
	directCommand(hub, admin, &Command{Kind: CommandAuthenticate, Secret: testSecret})
	slow := directRegister(hub, "slow")
	directCommand(hub, slow, &Command{Kind: CommandJoinRoom, Room: hub.room.CurrentToken()})

	for i := 0; i < eventBuffer+1; i++ {
		directCommand(hub, admin, &Command{Kind: CommandSendMessage, Text: "flood"})
		drain(admin)
	}

	events := drain(slow)
	if len(events) != eventBuffer {
		t.Fatalf("slow client got %d events before eviction, want %d", len(events), eventBuffer)
	}
	if _, ok := <-slow.Events; ok {
		t.Fatalf("slow client queue must be closed")
	}
	if slow.CloseReason() != CloseReasonSlowConsumer {
		t.Fatalf("close reason = %q", slow.CloseReason())
	}
	if _, ok := hub.clients[slow]; ok {
		t.Fatalf("slow client still registered")
	}
}

func TestHubPrivilegedJoinSkipsCheck(t *testing.T) {
	hub := newDirectHub(t, Options{})
	admin := directRegister(hub, "a")
	directCommand(hub, admin, &Command{Kind: CommandAuthenticate, Secret: testSecret})
	drain(admin)

	directCommand(hub, admin, &Command{Kind: CommandJoinRoom, Room: "stale"})
	if events := drain(admin); len(events) != 0 {
		t.Fatalf("privileged join produced events: %+v", events)
	}
}

func TestHubUnregisterClosesQueue(t *testing.T) {
	hub := startHub(t, Options{})
	viewer := connect(t, hub, "v")
	joinClient(t, viewer, currentToken(t, hub))

	hub.UnregisterClient(viewer)
	expectClosed(t, viewer, "")

	if got := snapshot(t, hub); got.Connections != 0 || got.Viewers != 0 {
		t.Fatalf("client not forgotten: %+v", got)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(testVerifier(), Options{})
	go hub.Run(ctx)

	c := NewClient("c")
	hub.RegisterClient(c)
	barrier(t, hub)

	cancel()
	<-hub.Done()
	expectClosed(t, c, CloseReasonShutdown)

	late := NewClient("late")
	hub.RegisterClient(late)
	if _, ok := <-late.Events; ok {
		t.Fatalf("client registered after shutdown must be closed")
	}
	if _, err := hub.Snapshot(context.Background()); err != ErrHubStopped {
		t.Fatalf("snapshot after stop: %v", err)
	}
}
