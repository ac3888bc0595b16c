package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/liveboard-server/internal/metrics"
	"github.com/vovakirdan/liveboard-server/internal/utils"
)

const inboxBuffer = 256

// Options tunes the hub. Zero values fall back to defaults.
type Options struct {
	IdleTimeout   time.Duration
	ClearOnRotate bool
	Tokens        TokenGenerator
	Logger        *zerolog.Logger
}

// Snapshot is a point-in-time view of the room, taken on the event loop.
type Snapshot struct {
	Token        string
	Messages     []Message
	LastActivity time.Time
	Viewers      int
	Presenters   int
	Connections  int
}

type op int

const (
	opRegister op = iota
	opUnregister
	opCommand
	opExpire
	opSnapshot
)

type envelope struct {
	op     op
	client *Client
	cmd    *Command
	gen    uint64
	reply  chan Snapshot
}

// Hub is the single event-processing context. It owns the room state, the
// broadcast groups and the inactivity monitor; every mutation and every
// broadcast happens on the goroutine running Run.
type Hub struct {
	inbox   chan envelope
	stopped chan struct{}
	mu      sync.RWMutex
	closed  bool

	room     *RoomState
	router   *router
	monitor  *InactivityMonitor
	clients  map[*Client]struct{}
	verifier Verifier

	clearOnRotate bool
	log           *zerolog.Logger
}

// NewHub creates a hub around a fresh room. Run must be called to start it.
func NewHub(verifier Verifier, opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = utils.NewTokenSource(utils.TokenBytes)
	}

	h := &Hub{
		inbox:         make(chan envelope, inboxBuffer),
		stopped:       make(chan struct{}),
		router:        newRouter(),
		clients:       make(map[*Client]struct{}),
		verifier:      verifier,
		clearOnRotate: opts.ClearOnRotate,
		log:           logger,
	}
	h.monitor = NewInactivityMonitor(opts.IdleTimeout, h.expireRequested)
	h.room = NewRoomState(tokens, h.monitor.Reset)
	return h
}

// Run processes the inbox until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.monitor.Reset()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.inbox:
			h.dispatch(env)
			h.observe()
		}
	}
}

// RegisterClient adds c to the hub and starts forwarding its commands.
func (h *Hub) RegisterClient(c *Client) {
	if !h.enqueue(envelope{op: opRegister, client: c}) {
		close(c.Events)
		return
	}
	go h.pump(c)
}

// UnregisterClient removes c. The hub closes c.Events once it is processed.
func (h *Hub) UnregisterClient(c *Client) {
	c.markDone()
	h.enqueue(envelope{op: opUnregister, client: c})
}

// Snapshot returns the room state as seen by the event loop.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case h.inbox <- envelope{op: opSnapshot, reply: reply}:
	case <-h.stopped:
		return Snapshot{}, ErrHubStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-h.stopped:
		return Snapshot{}, ErrHubStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Done is closed after the event loop exits.
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}

func (h *Hub) enqueue(env envelope) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return false
	}
	select {
	case h.inbox <- env:
		return true
	case <-h.stopped:
		return false
	}
}

// pump forwards one client's commands into the inbox, preserving their order.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			h.verify(cmd)
			if !h.enqueue(envelope{op: opCommand, client: c, cmd: cmd}) {
				return
			}
		case <-c.done:
			return
		case <-h.stopped:
			return
		}
	}
}

// expireRequested runs on the timer goroutine and only enqueues.
func (h *Hub) expireRequested(gen uint64) {
	h.enqueue(envelope{op: opExpire, gen: gen})
}

func (h *Hub) dispatch(env envelope) {
	switch env.op {
	case opRegister:
		h.clients[env.client] = struct{}{}
		h.log.Debug().Str("conn_id", env.client.ID).Msg("client registered")
	case opUnregister:
		if h.drop(env.client, "") {
			h.log.Debug().Str("conn_id", env.client.ID).Msg("client unregistered")
		}
	case opCommand:
		if _, ok := h.clients[env.client]; !ok {
			return
		}
		h.handle(env.client, env.cmd)
	case opExpire:
		if !h.monitor.Current(env.gen) {
			h.log.Debug().Uint64("generation", env.gen).Msg("stale expiry ignored")
			return
		}
		h.expire()
	case opSnapshot:
		env.reply <- Snapshot{
			Token:        h.room.CurrentToken(),
			Messages:     h.room.Messages(),
			LastActivity: h.room.LastActivity(),
			Viewers:      h.router.size(h.room.CurrentToken()),
			Presenters:   len(h.router.privileged),
			Connections:  len(h.clients),
		}
	}
}

func (h *Hub) handle(c *Client, cmd *Command) {
	outcome := "ok"
	defer func() {
		metrics.Commands.WithLabelValues(cmd.Kind.String(), outcome).Inc()
	}()

	if cmd.Kind.Privileged() && c.role != RolePrivileged {
		outcome = "unauthorized"
		h.log.Debug().Str("conn_id", c.ID).Str("command", cmd.Kind.String()).Msg("unprivileged command dropped")
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		if !h.join(c, cmd.Room) {
			outcome = "rejected"
		}
	case CommandAuthenticate:
		if !h.authenticate(c, cmd) {
			outcome = "rejected"
		}
	case CommandSendMessage:
		h.publish(c, cmd.Text)
	case CommandClearMessages:
		h.clear(c)
	case CommandDeleteMessage:
		h.deleteMessage(c, cmd.MessageID)
	case CommandRotateURL:
		h.rotate(c)
	default:
		outcome = "unknown"
	}
}

// join admits c to the current token's group or rejects it.
// Privileged clients are always in the room and skip the check.
func (h *Hub) join(c *Client, token string) bool {
	if c.role == RolePrivileged {
		return true
	}
	current := h.room.CurrentToken()
	if token != current {
		h.router.leave(c)
		h.log.Debug().Str("conn_id", c.ID).Msg("join with stale token rejected")
		h.send(c, &Event{Kind: EventInvalidRoom, Terminal: true})
		return false
	}
	h.router.subscribe(c, current)
	h.send(c, &Event{Kind: EventInitMessages, Messages: h.room.Messages()})
	return true
}

func (h *Hub) publish(c *Client, text string) {
	msg := h.room.Append(text)
	h.emit(c, &Event{Kind: EventNewMessage, Message: msg})
	h.log.Debug().Str("conn_id", c.ID).Int64("message_id", msg.ID).Msg("message published")
}

func (h *Hub) clear(c *Client) {
	h.room.ClearAll()
	h.emit(c, &Event{Kind: EventMessagesCleared})
	h.log.Info().Str("conn_id", c.ID).Msg("messages cleared")
}

// deleteMessage broadcasts even when id is unknown; the signal is idempotent.
func (h *Hub) deleteMessage(c *Client, id int64) {
	found := h.room.DeleteByID(id)
	h.emit(c, &Event{Kind: EventMessageDeleted, MessageID: id})
	h.log.Debug().Str("conn_id", c.ID).Int64("message_id", id).Bool("found", found).Msg("message deleted")
}

// rotate tells the old group its token died, then issues the new token to the
// actor and to the other presenters.
func (h *Hub) rotate(c *Client) {
	old := h.room.CurrentToken()
	if h.clearOnRotate {
		h.room.ClearAll()
	}
	token := h.room.RotateToken()
	h.notifyGroupEnd(old, EventRoomRotated, c, token)
	metrics.Rotations.WithLabelValues("manual").Inc()

	if h.clearOnRotate {
		h.emit(c, &Event{Kind: EventMessagesCleared})
	}
	h.send(c, &Event{Kind: EventURLRotated, Room: token})
	h.log.Info().Str("conn_id", c.ID).Msg("room token rotated")
}

// expire wipes the room after the idle window and tells every connection.
// Presenters keep their role and receive the new token; viewers are terminated.
func (h *Hub) expire() {
	old := h.room.CurrentToken()
	h.room.ClearAll()
	token := h.room.RotateToken()
	h.router.dissolve(old)
	metrics.Rotations.WithLabelValues("expired").Inc()

	viewerEv := &Event{Kind: EventSessionExpired, Terminal: true}
	presenterEv := &Event{Kind: EventSessionExpired, Room: token}
	for c := range h.clients {
		if c.role == RolePrivileged {
			h.send(c, presenterEv)
		} else {
			h.send(c, viewerEv)
		}
	}
	h.log.Info().Dur("idle", h.monitor.Period()).Msg("room expired after inactivity")
}

// notifyGroupEnd sends kind to the old group's members except the actor and
// dissolves the group. Viewers receive it as terminal; presenters get next.
func (h *Hub) notifyGroupEnd(token string, kind EventKind, exclude *Client, next string) {
	viewerEv := &Event{Kind: kind, Terminal: true}
	presenterEv := &Event{Kind: kind, Room: next}
	for _, c := range h.router.recipients(token, exclude) {
		if c.role == RolePrivileged {
			h.send(c, presenterEv)
		} else {
			h.send(c, viewerEv)
		}
	}
	h.router.dissolve(token)
}

// emit delivers ev once to every group member and once to the actor.
func (h *Hub) emit(actor *Client, ev *Event) {
	h.broadcast(h.room.CurrentToken(), ev, actor)
	h.send(actor, ev)
}

// broadcast delivers ev to the token's group and all presenters, skipping exclude.
func (h *Hub) broadcast(token string, ev *Event, exclude *Client) {
	for _, c := range h.router.recipients(token, exclude) {
		h.send(c, ev)
	}
}

// send queues ev for c. A client whose queue is full is evicted rather than
// allowed to miss an event.
func (h *Hub) send(c *Client, ev *Event) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.Events <- ev:
		metrics.Events.WithLabelValues(ev.Kind.String()).Inc()
	default:
		metrics.Evictions.Inc()
		h.log.Warn().Str("conn_id", c.ID).Str("event", ev.Kind.String()).Msg("evicting slow client")
		h.drop(c, CloseReasonSlowConsumer)
	}
}

// drop forgets c and closes its event queue. Returns false if c was unknown.
func (h *Hub) drop(c *Client, reason string) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	h.router.remove(c)
	c.closeReason = reason
	close(c.Events)
	return true
}

func (h *Hub) observe() {
	metrics.Connections.Set(float64(len(h.clients)))
	metrics.Presenters.Set(float64(len(h.router.privileged)))
	metrics.Viewers.Set(float64(h.router.size(h.room.CurrentToken())))
	metrics.Messages.Set(float64(len(h.room.messages)))
}

func (h *Hub) shutdown() {
	h.monitor.Stop()
	close(h.stopped)

	// no envelope can be queued once closed is set; whatever is left is drained below
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	for c := range h.clients {
		h.drop(c, CloseReasonShutdown)
	}
	for {
		select {
		case env := <-h.inbox:
			if env.op == opRegister {
				env.client.closeReason = CloseReasonShutdown
				close(env.client.Events)
			}
		default:
			h.log.Info().Msg("hub stopped")
			return
		}
	}
}
