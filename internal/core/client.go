package core

import "sync"

// Role tags a connection session. It only ever moves from anonymous to privileged.
type Role int

const (
	// RoleAnonymous is a viewer that may only join the room.
	RoleAnonymous Role = iota
	// RolePrivileged is a presenter that authenticated with the admin secret.
	RolePrivileged
)

func (r Role) String() string {
	if r == RolePrivileged {
		return "privileged"
	}
	return "anonymous"
}

const (
	commandBuffer = 16
	eventBuffer   = 256
)

// Client is a connection as seen by the core layer.
// Commands is written by the transport; Events is written and closed by the hub only.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// owned by the hub goroutine
	role  Role
	group string

	closeReason string
	done        chan struct{}
	doneOnce    sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

// CloseReason explains why the hub closed Events. Only valid after Events is closed.
func (c *Client) CloseReason() string {
	return c.closeReason
}

func (c *Client) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}
