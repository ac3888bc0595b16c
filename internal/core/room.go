package core

import (
	"time"
)

// TokenGenerator produces room tokens that were never issued before.
type TokenGenerator interface {
	Next() string
}

// RoomState is the single room: its current token, message log and last activity.
// It is owned by the hub goroutine and is not safe for concurrent use.
type RoomState struct {
	token        string
	messages     []Message
	lastActivity time.Time
	lastID       int64

	tokens     TokenGenerator
	now        func() time.Time
	onActivity func()
}

// NewRoomState creates a room with a fresh token and an empty log.
// onActivity is invoked after every mutation and may be nil.
func NewRoomState(tokens TokenGenerator, onActivity func()) *RoomState {
	r := &RoomState{
		tokens:     tokens,
		now:        time.Now,
		onActivity: onActivity,
	}
	r.token = tokens.Next()
	r.lastActivity = r.now()
	return r
}

// CurrentToken returns the only token that is valid right now.
func (r *RoomState) CurrentToken() string {
	return r.token
}

// Messages returns a copy of the log, oldest first.
func (r *RoomState) Messages() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// LastActivity returns the time of the last mutation.
func (r *RoomState) LastActivity() time.Time {
	return r.lastActivity
}

// Append adds text to the end of the log and returns the stored message.
func (r *RoomState) Append(text string) Message {
	now := r.now()
	msg := Message{
		ID:        r.nextID(now),
		Text:      text,
		CreatedAt: now,
	}
	r.messages = append(r.messages, msg)
	r.touch(now)
	return msg
}

// DeleteByID removes the message with id. Returns false if it was not in the log.
func (r *RoomState) DeleteByID(id int64) bool {
	found := false
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.ID == id {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	// zero the tail so removed texts are not retained by the backing array
	for i := len(kept); i < len(r.messages); i++ {
		r.messages[i] = Message{}
	}
	r.messages = kept
	r.touch(r.now())
	return found
}

// ClearAll empties the log.
func (r *RoomState) ClearAll() {
	r.messages = nil
	r.touch(r.now())
}

// RotateToken replaces the token with a never issued one and returns it.
func (r *RoomState) RotateToken() string {
	r.token = r.tokens.Next()
	r.touch(r.now())
	return r.token
}

// nextID keeps ids time-derived while guaranteeing strict monotonicity.
func (r *RoomState) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

func (r *RoomState) touch(now time.Time) {
	r.lastActivity = now
	if r.onActivity != nil {
		r.onActivity()
	}
}
