package core

import "time"

// Message is a single entry of the room's broadcast log.
type Message struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}
