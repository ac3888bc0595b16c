package core

import (
	"time"
)

// DefaultIdleTimeout is how long the room may stay untouched before it is wiped.
const DefaultIdleTimeout = 6 * time.Hour

// InactivityMonitor is a re-armable deadline. It never mutates room state itself:
// when the deadline passes it hands the generation that fired to the expire callback,
// and the owner decides whether that generation is still current.
//
// Reset, Stop and Current must be called from the owning goroutine only.
type InactivityMonitor struct {
	period time.Duration
	expire func(gen uint64)
	timer  *time.Timer
	gen    uint64
}

// NewInactivityMonitor creates a disarmed monitor.
func NewInactivityMonitor(period time.Duration, expire func(gen uint64)) *InactivityMonitor {
	if period <= 0 {
		period = DefaultIdleTimeout
	}
	return &InactivityMonitor{period: period, expire: expire}
}

// Reset cancels the pending deadline and schedules a new one.
func (m *InactivityMonitor) Reset() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.timer = time.AfterFunc(m.period, func() {
		m.expire(gen)
	})
}

// Current reports whether gen belongs to the deadline armed last.
// A firing whose generation was superseded by a later Reset must be ignored.
func (m *InactivityMonitor) Current(gen uint64) bool {
	return m.timer != nil && gen == m.gen
}

// Stop cancels the pending deadline. Any firing already in flight becomes stale.
func (m *InactivityMonitor) Stop() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

// Period returns the idle window.
func (m *InactivityMonitor) Period() time.Duration {
	return m.period
}
