// Package metrics provides lightweight counters for tracking runtime
// statistics of a chat server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a chat server.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	sessionsActive  atomic.Int64
	sessionsTotal   atomic.Int64
	loginsAccepted  atomic.Int64
	loginsRejected  atomic.Int64
	broadcasts      atomic.Int64
	deliveries      atomic.Int64
	directMessages  atomic.Int64
	sendFailures    atomic.Int64
	idleTimeouts    atomic.Int64
	unknownCommands atomic.Int64

	startTime time.Time
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the current number of open connections.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// ── Login metrics ────────────────────────────────────────────────────

// LoginAccepted records a successful LOGIN.
func (c *Collector) LoginAccepted() {
	if c == nil {
		return
	}
	c.loginsAccepted.Add(1)
}

// LoginRejected records a refused LOGIN (malformed or name taken).
func (c *Collector) LoginRejected() {
	if c == nil {
		return
	}
	c.loginsRejected.Add(1)
}

// ── Traffic metrics ──────────────────────────────────────────────────

// Broadcast records one room message fan-out reaching n recipients.
func (c *Collector) Broadcast(n int) {
	if c == nil {
		return
	}
	c.broadcasts.Add(1)
	c.deliveries.Add(int64(n))
}

// DirectMessage records one delivered DM.
func (c *Collector) DirectMessage() {
	if c == nil {
		return
	}
	c.directMessages.Add(1)
}

// SendFailure records a recipient dropped during delivery.
func (c *Collector) SendFailure() {
	if c == nil {
		return
	}
	c.sendFailures.Add(1)
}

// IdleTimeout records a session closed for inactivity.
func (c *Collector) IdleTimeout() {
	if c == nil {
		return
	}
	c.idleTimeouts.Add(1)
}

// UnknownCommand records a frame with an unrecognized verb.
func (c *Collector) UnknownCommand() {
	if c == nil {
		return
	}
	c.unknownCommands.Add(1)
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime          string `json:"uptime"`
	SessionsActive  int64  `json:"sessions_active"`
	SessionsTotal   int64  `json:"sessions_total"`
	LoginsAccepted  int64  `json:"logins_accepted"`
	LoginsRejected  int64  `json:"logins_rejected"`
	Broadcasts      int64  `json:"broadcasts"`
	Deliveries      int64  `json:"deliveries"`
	DirectMessages  int64  `json:"direct_messages"`
	SendFailures    int64  `json:"send_failures"`
	IdleTimeouts    int64  `json:"idle_timeouts"`
	UnknownCommands int64  `json:"unknown_commands"`
}

// Snapshot captures all counters at once.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Uptime:          time.Since(c.startTime).Round(time.Second).String(),
		SessionsActive:  c.sessionsActive.Load(),
		SessionsTotal:   c.sessionsTotal.Load(),
		LoginsAccepted:  c.loginsAccepted.Load(),
		LoginsRejected:  c.loginsRejected.Load(),
		Broadcasts:      c.broadcasts.Load(),
		Deliveries:      c.deliveries.Load(),
		DirectMessages:  c.directMessages.Load(),
		SendFailures:    c.sendFailures.Load(),
		IdleTimeouts:    c.idleTimeouts.Load(),
		UnknownCommands: c.unknownCommands.Load(),
	}
}

// String renders the snapshot as single-line JSON for logging.
func (s Snapshot) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}
