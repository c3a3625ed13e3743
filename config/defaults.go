package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultHost is the listen address for the server (all interfaces).
	DefaultHost = "0.0.0.0"

	// DefaultPort is the chat service port.
	DefaultPort = 4000

	// DefaultLoginTimeout bounds how long a new connection may sit
	// without completing a LOGIN.
	DefaultLoginTimeout = 30 * time.Second

	// DefaultIdleTimeout is the maximum silence for an authenticated
	// session before the server disconnects it.
	DefaultIdleTimeout = time.Hour

	// DefaultDialRetries is how many times connect mode retries a
	// refused dial before giving up.
	DefaultDialRetries = 5

	// DefaultWriteTimeout bounds a single frame write to one client so
	// a stalled peer cannot wedge its writer goroutine forever.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultOutboxLimit is the maximum number of frames queued for one
	// session; past it the peer is treated as a dead consumer.
	DefaultOutboxLimit = 256
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		LoginTimeout: DefaultLoginTimeout,
		IdleTimeout:  DefaultIdleTimeout,
		DialRetries:  DefaultDialRetries,
	}
}
