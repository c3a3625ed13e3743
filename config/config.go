// Package config defines the runtime configuration for gochat and
// validates it before anything opens a socket.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds every tuneable for a single gochat invocation.
type Config struct {
	// ── Listen / connect ─────────────────────────────────────────────
	Host        string // bind address (serve) or server host (connect)
	Port        int
	ConnectHost string // -c: run the terminal client against this host
	Connect     bool

	// ── Session timeouts ─────────────────────────────────────────────
	LoginTimeout time.Duration // max silence before an unauthenticated conn is dropped
	IdleTimeout  time.Duration // max silence for an authenticated session

	// ── Client ───────────────────────────────────────────────────────
	Username    string // pre-set login name (skip the interactive prompt)
	DialRetries int    // connect-mode dial attempts before giving up

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.LoginTimeout <= 0 {
		return fmt.Errorf("login timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.Connect {
		if c.ConnectHost == "" {
			return fmt.Errorf("connect mode requires a host")
		}
		if c.Username != "" && strings.ContainsAny(c.Username, " \t") {
			return fmt.Errorf("username %q must not contain whitespace", c.Username)
		}
	}
	return nil
}
