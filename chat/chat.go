// Package chat implements the core of the service: the listener, the
// per-connection session handler state machine, and the interactive
// terminal client.
//
// Architecture layers (bottom → top):
//
//	protocol → session → registry → chat (server/handler) → cmd (CLI)
//
// One goroutine runs per connection; the registry is the only state
// shared between them.
package chat

import (
	"context"

	"gochat/config"
	"gochat/internal/metrics"
	"gochat/util"
)

// Chat orchestrates a single invocation in either server or client
// mode.
type Chat struct {
	Config  *config.Config
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// New returns a ready-to-run Chat.
func New(cfg *config.Config, logger *util.Logger, collector *metrics.Collector) *Chat {
	return &Chat{Config: cfg, Logger: logger, Metrics: collector}
}

// Run dispatches to the correct mode.
func (c *Chat) Run(ctx context.Context) error {
	if c.Config.Connect {
		return c.runClient(ctx)
	}
	srv := NewServer(c.Config, c.Logger, c.Metrics)
	return srv.Run(ctx)
}
