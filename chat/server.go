package chat

import (
	"context"
	"fmt"
	"net"
	"sync"

	"gochat/config"
	"gochat/internal/metrics"
	"gochat/internal/registry"
	"gochat/internal/session"
	"gochat/util"
)

// Server accepts connections and runs a session handler per client.
type Server struct {
	cfg      *config.Config
	log      *util.Logger
	metrics  *metrics.Collector
	registry *registry.Registry

	wg sync.WaitGroup
}

// NewServer builds a Server with an empty registry.
func NewServer(cfg *config.Config, logger *util.Logger, collector *metrics.Collector) *Server {
	return &Server{
		cfg:      cfg,
		log:      logger,
		metrics:  collector,
		registry: registry.New(),
	}
}

// Registry exposes the live-user registry; tests use it to observe
// membership.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Run listens until the context is cancelled, then closes every live
// session's stream without waiting for in-flight commands.
func (s *Server) Run(ctx context.Context) error {
	addr := util.FormatAddr(s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer ln.Close()

	s.log.Info("chat server listening on %s (tcp)", ln.Addr())
	s.log.Info("idle timeout %s, login timeout %s", s.cfg.IdleTimeout, s.cfg.LoginTimeout)
	s.log.Info("verbs: LOGIN MSG DM WHO PING")

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return s.shutdown()
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.log.Verbose("connection from %s", conn.RemoteAddr())
		s.metrics.SessionOpened()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn owns one connection from accept to teardown.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	sess := session.New(conn, config.DefaultOutboxLimit, config.DefaultWriteTimeout)

	// Coarse process-level cancellation: closing the session unblocks
	// the handler's read loop.
	stop := context.AfterFunc(ctx, sess.Close)
	defer stop()

	h := newHandler(s.cfg, s.log, s.metrics, s.registry, sess)
	h.run()

	s.metrics.SessionClosed()
}

// shutdown closes every live session best-effort and logs final stats.
func (s *Server) shutdown() error {
	s.registry.CloseAll()
	s.wg.Wait()
	s.log.Verbose("final stats: %s", s.metrics.Snapshot())
	s.log.Info("server stopped")
	return nil
}
