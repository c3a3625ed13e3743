// Package session holds the per-connection state of one chat client:
// the socket, the login identity, and the outbound frame queue.
//
// All frames written to a client — direct replies and fan-out
// deliveries alike — pass through a single FIFO drained by one writer
// goroutine per session.  That gives every connection exactly one
// write path (frames never interleave mid-line) and keeps broadcast
// fan-out from blocking on a slow peer: senders enqueue and move on.
package session

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("session closed")

	// ErrSlowConsumer is returned when a session's outbox overflows;
	// the peer is treated as disconnected.
	ErrSlowConsumer = errors.New("session outbox overflow")
)

// Session is the server-side state for one physical connection.  It is
// owned by its handler goroutine; the registry holds a non-owning
// reference only while the session is authenticated.
type Session struct {
	conn         net.Conn
	writeTimeout time.Duration
	limit        int // max queued frames before the peer counts as dead

	mu      sync.Mutex
	outbox  *queue.Queue
	closed  bool  // Close called; no further Sends accepted
	failure error // first write-path failure, sticky
	name    string
	authed  bool

	wake chan struct{} // 1-buffered wakeup for the writer loop
	done chan struct{} // closed when the writer loop has exited
}

// New wraps conn in a Session and starts its writer goroutine.  limit
// caps the outbox length; writeTimeout bounds each frame write.
func New(conn net.Conn, limit int, writeTimeout time.Duration) *Session {
	s := &Session{
		conn:         conn,
		writeTimeout: writeTimeout,
		limit:        limit,
		outbox:       queue.New(),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Conn exposes the underlying connection for the handler's read loop.
func (s *Session) Conn() net.Conn { return s.conn }

// RemoteAddr returns the peer address for logging.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// SetReadDeadline arms the login/idle timer on the read side.
func (s *Session) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// ── Identity ─────────────────────────────────────────────────────────

// Authenticate records the username accepted at login.  Set exactly
// once per session.
func (s *Session) Authenticate(name string) {
	s.mu.Lock()
	s.name = name
	s.authed = true
	s.mu.Unlock()
}

// Name returns the login name, or "" before authentication.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Authenticated reports whether the session completed a login.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// ── Outbound path ────────────────────────────────────────────────────

// Send queues one frame for delivery.  It never blocks on the network.
// It fails once the session is closed, a previous write failed, or the
// outbox overflowed — callers treat any error as "peer gone".
func (s *Session) Send(frame []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.failure != nil {
		err := s.failure
		s.mu.Unlock()
		return err
	}
	if s.limit > 0 && s.outbox.Length() >= s.limit {
		s.failure = ErrSlowConsumer
		s.mu.Unlock()
		s.conn.Close() // unblock the peer's read loop; it is done
		s.signal()
		return ErrSlowConsumer
	}
	s.outbox.Add(frame)
	s.mu.Unlock()
	s.signal()
	return nil
}

// Close stops accepting frames, lets the writer drain what is already
// queued, and then closes the connection.  Safe to call repeatedly and
// from any goroutine.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

// Done is closed once the writer loop has exited and the connection is
// closed.  Tests use it to wait for teardown.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// writeLoop drains the outbox until the session closes or a write
// fails.  The connection is closed on exit, which also unblocks the
// handler's read loop.
func (s *Session) writeLoop() {
	defer close(s.done)
	defer s.conn.Close()

	for {
		frame, ok := s.next()
		if !ok {
			return
		}
		if s.writeTimeout > 0 {
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)) //nolint:errcheck
		}
		if _, err := s.conn.Write(frame); err != nil {
			s.mu.Lock()
			if s.failure == nil {
				s.failure = err
			}
			s.mu.Unlock()
			return
		}
	}
}

// next blocks until a frame is available or the session is finished.
func (s *Session) next() ([]byte, bool) {
	for {
		s.mu.Lock()
		if s.failure == nil && s.outbox.Length() > 0 {
			frame := s.outbox.Remove().([]byte)
			s.mu.Unlock()
			return frame, true
		}
		finished := s.closed || s.failure != nil
		s.mu.Unlock()
		if finished {
			return nil, false
		}
		<-s.wake
	}
}
