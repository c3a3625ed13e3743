package chat

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"time"

	"gochat/config"
	"gochat/internal/metrics"
	"gochat/internal/protocol"
	"gochat/internal/registry"
	"gochat/internal/session"
	"gochat/util"
)

// handler drives one session through the protocol state machine:
// login phase, authenticated command loop, terminal cleanup.
type handler struct {
	cfg     *config.Config
	log     *util.Logger
	metrics *metrics.Collector
	reg     *registry.Registry
	sess    *session.Session
	scanner *bufio.Scanner
}

func newHandler(cfg *config.Config, logger *util.Logger, collector *metrics.Collector,
	reg *registry.Registry, sess *session.Session) *handler {
	return &handler{
		cfg:     cfg,
		log:     logger.Tagged(sess.RemoteAddr()),
		metrics: collector,
		reg:     reg,
		sess:    sess,
		scanner: bufio.NewScanner(sess.Conn()),
	}
}

// run executes the full session lifecycle.  It returns when the
// session is finished; cleanup always runs.
func (h *handler) run() {
	defer h.cleanup()

	name, ok := h.login()
	if !ok {
		return
	}
	h.commandLoop(name)
}

// ── Login phase ──────────────────────────────────────────────────────

// login waits for a valid LOGIN frame within the login timeout.
// A duplicate username is not fatal: the reply goes out and the peer
// may retry on the same connection.  Any other violation (malformed
// LOGIN, non-LOGIN first frame) is answered and then terminal.
func (h *handler) login() (string, bool) {
	for {
		line, err := h.readLine(h.cfg.LoginTimeout)
		if err != nil {
			// Timeout or EOF before authenticating: close without
			// touching the registry.
			h.log.Verbose("closed before login: %v", err)
			return "", false
		}
		if line == "" {
			continue
		}

		cmd, perr := protocol.Parse(line)
		switch {
		case errors.Is(perr, protocol.ErrInvalidUsername):
			h.reject(protocol.CodeInvalidUsername)
			return "", false
		case perr != nil:
			// Malformed LOGIN, or a malformed non-LOGIN frame;
			// either way the first frame was not a valid login.
			h.reject(protocol.CodeInvalidLogin)
			return "", false
		case cmd.Kind != protocol.KindLogin:
			h.reject(protocol.CodeInvalidLogin)
			return "", false
		}

		if err := h.reg.Register(cmd.Name, h.sess); err != nil {
			h.metrics.LoginRejected()
			h.log.Verbose("login %q rejected: %v", cmd.Name, err)
			h.sess.Send(protocol.ErrFrame(protocol.CodeUsernameTaken)) //nolint:errcheck
			continue // peer may retry with another name
		}

		h.sess.Authenticate(cmd.Name)
		h.metrics.LoginAccepted()
		if err := h.sess.Send(protocol.OK()); err != nil {
			return "", false
		}
		h.log.Info("%s logged in", cmd.Name)

		h.reg.Broadcast(protocol.Info(cmd.Name+" joined"), cmd.Name)
		return cmd.Name, true
	}
}

// reject answers a fatal login-phase violation.
func (h *handler) reject(code string) {
	h.metrics.LoginRejected()
	h.sess.Send(protocol.ErrFrame(code)) //nolint:errcheck
	h.log.Verbose("login rejected: %s", code)
}

// ── Command loop ─────────────────────────────────────────────────────

// commandLoop processes frames until EOF, idle timeout, or a stream
// error.  Every complete frame, valid or not, re-arms the idle timer.
func (h *handler) commandLoop(name string) {
	for {
		line, err := h.readLine(h.cfg.IdleTimeout)
		if err != nil {
			if isTimeout(err) {
				h.metrics.IdleTimeout()
				h.log.Info("%s timed out due to inactivity", name)
				// Best-effort notice; the session closes regardless.
				h.sess.Send(protocol.Info("You have been disconnected due to inactivity")) //nolint:errcheck
			}
			return
		}
		if line == "" {
			continue
		}

		cmd, perr := protocol.Parse(line)
		if perr != nil {
			h.answerParseError(perr)
			continue
		}

		switch cmd.Kind {
		case protocol.KindWho:
			for _, user := range h.reg.Snapshot() {
				if err := h.sess.Send(protocol.User(user)); err != nil {
					return
				}
			}

		case protocol.KindMsg:
			h.handleMsg(name, cmd.Text)

		case protocol.KindDM:
			h.handleDM(name, cmd.Name, cmd.Text)

		case protocol.KindPing:
			if err := h.sess.Send(protocol.Pong()); err != nil {
				return
			}

		default:
			// Unknown verb, including LOGIN after authentication.
			h.metrics.UnknownCommand()
			h.sess.Send(protocol.ErrFrame(protocol.CodeUnknownCommand)) //nolint:errcheck
		}
	}
}

// handleMsg broadcasts text to every other member.  Empty text is a
// silent no-op.
func (h *handler) handleMsg(sender, text string) {
	if text == "" {
		return
	}
	delivered, removed := h.reg.Broadcast(protocol.Broadcast(sender, text), sender)
	h.metrics.Broadcast(delivered)
	h.reapFailed(removed)
	h.log.Debug("%s: %s", sender, text)
}

// handleDM delivers a private message and echoes it back to the
// sender.  Failures are reported to the sender only.
func (h *handler) handleDM(sender, target, text string) {
	err := h.reg.SendTo(target, protocol.Direct(sender, text))
	switch {
	case errors.Is(err, registry.ErrNotFound):
		h.sess.Send(protocol.ErrUserNotFound(target)) //nolint:errcheck
	case err != nil:
		h.metrics.SendFailure()
		h.log.Warn("dm %s -> %s failed: %v", sender, target, err)
		h.sess.Send(protocol.ErrFrame(protocol.CodeSendFailed)) //nolint:errcheck
	default:
		h.metrics.DirectMessage()
		h.log.Debug("dm %s -> %s: %s", sender, target, text)
		h.sess.Send(protocol.Direct(target, text)) //nolint:errcheck
	}
}

// reapFailed logs recipients the fan-out removed as disconnected.
func (h *handler) reapFailed(removed []string) {
	for _, name := range removed {
		h.metrics.SendFailure()
		h.log.Warn("dropping %s: send failed", name)
	}
}

// ── Teardown ─────────────────────────────────────────────────────────

// cleanup enters the terminal state: deregister (idempotent), announce
// the departure to the remaining members, release the stream.
func (h *handler) cleanup() {
	if h.sess.Authenticated() {
		name := h.sess.Name()
		h.reg.Unregister(name, h.sess)
		h.reg.Broadcast(protocol.Info(name+" disconnected"), name)
		h.log.Info("%s disconnected", name)
	} else {
		h.log.Verbose("connection closed")
	}
	h.sess.Close()
}

// ── Reading ──────────────────────────────────────────────────────────

// readLine blocks for the next complete frame, trimmed of surrounding
// whitespace.  The deadline covers the whole wait, so a silent peer
// hits it even mid-line.
func (h *handler) readLine(timeout time.Duration) (string, error) {
	if timeout > 0 {
		if err := h.sess.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", err
		}
	}
	if !h.scanner.Scan() {
		if err := h.scanner.Err(); err != nil {
			return "", err
		}
		return "", errEOF
	}
	return strings.TrimSpace(h.scanner.Text()), nil
}

var errEOF = errors.New("stream closed by peer")

// answerParseError maps a malformed frame to its specific wire error.
// Post-login, malformed LOGIN frames count as unknown commands.
func (h *handler) answerParseError(perr error) {
	switch {
	case errors.Is(perr, protocol.ErrInvalidDM):
		h.sess.Send(protocol.ErrFrame(protocol.CodeInvalidDM)) //nolint:errcheck
	default:
		h.metrics.UnknownCommand()
		h.sess.Send(protocol.ErrFrame(protocol.CodeUnknownCommand)) //nolint:errcheck
	}
}

// isTimeout reports whether err is a read-deadline expiry.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
