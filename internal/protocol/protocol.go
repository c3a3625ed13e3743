// Package protocol implements the line-oriented chat wire format:
// parsing inbound command frames and encoding outbound response frames.
//
// A frame is one newline-terminated line of UTF-8 text.  Framing
// (buffering partial reads, splitting on '\n', dropping empty lines)
// is the caller's job; this package only deals in complete lines.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a client command verb.
type Kind int

const (
	KindUnknown Kind = iota
	KindLogin
	KindMsg
	KindDM
	KindWho
	KindPing
)

// Command is one parsed client frame.
type Command struct {
	Kind Kind
	Name string // LOGIN username, or DM target
	Text string // MSG / DM payload, verbatim remainder of the line
}

// ── Malformed-frame outcomes ─────────────────────────────────────────
//
// Each malformed shape maps to the specific wire error the offender
// receives, never a generic failure.

var (
	ErrInvalidLogin    = errors.New("invalid-login")
	ErrInvalidUsername = errors.New("invalid-username")
	ErrInvalidDM       = errors.New("invalid-dm-format")
)

// ── Parsing ──────────────────────────────────────────────────────────

// Parse decodes a single trimmed, non-empty line into a Command.  The
// verb is case-insensitive; everything after it is case-preserving.
//
// Returned errors are the Err* sentinels above; an unrecognized verb is
// not an error here (the handler answers it with unknown-command while
// keeping the connection usable).
func Parse(line string) (Command, error) {
	verb, rest := splitVerb(line)

	switch strings.ToUpper(verb) {
	case "LOGIN":
		name := strings.TrimSpace(rest)
		if name == "" {
			return Command{}, ErrInvalidLogin
		}
		if strings.ContainsAny(name, " \t") {
			return Command{}, ErrInvalidUsername
		}
		return Command{Kind: KindLogin, Name: name}, nil

	case "MSG":
		// Empty text is legal; the handler treats it as a no-op.
		return Command{Kind: KindMsg, Text: rest}, nil

	case "DM":
		target, text, ok := strings.Cut(rest, " ")
		if !ok || target == "" {
			return Command{}, ErrInvalidDM
		}
		return Command{Kind: KindDM, Name: target, Text: text}, nil

	case "WHO":
		return Command{Kind: KindWho}, nil

	case "PING":
		return Command{Kind: KindPing}, nil
	}

	return Command{Kind: KindUnknown, Name: verb}, nil
}

// splitVerb cuts the first space-delimited token off the line.  The
// remainder keeps its spacing verbatim.
func splitVerb(line string) (verb, rest string) {
	verb, rest, _ = strings.Cut(line, " ")
	return verb, rest
}

// ── Encoding ─────────────────────────────────────────────────────────
//
// Every server→client frame in the protocol has one encoder here, so
// the wire strings exist in exactly one place.

// OK acknowledges a successful login.
func OK() []byte { return []byte("OK\n") }

// Pong answers a PING.
func Pong() []byte { return []byte("PONG\n") }

// User encodes one WHO result line.
func User(name string) []byte {
	return []byte("USER " + name + "\n")
}

// Info encodes a join/leave/idle notice.
func Info(text string) []byte {
	return []byte("INFO " + text + "\n")
}

// Broadcast encodes a room message as seen by recipients.
func Broadcast(sender, text string) []byte {
	return []byte(fmt.Sprintf("MSG %s %s\n", sender, text))
}

// Direct encodes a private message.  For the recipient peer is the
// sender; for the echo back to the sender peer is the target.
func Direct(peer, text string) []byte {
	return []byte(fmt.Sprintf("DM %s %s\n", peer, text))
}

// ErrFrame encodes a bare protocol error reply such as
// "ERR unknown-command".
func ErrFrame(code string) []byte {
	return []byte("ERR " + code + "\n")
}

// ErrUserNotFound encodes the DM failure naming the missing target.
func ErrUserNotFound(target string) []byte {
	return []byte("ERR user-not-found " + target + "\n")
}

// Wire error codes answered by the server.
const (
	CodeInvalidLogin    = "invalid-login"
	CodeInvalidUsername = "invalid-username"
	CodeUsernameTaken   = "username-taken"
	CodeInvalidDM       = "invalid-dm-format"
	CodeSendFailed      = "send-failed"
	CodeUnknownCommand  = "unknown-command"
)
