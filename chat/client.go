package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"gochat/internal/retry"
	"gochat/util"
)

// runClient is the interactive terminal client: a thin wrapper that
// writes command frames and prints response frames.  All chat
// semantics live on the server.
func (c *Chat) runClient(ctx context.Context) error {
	addr := util.FormatAddr(c.Config.ConnectHost, c.Config.Port)

	conn, err := c.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	c.Logger.Verbose("connected to %s", conn.RemoteAddr())

	serverLines := bufio.NewScanner(conn)
	stdin := bufio.NewScanner(os.Stdin)

	name, err := c.loginLoop(conn, serverLines, stdin)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s — /who, /dm <user> <text>, /quit\n", name)

	// Server → terminal.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for serverLines.Scan() {
			fmt.Println(serverLines.Text())
		}
	}()

	// Terminal → server.
	go func() {
		for stdin.Scan() {
			line := strings.TrimSpace(stdin.Text())
			if line == "" {
				continue
			}
			frame, quit := translate(line)
			if quit {
				conn.Close()
				return
			}
			if frame == "" {
				continue
			}
			if _, err := fmt.Fprintln(conn, frame); err != nil {
				return
			}
		}
		conn.Close() // stdin EOF ends the session
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		<-done
	case <-done:
	}
	fmt.Println("disconnected")
	return nil
}

// dial connects with exponential backoff; a refused server may just be
// restarting.  Retry policy is entirely the client's concern.
func (c *Chat) dial(ctx context.Context, addr string) (net.Conn, error) {
	var conn net.Conn
	backoff := retry.DefaultBackoff(c.Config.DialRetries)
	err := backoff.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			c.Logger.Verbose("dial attempt %d to %s", attempt, addr)
		}
		d := net.Dialer{Timeout: 10 * time.Second}
		cn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		conn = cn
		return nil
	})
	return conn, err
}

// loginLoop negotiates a username.  When stdin is a terminal it
// prompts and re-prompts on rejection; otherwise a rejection of the
// configured name is fatal.
func (c *Chat) loginLoop(conn net.Conn, serverLines, stdin *bufio.Scanner) (string, error) {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	name := c.Config.Username

	for {
		if name == "" {
			if !interactive {
				return "", errors.New("no username: set --user or run on a terminal")
			}
			fmt.Print("Enter username: ")
			if !stdin.Scan() {
				return "", errors.New("stdin closed during login")
			}
			name = strings.TrimSpace(stdin.Text())
			if name == "" || strings.Contains(name, " ") {
				fmt.Println("invalid username (no spaces allowed)")
				name = ""
				continue
			}
		}

		if _, err := fmt.Fprintf(conn, "LOGIN %s\n", name); err != nil {
			return "", fmt.Errorf("send login: %w", err)
		}
		if !serverLines.Scan() {
			if err := serverLines.Err(); err != nil {
				return "", fmt.Errorf("read login reply: %w", err)
			}
			return "", io.ErrUnexpectedEOF
		}
		reply := strings.TrimSpace(serverLines.Text())
		if reply == "OK" {
			return name, nil
		}

		c.Logger.Verbose("login refused: %s", reply)
		if !interactive {
			return "", fmt.Errorf("login refused: %s", reply)
		}
		fmt.Println(reply)
		name = "" // prompt again
	}
}

// translate maps a terminal line to a wire frame.  quit reports that
// the user asked to leave.
func translate(line string) (frame string, quit bool) {
	switch {
	case strings.EqualFold(line, "/quit"):
		return "", true
	case strings.EqualFold(line, "/who"):
		return "WHO", false
	case strings.HasPrefix(line, "/dm "):
		rest := strings.TrimSpace(line[len("/dm "):])
		target, text, ok := strings.Cut(rest, " ")
		if !ok {
			fmt.Println("usage: /dm <user> <text>")
			return "", false
		}
		return "DM " + target + " " + text, false
	default:
		return "MSG " + line, false
	}
}
