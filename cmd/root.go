// Package cmd wires up the CLI flags and dispatches to the chat core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"gochat/chat"
	"gochat/config"
	"gochat/internal/metrics"
	"gochat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gochat/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate gochat mode.
func Execute(ctx context.Context, args []string) error {
	cfg := config.New()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("gochat", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Bind address (serve mode)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Service port")

	loginTimeoutSec := int(cfg.LoginTimeout / time.Second)
	idleTimeoutSec := int(cfg.IdleTimeout / time.Second)
	fs.IntVar(&loginTimeoutSec, "login-timeout", loginTimeoutSec, "Login timeout in seconds")
	fs.IntVar(&idleTimeoutSec, "idle-timeout", idleTimeoutSec, "Idle timeout in seconds")

	// ── client ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.ConnectHost, "connect", "c", cfg.ConnectHost, "Connect to a chat server at this host")
	fs.StringVarP(&cfg.Username, "user", "u", cfg.Username, "Login name for connect mode")
	fs.IntVar(&cfg.DialRetries, "dial-retries", cfg.DialRetries, "Dial attempts before giving up (connect mode)")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("gochat %s\n", version)
		return nil
	}

	cfg.LoginTimeout = time.Duration(loginTimeoutSec) * time.Second
	cfg.IdleTimeout = time.Duration(idleTimeoutSec) * time.Second
	if cfg.ConnectHost != "" {
		cfg.Connect = true
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	collector := metrics.New()

	return chat.New(cfg, logger, collector).Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional accepts the single optional port argument.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return nil
	case 1:
		port, err := strconv.Atoi(remaining[0])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", remaining[0])
		}
		cfg.Port = port
		return nil
	default:
		return fmt.Errorf("too many arguments (expected at most a port)")
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `GoChat – Multi-user TCP chat v%s

A line-oriented chat service: LOGIN, MSG, DM, WHO, PING over plain TCP.

Usage:
  gochat [options] [port]                     Serve
  gochat -c <host> [-u <name>] [port]         Connect as a client

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  gochat                                      Serve on 0.0.0.0:4000
  gochat 5000                                 Serve on port 5000
  gochat --idle-timeout 120 -vv               Serve, chatty logging
  gochat -c chat.example.com -u alice         Join a server
  GOCHAT_PORT=5000 gochat                     Configure via environment
`)
}
