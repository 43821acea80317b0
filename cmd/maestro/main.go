// Command maestro runs the runtime core: the knowledge store, the live
// HTTP+WebSocket transport, the fleet-level Command Center, and the
// Action Dispatcher that carries out agent requests against them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const (
	exitOK           = 0
	exitOtherError   = 1
	exitBadArg       = 2
	exitNotFound     = 3
	exitConflict     = 4
	exitCorruptStore = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitBadArg
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "up":
		return runUp(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "tools":
		return runTools(args[1:])
	case "-h", "--help", "help":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "maestro: unknown command %q\n", args[0])
		printUsage()
		return exitBadArg
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  maestro serve [--port N] [--store PATH] [--config PATH]
  maestro up [--tui] [--port N] [--config PATH]
  maestro doctor [--fix] [--json] [--config PATH]
  maestro ingest <path> [--project-name X] [--config PATH]
  maestro tools <op> [args...] [--config PATH]`)
}

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// notifyShutdown returns a context cancelled on SIGINT/SIGTERM and a
// channel that additionally reports SIGHUP for config-reload handling.
func notifyShutdown() (context.Context, context.CancelFunc, chan os.Signal) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	return ctx, cancel, sigCh
}
