// Package main is the raffle entry CLI: submit a birth-time guess, list
// recorded guesses, read the prize pool, and retry unrecorded entries.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"raffle-guess/internal/config"
	"raffle-guess/internal/logger"
)

const usage = `usage: raffle <command> [flags]

commands:
  enter       submit a guess: -date YYYY-MM-DD -time HH:MM [-fid N] [-no-tui]
  guesses     list recorded guesses: [-fid N]
  prize-pool  show the raffle prize pool: [-raffle N]
  retry       record confirmed entries whose persistence failed
`

func main() {
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	cmd, args := os.Args[1], os.Args[2:]

	// The progress TUI owns the terminal; debug logs go to a file instead.
	var logWriter io.Writer = os.Stderr
	if cfg.Debug && cmd == "enter" {
		if f, err := os.OpenFile("raffle.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			logWriter = f
			defer f.Close()
			fmt.Fprintf(os.Stderr, "Debug logs written to raffle.log\n")
		}
	}
	log := logger.NewWithWriter(cfg.Debug, logWriter)
	log.Debug("config loaded", "config", cfg.DebugString())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &app{cfg: cfg, log: log}
	var err error
	switch cmd {
	case "enter":
		err = app.enter(ctx, args)
	case "guesses":
		err = app.guesses(ctx, args)
	case "prize-pool":
		err = app.prizePool(ctx, args)
	case "retry":
		err = app.retry(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
