// Package main is the entry point for the trainboard CLI.
// Its sole responsibility is wiring dependencies together and dispatching
// to the subcommand implementations in commands.go. No business logic
// belongs here.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgoodall/trainboard/internal/api"
	"github.com/dgoodall/trainboard/internal/config"
	"github.com/dgoodall/trainboard/internal/profiles"
	"github.com/dgoodall/trainboard/internal/routecache"
	"github.com/dgoodall/trainboard/internal/session"
	"github.com/dgoodall/trainboard/internal/stations"
)

const usage = `trainboard - UK train departures from the command line

Usage:
  trainboard login -u <username> -p <password>
  trainboard signup -u <username> -p <password> -c <confirmation>
  trainboard logout
  trainboard whoami
  trainboard stations <query>
  trainboard profiles list
  trainboard profiles create -from PAD,SLO -to RDG
  trainboard profiles update -id 3 -from PAD -to RDG,TWY
  trainboard profiles delete -id 3
  trainboard profiles favourite -id 3 [-unset]
  trainboard departures -from PAD -to RDG [-refresh]
  trainboard users list
  trainboard users delete -id 3
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		return 1
	}

	// --- Logger -----------------------------------------------------------
	// JSON lines on stderr so command output on stdout stays pipeable.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Wiring -----------------------------------------------------------
	sessions := session.NewStore(cfg.TokenFile)
	client := api.NewClient(api.Config{
		BaseURL:         cfg.APIBaseURL,
		HTTPTimeout:     cfg.HTTPTimeout,
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	}, sessions, logger)
	cache := routecache.New(client, routecache.Options{DedupeInFlight: cfg.DedupeInFlight})
	store := profiles.New(client, cache)

	directory, err := stations.Load()
	if err != nil {
		slog.Error("station directory error", "error", err)
		return 1
	}

	app := &app{
		sessions:  sessions,
		client:    client,
		cache:     cache,
		store:     store,
		directory: directory,
	}

	// Ctrl-C aborts in-flight polling cleanly via context cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.dispatch(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
