// Command nidvy-host is the native window host. A controller process drives
// it with one JSON command per line on stdin and reads one JSON response per
// line on stdout. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"

	"github.com/nidvy/host/internal/api"
	"github.com/nidvy/host/internal/config"
	"github.com/nidvy/host/internal/coordinator"
	"github.com/nidvy/host/internal/dispatch"
	"github.com/nidvy/host/internal/events"
	"github.com/nidvy/host/internal/journal"
	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/native/headless"
	"github.com/nidvy/host/internal/transport"
)

const version = "0.1.0"

// Native windowing toolkits require the process's initial thread; pinning the
// main goroutine here keeps the coordinator, which runs on it, there.
func init() {
	runtime.LockOSThread()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nidvy-host", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to an optional YAML configuration file")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *showVersion {
		fmt.Fprintf(stdout, "nidvy-host version %s\n", version)
		return 0
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	log.Setup(cfg.Log.Level, cfg.Log.Format, stderr)
	sessionID := uuid.NewString()
	logger := log.WithSession(sessionID).With("component", "main")
	logger.Info("nidvy-host starting",
		"version", version,
		"config", cfg.Source,
		"config_hash", cfg.Fingerprint,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := events.NewHub(256)

	var (
		recorder coordinator.Recorder
		reader   api.JournalReader
	)
	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.Path, sessionID, cfg.Fingerprint, log.WithComponent("journal"))
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Error("failed to close journal", "error", err)
			}
		}()
		recorder = j
		reader = j
		logger.Info("journal opened", "path", cfg.Journal.Path)
	}

	backend := headless.New(log.WithComponent("headless"))
	defaults := dispatch.WindowDefaults{
		URL:    cfg.Window.URL,
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
	}

	coord, err := coordinator.New(coordinator.Options{
		Receiver:   transport.Start(stdin, log.WithComponent("transport")),
		Writer:     transport.NewWriter(stdout),
		Dispatcher: dispatch.New(defaults, log.WithComponent("dispatch")),
		Windowing:  backend,
		Engine:     backend,
		Journal:    recorder,
		Events:     hub,
		Logger:     log.WithComponent("coordinator"),
		SessionID:  sessionID,
	})
	if err != nil {
		logger.Error("failed to build coordinator", "error", err)
		return 1
	}

	if cfg.API.Enabled {
		srv := api.New(api.Config{Listen: cfg.API.Listen, Token: cfg.API.Token}, coord, hub, reader, log.WithComponent("api"))
		apiDone := make(chan struct{})
		go func() {
			defer close(apiDone)
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("API server stopped", "error", err)
			}
		}()
		defer func() {
			cancel()
			<-apiDone
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen, "token_required", cfg.API.Token != "")
	}

	code, err := coord.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "nidvy-host: %v\n", err)
		return 1
	}
	logger.Info("nidvy-host stopped", "code", code)
	return code
}
