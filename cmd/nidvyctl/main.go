// Command nidvyctl drives a nidvy-host from the terminal: send a single
// command, open an interactive console, or watch a running host's status API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nidvy/host/internal/client"
	"github.com/nidvy/host/internal/config"
	"github.com/nidvy/host/internal/console"
	"github.com/nidvy/host/internal/doctor"
	"github.com/nidvy/host/internal/inspect"
	"github.com/nidvy/host/internal/journal"
	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/storage"
	"github.com/nidvy/host/internal/tui/watch"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "send":
		os.Exit(runSend(args))
	case "console":
		os.Exit(runConsole(args))
	case "watch":
		os.Exit(runWatch(args))
	case "inspect":
		os.Exit(inspectCommand(args, os.Stdout, os.Stderr))
	case "doctor":
		os.Exit(doctorCommand(args, os.Stdout, os.Stderr))
	case "version":
		fmt.Printf("nidvyctl version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `nidvyctl - controller for nidvy-host

Usage:
  nidvyctl send [flags] <method> [params-json]
  nidvyctl console [flags]
  nidvyctl watch [--api URL] [--token TOKEN]
  nidvyctl doctor [--config PATH] [--json]
  nidvyctl inspect --journal PATH [--session ID | --list] [--json]
  nidvyctl version

Flags (send, console):
  --host PATH          Host binary to spawn (default: nidvy-host on $PATH)
  --host-config PATH   Config file passed to the host as --config

Send flags:
  --timeout DURATION   How long to wait for the reply (default 10s)

Console flags:
  --host-log PATH      Write host logs to this file (default: discarded)

Watch flags:
  --api URL            Status API of a running host (default http://127.0.0.1:8765)
  --token TOKEN        API bearer token (default $NIDVY_API_TOKEN)

Doctor flags:
  --config PATH        Host config file to check (default: built-in defaults)
  --json               Print the report as JSON

Inspect flags:
  --journal PATH       Journal database written by a host
  --session ID         Session to report (default: most recent)
  --list               List recorded sessions instead
  --json               Print the report as JSON

Examples:
  nidvyctl send window.create '{"title":"Demo","width":1024}'
  nidvyctl send window.eval '{"script":"document.title"}'
`)
}

type hostFlags struct {
	path   string
	config string
}

func (h *hostFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&h.path, "host", "nidvy-host", "Host binary to spawn")
	fs.StringVar(&h.config, "host-config", "", "Config file passed to the host")
}

func (h *hostFlags) args() []string {
	if h.config == "" {
		return nil
	}
	return []string{"--config", h.config}
}

func runSend(args []string) int {
	return sendCommand(args, os.Stdout, os.Stderr)
}

// sendCommand spawns a host, sends one command and prints the reply as JSON.
// Exit codes: 0 success response, 2 error response, 1 anything else.
func sendCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var host hostFlags
	host.register(fs)
	timeout := fs.Duration("timeout", 10*time.Second, "How long to wait for the reply")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "send: method is required")
		return 1
	}

	method, params, err := console.ParseLine(strings.Join(fs.Args(), " "))
	if err != nil {
		fmt.Fprintf(stderr, "send: %v\n", err)
		return 1
	}

	log.Setup("WARN", "text", stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.SpawnWithStderr(ctx, stderr, host.path, host.args()...)
	if err != nil {
		fmt.Fprintf(stderr, "send: %v\n", err)
		return 1
	}
	defer func() {
		if err := c.Close(); err != nil {
			fmt.Fprintf(stderr, "send: %v\n", err)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var p any
	if params != nil {
		p = params
	}
	resp, err := c.Call(callCtx, method, p)
	if err != nil {
		fmt.Fprintf(stderr, "send: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(stderr, "send: %v\n", err)
		return 1
	}
	if !resp.OK() {
		return 2
	}
	return 0
}

func runConsole(args []string) int {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	var host hostFlags
	host.register(fs)
	hostLog := fs.String("host-log", "", "Write host logs to this file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	// The console owns the terminal; host logs must not draw over it.
	var hostStderr io.Writer = io.Discard
	if *hostLog != "" {
		f, err := os.OpenFile(*hostLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "console: %v\n", err)
			return 1
		}
		defer f.Close()
		hostStderr = f
	}
	log.Setup("ERROR", "text", hostStderr)

	c, err := client.SpawnWithStderr(context.Background(), hostStderr, host.path, host.args()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		return 1
	}

	_, runErr := tea.NewProgram(console.New(c), tea.WithAltScreen()).Run()
	closeErr := c.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", runErr)
		return 1
	}
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", closeErr)
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api", "http://127.0.0.1:8765", "Base URL of the host's status API")
	token := fs.String("token", os.Getenv("NIDVY_API_TOKEN"), "Bearer token for the status API")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if _, err := tea.NewProgram(watch.New(strings.TrimRight(*apiURL, "/"), *token)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}
	return 0
}

// doctorCommand checks a host config. Exit codes: 0 valid, 2 invalid, 1 when
// the file cannot be loaded at all.
func doctorCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Host config file to check")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "doctor: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	result := doctor.New(cfg).Validate()
	if *asJSON {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(stderr, "doctor: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, out)
	} else {
		fmt.Fprint(stdout, doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 2
	}
	return 0
}

func inspectCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("journal", "", "Journal database written by a host")
	sessionID := fs.String("session", "", "Session to report")
	list := fs.Bool("list", false, "List recorded sessions")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" {
		fmt.Fprintln(stderr, "inspect: --journal is required")
		return 1
	}
	// OpenSQLite would create a missing file.
	if _, err := os.Stat(*path); err != nil {
		fmt.Fprintf(stderr, "inspect: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, *path)
	if err != nil {
		fmt.Fprintf(stderr, "inspect: %v\n", err)
		return 1
	}
	defer db.Close()

	if *list {
		sessions, err := journal.Sessions(ctx, db)
		if err != nil {
			fmt.Fprintf(stderr, "inspect: %v\n", err)
			return 1
		}
		fmt.Fprint(stdout, inspect.FormatSessions(sessions))
		return 0
	}

	var out string
	if *asJSON {
		out, err = inspect.BuildJSONReport(ctx, db, *sessionID)
		out += "\n"
	} else {
		out, err = inspect.BuildReport(ctx, db, *sessionID)
	}
	if err != nil {
		fmt.Fprintf(stderr, "inspect: %v\n", err)
		return 1
	}
	fmt.Fprint(stdout, out)
	return 0
}
