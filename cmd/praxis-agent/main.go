// Command praxis-agent runs a single agent task against a workspace.
//
// The task is read from the positional arguments, or from stdin when none
// are given. Backend configuration comes from an optional YAML file plus
// PRAXIS_-prefixed environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	slogmulti "github.com/samber/slog-multi"

	"github.com/praxisworks/praxis/agent"
	"github.com/praxisworks/praxis/llm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "praxis-agent:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to a YAML config file")
		root        = flag.String("root", ".", "workspace root the agent operates on")
		maxSteps    = flag.Int("max-steps", agent.DefaultMaxSteps, "maximum tool dispatches per run")
		tier        = flag.String("tier", "", "preferred backend tier (e.g. premium)")
		stream      = flag.Bool("stream", false, "stream model output to the console")
		execTimeout = flag.Duration("exec-timeout", agent.DefaultExecTimeout, "per-command execution timeout")
		logFile     = flag.String("log-file", "", "also write JSON logs to this file")
		verbose     = flag.Bool("v", false, "verbose console logging")
	)
	flag.Parse()

	task := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if task == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading task from stdin: %w", err)
		}
		task = strings.TrimSpace(string(data))
	}
	if task == "" {
		return fmt.Errorf("no task given: pass it as arguments or on stdin")
	}

	logger, closeLogs, err := buildLogger(*logFile, *verbose)
	if err != nil {
		return err
	}
	defer closeLogs()

	cfg, err := llm.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registry := llm.NewRegistry(cfg.Backends, llm.EnvResolver{}, logger)
	defer registry.Close()
	router := llm.NewRouter(registry, cfg.Default, cfg.Chain, logger)

	sandbox, err := agent.NewSandbox(*root, *execTimeout, logger)
	if err != nil {
		return fmt.Errorf("opening workspace: %w", err)
	}

	tools := agent.NewRegistry()
	agent.RegisterCoreTools(tools)

	orch := agent.NewOrchestrator(router, registry, tools, sandbox, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := agent.NewEventSink("", 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(sink.Events(), *stream)
	}()

	state, err := orch.Run(ctx, task, agent.Options{
		MaxSteps:      *maxSteps,
		PreferredTier: *tier,
		Stream:        *stream,
	}, sink)
	sink.Close()
	<-done
	if err != nil {
		return err
	}

	if state.Status == agent.StatusExceeded {
		fmt.Fprintln(os.Stderr, "warning: step budget reached before a final answer")
	}
	fmt.Println(state.FinalAnswer)
	return nil
}

// buildLogger fans console output out to an optional JSON log file.
func buildLogger(logFile string, verbose bool) (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if logFile == "" {
		return slog.New(console), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(slogmulti.Fanout(console, file))
	return logger, func() { f.Close() }, nil
}

// printEvents renders run events for the terminal. Streamed console text is
// written raw; tool results get a one-line summary.
func printEvents(events <-chan agent.Event, stream bool) {
	for ev := range events {
		switch ev.Type {
		case agent.EventConsole:
			if stream {
				if text, ok := ev.Payload["text"].(string); ok {
					fmt.Print(text)
				}
			}
		case agent.EventToolResult:
			tool, _ := ev.Payload["tool"].(string)
			kind, _ := ev.Payload["error"].(string)
			ts := ev.Timestamp.Format(time.TimeOnly)
			if kind != "" {
				fmt.Fprintf(os.Stderr, "[%s] %s failed (%s)\n", ts, tool, kind)
			} else {
				fmt.Fprintf(os.Stderr, "[%s] %s ok\n", ts, tool)
			}
		case agent.EventFinalAnswer:
			if stream {
				fmt.Println()
			}
		}
	}
}
