// Command sc2-analyzer turns StarCraft II replays into the analysis
// document consumed by the web app.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"sc2-replay-analyzer/internal/config"
	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/logger"
	"sc2-replay-analyzer/internal/metrics"
	"sc2-replay-analyzer/internal/telemetry"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

const serviceName = "sc2-replay-analyzer"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	opts, err := parseArgs(args, cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	// Go's memory limit makes the GC more aggressive as the heap approaches it.
	if opts.memoryLimitMB > 0 {
		debug.SetMemoryLimit(opts.memoryLimitBytes())
		log.WithField("mb", opts.memoryLimitMB).Info("memory limit set")
	}

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.WithError(err).Warn("failed to flush traces")
		}
	}()

	m := metrics.NewManager()
	defer func() {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.WithError(err).Warn("failed to write metrics file")
		}
	}()

	a := &app{
		cfg:     cfg,
		opts:    opts,
		log:     log,
		metrics: m,
		stdout:  stdout,
	}
	if opts.progress {
		a.output = ipc.NewOutput(stderr).For(filepath.Base(opts.replay))
	}

	switch opts.mode {
	case modeDatabase:
		return a.runDatabase(ctx)
	case modeBatch:
		return a.runBatch(ctx)
	case modeServe:
		return a.runServe(ctx)
	default:
		return a.runJSON(ctx)
	}
}
