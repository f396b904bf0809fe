package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"sc2-replay-analyzer/internal/config"
)

// Output modes.
const (
	modeJSON     = "json"
	modeDatabase = "database"
	modeBatch    = "batch"
	modeServe    = "serve"
)

var errUsage = errors.New("usage")

type options struct {
	replay        string
	mode          string
	output        string
	slug          string
	replace       bool
	dir           string
	dbExplicit    bool
	progress      bool
	memoryLimitMB int
}

// parseArgs reads the command line. Flags given explicitly override cfg.
func parseArgs(args []string, cfg *config.Config, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("sc2-analyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.replay, "replay", "", "Path to the .SC2Replay file")
	fs.StringVar(&opts.mode, "mode", modeJSON, "Output mode: 'json', 'database', 'batch' or 'serve'")
	fs.StringVar(&opts.output, "output", "", "Result file in json mode, result directory in batch mode (default stdout)")
	out := fs.String("out", cfg.DBPath, "Path to the SQLite database (database and batch modes)")
	fs.StringVar(&opts.slug, "slug", "", "Replay slug in database mode (defaults to one derived from the file name)")
	fs.BoolVar(&opts.replace, "replace", false, "Replace an existing replay with the same slug")
	interval := fs.Float64("interval", cfg.SnapshotInterval, "Time-series sampling interval in game seconds")
	timeout := fs.Duration("timeout", cfg.Timeout, "Time limit for analyzing one replay (0 = none)")
	fs.BoolVar(&opts.progress, "progress", false, "Emit NDJSON progress messages on stderr")
	fs.IntVar(&opts.memoryLimitMB, "memory-limit", 0, "Soft memory limit in MB (0 = no limit)")
	fs.StringVar(&opts.dir, "dir", "", "Directory of replays for batch mode")
	addr := fs.String("addr", cfg.Addr, "Listen address in serve mode")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.DBPath = *out
			opts.dbExplicit = true
		case "interval":
			cfg.SnapshotInterval = *interval
		case "timeout":
			cfg.Timeout = *timeout
		case "addr":
			cfg.Addr = *addr
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch opts.mode {
	case modeJSON, modeDatabase:
		if opts.replay == "" {
			return nil, fmt.Errorf("%w: --replay is required when --mode=%s", errUsage, opts.mode)
		}
	case modeBatch:
		if opts.dir == "" {
			return nil, fmt.Errorf("%w: --dir is required when --mode=batch", errUsage)
		}
	case modeServe:
	default:
		return nil, fmt.Errorf("%w: --mode must be 'json', 'database', 'batch' or 'serve'", errUsage)
	}
	if opts.memoryLimitMB < 0 {
		return nil, fmt.Errorf("%w: --memory-limit must not be negative", errUsage)
	}
	return opts, nil
}

func (o *options) memoryLimitBytes() int64 {
	return int64(o.memoryLimitMB) * 1024 * 1024
}
