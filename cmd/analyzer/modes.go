package main

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"sc2-replay-analyzer/internal/batch"
	"sc2-replay-analyzer/internal/cache"
	"sc2-replay-analyzer/internal/config"
	"sc2-replay-analyzer/internal/db"
	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/metrics"
	"sc2-replay-analyzer/internal/parser"
	"sc2-replay-analyzer/internal/scoring"
	"sc2-replay-analyzer/internal/server"
)

const (
	memoryLogInterval = 5 * time.Second
	memoryLogEvents   = 50000
	reportName        = "batch-report.json"
)

type app struct {
	cfg     *config.Config
	opts    *options
	log     *logrus.Logger
	metrics *metrics.Manager
	output  *ipc.Output
	stdout  io.Writer
}

func (a *app) newParser(extra ...parser.Option) *parser.Parser {
	opts := []parser.Option{
		parser.WithLogger(a.log),
		parser.WithMetrics(a.metrics),
		parser.WithSnapshotInterval(a.cfg.SnapshotInterval),
		parser.WithBuildOrderLimit(a.cfg.BuildOrderLimit),
		parser.WithCorrelationWindow(a.cfg.CorrelationWindow),
		parser.WithTimeSeries(a.cfg.IncludeTimeSeries),
	}
	return parser.NewParser(append(opts, extra...)...)
}

// analyzeReplay analyzes --replay and returns the result with the content hash.
func (a *app) analyzeReplay(ctx context.Context) (*ipc.Result, string) {
	data, err := parser.ReadReplayFile(a.opts.replay)
	if err != nil {
		a.metrics.RecordAnalysis(metrics.OutcomeFailed, 0)
		return ipc.Failure(err), ""
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	mem := NewMemoryLogger(a.output, a.log, memoryLogInterval, memoryLogEvents)
	p := a.newParser(parser.WithProgress(func(stage string, processed, total int, pct float64) {
		a.output.Progress(stage, processed, total, pct)
		mem.LogIfNeeded(processed)
	}))
	return p.Analyze(ctx, filepath.Base(a.opts.replay), data), db.ContentHash(data)
}

func (a *app) runJSON(ctx context.Context) int {
	res, _ := a.analyzeReplay(ctx)

	if a.opts.output != "" {
		if err := batch.WriteResultFile(a.opts.output, res); err != nil {
			a.fail(err.Error())
			return exitFailure
		}
	} else if err := ipc.WriteResult(a.stdout, res); err != nil {
		a.fail(err.Error())
		return exitFailure
	}

	if !res.Success {
		a.output.Error(res.Error)
		return exitFailure
	}
	return exitSuccess
}

type storeResponse struct {
	Slug    string `json:"slug,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (a *app) runDatabase(ctx context.Context) int {
	conn, err := db.Open(ctx, a.cfg.DBDriver, a.cfg.DBPath)
	if err != nil {
		a.fail(err.Error())
		return exitFailure
	}
	defer conn.Close()

	res, hash := a.analyzeReplay(ctx)
	if res.GameInfo == nil {
		a.fail(res.Error)
		a.writeJSON(storeResponse{Success: false, Error: res.Error})
		return exitFailure
	}

	writer := db.NewWriter(conn)
	slug, err := writer.StoreResult(ctx, res, db.StoreOptions{
		Slug:        a.opts.slug,
		ContentHash: hash,
		Replace:     a.opts.replace,
	})
	if err != nil {
		a.fail(err.Error())
		return exitFailure
	}
	a.log.WithField("slug", slug).Info("replay stored")

	if _, err := scoring.NewScorer(writer).ComputeSummaries(ctx, db.NewReader(conn)); err != nil {
		a.log.WithError(err).Warn("failed to update player summaries")
	}

	a.writeJSON(storeResponse{Slug: slug, Success: res.Success, Error: res.Error})
	if !res.Success {
		a.output.Error(res.Error)
		return exitFailure
	}
	return exitSuccess
}

func (a *app) runBatch(ctx context.Context) int {
	paths, err := batch.Discover(a.opts.dir)
	if err != nil {
		a.fail(err.Error())
		return exitFailure
	}

	runnerOpts := []batch.Option{
		batch.WithWorkers(a.cfg.Workers),
		batch.WithTimeout(a.cfg.Timeout),
		batch.WithLogger(a.log),
	}
	if a.opts.output != "" {
		runnerOpts = append(runnerOpts, batch.WithOutputDir(a.opts.output))
	}
	// Without a result directory the database is the only sink.
	if a.opts.dbExplicit || a.opts.output == "" {
		conn, err := db.Open(ctx, a.cfg.DBDriver, a.cfg.DBPath)
		if err != nil {
			a.fail(err.Error())
			return exitFailure
		}
		defer conn.Close()
		runnerOpts = append(runnerOpts, batch.WithDatabase(db.NewWriter(conn), db.NewReader(conn)))
	}

	report, err := batch.NewRunner(a.newParser(), runnerOpts...).Run(ctx, paths)
	if a.opts.output != "" {
		if werr := batch.WriteReport(filepath.Join(a.opts.output, reportName), report); werr != nil {
			a.log.WithError(werr).Warn("failed to write batch report")
		}
	}
	a.writeJSON(report)

	if err != nil {
		a.fail(err.Error())
		return exitFailure
	}
	if report.Failed > 0 {
		return exitFailure
	}
	return exitSuccess
}

func (a *app) runServe(ctx context.Context) int {
	srvOpts := []server.Option{
		server.WithMetrics(a.metrics),
		server.WithLogger(a.log),
		server.WithTimeout(a.cfg.Timeout),
	}
	if a.cfg.RedisAddr != "" {
		c := cache.NewRedisCache(a.cfg.RedisAddr, a.cfg.RedisTTL)
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			a.log.WithError(err).Warn("result cache unavailable")
		}
		srvOpts = append(srvOpts, server.WithCache(c))
	}

	if err := server.New(a.newParser(), srvOpts...).ListenAndServe(ctx, a.cfg.Addr); err != nil {
		a.fail(err.Error())
		return exitFailure
	}
	return exitSuccess
}

func (a *app) fail(msg string) {
	a.log.Error(msg)
	a.output.Error(msg)
}

func (a *app) writeJSON(v any) {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		a.log.WithError(err).Error("failed to write output")
	}
}
