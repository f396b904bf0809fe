// Package batch analyzes a directory of replays in parallel.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sc2-replay-analyzer/internal/db"
	"sc2-replay-analyzer/internal/logger"
	"sc2-replay-analyzer/internal/parser"
	"sc2-replay-analyzer/internal/scoring"
)

// Item is the outcome of one replay.
type Item struct {
	Path    string `json:"path"`
	Slug    string `json:"slug,omitempty"`
	Output  string `json:"output,omitempty"`
	Success bool   `json:"success"`
	Partial bool   `json:"partial,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes a batch run.
type Report struct {
	ID        string        `json:"id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Degraded  int           `json:"degraded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Took      time.Duration `json:"took"`
	Items     []Item        `json:"items"`
}

// Runner analyzes replays with a bounded number of workers.
type Runner struct {
	parser  *parser.Parser
	log     *logrus.Logger
	workers int
	timeout time.Duration
	outDir  string
	writer  *db.Writer
	reader  *db.Reader

	mu     sync.Mutex
	hashes map[string]bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of replays analyzed at once.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTimeout bounds the analysis of each replay.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithOutputDir writes one result file per replay into dir.
func WithOutputDir(dir string) Option {
	return func(r *Runner) { r.outDir = dir }
}

// WithDatabase stores results and skips replays whose content is already stored.
func WithDatabase(writer *db.Writer, reader *db.Reader) Option {
	return func(r *Runner) {
		r.writer = writer
		r.reader = reader
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner creates a runner around p.
func NewRunner(p *parser.Parser, opts ...Option) *Runner {
	r := &Runner{
		parser:  p,
		log:     logger.Discard(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover lists the replay files directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), parser.ReplayExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Run analyzes paths. Per-replay problems are reported in the items; the
// error is only set when the run itself was cut short.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{
		ID:    uuid.New().String(),
		Total: len(paths),
		Items: make([]Item, len(paths)),
	}
	log := r.log.WithField("batch", report.ID)
	log.WithFields(logrus.Fields{"replays": len(paths), "workers": r.workers}).Info("batch started")

	r.hashes = make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			report.Items[i] = r.process(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	for i := range report.Items {
		item := &report.Items[i]
		if item.Path == "" {
			item.Path = paths[i]
			item.Error = "not started"
		}
		switch {
		case item.Skipped:
			report.Skipped++
		case item.Success:
			report.Succeeded++
		case item.Partial:
			report.Degraded++
		default:
			report.Failed++
		}
	}

	if r.writer != nil && report.Succeeded+report.Degraded > 0 {
		if _, err := scoring.NewScorer(r.writer).ComputeSummaries(ctx, r.reader); err != nil {
			log.WithError(err).Warn("failed to update player summaries")
		}
	}

	report.Took = time.Since(start)
	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"degraded":  report.Degraded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"took":      report.Took.String(),
	}).Info("batch finished")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch interrupted: %w", err)
	}
	return report, nil
}

func (r *Runner) process(ctx context.Context, path string) Item {
	item := Item{Path: path}
	if err := ctx.Err(); err != nil {
		item.Error = err.Error()
		return item
	}

	data, err := parser.ReadReplayFile(path)
	if err != nil {
		item.Error = err.Error()
		return item
	}

	hash := db.ContentHash(data)
	if r.writer != nil {
		if dup, slug := r.seen(ctx, hash); dup {
			item.Skipped = true
			item.Slug = slug
			return item
		}
	}

	actx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	capture := &logCapture{}
	p := r.parser.With(parser.WithLogger(captureLogger(r.log, capture)))
	res := p.Analyze(actx, filepath.Base(path), data)
	item.Success = res.Success
	item.Partial = !res.Success && res.GameInfo != nil
	if !res.Success {
		item.Error = res.Error
	}

	if r.outDir != "" {
		out := filepath.Join(r.outDir, OutputName(path))
		if err := WriteResultFile(out, res); err != nil {
			item.Error = joinErr(item.Error, err.Error())
		} else {
			item.Output = out
		}
	}

	if r.writer != nil && res.GameInfo != nil {
		slug, err := r.writer.StoreResult(ctx, res, db.StoreOptions{ContentHash: hash})
		if err != nil {
			item.Error = joinErr(item.Error, err.Error())
			return item
		}
		item.Slug = slug
		if err := r.writer.InsertParserLogs(ctx, slug, capture.String()); err != nil {
			r.log.WithError(err).WithField("slug", slug).Warn("failed to store parser logs")
		}
	}
	return item
}

// seen reports whether the content was already stored, by an earlier run or
// by another worker of this one.
func (r *Runner) seen(ctx context.Context, hash string) (bool, string) {
	r.mu.Lock()
	dup := r.hashes[hash]
	r.hashes[hash] = true
	r.mu.Unlock()
	if dup {
		return true, ""
	}
	slug, ok, err := r.reader.GetSlugByHash(ctx, hash)
	if err != nil {
		r.log.WithError(err).Warn("failed to look up content hash")
		return false, ""
	}
	return ok, slug
}

func joinErr(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// WriteReport writes the report next to the results.
func WriteReport(path string, report *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
