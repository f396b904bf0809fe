// Package parser runs a replay through decoding, normalization, simulation
// and extraction, and assembles the result document.
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sc2-replay-analyzer/internal/events"
	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/logger"
	"sc2-replay-analyzer/internal/metrics"
	"sc2-replay-analyzer/internal/parser/extractors"
	"sc2-replay-analyzer/internal/protocol"
	"sc2-replay-analyzer/internal/replay"
	"sc2-replay-analyzer/internal/sim"
	"sc2-replay-analyzer/internal/timeseries"
)

// ReplayExt is the extension of replay files.
const ReplayExt = ".SC2Replay"

// MinReplaySize is the smallest file ReadReplayFile accepts. A replay's
// user data block alone takes the first kilobyte.
const MinReplaySize = 1024

// checkEvery is how many events run between context checks.
const checkEvery = 512

var tracer trace.Tracer = otel.Tracer("sc2-replay-analyzer/internal/parser")

// ParseCallback is called during parsing to report progress.
type ParseCallback func(stage string, processed, total int, pct float64)

// Parser analyzes replays. It holds settings only, so one Parser may
// analyze independent replays concurrently.
type Parser struct {
	log        logrus.FieldLogger
	registry   *protocol.Registry
	metrics    *metrics.Manager
	progress   ParseCallback
	interval   float64
	backfill   float64
	limit      int
	window     float64
	timeSeries bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Parser) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRegistry sets the protocol registry. Defaults to the built-in one.
func WithRegistry(r *protocol.Registry) Option {
	return func(p *Parser) { p.registry = r }
}

// WithMetrics records analysis metrics on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Parser) { p.metrics = m }
}

// WithProgress sets the progress callback.
func WithProgress(cb ParseCallback) Option {
	return func(p *Parser) { p.progress = cb }
}

// WithSnapshotInterval sets the time-series interval in game seconds.
func WithSnapshotInterval(seconds float64) Option {
	return func(p *Parser) {
		if seconds > 0 {
			p.interval = seconds
		}
	}
}

// WithBackfillWindow sets how far snapshots may interpolate between keyframes.
func WithBackfillWindow(seconds float64) Option {
	return func(p *Parser) {
		if seconds >= 0 {
			p.backfill = seconds
		}
	}
}

// WithBuildOrderLimit caps build order entries per player. Zero is unlimited.
func WithBuildOrderLimit(n int) Option {
	return func(p *Parser) {
		if n >= 0 {
			p.limit = n
		}
	}
}

// WithCorrelationWindow sets how long a command waits for its unit.
func WithCorrelationWindow(seconds float64) Option {
	return func(p *Parser) {
		if seconds >= 0 {
			p.window = seconds
		}
	}
}

// WithTimeSeries turns the time series on or off.
func WithTimeSeries(on bool) Option {
	return func(p *Parser) { p.timeSeries = on }
}

// NewParser creates a parser with default settings.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		log:        logger.Discard(),
		interval:   timeseries.DefaultInterval,
		backfill:   timeseries.DefaultBackfillWindow,
		window:     extractors.DefaultCorrelationWindow,
		timeSeries: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// With returns a copy of p with opts applied.
func (p *Parser) With(opts ...Option) *Parser {
	c := *p
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Fingerprint identifies the settings that change the result document.
func (p *Parser) Fingerprint() string {
	return fmt.Sprintf("interval=%g;backfill=%g;limit=%d;window=%g;ts=%t",
		p.interval, p.backfill, p.limit, p.window, p.timeSeries)
}

// MatchData contains everything extracted from one replay.
type MatchData struct {
	Replay      *replay.Replay
	Sequence    *events.Sequence
	Aggregates  []sim.Aggregate
	BuildOrders [][]extractors.Action
	TimeSeries  []timeseries.Snapshot
	Counters    sim.Counters
	// Unclassified counts commands with an unknown ability.
	Unclassified int
	// End is the game time the analysis covers.
	End         float64
	Interrupted bool
	// Issues holds the reasons the result is incomplete.
	Issues []error
}

func (p *Parser) report(stage string, processed, total int) {
	if p.progress == nil {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = float64(processed) / float64(total)
	}
	p.progress(stage, processed, total, pct)
}

// Parse decodes and analyzes a replay. The error is non-nil only when
// nothing could be read; partial input yields MatchData with Issues.
func (p *Parser) Parse(ctx context.Context, data []byte) (*MatchData, error) {
	ctx, span := tracer.Start(ctx, "parser.Parse")
	defer span.End()

	p.report("decoding", 0, len(data))
	_, decodeSpan := tracer.Start(ctx, "replay.Decode", trace.WithAttributes(attribute.Int("replay.bytes", len(data))))
	rep, err := replay.Decode(data, p.registry)
	if err != nil {
		decodeSpan.RecordError(err)
		decodeSpan.SetStatus(codes.Error, err.Error())
		decodeSpan.End()
		return nil, err
	}
	decodeSpan.SetAttributes(
		attribute.Int("replay.base_build", rep.Header.Version.BaseBuild),
		attribute.Int("replay.tracker_records", len(rep.Tracker)),
		attribute.Int("replay.game_records", len(rep.Game)),
	)
	decodeSpan.End()
	for _, issue := range rep.Issues {
		p.log.WithError(issue).Warn("replay section degraded")
	}

	p.report("normalizing", 0, len(rep.Tracker)+len(rep.Game))
	_, normSpan := tracer.Start(ctx, "events.Normalize")
	seq := events.NewNormalizer(rep, events.WithLogger(p.log)).Normalize()
	normSpan.SetAttributes(attribute.Int("events", len(seq.Events)))
	normSpan.End()

	md := &MatchData{
		Replay:   rep,
		Sequence: seq,
		Issues:   append([]error(nil), rep.Issues...),
	}
	p.simulate(ctx, md)

	span.SetAttributes(attribute.Bool("interrupted", md.Interrupted), attribute.Int("issues", len(md.Issues)))
	return md, nil
}

// simulate applies the events to the tracker, snapshotter and build order
// extractor in order and fills the rest of md.
func (p *Parser) simulate(ctx context.Context, md *MatchData) {
	_, span := tracer.Start(ctx, "parser.simulate")
	defer span.End()

	rep, evs := md.Replay, md.Sequence.Events
	planned := rep.Duration()
	if n := len(evs); n > 0 && evs[n-1].Time() > planned {
		planned = evs[n-1].Time()
	}

	players := len(rep.Players)
	tracker := sim.NewTracker(players, sim.WithLogger(p.log))
	buildOrder := extractors.NewBuildOrderExtractor(players,
		extractors.WithLimit(p.limit),
		extractors.WithCorrelationWindow(p.window),
	)
	var snap *timeseries.Snapshotter
	if p.timeSeries {
		snap = timeseries.NewSnapshotter(rep.Players, planned,
			timeseries.WithInterval(p.interval),
			timeseries.WithBackfillWindow(p.backfill),
		)
	}

	last := 0.0
	for i, ev := range evs {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				md.Interrupted = true
				md.Issues = append(md.Issues, fmt.Errorf("%w after %d of %d events: %v", ErrInterrupted, i, len(evs), err))
				p.log.WithField("processed", i).Warn("analysis interrupted")
				break
			}
			p.report("simulating", i, len(evs))
		}
		if snap != nil {
			snap.AdvanceTo(ev.Time(), tracker)
		}
		tracker.Apply(ev)
		if snap != nil {
			snap.Observe(ev, tracker)
		}
		buildOrder.Handle(ev)
		last = ev.Time()
	}

	md.End = planned
	switch {
	case md.Interrupted:
		md.End = last
	case rep.Truncated && len(evs) > 0:
		md.End = last
	}

	p.report("extracting", len(evs), len(evs))
	if snap != nil {
		md.TimeSeries = snap.Finish(tracker, md.End)
	}
	md.Aggregates = tracker.Finalize(md.End)
	md.Counters = tracker.Counters()
	md.Unclassified = buildOrder.Unclassified()
	md.BuildOrders = make([][]extractors.Action, players)
	for i := range md.BuildOrders {
		md.BuildOrders[i] = buildOrder.GetActions(i)
	}

	span.SetAttributes(
		attribute.Float64("game.end", md.End),
		attribute.Int("snapshots", len(md.TimeSeries)),
		attribute.Int("unclassified", md.Unclassified),
	)
}

// Analyze turns replay bytes into the result document. It never panics.
func (p *Parser) Analyze(ctx context.Context, filename string, data []byte) (res *ipc.Result) {
	start := time.Now()
	log := p.log.WithField("replay", filename)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("parser panic")
			res = ipc.Failure(fmt.Errorf("parser crashed during parsing (replay may be corrupted, incomplete, or incompatible): %v", r))
		}
		p.metrics.RecordAnalysis(outcome(res), time.Since(start))
	}()

	md, err := p.Parse(ctx, data)
	if err != nil {
		log.WithError(err).Error("failed to parse replay")
		return ipc.Failure(err)
	}

	p.report("assembling", 0, 0)
	res = Assemble(filename, md)
	p.metrics.AddDropped(md.Sequence.Dropped)
	p.metrics.AddAnomalies(md.Counters.DuplicateUnitIDs, md.Counters.UnknownUnitRefs, md.Unclassified)

	log.WithFields(logrus.Fields{
		"players":  len(res.Players),
		"events":   len(md.Sequence.Events),
		"success":  res.Success,
		"duration": time.Since(start).String(),
	}).Info("replay analyzed")
	return res
}

// AnalyzeFile reads and analyzes the replay at path.
func (p *Parser) AnalyzeFile(ctx context.Context, path string) *ipc.Result {
	data, err := ReadReplayFile(path)
	if err != nil {
		p.metrics.RecordAnalysis(metrics.OutcomeFailed, 0)
		return ipc.Failure(err)
	}
	return p.Analyze(ctx, filepath.Base(path), data)
}

// ReadReplayFile validates and reads a replay file.
func ReadReplayFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access replay file: %w", err)
	}
	if info.Size() == 0 {
		return nil, replay.ErrEmpty
	}
	if !strings.HasSuffix(strings.ToLower(path), strings.ToLower(ReplayExt)) {
		return nil, ErrNotReplayFile
	}
	if info.Size() < MinReplaySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	return data, nil
}

func outcome(res *ipc.Result) string {
	switch {
	case res == nil || res.GameInfo == nil:
		return metrics.OutcomeFailed
	case res.Success:
		return metrics.OutcomeSuccess
	}
	return metrics.OutcomeDegraded
}
