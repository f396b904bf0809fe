// Package server exposes replay analysis over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sc2-replay-analyzer/internal/cache"
	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/logger"
	"sc2-replay-analyzer/internal/metrics"
	"sc2-replay-analyzer/internal/parser"
)

// DefaultMaxBody is the largest replay accepted by /v1/analyze.
const DefaultMaxBody = 64 << 20

const shutdownTimeout = 10 * time.Second

// Analyzer turns replay bytes into a result.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) *ipc.Result
	Fingerprint() string
}

var _ Analyzer = (*parser.Parser)(nil)

// Server wires HTTP routes for analysis.
type Server struct {
	analyzer Analyzer
	cache    cache.Cache
	metrics  *metrics.Manager
	log      logrus.FieldLogger
	maxBody  int64
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithCache enables result caching.
func WithCache(c cache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBody caps the request body size.
func WithMaxBody(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithTimeout bounds the analysis of one upload.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a server around an analyzer.
func New(a Analyzer, opts ...Option) *Server {
	s := &Server{analyzer: a, log: logger.Discard(), maxBody: DefaultMaxBody}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.instrument("analyze", s.handleAnalyze))
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealth))
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(strings.TrimSpace(r.URL.Query().Get("filename")))
	if filename == "." || filename == "/" || filename == "" {
		filename = "upload" + parser.ReplayExt
	}
	if !strings.EqualFold(filepath.Ext(filename), parser.ReplayExt) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrBadRequest, parser.ErrNotReplayFile))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	ctx := r.Context()
	key := cache.Key(data, s.analyzer.Fingerprint())
	if res, ok := s.lookup(ctx, key); ok {
		w.Header().Set("X-Cache", "hit")
		writeJSON(w, http.StatusOK, withFilename(res, filename))
		return
	}

	actx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res := s.analyzer.Analyze(actx, filename, data)
	// Interrupted results describe the request, not the replay.
	if s.cache != nil && res.GameInfo != nil && (res.Diagnostics == nil || !res.Diagnostics.Interrupted) {
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.log.WithError(err).Warn("failed to cache result")
		}
	}
	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) lookup(ctx context.Context, key string) (*ipc.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	res, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).Warn("cache lookup failed")
		return nil, false
	}
	s.metrics.RecordCacheLookup(ok)
	return res, ok
}

// withFilename relabels a cached result with the name it was uploaded under.
func withFilename(res *ipc.Result, filename string) *ipc.Result {
	if res.GameInfo == nil {
		return res
	}
	out := *res
	info := *res.GameInfo
	info.Filename = filename
	out.GameInfo = &info
	return &out
}

// instrument records request counts by route and status.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.metrics.RecordHTTPRequest(route, strconv.Itoa(wrapped.statusCode))
		s.log.WithFields(logrus.Fields{
			"route":  route,
			"status": wrapped.statusCode,
			"took":   time.Since(start).String(),
		}).Debug("request")
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
