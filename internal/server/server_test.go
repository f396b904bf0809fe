package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/metrics"
	"sc2-replay-analyzer/internal/parser"
)

type fakeAnalyzer struct {
	calls int
	res   *ipc.Result
}

func (f *fakeAnalyzer) Analyze(_ context.Context, filename string, _ []byte) *ipc.Result {
	f.calls++
	if f.res != nil {
		return f.res
	}
	return &ipc.Result{Success: true, GameInfo: &ipc.GameInfo{Filename: filename, MapName: "Alcyone LE"}}
}

func (f *fakeAnalyzer) Fingerprint() string { return "fake" }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*ipc.Result
}

func (m *memoryCache) Get(_ context.Context, key string) (*ipc.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.entries[key]
	return res, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, res *ipc.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = res
	return nil
}

func post(h http.Handler, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	So(json.Unmarshal(rec.Body.Bytes(), &m), ShouldBeNil)
	return m
}

func TestAnalyzeRoute(t *testing.T) {
	Convey("Given a server with a cache", t, func() {
		fa := &fakeAnalyzer{}
		mc := &memoryCache{entries: map[string]*ipc.Result{}}
		m := metrics.NewManager()
		h := New(fa, WithCache(mc), WithMetrics(m)).Handler()

		Convey("The first upload is analyzed and cached", func() {
			rec := post(h, "/v1/analyze?filename=game.SC2Replay", []byte("replay bytes"))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("X-Cache"), ShouldEqual, "miss")
			body := decode(rec)
			So(body["success"], ShouldEqual, true)
			So(fa.calls, ShouldEqual, 1)
			So(mc.entries, ShouldHaveLength, 1)

			Convey("The same bytes are served from the cache under the new name", func() {
				rec := post(h, "/v1/analyze?filename=again.SC2Replay", []byte("replay bytes"))
				So(rec.Header().Get("X-Cache"), ShouldEqual, "hit")
				So(fa.calls, ShouldEqual, 1)
				info := decode(rec)["game_info"].(map[string]interface{})
				So(info["filename"], ShouldEqual, "again.SC2Replay")
			})

			Convey("Request and cache metrics are exposed", func() {
				post(h, "/v1/analyze?filename=again.SC2Replay", []byte("replay bytes"))
				req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				So(rec.Code, ShouldEqual, http.StatusOK)
				text := rec.Body.String()
				So(text, ShouldContainSubstring, `sc2ra_http_requests_total{code="200",route="analyze"} 2`)
				So(text, ShouldContainSubstring, `sc2ra_cache_lookups_total{result="hit"} 1`)
			})
		})

		Convey("Failures without game info are not cached", func() {
			fa.res = &ipc.Result{Success: false, Error: "corrupt replay"}
			rec := post(h, "/v1/analyze?filename=bad.SC2Replay", []byte("junk"))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["error"], ShouldEqual, "corrupt replay")
			So(mc.entries, ShouldBeEmpty)
		})

		Convey("Other extensions are rejected", func() {
			rec := post(h, "/v1/analyze?filename=notes.txt", []byte("x"))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(rec)["error"], ShouldContainSubstring, ".SC2Replay")
			So(fa.calls, ShouldEqual, 0)
		})

		Convey("A missing filename gets a default", func() {
			rec := post(h, "/v1/analyze", []byte("x"))
			So(rec.Code, ShouldEqual, http.StatusOK)
			info := decode(rec)["game_info"].(map[string]interface{})
			So(info["filename"], ShouldEqual, "upload.SC2Replay")
		})

		Convey("GET is not allowed", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Bodies over the limit are refused", t, func() {
		h := New(&fakeAnalyzer{}, WithMaxBody(4)).Handler()
		rec := post(h, "/v1/analyze?filename=big.SC2Replay", []byte("0123456789"))
		So(rec.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
	})

	Convey("A real parser reports garbage as a failed result", t, func() {
		h := New(parser.NewParser()).Handler()
		rec := post(h, "/v1/analyze?filename=junk.SC2Replay", []byte("definitely not a replay"))
		So(rec.Code, ShouldEqual, http.StatusOK)
		body := decode(rec)
		So(body["success"], ShouldEqual, false)
		So(body["error"], ShouldNotBeEmpty)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	Convey("Health answers ok", t, func() {
		srv := httptest.NewServer(New(&fakeAnalyzer{}).Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)
		body, _ := io.ReadAll(resp.Body)
		So(string(body), ShouldContainSubstring, `"ok"`)

		Convey("Without metrics there is no /metrics route", func() {
			resp, err := http.Get(srv.URL + "/metrics")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestListenAndServeStops(t *testing.T) {
	Convey("Cancelling the context shuts the server down", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- New(&fakeAnalyzer{}).ListenAndServe(ctx, "127.0.0.1:0") }()
		cancel()
		So(<-done, ShouldBeNil)
	})
}
