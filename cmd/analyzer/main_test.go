package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"sc2-replay-analyzer/internal/config"
	"sc2-replay-analyzer/internal/db"
	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/logger"
	"sc2-replay-analyzer/internal/replay/replaytest"
)

func writeReplay(dir, name string) string {
	b := replaytest.New(88500).
		Player(replaytest.PlayerSpec{Name: "Raynor", Race: "Terran", Team: 0, Result: 1, UserID: 0}).
		Player(replaytest.PlayerSpec{Name: "Kerrigan", Race: "Zerg", Team: 1, Result: 2, UserID: 1}).
		Duration(60)
	b.UnitBorn(0, 1, 1, "CommandCenter", 1, 30, 30).
		Cmd(5, 0, "CommandCenterTrain", 0)
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, b.Bytes(), 0o644), ShouldBeNil)
	return path
}

func TestParseArgs(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := config.New()

		Convey("Explicit flags override it", func() {
			opts, err := parseArgs([]string{"--replay", "a.SC2Replay", "--interval", "2.5", "--timeout", "30s", "--out", "x.db"}, cfg, io.Discard)
			So(err, ShouldBeNil)
			So(opts.mode, ShouldEqual, modeJSON)
			So(cfg.SnapshotInterval, ShouldEqual, 2.5)
			So(cfg.Timeout, ShouldEqual, 30*time.Second)
			So(cfg.DBPath, ShouldEqual, "x.db")
			So(opts.dbExplicit, ShouldBeTrue)
		})

		Convey("Flags left out keep the configured values", func() {
			cfg.SnapshotInterval = 4
			_, err := parseArgs([]string{"--replay", "a.SC2Replay"}, cfg, io.Discard)
			So(err, ShouldBeNil)
			So(cfg.SnapshotInterval, ShouldEqual, 4)
		})

		Convey("Modes check their required flags", func() {
			_, err := parseArgs([]string{"--mode", "database"}, cfg, io.Discard)
			So(errors.Is(err, errUsage), ShouldBeTrue)
			_, err = parseArgs([]string{"--mode", "batch"}, cfg, io.Discard)
			So(errors.Is(err, errUsage), ShouldBeTrue)
			_, err = parseArgs([]string{"--mode", "serve"}, cfg, io.Discard)
			So(err, ShouldBeNil)
			_, err = parseArgs([]string{"--mode", "xml", "--replay", "a"}, cfg, io.Discard)
			So(errors.Is(err, errUsage), ShouldBeTrue)
		})

		Convey("Invalid overrides fail validation", func() {
			_, err := parseArgs([]string{"--replay", "a.SC2Replay", "--interval", "0"}, cfg, io.Discard)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestRunJSON(t *testing.T) {
	Convey("Given a replay on disk", t, func() {
		dir := t.TempDir()
		path := writeReplay(dir, "game.SC2Replay")

		Convey("The result goes to stdout", func() {
			var stdout, stderr bytes.Buffer
			code := run([]string{"--replay", path}, &stdout, &stderr)
			So(code, ShouldEqual, exitSuccess)
			res, err := ipc.ReadResult(&stdout)
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeTrue)
			So(res.GameInfo.Filename, ShouldEqual, "game.SC2Replay")
			So(res.Players, ShouldHaveLength, 2)
		})

		Convey("Or to --output, with progress on stderr", func() {
			out := filepath.Join(dir, "result.json")
			var stdout, stderr bytes.Buffer
			code := run([]string{"--replay", path, "--output", out, "--progress"}, &stdout, &stderr)
			So(code, ShouldEqual, exitSuccess)
			So(stdout.Len(), ShouldEqual, 0)
			So(stderr.String(), ShouldContainSubstring, `"type":"progress"`)

			f, err := os.Open(out)
			So(err, ShouldBeNil)
			defer f.Close()
			res, err := ipc.ReadResult(f)
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeTrue)
		})

		Convey("A broken replay exits with failure and a failed result", func() {
			bad := filepath.Join(dir, "bad.SC2Replay")
			So(os.WriteFile(bad, []byte("garbage"), 0o644), ShouldBeNil)
			var stdout, stderr bytes.Buffer
			code := run([]string{"--replay", bad}, &stdout, &stderr)
			So(code, ShouldEqual, exitFailure)
			res, err := ipc.ReadResult(&stdout)
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeFalse)
			So(res.Error, ShouldNotBeEmpty)
		})

		Convey("An empty replay is rejected", func() {
			empty := filepath.Join(dir, "empty.SC2Replay")
			So(os.WriteFile(empty, nil, 0o644), ShouldBeNil)
			var stdout bytes.Buffer
			So(run([]string{"--replay", empty}, &stdout, io.Discard), ShouldEqual, exitFailure)
			So(stdout.String(), ShouldContainSubstring, "empty")
		})
	})
}

func TestRunDatabase(t *testing.T) {
	Convey("Database mode stores the replay under the given slug", t, func() {
		dir := t.TempDir()
		path := writeReplay(dir, "game.SC2Replay")
		dbPath := filepath.Join(dir, "replays.db")

		var stdout bytes.Buffer
		code := run([]string{"--mode", "database", "--replay", path, "--out", dbPath, "--slug", "ladder-1"}, &stdout, io.Discard)
		So(code, ShouldEqual, exitSuccess)

		var resp storeResponse
		So(json.Unmarshal(stdout.Bytes(), &resp), ShouldBeNil)
		So(resp.Slug, ShouldEqual, "ladder-1")
		So(resp.Success, ShouldBeTrue)

		ctx := context.Background()
		conn, err := db.Open(ctx, db.DefaultDriver, dbPath)
		So(err, ShouldBeNil)
		defer conn.Close()
		res, err := db.NewReader(conn).GetReplayBySlug(ctx, "ladder-1")
		So(err, ShouldBeNil)
		So(res.Players, ShouldHaveLength, 2)

		summaries, err := db.NewReader(conn).GetPlayerSummaries(ctx)
		So(err, ShouldBeNil)
		So(summaries, ShouldHaveLength, 2)

		Convey("Storing the same slug again needs --replace", func() {
			conn.Close()
			So(run([]string{"--mode", "database", "--replay", path, "--out", dbPath, "--slug", "ladder-1"}, io.Discard, io.Discard), ShouldEqual, exitFailure)
			So(run([]string{"--mode", "database", "--replay", path, "--out", dbPath, "--slug", "ladder-1", "--replace"}, io.Discard, io.Discard), ShouldEqual, exitSuccess)
		})
	})
}

func TestRunBatch(t *testing.T) {
	Convey("Batch mode writes results and a report", t, func() {
		dir := t.TempDir()
		writeReplay(dir, "one.SC2Replay")
		outDir := filepath.Join(t.TempDir(), "results")

		var stdout bytes.Buffer
		code := run([]string{"--mode", "batch", "--dir", dir, "--output", outDir}, &stdout, io.Discard)
		So(code, ShouldEqual, exitSuccess)
		So(stdout.String(), ShouldContainSubstring, `"succeeded": 1`)

		_, err := os.Stat(filepath.Join(outDir, "one.json"))
		So(err, ShouldBeNil)
		_, err = os.Stat(filepath.Join(outDir, reportName))
		So(err, ShouldBeNil)
	})
}

func TestMemoryLogger(t *testing.T) {
	Convey("Memory is reported once enough events went by", t, func() {
		var buf bytes.Buffer
		ml := NewMemoryLogger(ipc.NewOutput(&buf), logger.Discard(), time.Hour, 100)
		ml.LogIfNeeded(50)
		So(buf.Len(), ShouldEqual, 0)
		ml.LogIfNeeded(150)
		So(buf.String(), ShouldContainSubstring, "HeapAlloc")
		So(buf.String(), ShouldContainSubstring, "Events=150")
	})
}
