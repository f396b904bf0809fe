package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"sc2-replay-analyzer/internal/db"
	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/parser"
	"sc2-replay-analyzer/internal/replay/replaytest"
)

func replayBytes(mapName string, seconds float64) []byte {
	b := replaytest.New(88500).
		Player(replaytest.PlayerSpec{Name: "Raynor", Race: "Terran", Team: 0, Result: 1, UserID: 0}).
		Player(replaytest.PlayerSpec{Name: "Kerrigan", Race: "Zerg", Team: 1, Result: 2, UserID: 1}).
		Duration(seconds)
	b.Map = mapName
	b.UnitBorn(0, 1, 1, "CommandCenter", 1, 30, 30).
		UnitBorn(0, 2, 1, "Hatchery", 2, 100, 100).
		Cmd(5, 0, "CommandCenterTrain", 0)
	return b.Bytes()
}

func writeFile(dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, data, 0o644), ShouldBeNil)
	return path
}

func TestDiscover(t *testing.T) {
	Convey("Only replay files directly in the directory are found", t, func() {
		dir := t.TempDir()
		writeFile(dir, "b.SC2Replay", []byte("x"))
		writeFile(dir, "a.sc2replay", []byte("x"))
		writeFile(dir, "notes.txt", []byte("x"))
		So(os.Mkdir(filepath.Join(dir, "nested.SC2Replay"), 0o755), ShouldBeNil)

		paths, err := Discover(dir)
		So(err, ShouldBeNil)
		So(paths, ShouldResemble, []string{
			filepath.Join(dir, "a.sc2replay"),
			filepath.Join(dir, "b.SC2Replay"),
		})
	})

	Convey("A missing directory is an error", t, func() {
		_, err := Discover(filepath.Join(t.TempDir(), "missing"))
		So(err, ShouldNotBeNil)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a directory with good, broken and duplicate replays", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		outDir := filepath.Join(t.TempDir(), "results")
		writeFile(dir, "a.SC2Replay", replayBytes("Alcyone LE", 60))
		writeFile(dir, "b.SC2Replay", replayBytes("Ghost River LE", 90))
		writeFile(dir, "c.SC2Replay", bytes.Repeat([]byte("not a replay "), 100))
		writeFile(dir, "dup.SC2Replay", replayBytes("Alcyone LE", 60))
		paths, err := Discover(dir)
		So(err, ShouldBeNil)

		conn, err := db.Open(ctx, db.DefaultDriver, ":memory:")
		So(err, ShouldBeNil)
		defer conn.Close()
		writer, reader := db.NewWriter(conn), db.NewReader(conn)

		runner := NewRunner(parser.NewParser(),
			WithWorkers(2),
			WithOutputDir(outDir),
			WithDatabase(writer, reader),
		)

		report, err := runner.Run(ctx, paths)
		So(err, ShouldBeNil)

		Convey("Every replay is accounted for", func() {
			So(report.ID, ShouldNotBeEmpty)
			So(report.Total, ShouldEqual, 4)
			So(report.Succeeded, ShouldEqual, 2)
			So(report.Failed, ShouldEqual, 1)
			So(report.Skipped, ShouldEqual, 1)
			So(report.Items[2].Error, ShouldNotBeEmpty)
		})

		Convey("Result files are written for analyzed replays", func() {
			files, err := filepath.Glob(filepath.Join(outDir, "*.json"))
			So(err, ShouldBeNil)
			So(files, ShouldHaveLength, 3)

			f, err := os.Open(filepath.Join(outDir, "b.json"))
			So(err, ShouldBeNil)
			defer f.Close()
			res, err := ipc.ReadResult(f)
			So(err, ShouldBeNil)
			So(res.GameInfo.MapName, ShouldEqual, "Ghost River LE")
		})

		Convey("Analyzed replays are stored with their logs and summaries", func() {
			replays, err := reader.ListReplays(ctx, 10)
			So(err, ShouldBeNil)
			So(replays, ShouldHaveLength, 2)

			logs, err := reader.GetParserLogs(ctx, report.Items[1].Slug)
			So(err, ShouldBeNil)
			So(logs, ShouldContainSubstring, "replay analyzed")

			summaries, err := reader.GetPlayerSummaries(ctx)
			So(err, ShouldBeNil)
			So(summaries, ShouldHaveLength, 2)
			So(summaries[0].Games, ShouldEqual, 2)
		})

		Convey("A second run skips everything already stored", func() {
			again, err := runner.Run(ctx, paths)
			So(err, ShouldBeNil)
			So(again.Skipped, ShouldEqual, 3)
			So(again.Failed, ShouldEqual, 1)
			So(again.ID, ShouldNotEqual, report.ID)
		})
	})

	Convey("A cancelled run reports the interruption", t, func() {
		dir := t.TempDir()
		writeFile(dir, "a.SC2Replay", replayBytes("Alcyone LE", 60))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := NewRunner(parser.NewParser()).Run(ctx, []string{filepath.Join(dir, "a.SC2Replay")})
		So(err, ShouldNotBeNil)
		So(report.Failed, ShouldEqual, 1)
	})
}

func TestWriteResultFile(t *testing.T) {
	Convey("Results land at the path with no temporary files left", t, func() {
		dir := filepath.Join(t.TempDir(), "out")
		path := filepath.Join(dir, OutputName("/replays/game one.SC2Replay"))
		So(WriteResultFile(path, ipc.Failure(os.ErrNotExist)), ShouldBeNil)

		entries, err := os.ReadDir(dir)
		So(err, ShouldBeNil)
		So(entries, ShouldHaveLength, 1)
		So(entries[0].Name(), ShouldEqual, "game one.json")
	})
}
