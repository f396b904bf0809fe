package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"sc2-replay-analyzer/internal/ipc"
)

func TestKey(t *testing.T) {
	Convey("Keys depend on content and settings", t, func() {
		a := Key([]byte("replay"), "interval=1")
		So(a, ShouldStartWith, keyPrefix)
		So(Key([]byte("replay"), "interval=1"), ShouldEqual, a)
		So(Key([]byte("replay"), "interval=2"), ShouldNotEqual, a)
		So(Key([]byte("replay2"), "interval=1"), ShouldNotEqual, a)
	})

	Convey("Content and settings do not run together", t, func() {
		So(Key([]byte("ab"), "c"), ShouldNotEqual, Key([]byte("a"), "bc"))
	})
}

func TestResultEncoding(t *testing.T) {
	Convey("Given a result with a repetitive body", t, func() {
		res := &ipc.Result{Success: true, GameInfo: &ipc.GameInfo{Filename: "a.SC2Replay", MapName: strings.Repeat("Alcyone LE ", 200)}}
		data, err := encodeResult(res)
		So(err, ShouldBeNil)

		Convey("The stored form is compressed", func() {
			So(len(data), ShouldBeLessThan, len(res.GameInfo.MapName))
		})

		Convey("It decodes back", func() {
			back, err := decodeResult(data)
			So(err, ShouldBeNil)
			So(back.Success, ShouldBeTrue)
			So(back.GameInfo.MapName, ShouldEqual, res.GameInfo.MapName)
		})
	})

	Convey("Entries that are not snappy data are rejected", t, func() {
		_, err := decodeResult([]byte(`{"success":true}`))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "decompress")
	})
}

func TestRedisCacheUnreachable(t *testing.T) {
	Convey("Given a cache pointing at a closed port", t, func() {
		c := NewRedisCache("127.0.0.1:1", time.Minute)
		defer c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		Convey("Lookups report the connection error", func() {
			res, ok, err := c.Get(ctx, Key([]byte("x"), ""))
			So(err, ShouldNotBeNil)
			So(strings.HasPrefix(err.Error(), "redis get"), ShouldBeTrue)
			So(ok, ShouldBeFalse)
			So(res, ShouldBeNil)
		})

		Convey("Ping fails", func() {
			So(c.Ping(ctx), ShouldNotBeNil)
		})
	})
}
