package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given a JSON logger at warn", t, func() {
		var buf bytes.Buffer
		log, err := New("warn", "json", &buf)
		So(err, ShouldBeNil)

		Convey("Info is suppressed and warnings are JSON", func() {
			log.Info("hidden")
			log.WithField("replay", "a.SC2Replay").Warn("shown")

			var m map[string]interface{}
			So(json.Unmarshal(buf.Bytes(), &m), ShouldBeNil)
			So(m["msg"], ShouldEqual, "shown")
			So(m["replay"], ShouldEqual, "a.SC2Replay")
		})
	})

	Convey("Bad settings are rejected", t, func() {
		_, err := New("loud", "text", &bytes.Buffer{})
		So(err, ShouldNotBeNil)
		_, err = New("info", "xml", &bytes.Buffer{})
		So(err, ShouldNotBeNil)
	})

	Convey("Discard writes nothing", t, func() {
		So(func() { Discard().Error("x") }, ShouldNotPanic)
	})
}
