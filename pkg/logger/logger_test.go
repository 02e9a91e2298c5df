package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		ctx := context.Background()

		Convey("When initialised with the text handler", func() {
			var buf bytes.Buffer
			So(Init(Options{Output: &buf}), ShouldBeNil)
			So(SetLevelString("info"), ShouldBeNil)

			Get().Info(ctx, "bin clicked", String("bin", "0,10"), Int("years", 2))

			Convey("Then the record carries message and fields", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "bin clicked")
				So(out, ShouldContainSubstring, "bin=0,10")
				So(out, ShouldContainSubstring, "years=2")
			})
		})

		Convey("When initialised with the json handler and caller enabled", func() {
			var buf bytes.Buffer
			So(Init(Options{Output: &buf, Format: "json", WithCaller: true}), ShouldBeNil)

			Named("selection").Warn(ctx, "cache miss", Error(errors.New("boom")))

			Convey("Then the output is grouped json with a source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, `"msg":"cache miss"`)
				So(out, ShouldContainSubstring, `"selection":{`)
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When an unknown format is requested", func() {
			err := Init(Options{Format: "xml"})

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a logger at warn level", t, func() {
		var buf bytes.Buffer
		So(Init(Options{Output: &buf}), ShouldBeNil)
		So(SetLevelString("WARN"), ShouldBeNil)
		defer func() { _ = SetLevelString("info") }()

		l := Get().With(Bool("inclusive", true))
		l.Info(context.Background(), "hidden")
		l.Error(context.Background(), "shown")

		Convey("Then lower levels are dropped and With fields are kept", func() {
			out := buf.String()
			So(strings.Contains(out, "hidden"), ShouldBeFalse)
			So(out, ShouldContainSubstring, "shown")
			So(out, ShouldContainSubstring, "inclusive=true")
		})

		Convey("And unknown levels are rejected", func() {
			So(SetLevelString("chatty"), ShouldNotBeNil)
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := Nop()

		Convey("Then logging does not panic", func() {
			So(func() { l.Named("x").Error(context.Background(), "ignored") }, ShouldNotPanic)
			So(Sync(), ShouldBeNil)
		})
	})
}
