package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	convey.Convey("Given the global logger", t, func() {
		convey.Convey("When initialized with defaults", func() {
			err := Init()
			convey.So(err, convey.ShouldBeNil)
			convey.So(Get(), convey.ShouldNotBeNil)
			convey.So(Sync(), convey.ShouldBeNil)
		})

		convey.Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When initialized with an unknown level", func() {
			err := Init(WithLevel("loud"))
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(SetLevelString("info"), convey.ShouldBeNil)
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	convey.Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So := convey.So
		So(Init(WithFormat(FormatJSON), WithWriter(&buf), WithLevel("info")), convey.ShouldBeNil)
		ctx := context.Background()

		convey.Convey("Info lines carry fields, component and source", func() {
			Named("pipeline").Named("store").Info(ctx, "committed", Int64("epoch", 7), Bool("persisted", true))
			out := buf.String()
			So(out, convey.ShouldContainSubstring, `"msg":"committed"`)
			So(out, convey.ShouldContainSubstring, `"epoch":7`)
			So(out, convey.ShouldContainSubstring, `"component":"pipeline.store"`)
			So(out, convey.ShouldContainSubstring, `"source":"logger_test.go`)
		})

		convey.Convey("Debug lines are suppressed at info level", func() {
			Get().Debug(ctx, "hidden")
			So(buf.Len(), convey.ShouldEqual, 0)
		})

		convey.Convey("Raising the level to debug lets them through", func() {
			So(SetLevelString("DEBUG"), convey.ShouldBeNil)
			Get().Debug(ctx, "visible")
			So(strings.Count(buf.String(), "visible"), convey.ShouldEqual, 1)
			So(SetLevelString("info"), convey.ShouldBeNil)
		})
	})
}

func TestNop(t *testing.T) {
	convey.Convey("Nop never writes and still supports Named", t, func() {
		l := Nop().Named("x")
		l.Error(context.Background(), "ignored", Error(nil))
		convey.So(l, convey.ShouldNotBeNil)
	})
}
