package fault_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFault(t *testing.T) {
	Convey("Given structured errors", t, func() {
		Convey("New carries kind, op and context", func() {
			err := fault.Invalid("transfers", "bank", "bank %v is negative", -0.5)
			So(err.Kind, ShouldEqual, fault.KindInvalidParameters)
			So(err.Error(), ShouldEqual, "transfers: invalid_parameters: bank -0.5 is negative [param=bank]")
			So(errors.Is(err, fault.ErrInvalidParameters), ShouldBeTrue)
			So(errors.Is(err, fault.ErrValidation), ShouldBeFalse)
			So(fault.ContextOf(err)["param"], ShouldEqual, "bank")
			So(fault.MessageOf(err), ShouldEqual, "bank -0.5 is negative")
		})

		Convey("Wrap keeps the cause reachable", func() {
			cause := errors.New("connection refused")
			err := fault.Wrap(fault.KindUpstreamUnavailable, "fetch bootstrap", cause)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, fault.ErrUpstreamUnavailable), ShouldBeTrue)
			So(fault.KindOf(fmt.Errorf("sync: %w", err)), ShouldEqual, fault.KindUpstreamUnavailable)
			So(fault.Wrap(fault.KindInternal, "x", nil), ShouldBeNil)
		})

		Convey("KindOf classifies foreign errors", func() {
			So(fault.KindOf(nil), ShouldEqual, fault.Kind(""))
			So(fault.KindOf(context.Canceled), ShouldEqual, fault.KindCancelled)
			So(fault.KindOf(fmt.Errorf("x: %w", fault.ErrNoData)), ShouldEqual, fault.KindNoData)
			So(fault.KindOf(errors.New("boom")), ShouldEqual, fault.KindInternal)
			So(fault.Is(errors.New("boom"), fault.KindInternal), ShouldBeTrue)
		})

		Convey("With does not mutate the receiver", func() {
			base := fault.New(fault.KindValidation, "normalize", "bad record")
			derived := base.With("entity", "players")
			So(base.Context, ShouldBeNil)
			So(derived.Context["entity"], ShouldEqual, "players")
		})
	})
}
