package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
)

func TestRetryPolicy(t *testing.T) {
	convey.Convey("Given a three-attempt policy without delays", t, func() {
		ctx := context.Background()
		policy := ingest.RetryPolicy{MaxAttempts: 3}
		calls := 0

		convey.Convey("A call that eventually succeeds reports its attempts", func() {
			n, err := policy.Do(ctx, "fixtures", func(context.Context) error {
				calls++
				if calls < 2 {
					return errUpstreamDown
				}
				return nil
			})
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 2)
		})

		convey.Convey("Exhaustion is reported as upstream unavailable", func() {
			n, err := policy.Do(ctx, "fixtures", func(context.Context) error {
				calls++
				return errUpstreamDown
			})
			convey.So(n, convey.ShouldEqual, 3)
			convey.So(calls, convey.ShouldEqual, 3)
			convey.So(fault.Is(err, fault.KindUpstreamUnavailable), convey.ShouldBeTrue)
			convey.So(errors.Is(err, errUpstreamDown), convey.ShouldBeTrue)
			convey.So(fault.ContextOf(err)["attempts"], convey.ShouldEqual, 3)
		})

		convey.Convey("Permanent errors stop immediately", func() {
			_, err := policy.Do(ctx, "fixtures", func(context.Context) error {
				calls++
				return ingest.Permanent(errors.New("bad request"))
			})
			convey.So(calls, convey.ShouldEqual, 1)
			convey.So(ingest.IsPermanent(err), convey.ShouldBeTrue)
			convey.So(ingest.Permanent(nil), convey.ShouldBeNil)
		})

		convey.Convey("Each attempt gets its own deadline", func() {
			policy.AttemptTimeout = 10 * time.Millisecond
			_, err := policy.Do(ctx, "fixtures", func(actx context.Context) error {
				calls++
				<-actx.Done()
				return actx.Err()
			})
			convey.So(calls, convey.ShouldEqual, 3)
			convey.So(fault.Is(err, fault.KindUpstreamUnavailable), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a policy with long backoff", t, func() {
		policy := ingest.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		convey.Convey("Cancellation interrupts the wait", func() {
			start := time.Now()
			n, err := policy.Do(ctx, "bootstrap-static", func(context.Context) error { return errUpstreamDown })
			convey.So(fault.Is(err, fault.KindCancelled), convey.ShouldBeTrue)
			convey.So(n, convey.ShouldEqual, 1)
			convey.So(time.Since(start), convey.ShouldBeLessThan, time.Second)
		})
	})
}
