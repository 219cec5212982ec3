package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/varrock/clogboard/internal/scheduler"
	"github.com/varrock/clogboard/pkg/logger"
)

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler on a one second interval", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var runs atomic.Int32
		s := scheduler.New(time.Second)

		Convey("When started", func() {
			So(s.Start(ctx, func(context.Context) { runs.Add(1) }), ShouldBeNil)

			Convey("Then the job fires on schedule", func() {
				time.Sleep(2200 * time.Millisecond)
				So(runs.Load(), ShouldBeGreaterThanOrEqualTo, 1)

				stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
				defer stopCancel()
				So(s.Stop(stopCtx), ShouldBeNil)
			})

			Convey("Then stopping prevents further runs", func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
				defer stopCancel()
				So(s.Stop(stopCtx), ShouldBeNil)

				before := runs.Load()
				time.Sleep(1200 * time.Millisecond)
				So(runs.Load(), ShouldEqual, before)
			})

			Convey("Then a canceled context suppresses the job body", func() {
				cancel()
				time.Sleep(1200 * time.Millisecond)
				So(runs.Load(), ShouldEqual, 0)

				stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
				defer stopCancel()
				So(s.Stop(stopCtx), ShouldBeNil)
			})
		})
	})
}
