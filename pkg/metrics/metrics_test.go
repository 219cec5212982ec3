package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/varrock/clogboard/pkg/metrics"
)

func TestMetrics(t *testing.T) {
	Convey("Given the metrics package", t, func() {
		Convey("When creating a manager on a fresh registry", func() {
			reg := prometheus.NewRegistry()
			m := metrics.NewManager(metrics.WithRegistry(reg), metrics.WithNamespace("test"))

			Convey("Then construction should succeed and register metrics", func() {
				So(m, ShouldNotBeNil)
				families, err := reg.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When recording on the global manager", func() {
			Convey("Then helpers should not panic", func() {
				So(func() {
					metrics.RecordFetch()
					metrics.RecordFetchError("transient")
					metrics.RecordFetchLatency(0.2)
					metrics.RecordFetchRetry()
					metrics.RecordRateLimitWait()
					metrics.RecordRateLimitCooldown()
					metrics.RecordCacheHit()
					metrics.RecordCacheMiss()
					metrics.RecordSyncPass("manual")
					metrics.RecordSyncDuration(1.5)
					metrics.RecordParticipantProcessed()
					metrics.RecordParticipantSkipped()
					metrics.RecordSyncError()
					metrics.RecordPublishCreate()
					metrics.RecordPublishEdit()
					metrics.RecordPublishError()
					metrics.RecordStoreError()
					metrics.RecordStoreReconnect()
				}, ShouldNotPanic)
			})
		})

		Convey("When fetching the global registry", func() {
			Convey("Then it should gather without error", func() {
				_, err := metrics.GetRegistry().Gather()
				So(err, ShouldBeNil)
			})
		})
	})
}
