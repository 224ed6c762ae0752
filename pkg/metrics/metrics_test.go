package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func familyNames(reg *prometheus.Registry) map[string]bool {
	names := map[string]bool{}
	families, err := reg.Gather()
	So(err, ShouldBeNil)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(reg),
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithConstLabels(map[string]string{"env": "test"}),
			WithHistogramBuckets([]float64{1, 10, 100}),
		)
		So(m, ShouldNotBeNil)

		Convey("When collectors are touched", func() {
			m.syncRuns.WithLabelValues("committed").Inc()
			m.cacheRequests.WithLabelValues("captaincy", "hit").Inc()
			m.syncEpoch.Set(3)

			Convey("Then they are exposed with the configured prefix", func() {
				names := familyNames(reg)
				So(names["test_unit_sync_runs_total"], ShouldBeTrue)
				So(names["test_unit_cache_requests_total"], ShouldBeTrue)
				So(names["test_unit_sync_epoch"], ShouldBeTrue)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global registry", t, func() {
		Convey("Recording through package functions never panics", func() {
			So(func() {
				RecordSyncRun("committed", 120)
				UpdateSyncEpoch(4, 1_700_000_000)
				UpdateSyncEntities("players", 600)
				RecordDroppedRecords("players", 2)
				RecordDroppedRecords("teams", 0)
				RecordSubset("fixtures", "carried")
				RecordUpstreamRequest("bootstrap-static", "ok", 80)
				RecordUpstreamRetry("fixtures")
				RecordCacheRequest("form", "miss")
				UpdateCacheEntries(10)
				RecordCacheEviction(1)
				RecordAnalyticsLatency("form", 0.8)
				RecordAnalyticsError("transfers", "invalid_parameters")
				UpdateQueueSize(1)
				UpdateQueueCapacity(1)
				RecordQueueEnqueue()
				RecordQueueDropped("full")
				RecordSchedulerTrigger("weekday")
				RecordHTTPRequest("/v1/status", "GET", "200")
				RecordHTTPRequestDuration("/v1/status", "GET", "200", 2)
				UpdateWebsocketClients(0)
				RecordToolCall("get_player_info", "ok")
				RecordNotification("telegram", "sent")
				RecordErrorByComponent("pipeline", "validation_error")
				UpdateSystemStats()
			}, ShouldNotPanic)

			names := familyNames(GetRegistry())
			So(names["fpl_analytics_sync_runs_total"], ShouldBeTrue)
			So(names["fpl_analytics_system_goroutine_count"], ShouldBeTrue)
		})
	})
}
