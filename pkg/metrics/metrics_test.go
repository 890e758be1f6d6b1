package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test-prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))
			manager.liveSessions.Inc()

			Convey("Then its metrics are registered there", func() {
				So(manager, ShouldNotBeNil)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("ns"),
				WithSubsystem("sub"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.staleResponses.Inc()

			Convey("Then names and labels reflect the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "ns_sub_pre_stale_responses_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
				So(manager.refreshInterval, ShouldEqual, 10*time.Second)
			})
		})

		Convey("When metrics are disabled", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(registry))
			manager.liveSubmissions.Inc()

			Convey("Then nothing is exported on the given registry", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording analyses", func() {
			before := testutil.ToFloat64(globalManager.analysesTotal.WithLabelValues("success"))
			emptyBefore := testutil.ToFloat64(globalManager.emptyHistories)
			RecordAnalysis("success", 120)
			RecordContestsAnalyzed(0)
			RecordContestsAnalyzed(12)

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.analysesTotal.WithLabelValues("success")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.emptyHistories), ShouldEqual, emptyBefore+1)
			})
		})

		Convey("When sessions open and close", func() {
			start := testutil.ToFloat64(globalManager.liveSessions)
			SessionOpened()
			SessionOpened()
			SessionClosed()

			Convey("Then the gauge tracks the difference", func() {
				So(testutil.ToFloat64(globalManager.liveSessions), ShouldEqual, start+1)
			})
		})

		Convey("When recording upstream activity", func() {
			retries := testutil.ToFloat64(globalManager.upstreamRetries)
			stale := testutil.ToFloat64(globalManager.staleResponses)

			So(func() {
				RecordUpstreamRequest("2xx", 180)
				RecordUpstreamRequest("5xx", 40)
				RecordUpstreamRetry()
				RecordUpstreamFailure("graphql")
				RecordUpstreamBodySize(2048)
				RecordProxyRequest("2xx")
				RecordChartRendered("png")
				RecordLiveSubmission()
				RecordStaleResponse()
			}, ShouldNotPanic)

			So(testutil.ToFloat64(globalManager.upstreamRetries), ShouldEqual, retries+1)
			So(testutil.ToFloat64(globalManager.staleResponses), ShouldEqual, stale+1)
		})

		Convey("When recording HTTP and error metrics", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordHTTPRequest("analytics", "GET", "200")
					RecordHTTPRequestDuration("analytics", "GET", "200", 15.0)
					RecordErrorByComponent("upstream", "timeout")
					RecordErrorByType("server_error", "high")
					RecordErrorByEndpoint("proxy", "POST", "server_error")
					RecordErrorLatency("http", "server_error", 50.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording system metrics", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
					RecordSystemGCPauseTime(0.2)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestRefreshInterval(t *testing.T) {
	Convey("Given the gauge refresh interval", t, func() {
		Convey("Then the global manager uses the default", func() {
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})

		Convey("Then a manager honours WithRefreshInterval", func() {
			m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithRefreshInterval(3*time.Second))
			So(m.RefreshInterval(), ShouldEqual, 3*time.Second)
		})

		Convey("Then non-positive intervals are ignored", func() {
			m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithRefreshInterval(0))
			So(m.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}

func TestStatusClass(t *testing.T) {
	Convey("Given HTTP status codes", t, func() {
		So(StatusClass(0), ShouldEqual, "error")
		So(StatusClass(101), ShouldEqual, "1xx")
		So(StatusClass(200), ShouldEqual, "2xx")
		So(StatusClass(302), ShouldEqual, "3xx")
		So(StatusClass(404), ShouldEqual, "4xx")
		So(StatusClass(503), ShouldEqual, "5xx")
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordAnalysis("fetch_failed", 3)
		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)

		names := make([]string, 0, len(families))
		for _, f := range families {
			names = append(names, f.GetName())
		}

		Convey("Then it exposes contestlens metrics only", func() {
			joined := strings.Join(names, ",")
			So(joined, ShouldContainSubstring, "contestlens_dashboard_analyses_total")
			So(joined, ShouldNotContainSubstring, "go_goroutines")
		})
	})
}
