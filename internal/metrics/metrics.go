package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Poll loop and fan-out instrumentation.
var (
	PollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plugmon_polls_total",
		Help: "Total number of upstream poll attempts",
	})

	PollFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plugmon_poll_failures_total",
		Help: "Total number of failed upstream poll attempts",
	})

	ConsecutiveFailures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plugmon_consecutive_failures",
		Help: "Current run of consecutive failed polls",
	})

	LastSampleTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plugmon_last_sample_timestamp_seconds",
		Help: "Unix timestamp of the last successfully persisted sample",
	})

	ConnectedSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plugmon_connected_subscribers",
		Help: "Number of currently connected live subscribers",
	})
)

// Register installs all collectors on the default registry.
func Register() {
	prometheus.MustRegister(
		PollsTotal,
		PollFailuresTotal,
		ConsecutiveFailures,
		LastSampleTimestamp,
		ConnectedSubscribers,
	)
}
