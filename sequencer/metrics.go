package sequencer

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is a subsystem shared by all metrics exposed by this
// package.
const MetricsSubsystem = "sequencer"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Sequences admitted, by intent kind.
	Started metrics.Counter
	// Sequences that reached Completed, by intent kind.
	Completed metrics.Counter
	// Sequences that reached Failed, by intent kind.
	Failed metrics.Counter
	// Sequences that needed an allowance and found it already sufficient.
	ApprovalsSkipped metrics.Counter
	// Seconds between submitting a write and observing its confirmation.
	ConfirmationLatency metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Started: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "started",
			Help:      "Number of admitted transaction sequences.",
		}, []string{"kind"}),
		Completed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "completed",
			Help:      "Number of transaction sequences that completed.",
		}, []string{"kind"}),
		Failed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "failed",
			Help:      "Number of transaction sequences that failed.",
		}, []string{"kind"}),
		ApprovalsSkipped: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "approvals_skipped",
			Help:      "Number of sequences whose allowance already covered the required amount.",
		}, []string{"kind"}),
		ConfirmationLatency: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "confirmation_latency_seconds",
			Help:      "Time between submitting a write and observing its confirmation.",
			Buckets:   stdprometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"tx_kind"}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Started:             discard.NewCounter(),
		Completed:           discard.NewCounter(),
		Failed:              discard.NewCounter(),
		ApprovalsSkipped:    discard.NewCounter(),
		ConfirmationLatency: discard.NewHistogram(),
	}
}
