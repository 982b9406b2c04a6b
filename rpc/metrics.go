package rpc

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is a subsystem shared by all metrics exposed by this
// package.
const MetricsSubsystem = "api"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Requests served, by route pattern and status code.
	Requests metrics.Counter
	// Request latency in seconds, by route pattern.
	RequestDuration metrics.Histogram
	// Open websocket connections.
	WebsocketConnections metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "requests",
			Help:      "Number of API requests served.",
		}, []string{"route", "code"}),
		RequestDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent serving API requests.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{"route"}),
		WebsocketConnections: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "websocket_connections",
			Help:      "Number of open websocket connections.",
		}, nil),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Requests:             discard.NewCounter(),
		RequestDuration:      discard.NewHistogram(),
		WebsocketConnections: discard.NewGauge(),
	}
}
