package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/libs/service"
)

// MetricsServer exposes the default Prometheus registry under /metrics.
type MetricsServer struct {
	service.BaseService

	cfg    *config.InstrumentationConfig
	logger log.Logger

	srv      *http.Server
	listener net.Listener
}

// NewMetricsServer returns a MetricsServer. It does not listen until started.
func NewMetricsServer(cfg *config.InstrumentationConfig, logger log.Logger) *MetricsServer {
	ms := &MetricsServer{cfg: cfg, logger: logger}
	ms.BaseService = *service.NewBaseService(logger, "Prometheus", ms)
	return ms
}

// OnStart implements service.Service.
func (ms *MetricsServer) OnStart(ctx context.Context) error {
	listener, err := Listen(ms.cfg.PrometheusListenAddr, ms.cfg.MaxOpenConnections)
	if err != nil {
		return err
	}
	ms.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{MaxRequestsInFlight: ms.cfg.MaxOpenConnections},
		),
	))
	ms.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := ms.srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			ms.logger.Error("Prometheus HTTP server Serve", "err", err)
		}
	}()
	return nil
}

// OnStop implements service.Service.
func (ms *MetricsServer) OnStop() {
	if ms.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ms.srv.Shutdown(ctx); err != nil {
		ms.logger.Error("Prometheus HTTP server Shutdown", "err", err)
	}
}
