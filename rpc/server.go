// Package rpc serves the dashboard API: JSON reads of the marketplace state,
// writes that start transaction sequences, and a websocket stream of the
// sequencer's state transitions.
package rpc

import (
	"context"
	"errors"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/cors"

	"github.com/agrimarket/agridash/analysis"
	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/events"
	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/libs/service"
	"github.com/agrimarket/agridash/marketplace"
	"github.com/agrimarket/agridash/sequencer"
	"github.com/agrimarket/agridash/types"
)

// Sequencer runs transaction sequences.
type Sequencer interface {
	ExecuteAsync(ctx context.Context, intent types.Intent) (<-chan *sequencer.Result, error)
	Reset() []types.TxHandle
	Status() sequencer.Status
}

// State serves the cached marketplace snapshot.
type State interface {
	Snapshot(ctx context.Context) (*marketplace.Snapshot, error)
	Invalidate(ctx context.Context) error
}

// ProductReader reads a single product from the chain.
type ProductReader interface {
	Product(ctx context.Context, id *big.Int) (types.Product, error)
}

// Journal lists submitted transactions.
type Journal interface {
	List(limit int) ([]types.TxRecord, error)
	Pending() ([]types.TxRecord, error)
}

// Analyzer produces market-analysis reports.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
}

// Environment holds everything the handlers depend on.
type Environment struct {
	Account   common.Address
	ChainID   *big.Int
	Decimals  uint8
	Symbol    string
	Sequencer Sequencer
	State     State
	Products  ProductReader
	Journal   Journal
	// Analyzer is nil when market analysis is disabled.
	Analyzer    Analyzer
	EventSwitch events.EventSwitch
}

// Server is the dashboard API service.
type Server struct {
	service.BaseService

	cfg     *config.RPCConfig
	env     *Environment
	logger  log.Logger
	metrics *Metrics
	wm      *WebsocketManager

	origins originPolicy

	// ctx outlives requests; sequences started over the API run under it.
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	srv      *http.Server
	listener net.Listener
}

// ServerOption sets an optional parameter on the Server.
type ServerOption func(*Server)

// WithMetrics sets the API metrics.
func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer returns a Server. It does not listen until started.
func NewServer(cfg *config.RPCConfig, env *Environment, logger log.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:     cfg,
		env:     env,
		logger:  logger,
		metrics: NopMetrics(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	s.origins = newOriginPolicy(cfg.CORSAllowedOrigins)
	s.wm = NewWebsocketManager(logger, env.EventSwitch, s.metrics, s.origins.Allowed)
	s.BaseService = *service.NewBaseService(logger, "API", s)
	return s
}

// Handler returns the full middleware chain around the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var h http.Handler = guardHandler(mux, s.origins)
	if s.cfg.IsCorsEnabled() {
		h = cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSAllowedOrigins,
			AllowedMethods: s.cfg.CORSAllowedMethods,
			AllowedHeaders: s.cfg.CORSAllowedHeaders,
		}).Handler(h)
	}
	h = maxBytesHandler(h, s.cfg.MaxBodyBytes)
	return RecoverAndLogHandler(h, s.logger, s.metrics)
}

// OnStart implements service.Service.
func (s *Server) OnStart(ctx context.Context) error {
	listener, err := Listen(s.cfg.ListenAddress, s.cfg.MaxOpenConnections)
	if err != nil {
		return err
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}

	s.logger.Info("serving dashboard API", "addr", listener.Addr())
	go func() {
		if err := s.srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "err", err)
		}
	}()
	return nil
}

// OnStop implements service.Service. It returns once every sequence started
// over the API has stopped.
func (s *Server) OnStop() {
	s.cancel()
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shut down API server", "err", err)
		}
	}
	s.inflight.Wait()
}

// Addr is the address the server listens on, once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", s.status)
	mux.HandleFunc("GET /products", s.products)
	mux.HandleFunc("GET /products/{id}", s.product)
	mux.HandleFunc("GET /farmer/products", s.farmerProducts)
	mux.HandleFunc("GET /orders", s.orders)
	mux.HandleFunc("GET /bids", s.bids)
	mux.HandleFunc("GET /bids/incoming", s.incomingBids)
	mux.HandleFunc("GET /fee", s.fee)
	mux.HandleFunc("GET /balance", s.balance)
	mux.HandleFunc("GET /transactions", s.transactions)

	mux.HandleFunc("POST /orders", s.placeOrder)
	mux.HandleFunc("POST /bids", s.placeBid)
	mux.HandleFunc("POST /bids/{id}/accept", s.acceptBid)
	mux.HandleFunc("POST /bids/{id}/complete", s.completeBid)
	mux.HandleFunc("POST /products", s.createProduct)
	mux.HandleFunc("POST /fee", s.setFee)
	mux.HandleFunc("POST /transfer", s.transfer)
	mux.HandleFunc("POST /profile", s.setProfile)

	mux.HandleFunc("POST /sequence/reset", s.reset)
	mux.HandleFunc("POST /analysis", s.analyze)
	mux.HandleFunc("GET /websocket", s.wm.WebsocketHandler)
}
