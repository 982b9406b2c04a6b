package service

import (
	"context"
	"errors"
	"sync"

	"github.com/agrimarket/agridash/libs/log"
)

var (
	// ErrAlreadyStarted is returned when somebody tries to start an already
	// running service.
	ErrAlreadyStarted = errors.New("already started")
	// ErrAlreadyStopped is returned when somebody tries to stop an already
	// stopped service (without resetting it).
	ErrAlreadyStopped = errors.New("already stopped")
	// ErrNotStarted is returned when somebody tries to stop a not running
	// service.
	ErrNotStarted = errors.New("not started")
)

// Service defines a service that can be started, stopped, and reset.
type Service interface {
	// Start is called to start the service, which should run until
	// the context terminates. If the service is already running, Start
	// must report an error.
	Start(context.Context) error

	// Stop the service. Implementations of Stop must be safe to call
	// even when the service was never started.
	Stop() error

	// Return true if the service is running
	IsRunning() bool

	// String representation of the service
	String() string

	// Wait blocks until the service is stopped.
	Wait()
}

// Implementation describes the implementation that the
// BaseService implementation wraps.
type Implementation interface {
	Service

	// Called by the Services Start Method
	OnStart(context.Context) error

	// Called when the service's context is canceled.
	OnStop()
}

// serviceState is the lifecycle position of a BaseService. A service moves
// forward only: a stopped service cannot be restarted.
type serviceState uint8

const (
	stateIdle serviceState = iota
	stateRunning
	stateStopped
)

// BaseService holds the start/stop bookkeeping shared by the long-running
// parts of agridash, the dashboard API server and the metrics listener.
//
// Embedders implement OnStart and OnStop. OnStart runs at most once per
// successful Start; when it fails the service stays idle and Start may be
// retried. OnStop runs exactly once, either from Stop or when the context
// given to Start is canceled.
//
//	type APIServer struct {
//		service.BaseService
//		...
//	}
//
//	func NewAPIServer(logger log.Logger) *APIServer {
//		s := &APIServer{}
//		s.BaseService = *service.NewBaseService(logger, "API", s)
//		return s
//	}
type BaseService struct {
	logger log.Logger
	name   string
	impl   Implementation

	mtx   sync.Mutex
	state serviceState
	quit  chan struct{}
}

// NewBaseService creates a new BaseService.
func NewBaseService(logger log.Logger, name string, impl Implementation) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BaseService{
		logger: logger,
		name:   name,
		impl:   impl,
		quit:   make(chan struct{}),
	}
}

// Start calls OnStart and, once it succeeds, stops the service when ctx is
// done.
func (bs *BaseService) Start(ctx context.Context) error {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	switch bs.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		bs.logger.Error("not starting service; already stopped", "service", bs.name)
		return ErrAlreadyStopped
	}

	bs.logger.Info("starting service", "service", bs.name)
	if err := bs.impl.OnStart(ctx); err != nil {
		return err
	}
	bs.state = stateRunning

	go func() {
		select {
		case <-bs.quit:
		case <-ctx.Done():
			if err := bs.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
				bs.logger.Error("failed to stop service", "service", bs.name, "err", err)
			}
		}
	}()
	return nil
}

// Stop calls OnStop and releases Wait.
func (bs *BaseService) Stop() error {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	switch bs.state {
	case stateIdle:
		bs.logger.Error("not stopping service; not started yet", "service", bs.name)
		return ErrNotStarted
	case stateStopped:
		return ErrAlreadyStopped
	}

	bs.logger.Info("stopping service", "service", bs.name)
	bs.impl.OnStop()
	bs.state = stateStopped
	close(bs.quit)
	return nil
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (bs *BaseService) IsRunning() bool {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()
	return bs.state == stateRunning
}

// Wait blocks until the service is stopped.
func (bs *BaseService) Wait() { <-bs.quit }

func (bs *BaseService) String() string { return bs.name }
