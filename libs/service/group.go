package service

import (
	"context"
	"fmt"

	"github.com/agrimarket/agridash/libs/log"
)

// groupImpl starts a fixed set of services together and stops them in
// reverse order.
type groupImpl struct {
	*BaseService
	logger   log.Logger
	services []Service
}

// NewGroup returns a Service that runs all of the given services for as long
// as it is running itself.
func NewGroup(logger log.Logger, name string, services ...Service) Service {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	srv := &groupImpl{
		logger:   logger,
		services: services,
	}
	srv.BaseService = NewBaseService(logger, name, srv)
	return srv
}

func (gs *groupImpl) OnStart(ctx context.Context) error {
	for idx, srv := range gs.services {
		if err := srv.Start(ctx); err != nil {
			// unwind whatever already came up
			for i := idx - 1; i >= 0; i-- {
				_ = gs.services[i].Stop()
			}
			return fmt.Errorf("starting %s: %w", srv, err)
		}
	}
	return nil
}

func (gs *groupImpl) OnStop() {
	for idx := len(gs.services) - 1; idx >= 0; idx-- {
		srv := gs.services[idx]
		if !srv.IsRunning() {
			continue
		}
		if err := srv.Stop(); err != nil {
			gs.logger.Error(
				fmt.Sprintf("problem stopping service %d of %d", idx+1, len(gs.services)),
				"service", srv.String(),
				"err", err)
		}
	}
}
