package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/plgd-dev/websub-hub/pkg/fn"
	"github.com/plgd-dev/websub-hub/pkg/log"
)

type APIService interface {
	Serve() error
	Close() error
}

// Service runs API services until a termination signal, Close, or the first
// service which stops serving on its own.
type Service struct {
	services []APIService
	logger   log.Logger
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	closeFn  fn.FuncList
}

func New(logger log.Logger, services ...APIService) *Service {
	return &Service{
		services: services,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Add adds other API services. This needs to be called before Serve.
func (s *Service) Add(services ...APIService) {
	s.services = append(s.services, services...)
}

// AddCloseFunc adds a function called after all services are closed.
func (s *Service) AddCloseFunc(f func()) {
	s.closeFn.AddFunc(f)
}

type serveResult struct {
	index int
	err   error
}

func (s *Service) Serve() error {
	defer close(s.done)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	results := make(chan serveResult, len(s.services))
	for i, apiService := range s.services {
		go func(i int, apiService APIService) {
			results <- serveResult{index: i, err: apiService.Serve()}
		}(i, apiService)
	}

	var errors *multierror.Error
	running := len(s.services)
	select {
	case <-ctx.Done():
		s.logger.Infof("shutting down: signal received")
	case <-s.stop:
		s.logger.Debugf("shutting down: closed")
	case r := <-results:
		running--
		if r.err != nil {
			errors = multierror.Append(errors, fmt.Errorf("service[%v] stopped: %w", r.index, r.err))
		}
		s.logger.Warnf("shutting down: service[%v] stopped serving", r.index)
	}
	for _, apiService := range s.services {
		if err := apiService.Close(); err != nil {
			errors = multierror.Append(errors, err)
		}
	}
	for ; running > 0; running-- {
		if r := <-results; r.err != nil {
			errors = multierror.Append(errors, fmt.Errorf("service[%v] stopped: %w", r.index, r.err))
		}
	}
	s.closeFn.Execute()
	return errors.ErrorOrNil()
}

// Close stops Serve and waits for it.
func (s *Service) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}
