package service_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/service"
	"github.com/stretchr/testify/require"
)

type apiService struct {
	done      chan struct{}
	closeOnce sync.Once
	serveErr  error
	closeErr  error
}

func newAPIService() *apiService {
	return &apiService{done: make(chan struct{})}
}

func (s *apiService) Serve() error {
	if s.serveErr != nil {
		return s.serveErr
	}
	<-s.done
	return nil
}

func (s *apiService) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return s.closeErr
}

func TestServiceClose(t *testing.T) {
	a := newAPIService()
	b := newAPIService()
	b.closeErr = errors.New("close failed")
	s := service.New(log.Get(), a)
	s.Add(b)
	closed := false
	s.AddCloseFunc(func() { closed = true })

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve()
	}()
	require.NoError(t, s.Close())
	err := <-errCh
	require.Error(t, err)
	require.Contains(t, err.Error(), "close failed")
	require.True(t, closed)
}

func TestServiceStopsWhenServeFails(t *testing.T) {
	a := newAPIService()
	b := newAPIService()
	b.serveErr = errors.New("address in use")
	s := service.New(log.Get(), a, b)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve()
	}()
	select {
	case err := <-errCh:
		require.Error(t, err)
		require.Contains(t, err.Error(), "address in use")
	case <-time.After(time.Second * 5):
		require.FailNow(t, "serve did not stop")
	}
	select {
	case <-a.done:
	default:
		require.FailNow(t, "running service was not closed")
	}
}
