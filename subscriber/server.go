package subscriber

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/net/http/server"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
)

// Server serves the Endpoint.
type Server struct {
	server   *http.Server
	listener *listener.Server
	endpoint *Endpoint
}

func New(config Config, logger log.Logger) (*Server, error) {
	listener, err := listener.New(config.Connection, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot create subscriber listener: %w", err)
	}
	externalURL := config.ExternalURL
	if externalURL == "" {
		externalURL = listener.URL()
	}
	endpoint := NewEndpoint(externalURL, logger)
	return &Server{
		server:   server.New(config.Server, endpoint.Handler()),
		listener: listener,
		endpoint: endpoint,
	}, nil
}

func (s *Server) Endpoint() *Endpoint {
	return s.endpoint
}

// Serve blocks until Close.
func (s *Server) Serve() error {
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if errC := s.listener.Close(); errC != nil && !errors.Is(errC, net.ErrClosed) && err == nil {
		err = errC
	}
	return err
}
