package listener

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/plgd-dev/websub-hub/pkg/fn"
	"github.com/plgd-dev/websub-hub/pkg/log"
)

// Server is a net.Listener which executes registered close functions on Close.
type Server struct {
	net.Listener
	secure    bool
	closeFunc fn.FuncList
}

// New listens on cfg.Addr, with TLS when it is enabled.
func New(cfg Config, logger log.Logger) (*Server, error) {
	tlsCfg, err := cfg.TLS.ToTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("cannot create tls config: %w", err)
	}
	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %v: %w", cfg.Addr, err)
	}
	if tlsCfg != nil {
		l = tls.NewListener(l, tlsCfg)
	}
	logger.Debugf("listening on %v", l.Addr())
	return &Server{
		Listener: l,
		secure:   tlsCfg != nil,
	}, nil
}

// Scheme returns https for TLS listeners, http otherwise.
func (s *Server) Scheme() string {
	if s.secure {
		return "https"
	}
	return "http"
}

// URL returns the base URL of the listener. Unspecified addresses are replaced by localhost.
func (s *Server) URL() string {
	host, port, err := net.SplitHostPort(s.Addr().String())
	if err != nil {
		return s.Scheme() + "://" + s.Addr().String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return s.Scheme() + "://" + net.JoinHostPort(host, port)
}

// AddCloseFunc adds a function to be called by the Close method.
func (s *Server) AddCloseFunc(f func()) {
	s.closeFunc.AddFunc(f)
}

func (s *Server) Close() error {
	err := s.Listener.Close()
	s.closeFunc.Execute()
	return err
}
