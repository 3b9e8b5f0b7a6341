package listener_test

import (
	"net"
	"testing"

	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cfg := listener.Config{Addr: "localhost:0"}
	require.NoError(t, cfg.Validate())
	l, err := listener.New(cfg, log.Get())
	require.NoError(t, err)
	require.Equal(t, "http", l.Scheme())
	closed := false
	l.AddCloseFunc(func() { closed = true })
	err = l.Close()
	require.NoError(t, err)
	require.True(t, closed)
}

func TestConfigValidate(t *testing.T) {
	cfg := listener.Config{}
	require.Error(t, cfg.Validate())
	cfg.Addr = "localhost:0"
	cfg.TLS.Enabled = true
	require.Error(t, cfg.Validate())
}

func TestURL(t *testing.T) {
	l, err := listener.New(listener.Config{Addr: "0.0.0.0:0"}, log.Get())
	require.NoError(t, err)
	defer func() {
		_ = l.Close()
	}()
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.Equal(t, "http://localhost:"+port, l.URL())
}
