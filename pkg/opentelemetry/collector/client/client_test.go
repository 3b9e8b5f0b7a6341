package client_test

import (
	"context"
	"testing"

	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/opentelemetry/collector/client"
	"github.com/stretchr/testify/require"
)

func TestNewDisabled(t *testing.T) {
	c, err := client.New(context.Background(), client.Config{}, "websub-hub", log.Get())
	require.NoError(t, err)
	require.NotNil(t, c.GetTracerProvider())
	closed := false
	c.AddCloseFunc(func() { closed = true })
	c.Close()
	require.True(t, closed)
}

func TestNewEnabled(t *testing.T) {
	cfg := client.Config{GRPC: client.GRPCConfig{Enabled: true, Address: "localhost:4317", Insecure: true}, SampleRatio: 0.5}
	require.NoError(t, cfg.Validate())
	c, err := client.New(context.Background(), cfg, "websub-hub", log.Get())
	require.NoError(t, err)
	require.NotNil(t, c.GetTracerProvider())
	c.Close()
}

func TestConfigValidate(t *testing.T) {
	cfg := client.Config{GRPC: client.GRPCConfig{Enabled: true}}
	require.Error(t, cfg.Validate())
	cfg = client.Config{SampleRatio: 1.5}
	require.Error(t, cfg.Validate())
	cfg = client.Config{SampleRatio: 0.25}
	require.NoError(t, cfg.Validate())
}
