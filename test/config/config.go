package config

import (
	"os"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/log"
	httpClient "github.com/plgd-dev/websub-hub/pkg/net/http/client"
	"github.com/plgd-dev/websub-hub/pkg/net/http/server"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
	otelClient "github.com/plgd-dev/websub-hub/pkg/opentelemetry/collector/client"
	"go.uber.org/zap/zapcore"
)

const (
	TEST_TIMEOUT = time.Second * 30
	// LOCALHOST binds test listeners to a random port.
	LOCALHOST = "127.0.0.1:0"
)

// MONGODB_URI enables tests of the MongoDB store when it is set.
var MONGODB_URI = os.Getenv("TEST_MONGODB_URI")

func MakeLogConfig() log.Config {
	cfg := log.MakeDefaultConfig()
	cfg.Level = zapcore.DebugLevel
	cfg.Encoding = "console"
	return cfg
}

func MakeListenerConfig(addr string) listener.Config {
	return listener.Config{
		Addr: addr,
	}
}

func MakeHttpServerConfig() server.Config {
	return server.MakeDefaultConfig()
}

func MakeHttpClientConfig() httpClient.Config {
	cfg := httpClient.MakeDefaultConfig()
	cfg.Timeout = time.Second * 5
	return cfg
}

func MakeOpenTelemetryCollectorClient() otelClient.Config {
	return otelClient.Config{
		GRPC: otelClient.GRPCConfig{
			Enabled: false,
		},
	}
}
