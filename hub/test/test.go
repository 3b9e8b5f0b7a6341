package test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plgd-dev/websub-hub/hub/service"
	storeConfig "github.com/plgd-dev/websub-hub/hub/store/config"
	storeMongo "github.com/plgd-dev/websub-hub/hub/store/mongodb"
	"github.com/plgd-dev/websub-hub/pkg/config/database"
	"github.com/plgd-dev/websub-hub/pkg/fsnotify"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/mongodb"
	"github.com/plgd-dev/websub-hub/test/config"
	"github.com/stretchr/testify/require"
)

func MakeStoreConfig() storeConfig.Config {
	cfg := storeConfig.Config{
		CleanUpExpiredSubscriptions: "* * * * * *",
		ExtendCronParserBySeconds:   true,
		Retention:                   time.Hour,
		Config: database.Config[*storeMongo.Config]{
			Use: database.Memory,
		},
	}
	if config.MONGODB_URI != "" {
		cfg.Use = database.MongoDB
		cfg.MongoDB = &storeMongo.Config{
			Mongo: mongodb.Config{
				URI:             config.MONGODB_URI,
				Database:        "websubHub_" + uuid.NewString()[:8],
				MaxPoolSize:     16,
				MaxConnIdleTime: time.Minute * 4,
			},
		}
	}
	return cfg
}

// MakeHubConfig returns the protocol defaults with short retry delays.
func MakeHubConfig() service.HubConfig {
	cfg := service.MakeDefaultHubConfig()
	cfg.Distribution.MinDelay = time.Millisecond * 50
	cfg.Distribution.MaxDelay = time.Millisecond * 200
	cfg.Discovery.CacheExpiration = time.Minute
	cfg.TaskQueue.GoPoolSize = 32
	cfg.TaskQueue.Size = 1024
	return cfg
}

func MakeConfig(t require.TestingT) service.Config {
	var cfg service.Config

	cfg.Log = config.MakeLogConfig()
	cfg.APIs.HTTP.Connection = config.MakeListenerConfig(config.LOCALHOST)
	cfg.APIs.HTTP.Server = config.MakeHttpServerConfig()
	cfg.Clients.Storage = MakeStoreConfig()
	cfg.Clients.HTTP = config.MakeHttpClientConfig()
	cfg.Clients.OpenTelemetryCollector = config.MakeOpenTelemetryCollectorClient()
	cfg.Hub = MakeHubConfig()

	err := cfg.Validate()
	require.NoError(t, err)

	return cfg
}

// New starts the hub in-process and returns it with its teardown.
func New(t require.TestingT, cfg service.Config) (*service.Service, func()) {
	ctx := context.Background()
	logger := log.NewLogger(cfg.Log)

	fileWatcher, err := fsnotify.NewWatcher(logger)
	require.NoError(t, err)

	s, err := service.New(ctx, cfg, fileWatcher, logger)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Serve()
	}()
	return s, func() {
		_ = s.Close()
		wg.Wait()
		err := fileWatcher.Close()
		require.NoError(t, err)
	}
}

func SetUp(t require.TestingT) (*service.Service, func()) {
	return New(t, MakeConfig(t))
}
