package config_test

import (
	"context"
	"testing"

	"github.com/plgd-dev/websub-hub/hub/store/config"
	"github.com/plgd-dev/websub-hub/hub/store/memory"
	storeMongo "github.com/plgd-dev/websub-hub/hub/store/mongodb"
	"github.com/plgd-dev/websub-hub/pkg/config/database"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{
			name: "memory",
			cfg: config.Config{
				CleanUpExpiredSubscriptions: "*/5 * * * *",
			},
		},
		{
			name: "invalid cron",
			cfg: config.Config{
				CleanUpExpiredSubscriptions: "every minute",
			},
			wantErr: true,
		},
		{
			name: "negative retention",
			cfg: config.Config{
				Retention: -1,
			},
			wantErr: true,
		},
		{
			name: "mongo without config",
			cfg: config.Config{
				Config: database.Config[*storeMongo.Config]{Use: database.MongoDB},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewStoreMemory(t *testing.T) {
	cfg := config.Config{}
	require.NoError(t, cfg.Validate())
	s, err := config.NewStore(context.Background(), cfg, log.Get(), trace.NewNoopTracerProvider())
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, s)
	require.NoError(t, s.Close(context.Background()))
}
