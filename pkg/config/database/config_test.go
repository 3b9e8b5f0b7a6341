package database_test

import (
	"testing"

	"github.com/plgd-dev/websub-hub/pkg/config/database"
	"github.com/plgd-dev/websub-hub/pkg/mongodb"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     database.Config[*mongodb.Config]
		want    database.DBUse
		wantErr bool
	}{
		{
			name: "default memory",
			want: database.Memory,
		},
		{
			name: "mongo case insensitive",
			cfg: database.Config[*mongodb.Config]{
				Use:     "MONGODB",
				MongoDB: &mongodb.Config{URI: "mongodb://localhost:27017", Database: "websub"},
			},
			want: database.MongoDB,
		},
		{
			name: "mongo missing",
			cfg: database.Config[*mongodb.Config]{
				Use: database.MongoDB,
			},
			wantErr: true,
		},
		{
			name: "mongo invalid",
			cfg: database.Config[*mongodb.Config]{
				Use:     database.MongoDB,
				MongoDB: &mongodb.Config{},
			},
			wantErr: true,
		},
		{
			name:    "unknown",
			cfg:     database.Config[*mongodb.Config]{Use: "cqlDB"},
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
			require.Equal(t, tt.want, tt.cfg.Use)
		})
	}
}
