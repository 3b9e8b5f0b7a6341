package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		update  func(c *HubConfig)
		wantErr string
	}{
		{
			name:   "defaults",
			update: func(*HubConfig) {},
		},
		{
			name:    "lease default out of range",
			update:  func(c *HubConfig) { c.Lease.Default = time.Second },
			wantErr: "lease.default",
		},
		{
			name:    "no attempts",
			update:  func(c *HubConfig) { c.Distribution.MaxAttempts = 0 },
			wantErr: "distribution.maxAttempts",
		},
		{
			name:    "inverted delays",
			update:  func(c *HubConfig) { c.Distribution.MaxDelay = c.Distribution.MinDelay - 1 },
			wantErr: "distribution.maxDelay",
		},
		{
			name:    "callback query without key",
			update:  func(c *HubConfig) { c.Policy.CallbackQuery.Key = "" },
			wantErr: "policy.callbackQuery.key",
		},
		{
			name:    "deny list without file",
			update:  func(c *HubConfig) { c.Policy.DenyList.Enabled = true },
			wantErr: "policy.denyList.file",
		},
		{
			name:    "zero content size",
			update:  func(c *HubConfig) { c.MaxContentSize = 0 },
			wantErr: "maxContentSize",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MakeDefaultHubConfig()
			tt.update(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLeaseClamp(t *testing.T) {
	cfg := MakeDefaultHubConfig().Lease
	assert.Equal(t, int64(cfg.Default/time.Second), cfg.Clamp(0))
	assert.Equal(t, int64(cfg.Min/time.Second), cfg.Clamp(1))
	assert.Equal(t, int64(3600), cfg.Clamp(3600))
	assert.Equal(t, int64(cfg.Max/time.Second), cfg.Clamp(int64(cfg.Max/time.Second)*10))
}
