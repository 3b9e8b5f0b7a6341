package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/config"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *testConfig) Validate() error {
	return nil
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte("address: localhost:8080\ntimeout: 5s\n"), 0o600)
	require.NoError(t, err)

	var cfg testConfig
	err = config.Read(path, &cfg)
	require.NoError(t, err)
	require.Equal(t, "localhost:8080", cfg.Address)
	require.Equal(t, time.Second*5, cfg.Timeout)
	require.Contains(t, config.ToString(cfg), "localhost:8080")
}

func TestParseUnknownField(t *testing.T) {
	var cfg testConfig
	err := config.Parse([]byte("address: a\nunknown: b\n"), &cfg)
	require.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	var cfg testConfig
	err := config.Read(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	require.Error(t, err)
}
