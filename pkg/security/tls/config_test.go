package tls_test

import (
	"testing"

	"github.com/plgd-dev/websub-hub/pkg/config/property/urischeme"
	"github.com/plgd-dev/websub-hub/pkg/security/tls"
	"github.com/stretchr/testify/require"
)

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     tls.ClientConfig
		wantErr bool
	}{
		{
			name: "empty",
		},
		{
			name: "key pair",
			cfg: tls.ClientConfig{
				KeyFile:  "/path/to/key.pem",
				CertFile: "/path/to/cert.pem",
			},
		},
		{
			name: "missing keyfile",
			cfg: tls.ClientConfig{
				CertFile: "/path/to/cert.pem",
			},
			wantErr: true,
		},
		{
			name: "missing certfile",
			cfg: tls.ClientConfig{
				KeyFile: "/path/to/key.pem",
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

func TestClientConfigToTLSConfig(t *testing.T) {
	cfg := tls.ClientConfig{InsecureSkipVerify: true}
	tlsCfg, err := cfg.ToTLSConfig()
	require.NoError(t, err)
	require.True(t, tlsCfg.InsecureSkipVerify)
	require.Nil(t, tlsCfg.RootCAs)

	cfg = tls.ClientConfig{CAPool: []urischeme.URIScheme{"data:,notapem"}}
	_, err = cfg.ToTLSConfig()
	require.Error(t, err)
}

func TestServerConfig(t *testing.T) {
	cfg := tls.ServerConfig{}
	require.NoError(t, cfg.Validate())
	tlsCfg, err := cfg.ToTLSConfig()
	require.NoError(t, err)
	require.Nil(t, tlsCfg)

	cfg.Enabled = true
	require.Error(t, cfg.Validate())
	cfg.KeyFile = "/notexist/key.pem"
	cfg.CertFile = "/notexist/cert.pem"
	require.NoError(t, cfg.Validate())
	_, err = cfg.ToTLSConfig()
	require.Error(t, err)
}
