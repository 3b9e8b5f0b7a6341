package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/plgd-dev/websub-hub/pkg/config/property/urischeme"
)

// ClientConfig configures the TLS side of outbound connections.
type ClientConfig struct {
	CAPool             []urischeme.URIScheme `yaml:"caPool" json:"caPool" description:"file path to the root certificates in PEM format"`
	KeyFile            urischeme.URIScheme   `yaml:"keyFile" json:"keyFile" description:"file name of private key in PEM format"`
	CertFile           urischeme.URIScheme   `yaml:"certFile" json:"certFile" description:"file name of certificate in PEM format"`
	UseSystemCAPool    bool                  `yaml:"useSystemCAPool" json:"useSystemCaPool" description:"use system certification pool"`
	InsecureSkipVerify bool                  `yaml:"insecureSkipVerify" json:"insecureSkipVerify"`
}

func (c *ClientConfig) Validate() error {
	if (c.KeyFile == "") != (c.CertFile == "") {
		return fmt.Errorf("keyFile('%v'), certFile('%v') - both or none must be set", c.KeyFile, c.CertFile)
	}
	return nil
}

// ToTLSConfig reads the referenced certificates. Without CAPool the system pool is used.
func (c *ClientConfig) ToTLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec
	}
	if len(c.CAPool) > 0 {
		pool := x509.NewCertPool()
		if c.UseSystemCAPool {
			systemPool, err := x509.SystemCertPool()
			if err != nil {
				return nil, fmt.Errorf("cannot load system cert pool: %w", err)
			}
			pool = systemPool
		}
		for _, ca := range c.CAPool {
			data, err := ca.Read()
			if err != nil {
				return nil, fmt.Errorf("cannot read caPool('%v'): %w", ca, err)
			}
			if !pool.AppendCertsFromPEM(data) {
				return nil, fmt.Errorf("caPool('%v') - no certificate found", ca)
			}
		}
		cfg.RootCAs = pool
	}
	if c.CertFile != "" {
		cert, err := loadKeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// ServerConfig configures the TLS side of a listener.
type ServerConfig struct {
	Enabled  bool                `yaml:"enabled" json:"enabled"`
	KeyFile  urischeme.URIScheme `yaml:"keyFile" json:"keyFile" description:"file name of private key in PEM format"`
	CertFile urischeme.URIScheme `yaml:"certFile" json:"certFile" description:"file name of certificate in PEM format"`
}

func (c *ServerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.KeyFile == "" {
		return fmt.Errorf("keyFile('%v')", c.KeyFile)
	}
	if c.CertFile == "" {
		return fmt.Errorf("certFile('%v')", c.CertFile)
	}
	return nil
}

// ToTLSConfig returns nil when TLS is disabled.
func (c *ServerConfig) ToTLSConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	cert, err := loadKeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func loadKeyPair(certFile, keyFile urischeme.URIScheme) (tls.Certificate, error) {
	certPEM, err := certFile.Read()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cannot read certFile('%v'): %w", certFile, err)
	}
	keyPEM, err := keyFile.Read()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cannot read keyFile('%v'): %w", keyFile, err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cannot parse key pair: %w", err)
	}
	return cert, nil
}
