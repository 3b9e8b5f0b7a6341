package client

import (
	"fmt"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/security/tls"
)

type Config struct {
	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts. Zero means no limit.
	MaxIdleConns int `yaml:"maxIdleConns" json:"maxIdleConns"`
	// MaxConnsPerHost limits the total number of connections per host. Zero means no limit.
	MaxConnsPerHost int `yaml:"maxConnsPerHost" json:"maxConnsPerHost"`
	// MaxIdleConnsPerHost, if non-zero, controls the maximum idle
	// (keep-alive) connections to keep per-host.
	MaxIdleConnsPerHost int `yaml:"maxIdleConnsPerHost" json:"maxIdleConnsPerHost"`
	// IdleConnTimeout is the maximum amount of time an idle connection remains open. Zero means no limit.
	IdleConnTimeout time.Duration `yaml:"idleConnTimeout" json:"idleConnTimeout"`
	// Timeout of a whole request including reading of the body. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	TLS tls.ClientConfig `yaml:"tls" json:"tls"`
}

func MakeDefaultConfig() Config {
	return Config{
		MaxIdleConns:        16,
		MaxConnsPerHost:     32,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     time.Second * 30,
		Timeout:             time.Second * 10,
	}
}

func (c *Config) Validate() error {
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("maxIdleConns('%v')", c.MaxIdleConns)
	}
	if c.MaxConnsPerHost < 0 {
		return fmt.Errorf("maxConnsPerHost('%v')", c.MaxConnsPerHost)
	}
	if c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("maxIdleConnsPerHost('%v')", c.MaxIdleConnsPerHost)
	}
	if c.IdleConnTimeout < 0 {
		return fmt.Errorf("idleConnTimeout('%v')", c.IdleConnTimeout)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout('%v')", c.Timeout)
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls.%w", err)
	}
	return nil
}
