package listener

import (
	"fmt"

	"github.com/plgd-dev/websub-hub/pkg/security/tls"
)

type Config struct {
	Addr string           `yaml:"address" json:"address"`
	TLS  tls.ServerConfig `yaml:"tls" json:"tls"`
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("address('%v')", c.Addr)
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls.%w", err)
	}
	return nil
}
