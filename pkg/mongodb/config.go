package mongodb

import (
	"fmt"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/security/tls"
)

type Config struct {
	URI             string           `yaml:"uri" json:"uri"`
	Database        string           `yaml:"database" json:"database"`
	MaxPoolSize     uint64           `yaml:"maxPoolSize" json:"maxPoolSize"`
	MaxConnIdleTime time.Duration    `yaml:"maxConnIdleTime" json:"maxConnIdleTime"`
	TLS             tls.ClientConfig `yaml:"tls" json:"tls"`
	UseTLS          bool             `yaml:"useTLS" json:"useTLS"`
}

func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("uri('%v')", c.URI)
	}
	if c.Database == "" {
		return fmt.Errorf("database('%v')", c.Database)
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls.%w", err)
	}
	return nil
}
