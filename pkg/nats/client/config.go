package client

import (
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/plgd-dev/websub-hub/pkg/security/tls"
)

type Config struct {
	URL            string           `yaml:"url" json:"url"`
	FlusherTimeout time.Duration    `yaml:"flusherTimeout" json:"flusherTimeout"`
	UseTLS         bool             `yaml:"useTLS" json:"useTLS"`
	TLS            tls.ClientConfig `yaml:"tls" json:"tls"`
	Options        []nats.Option    `yaml:"-" json:"-"`
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url('%v')", c.URL)
	}
	if c.FlusherTimeout < 0 {
		return fmt.Errorf("flusherTimeout('%v')", c.FlusherTimeout)
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls.%w", err)
	}
	return nil
}
