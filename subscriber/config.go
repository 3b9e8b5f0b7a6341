package subscriber

import (
	"fmt"
	"net/url"

	"github.com/plgd-dev/websub-hub/pkg/net/http/server"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
)

type Config struct {
	Connection listener.Config `yaml:",inline" json:",inline"`
	Server     server.Config   `yaml:",inline" json:",inline"`
	// ExternalURL is the base URL the hub uses to reach the endpoint. It is derived from
	// the listener when empty.
	ExternalURL string `yaml:"externalURL" json:"externalUrl"`
}

func (c *Config) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.ExternalURL != "" {
		u, err := url.Parse(c.ExternalURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("externalURL('%v')", c.ExternalURL)
		}
	}
	return nil
}
