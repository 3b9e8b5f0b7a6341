package conformance

import (
	"fmt"
	"net/url"
	"time"

	"github.com/plgd-dev/websub-hub/conformance/publisher"
	"github.com/plgd-dev/websub-hub/pkg/log"
	httpClient "github.com/plgd-dev/websub-hub/pkg/net/http/client"
	"github.com/plgd-dev/websub-hub/pkg/net/http/server"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
	"github.com/plgd-dev/websub-hub/subscriber"
)

type Config struct {
	Log        log.Config        `yaml:"log" json:"log"`
	HubURL     string            `yaml:"hubURL" json:"hubUrl"`
	Publisher  publisher.Config  `yaml:"publisher" json:"publisher"`
	Subscriber subscriber.Config `yaml:"subscriber" json:"subscriber"`
	HTTP       httpClient.Config `yaml:"http" json:"http"`
	// Timeout bounds the wait for an expected request of the hub.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// QuietPeriod is the wait used to assert that the hub sends nothing.
	QuietPeriod time.Duration `yaml:"quietPeriod" json:"quietPeriod"`
	// SettleDelay is the wait between an observed verification and the first publish.
	SettleDelay time.Duration `yaml:"settleDelay" json:"settleDelay"`
	// Parallel limits the number of concurrently running scenarios.
	Parallel int `yaml:"parallel" json:"parallel"`
}

// MakeDefaultConfig returns the configuration of a harness listening on the ports 3001
// (publisher) and 3002 (subscriber) of host.
func MakeDefaultConfig(hubURL, host string) Config {
	return Config{
		Log:    log.MakeDefaultConfig(),
		HubURL: hubURL,
		Publisher: publisher.Config{
			Connection:  listener.Config{Addr: ":3001"},
			Server:      server.MakeDefaultConfig(),
			ExternalURL: "http://" + host + ":3001",
			HubURL:      hubURL,
		},
		Subscriber: subscriber.Config{
			Connection:  listener.Config{Addr: ":3002"},
			Server:      server.MakeDefaultConfig(),
			ExternalURL: "http://" + host + ":3002",
		},
		HTTP:        httpClient.MakeDefaultConfig(),
		Timeout:     time.Second * 10,
		QuietPeriod: time.Second * 2,
		SettleDelay: time.Millisecond * 500,
		Parallel:    4,
	}
}

func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log.%w", err)
	}
	if u, err := url.Parse(c.HubURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("hubURL('%v')", c.HubURL)
	}
	c.Publisher.HubURL = c.HubURL
	if err := c.Publisher.Validate(); err != nil {
		return fmt.Errorf("publisher.%w", err)
	}
	if err := c.Subscriber.Validate(); err != nil {
		return fmt.Errorf("subscriber.%w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http.%w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout('%v')", c.Timeout)
	}
	if c.QuietPeriod <= 0 {
		return fmt.Errorf("quietPeriod('%v')", c.QuietPeriod)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settleDelay('%v')", c.SettleDelay)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel('%v')", c.Parallel)
	}
	return nil
}
