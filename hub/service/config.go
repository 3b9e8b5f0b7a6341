package service

import (
	"fmt"
	"net/url"
	"time"

	storeConfig "github.com/plgd-dev/websub-hub/hub/store/config"
	"github.com/plgd-dev/websub-hub/pkg/config"
	"github.com/plgd-dev/websub-hub/pkg/config/property/urischeme"
	"github.com/plgd-dev/websub-hub/pkg/log"
	natsClient "github.com/plgd-dev/websub-hub/pkg/nats/client"
	httpClient "github.com/plgd-dev/websub-hub/pkg/net/http/client"
	"github.com/plgd-dev/websub-hub/pkg/net/http/server"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
	otelClient "github.com/plgd-dev/websub-hub/pkg/opentelemetry/collector/client"
	"github.com/plgd-dev/websub-hub/pkg/sync/task/queue"
)

// Config represents application configuration
type Config struct {
	Log     log.Config    `yaml:"log" json:"log"`
	APIs    APIsConfig    `yaml:"apis" json:"apis"`
	Clients ClientsConfig `yaml:"clients" json:"clients"`
	Hub     HubConfig     `yaml:"hub" json:"hub"`
}

func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log.%w", err)
	}
	if err := c.APIs.Validate(); err != nil {
		return fmt.Errorf("apis.%w", err)
	}
	if err := c.Clients.Validate(); err != nil {
		return fmt.Errorf("clients.%w", err)
	}
	if err := c.Hub.Validate(); err != nil {
		return fmt.Errorf("hub.%w", err)
	}
	return nil
}

func (c Config) String() string {
	return config.ToString(c)
}

type APIsConfig struct {
	HTTP HTTPConfig `yaml:"http" json:"http"`
}

func (c *APIsConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http.%w", err)
	}
	return nil
}

type HTTPConfig struct {
	Connection listener.Config `yaml:",inline" json:",inline"`
	Server     server.Config   `yaml:",inline" json:",inline"`
	// PublicURL is the externally visible URL of the hub endpoint. It is derived from the listener when empty.
	PublicURL string `yaml:"publicURL" json:"publicUrl"`
}

func (c *HTTPConfig) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("publicURL('%v')", c.PublicURL)
		}
	}
	return nil
}

type NATSConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	natsClient.Config `yaml:",inline" json:",inline"`
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return c.Config.Validate()
}

type ClientsConfig struct {
	Storage                storeConfig.Config `yaml:"storage" json:"storage"`
	HTTP                   httpClient.Config  `yaml:"http" json:"http"`
	NATS                   NATSConfig         `yaml:"nats" json:"nats"`
	OpenTelemetryCollector otelClient.Config  `yaml:"openTelemetryCollector" json:"openTelemetryCollector"`
}

func (c *ClientsConfig) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage.%w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http.%w", err)
	}
	if err := c.NATS.Validate(); err != nil {
		return fmt.Errorf("nats.%w", err)
	}
	if err := c.OpenTelemetryCollector.Validate(); err != nil {
		return fmt.Errorf("openTelemetryCollector.%w", err)
	}
	return nil
}

type LeaseConfig struct {
	Default time.Duration `yaml:"default" json:"default"`
	Min     time.Duration `yaml:"min" json:"min"`
	Max     time.Duration `yaml:"max" json:"max"`
}

func (c *LeaseConfig) Validate() error {
	if c.Min < time.Second {
		return fmt.Errorf("min('%v') - must be at least 1s", c.Min)
	}
	if c.Max < c.Min {
		return fmt.Errorf("max('%v') - must be greater than min('%v')", c.Max, c.Min)
	}
	if c.Default < c.Min || c.Default > c.Max {
		return fmt.Errorf("default('%v') - must be in [min, max]", c.Default)
	}
	return nil
}

// Clamp returns the lease in seconds bounded by the configuration. Zero selects the default.
func (c *LeaseConfig) Clamp(leaseSeconds int64) int64 {
	if leaseSeconds <= 0 {
		return int64(c.Default / time.Second)
	}
	lease := time.Duration(leaseSeconds) * time.Second
	if leaseSeconds > int64(c.Max/time.Second) {
		lease = c.Max
	}
	if lease < c.Min {
		lease = c.Min
	}
	return int64(lease / time.Second)
}

type DistributionConfig struct {
	MaxAttempts int           `yaml:"maxAttempts" json:"maxAttempts"`
	MinDelay    time.Duration `yaml:"minDelay" json:"minDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay" json:"maxDelay"`
}

func (c *DistributionConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts('%v')", c.MaxAttempts)
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("minDelay('%v')", c.MinDelay)
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("maxDelay('%v') - must be greater than minDelay('%v')", c.MaxDelay, c.MinDelay)
	}
	return nil
}

type DiscoveryConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	CacheExpiration time.Duration `yaml:"cacheExpiration" json:"cacheExpiration"`
	RequireSelfLink bool          `yaml:"requireSelfLink" json:"requireSelfLink"`
}

func (c *DiscoveryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CacheExpiration <= 0 {
		return fmt.Errorf("cacheExpiration('%v')", c.CacheExpiration)
	}
	return nil
}

type CallbackQueryPolicyConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Key     string `yaml:"key" json:"key"`
	Value   string `yaml:"value" json:"value"`
}

func (c *CallbackQueryPolicyConfig) Validate() error {
	if c.Enabled && c.Key == "" {
		return fmt.Errorf("key('%v')", c.Key)
	}
	return nil
}

type DenyListPolicyConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// File is a path or a data URI of the YAML list.
	File urischeme.URIScheme `yaml:"file" json:"file"`
}

func (c *DenyListPolicyConfig) Validate() error {
	if c.Enabled && c.File == "" {
		return fmt.Errorf("file('%v')", c.File)
	}
	return nil
}

type PolicyConfig struct {
	CallbackQuery CallbackQueryPolicyConfig `yaml:"callbackQuery" json:"callbackQuery"`
	DenyList      DenyListPolicyConfig      `yaml:"denyList" json:"denyList"`
}

func (c *PolicyConfig) Validate() error {
	if err := c.CallbackQuery.Validate(); err != nil {
		return fmt.Errorf("callbackQuery.%w", err)
	}
	if err := c.DenyList.Validate(); err != nil {
		return fmt.Errorf("denyList.%w", err)
	}
	return nil
}

type HubConfig struct {
	Lease        LeaseConfig        `yaml:"lease" json:"lease"`
	Distribution DistributionConfig `yaml:"distribution" json:"distribution"`
	Discovery    DiscoveryConfig    `yaml:"discovery" json:"discovery"`
	Policy       PolicyConfig       `yaml:"policy" json:"policy"`
	TaskQueue    queue.Config       `yaml:"taskQueue" json:"taskQueue"`
	// MaxContentSize limits the fetched resource body.
	MaxContentSize int64 `yaml:"maxContentSize" json:"maxContentSize"`
}

func (c *HubConfig) Validate() error {
	if err := c.Lease.Validate(); err != nil {
		return fmt.Errorf("lease.%w", err)
	}
	if err := c.Distribution.Validate(); err != nil {
		return fmt.Errorf("distribution.%w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery.%w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy.%w", err)
	}
	if err := c.TaskQueue.Validate(); err != nil {
		return fmt.Errorf("taskQueue.%w", err)
	}
	if c.MaxContentSize <= 0 {
		return fmt.Errorf("maxContentSize('%v')", c.MaxContentSize)
	}
	return nil
}

// MakeDefaultHubConfig returns the protocol defaults.
func MakeDefaultHubConfig() HubConfig {
	return HubConfig{
		Lease: LeaseConfig{
			Default: time.Hour * 24 * 10,
			Min:     time.Minute * 5,
			Max:     time.Hour * 24 * 365,
		},
		Distribution: DistributionConfig{
			MaxAttempts: 5,
			MinDelay:    time.Second,
			MaxDelay:    time.Second * 30,
		},
		Discovery: DiscoveryConfig{
			Enabled:         true,
			CacheExpiration: time.Minute * 10,
		},
		Policy: PolicyConfig{
			CallbackQuery: CallbackQueryPolicyConfig{
				Enabled: true,
				Key:     "publisher",
				Value:   "denied",
			},
		},
		TaskQueue:      queue.MakeDefaultConfig(),
		MaxContentSize: 16 * 1024 * 1024,
	}
}
