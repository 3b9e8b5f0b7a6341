package client

import (
	"fmt"
	"time"
)

// GRPCConfig selects the OTLP collector receiving the spans.
type GRPCConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Address  string        `yaml:"address" json:"address"`
	Insecure bool          `yaml:"insecure" json:"insecure"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

func (c *GRPCConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Address == "" {
		return fmt.Errorf("address('%v')", c.Address)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout('%v')", c.Timeout)
	}
	return nil
}

type Config struct {
	GRPC GRPCConfig `yaml:"grpc" json:"grpc"`
	// SampleRatio of root spans which are recorded, 0 records all of them.
	SampleRatio float64 `yaml:"sampleRatio" json:"sampleRatio"`
}

func (c *Config) Validate() error {
	if err := c.GRPC.Validate(); err != nil {
		return fmt.Errorf("grpc.%w", err)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sampleRatio('%v') - must be in [0, 1]", c.SampleRatio)
	}
	return nil
}
