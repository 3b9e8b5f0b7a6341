package server

import (
	"fmt"
	"time"
)

type Config struct {
	ReadTimeout       time.Duration `yaml:"readTimeout" json:"readTimeout"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout" json:"idleTimeout"`
}

func MakeDefaultConfig() Config {
	return Config{
		ReadTimeout:       time.Second * 8,
		ReadHeaderTimeout: time.Second * 4,
		WriteTimeout:      time.Second * 16,
		IdleTimeout:       time.Second * 30,
	}
}

func (c *Config) Validate() error {
	if c.ReadTimeout < 0 {
		return fmt.Errorf("readTimeout('%v')", c.ReadTimeout)
	}
	if c.ReadHeaderTimeout < 0 {
		return fmt.Errorf("readHeaderTimeout('%v')", c.ReadHeaderTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("writeTimeout('%v')", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idleTimeout('%v')", c.IdleTimeout)
	}
	return nil
}
