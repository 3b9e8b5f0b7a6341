package mongodb

import (
	pkgMongo "github.com/plgd-dev/websub-hub/pkg/mongodb"
)

type Config struct {
	Mongo pkgMongo.Config `yaml:",inline" json:",inline"`
}

func (c *Config) Validate() error {
	return c.Mongo.Validate()
}
