package database

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

type DBUse string

func (u DBUse) ToLower() DBUse {
	return DBUse(strings.ToLower(string(u)))
}

const (
	Memory  DBUse = "memory"
	MongoDB DBUse = "mongoDB"
)

type DBConfig interface {
	Validate() error
}

// Config selects the storage backend. The memory backend has no configuration.
type Config[MongoConfig DBConfig] struct {
	Use     DBUse       `yaml:"use" json:"use"`
	MongoDB MongoConfig `yaml:"mongoDB" json:"mongoDb"`
}

func (c *Config[MongoConfig]) Validate() error {
	switch c.Use.ToLower() {
	case Memory.ToLower(), "":
		c.Use = Memory
	case MongoDB.ToLower():
		if reflect.ValueOf(c.MongoDB).Kind() == reflect.Ptr && reflect.ValueOf(c.MongoDB).IsNil() {
			return errors.New("mongoDB - is empty")
		}
		if err := c.MongoDB.Validate(); err != nil {
			return fmt.Errorf("mongoDB.%w", err)
		}
		c.Use = MongoDB
	default:
		return fmt.Errorf("use('%v' - only %v or %v are supported)", c.Use, Memory, MongoDB)
	}
	return nil
}
