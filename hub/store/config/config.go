package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/hub/store/memory"
	storeMongo "github.com/plgd-dev/websub-hub/hub/store/mongodb"
	"github.com/plgd-dev/websub-hub/pkg/config/database"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	// CleanUpExpiredSubscriptions is a cron expression of the sweep of expired and stale records.
	CleanUpExpiredSubscriptions string `yaml:"cleanUpExpiredSubscriptions" json:"cleanUpExpiredSubscriptions"`
	// Retention of denied, unsubscribed and failed records.
	Retention time.Duration `yaml:"retention" json:"retention"`

	ExtendCronParserBySeconds bool `yaml:"-" json:"-"`

	database.Config[*storeMongo.Config] `yaml:",inline" json:",inline"`
}

func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention('%v')", c.Retention)
	}
	if c.CleanUpExpiredSubscriptions == "" {
		return nil
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.Local)) //nolint:gosmopolitan
	if err != nil {
		return fmt.Errorf("cannot create cron job: %w", err)
	}
	defer func() {
		if errS := s.Shutdown(); errS != nil {
			log.Errorf("failed to shutdown cron job: %w", errS)
		}
	}()
	_, err = s.NewJob(gocron.CronJob(c.CleanUpExpiredSubscriptions, c.ExtendCronParserBySeconds),
		gocron.NewTask(func() {
			// do nothing
		}))
	if err != nil {
		return fmt.Errorf("cleanUpExpiredSubscriptions('%v') - %w", c.CleanUpExpiredSubscriptions, err)
	}
	return nil
}

// NewStore creates the configured store.
func NewStore(ctx context.Context, cfg Config, logger log.Logger, tracerProvider trace.TracerProvider) (store.Store, error) {
	switch cfg.Use {
	case database.MongoDB:
		s, err := storeMongo.New(ctx, cfg.MongoDB, logger, tracerProvider)
		if err != nil {
			return nil, fmt.Errorf("cannot create mongodb store: %w", err)
		}
		return s, nil
	case database.Memory, "":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("invalid store use('%v')", cfg.Use)
}
