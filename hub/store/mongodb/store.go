package mongodb

import (
	"context"
	"fmt"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgMongo "github.com/plgd-dev/websub-hub/pkg/mongodb"
	"go.opentelemetry.io/otel/trace"
)

type Store struct {
	*pkgMongo.Store
}

const subscriptionsCol = "subscriptions"

var (
	topicStateIndex = pkgMongo.Index{
		Keys: []string{store.TopicKey, store.StateKey, store.ExpiresAtKey},
	}
	stateUpdatedAtIndex = pkgMongo.Index{
		Keys: []string{store.StateKey, store.UpdatedAtKey},
	}
)

func New(ctx context.Context, cfg *Config, logger log.Logger, tracerProvider trace.TracerProvider) (*Store, error) {
	m, err := pkgMongo.NewStore(ctx, cfg.Mongo, logger, tracerProvider)
	if err != nil {
		return nil, err
	}
	if err = m.EnsureIndex(ctx, subscriptionsCol, topicStateIndex, stateUpdatedAtIndex); err != nil {
		if errC := m.Close(ctx); errC != nil {
			logger.Errorf("cannot close mongodb store: %w", errC)
		}
		return nil, fmt.Errorf("cannot create subscriptions store: %w", err)
	}
	return &Store{Store: m}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.Store.Close(ctx)
}
