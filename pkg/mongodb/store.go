package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/plgd-dev/websub-hub/pkg/fn"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/otel/trace"
)

// Store is the shared part of mongodb backed stores.
type Store struct {
	client    *mongo.Client
	database  string
	logger    log.Logger
	closeFunc fn.FuncList
}

// Index describes a collection index on the keys in order, all ascending.
type Index struct {
	Keys   []string
	Unique bool
}

func (i Index) model() mongo.IndexModel {
	keys := bson.D{}
	for _, k := range i.Keys {
		keys = append(keys, bson.E{Key: k, Value: 1})
	}
	return mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(i.Unique),
	}
}

// NewStore connects to the database and verifies the connection. Commands are traced by the tracerProvider.
func NewStore(ctx context.Context, cfg Config, logger log.Logger, tracerProvider trace.TracerProvider) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	opts.SetMonitor(otelmongo.NewMonitor(otelmongo.WithTracerProvider(tracerProvider)))
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(cfg.MaxConnIdleTime)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.TLS.ToTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("cannot create tls config: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		if errD := client.Disconnect(ctx); errD != nil {
			logger.Errorf("cannot disconnect mongodb client: %w", errD)
		}
		return nil, fmt.Errorf("cannot ping mongodb: %w", err)
	}
	return &Store{
		client:   client,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

func (s *Store) Client() *mongo.Client {
	return s.client
}

func (s *Store) DB() *mongo.Database {
	return s.client.Database(s.database)
}

func (s *Store) Collection(name string) *mongo.Collection {
	return s.DB().Collection(name)
}

// EnsureIndex creates the indexes of the collection when they do not exist.
func (s *Store) EnsureIndex(ctx context.Context, collection string, indexes ...Index) error {
	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, i := range indexes {
		models = append(models, i.model())
	}
	if _, err := s.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("cannot ensure indexes for collection %v: %w", collection, err)
	}
	return nil
}

// Clear drops the database.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.DB().Drop(ctx); err != nil {
		return fmt.Errorf("cannot clear: %w", err)
	}
	return nil
}

func (s *Store) AddCloseFunc(f func()) {
	s.closeFunc.AddFunc(f)
}

// Close disconnects the client and runs registered close functions.
func (s *Store) Close(ctx context.Context) error {
	var errors *multierror.Error
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*10)
		defer cancel()
	}
	if err := s.client.Disconnect(ctx); err != nil {
		errors = multierror.Append(errors, err)
	}
	s.closeFunc.Execute()
	return errors.ErrorOrNil()
}
