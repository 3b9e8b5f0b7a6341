package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
	storeConfig "github.com/plgd-dev/websub-hub/hub/store/config"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/pkg/fn"
	"github.com/plgd-dev/websub-hub/pkg/fsnotify"
	"github.com/plgd-dev/websub-hub/pkg/log"
	natsClient "github.com/plgd-dev/websub-hub/pkg/nats/client"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	httpClient "github.com/plgd-dev/websub-hub/pkg/net/http/client"
	"github.com/plgd-dev/websub-hub/pkg/net/http/server"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
	otelClient "github.com/plgd-dev/websub-hub/pkg/opentelemetry/collector/client"
	"github.com/plgd-dev/websub-hub/pkg/sync/task/queue"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "websub-hub"

// Service serves the hub over HTTP.
type Service struct {
	server    *http.Server
	listener  *listener.Server
	hub       *Hub
	publicURL string
}

func newEventBus(config NATSConfig, logger log.Logger) (*NATSEventBus, error) {
	if !config.Enabled {
		return nil, nil
	}
	nc, err := natsClient.New(config.Config, logger)
	if err != nil {
		return nil, err
	}
	return NewNATSEventBus(nc, logger), nil
}

func newStore(ctx context.Context, config storeConfig.Config, logger log.Logger, tracerProvider trace.TracerProvider) (store.Store, func(), error) {
	s, err := storeConfig.NewStore(ctx, config, logger, tracerProvider)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if errC := s.Close(context.Background()); errC != nil {
			logger.Errorf("cannot close subscription store: %w", errC)
		}
	}
	return s, closeStore, nil
}

func startExpiredSubscriptionsChecker(ctx context.Context, config storeConfig.Config, hub *Hub, logger log.Logger) (func(), error) {
	if config.CleanUpExpiredSubscriptions == "" {
		return func() {}, nil
	}
	scheduler, err := NewExpiredSubscriptionsChecker(config.CleanUpExpiredSubscriptions, config.ExtendCronParserBySeconds, func() {
		hub.DeleteExpiredSubscriptions(ctx, config.Retention)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if errS := scheduler.Shutdown(); errS != nil {
			logger.Errorf("cannot shutdown expired subscriptions checker: %w", errS)
		}
	}, nil
}

// New creates the hub service from the configuration.
func New(ctx context.Context, config Config, fileWatcher *fsnotify.Watcher, logger log.Logger) (*Service, error) {
	var closeOnError fn.FuncList
	ctx, cancel := context.WithCancel(ctx)
	closeOnError.AddFunc(cancel)

	otelClient, err := otelClient.New(ctx, config.Clients.OpenTelemetryCollector, serviceName, logger)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create open telemetry collector client: %w", err)
	}
	closeOnError.AddFunc(otelClient.Close)
	tracerProvider := otelClient.GetTracerProvider()

	listener, err := listener.New(config.APIs.HTTP.Connection, logger)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create http server: %w", err)
	}
	closeOnError.AddFunc(func() {
		_ = listener.Listener.Close()
	})
	publicURL := config.APIs.HTTP.PublicURL
	if publicURL == "" {
		publicURL = listener.URL() + uri.Hub
	}

	subscriptionStore, closeStore, err := newStore(ctx, config.Clients.Storage, logger, tracerProvider)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create subscription store: %w", err)
	}
	closeOnError.AddFunc(closeStore)

	taskQueue, err := queue.New(config.Hub.TaskQueue)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create task queue: %w", err)
	}
	closeOnError.AddFunc(taskQueue.Release)

	client, err := httpClient.New(config.Clients.HTTP, tracerProvider)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create http client: %w", err)
	}
	closeOnError.AddFunc(client.Close)

	policy, closePolicy, err := NewAcceptancePolicy(config.Hub.Policy, fileWatcher, logger)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create acceptance policy: %w", err)
	}
	closeOnError.AddFunc(closePolicy)

	metrics := NewPrometheusMetrics()
	opts := []HubOption{
		WithAcceptancePolicy(policy),
		WithMetrics(metrics),
		WithTracerProvider(tracerProvider),
	}
	eventBus, err := newEventBus(config.Clients.NATS, logger)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create nats event bus: %w", err)
	}
	if eventBus != nil {
		closeOnError.AddFunc(eventBus.Close)
		opts = append(opts, WithEventPublisher(eventBus))
	}

	hub := NewHub(ctx, config.Hub, publicURL, subscriptionStore, taskQueue, client.HTTP(), logger, opts...)
	closeOnError.AddFunc(hub.Close)

	if eventBus != nil {
		err = eventBus.SubscribeToPublish(func(topic string) {
			if errP := hub.HandlePublishRequest(ctx, PublishRequest{Topics: []string{topic}}); errP != nil {
				logger.With(log.TopicKey, topic).Warnf("cannot handle publish message: %w", errP)
			}
		})
		if err != nil {
			closeOnError.Execute()
			return nil, err
		}
	}

	closeChecker, err := startExpiredSubscriptionsChecker(ctx, config.Clients.Storage, hub, logger)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create expired subscriptions checker: %w", err)
	}
	closeOnError.AddFunc(closeChecker)

	requestHandler := NewRequestHandler(hub, metrics, logger)
	httpServer := server.New(config.APIs.HTTP.Server, pkgHttp.OpenTelemetryNewHandler(NewHTTP(requestHandler, logger), serviceName, tracerProvider, true))

	// the listener releases the resources on Close
	listener.AddCloseFunc(closeOnError.ToFunction())

	logger.Infof("hub is available at %v", publicURL)
	return &Service{
		server:    httpServer,
		listener:  listener,
		hub:       hub,
		publicURL: publicURL,
	}, nil
}

// Hub returns the hub served by the service.
func (s *Service) Hub() *Hub {
	return s.hub
}

// PublicURL returns the advertised hub URL.
func (s *Service) PublicURL() string {
	return s.publicURL
}

// Address returns the listener address.
func (s *Service) Address() string {
	return s.listener.Addr().String()
}

// Serve starts the service's HTTP server and blocks
func (s *Service) Serve() error {
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close ends serving
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err := s.server.Shutdown(ctx)
	// Shutdown does not close the listener when Serve was not called
	if errC := s.listener.Close(); errC != nil && !errors.Is(errC, net.ErrClosed) && err == nil {
		err = errC
	}
	return err
}
