package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/opentelemetry"
	"github.com/plgd-dev/websub-hub/pkg/sync/task/queue"
	pkgTime "github.com/plgd-dev/websub-hub/pkg/time"
	"go.opentelemetry.io/otel/trace"
)

// Hub validates subscriptions, verifies the intent of subscribers and distributes content.
type Hub struct {
	ctx        context.Context
	cancel     context.CancelFunc
	config     HubConfig
	publicURL  string
	store      store.Store
	queue      *queue.Queue
	client     *http.Client
	fetcher    *Fetcher
	discoverer *Discoverer
	policy     AcceptancePolicy
	backoff    *pkgTime.LinearBackoff
	metrics    Metrics
	events     EventPublisher
	tracer     trace.Tracer
	logger     log.Logger
}

type hubOptions struct {
	policy         AcceptancePolicy
	metrics        Metrics
	events         EventPublisher
	tracerProvider trace.TracerProvider
}

type HubOption func(*hubOptions)

func WithAcceptancePolicy(policy AcceptancePolicy) HubOption {
	return func(o *hubOptions) {
		o.policy = policy
	}
}

func WithMetrics(metrics Metrics) HubOption {
	return func(o *hubOptions) {
		o.metrics = metrics
	}
}

func WithEventPublisher(events EventPublisher) HubOption {
	return func(o *hubOptions) {
		o.events = events
	}
}

func WithTracerProvider(tracerProvider trace.TracerProvider) HubOption {
	return func(o *hubOptions) {
		o.tracerProvider = tracerProvider
	}
}

// NewHub creates the hub. publicURL is the hub URL advertised in notifications.
func NewHub(ctx context.Context, config HubConfig, publicURL string, s store.Store, q *queue.Queue, client *http.Client, logger log.Logger, opts ...HubOption) *Hub {
	o := hubOptions{
		policy:         AllowAll{},
		metrics:        NopMetrics{},
		events:         nopEventPublisher{},
		tracerProvider: trace.NewNoopTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(ctx)
	fetcher := NewFetcher(client, config.MaxContentSize)
	return &Hub{
		ctx:        ctx,
		cancel:     cancel,
		config:     config,
		publicURL:  publicURL,
		store:      s,
		queue:      q,
		client:     client,
		fetcher:    fetcher,
		discoverer: NewDiscoverer(ctx, config.Discovery, fetcher, logger),
		policy:     o.policy,
		backoff:    pkgTime.NewLinearBackoff(config.Distribution.MinDelay, config.Distribution.MaxDelay),
		metrics:    o.metrics,
		events:     o.events,
		tracer:     o.tracerProvider.Tracer(opentelemetry.InstrumentationName, trace.WithInstrumentationVersion(opentelemetry.Version())),
		logger:     logger,
	}
}

func (h *Hub) PublicURL() string {
	return h.publicURL
}

// LoadSubscriptions calls p for every stored subscription matching the query.
func (h *Hub) LoadSubscriptions(ctx context.Context, query store.Query, p store.ProcessSubscriptions) error {
	return h.store.LoadSubscriptions(ctx, query, p)
}

// DeleteExpiredSubscriptions removes expired and stale subscriptions.
func (h *Hub) DeleteExpiredSubscriptions(ctx context.Context, retention time.Duration) {
	deleted, err := h.store.DeleteExpiredSubscriptions(ctx, time.Now(), retention)
	if err != nil {
		h.logger.Errorf("cannot delete expired subscriptions: %w", err)
		return
	}
	if deleted > 0 {
		h.logger.Infof("%v expired subscriptions deleted", deleted)
	}
}

// Close stops pending retries. Running tasks finish with a cancelled context.
func (h *Hub) Close() {
	h.cancel()
}

func newChallenge() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cannot generate challenge: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (h *Hub) subscriptionLogger(sub *store.Subscription) log.Logger {
	return h.logger.With(log.SubscriptionID, sub.ID, log.TopicKey, sub.Topic, log.CallbackKey, sub.Callback)
}
