package service

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	nats "github.com/nats-io/nats.go"
	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/pkg/log"
	natsClient "github.com/plgd-dev/websub-hub/pkg/nats/client"
)

type EventKind string

const (
	EventPendingVerification EventKind = "PendingVerification"
	EventVerified            EventKind = "Verified"
	EventDenied              EventKind = "Denied"
	EventUnsubscribed        EventKind = "Unsubscribed"
	EventVerificationFailed  EventKind = "VerificationFailed"
	EventDelivered           EventKind = "Delivered"
	EventDeliveryFailed      EventKind = "DeliveryFailed"
)

// Event is a committed transition of a subscription or the final result of a delivery.
type Event struct {
	Kind           EventKind   `json:"kind"`
	SubscriptionID string      `json:"subscriptionId"`
	Topic          string      `json:"topic"`
	Callback       string      `json:"callback"`
	State          store.State `json:"state,omitempty"`
	Attempt        int         `json:"attempt,omitempty"`
	StatusCode     int         `json:"statusCode,omitempty"`
	Reason         string      `json:"reason,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

func newEvent(kind EventKind, sub *store.Subscription) Event {
	return Event{
		Kind:           kind,
		SubscriptionID: sub.ID,
		Topic:          sub.Topic,
		Callback:       sub.Callback,
		State:          sub.State,
		Timestamp:      time.Now().UnixNano(),
	}
}

type EventPublisher interface {
	PublishEvent(event Event)
}

type nopEventPublisher struct{}

func (nopEventPublisher) PublishEvent(Event) {}

// PublishMessage triggers distribution of the topic.
type PublishMessage struct {
	Topic string `json:"topic"`
}

// NATSEventBus publishes hub events and receives publish triggers over NATS.
type NATSEventBus struct {
	client *natsClient.Client
	logger log.Logger
	sub    *nats.Subscription
}

func NewNATSEventBus(client *natsClient.Client, logger log.Logger) *NATSEventBus {
	return &NATSEventBus{
		client: client,
		logger: logger,
	}
}

func EventSubject(kind EventKind) string {
	return uri.EventsSubjectPrefix + string(kind)
}

func (b *NATSEventBus) PublishEvent(event Event) {
	data, err := jsoniter.Marshal(event)
	if err != nil {
		b.logger.Errorf("cannot marshal event %v: %w", event.Kind, err)
		return
	}
	if err = b.client.GetConn().Publish(EventSubject(event.Kind), data); err != nil {
		b.logger.Errorf("cannot publish event %v: %w", event.Kind, err)
	}
}

// SubscribeToPublish calls onPublish for every topic received on the publish subject.
func (b *NATSEventBus) SubscribeToPublish(onPublish func(topic string)) error {
	sub, err := b.client.GetConn().Subscribe(uri.PublishSubject, func(msg *nats.Msg) {
		var m PublishMessage
		if err := jsoniter.Unmarshal(msg.Data, &m); err != nil {
			b.logger.Warnf("cannot decode publish message: %w", err)
			return
		}
		if m.Topic == "" {
			b.logger.Warnf("publish message without topic")
			return
		}
		onPublish(m.Topic)
	})
	if err != nil {
		return fmt.Errorf("cannot subscribe to %v: %w", uri.PublishSubject, err)
	}
	b.sub = sub
	return nil
}

func (b *NATSEventBus) Close() {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			b.logger.Debugf("cannot unsubscribe from %v: %w", uri.PublishSubject, err)
		}
	}
	b.client.Close()
}
