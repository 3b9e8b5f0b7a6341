package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"golang.org/x/sync/errgroup"
)

// limits parallel topic fetches of a single publish ping
const maxParallelFetches = 8

type delivery struct {
	subscriptionID string
	callback       string
	resource       Resource
	attempt        int
}

// Publish schedules the notification of every active subscription of the resource topic.
// It returns the number of subscriptions to be notified.
func (h *Hub) Publish(ctx context.Context, res Resource) (int, error) {
	var deliveries []*delivery
	err := h.store.LoadSubscriptions(ctx, store.Query{Topic: res.Topic, ActiveAt: time.Now()}, func(sub *store.Subscription) error {
		deliveries = append(deliveries, &delivery{
			subscriptionID: sub.ID,
			callback:       sub.Callback,
			resource:       res,
			attempt:        1,
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cannot load subscriptions of topic %v: %w", res.Topic, err)
	}
	for _, d := range deliveries {
		h.submitDelivery(d)
	}
	h.logger.With(log.TopicKey, res.Topic).Debugf("content distributed to %v subscriptions", len(deliveries))
	return len(deliveries), nil
}

func (h *Hub) submitDelivery(d *delivery) {
	if err := h.queue.Submit(func() { h.deliver(d) }); err != nil {
		h.onDeliveryFailure(d, &DeliveryFailure{Callback: d.callback, Attempt: d.attempt, Err: err}, 0)
	}
}

func (h *Hub) deliveryLogger(d *delivery) log.Logger {
	return h.logger.With(log.SubscriptionID, d.subscriptionID, log.TopicKey, d.resource.Topic, log.CallbackKey, d.callback, log.AttemptKey, d.attempt)
}

// deliver runs one notification attempt.
func (h *Hub) deliver(d *delivery) {
	if d.attempt > 1 {
		sub, err := h.loadSubscription(d.subscriptionID)
		if err != nil || !sub.IsActive(time.Now()) || sub.Callback != d.callback {
			h.deliveryLogger(d).Debugf("subscription is no longer active, retry dropped")
			h.metrics.ObserveDelivery(DeliveryDropped, 0)
			return
		}
	}
	start := time.Now()
	statusCode, err := h.notify(d)
	duration := time.Since(start)
	if err == nil && isSuccess(statusCode) {
		h.metrics.ObserveDelivery(DeliveryDelivered, duration)
		h.deliveryLogger(d).Debugf("content delivered")
		ev := h.deliveryEvent(EventDelivered, d)
		ev.StatusCode = statusCode
		h.events.PublishEvent(ev)
		return
	}
	h.onDeliveryFailure(d, &DeliveryFailure{Callback: d.callback, StatusCode: statusCode, Attempt: d.attempt, Err: err}, duration)
}

func (h *Hub) loadSubscription(id string) (*store.Subscription, error) {
	return store.LoadSubscription(h.ctx, h.store, id)
}

// onDeliveryFailure schedules the next attempt or gives up when the budget is spent.
func (h *Hub) onDeliveryFailure(d *delivery, failure *DeliveryFailure, duration time.Duration) {
	logger := h.deliveryLogger(d)
	if d.attempt >= h.config.Distribution.MaxAttempts || h.ctx.Err() != nil {
		h.metrics.ObserveDelivery(DeliveryFailed, duration)
		logger.Warnf("%w, giving up", failure)
		ev := h.deliveryEvent(EventDeliveryFailed, d)
		ev.StatusCode = failure.StatusCode
		if failure.Err != nil {
			ev.Reason = failure.Err.Error()
		}
		h.events.PublishEvent(ev)
		return
	}
	h.metrics.ObserveDelivery(DeliveryRetried, duration)
	delay := h.backoff.Delay(d.attempt)
	logger.Debugf("%w, retrying in %v", failure, delay)
	next := *d
	next.attempt++
	// the timer keeps the worker free while waiting
	time.AfterFunc(delay, func() {
		if h.ctx.Err() != nil {
			return
		}
		h.submitDelivery(&next)
	})
}

func (h *Hub) deliveryEvent(kind EventKind, d *delivery) Event {
	return Event{
		Kind:           kind,
		SubscriptionID: d.subscriptionID,
		Topic:          d.resource.Topic,
		Callback:       d.callback,
		State:          store.StateVerified,
		Attempt:        d.attempt,
		Timestamp:      time.Now().UnixNano(),
	}
}

// notify posts the content to the callback and returns the response status code.
func (h *Hub) notify(d *delivery) (int, error) {
	ctx, span := h.tracer.Start(h.ctx, "notify")
	defer span.End()
	span.SetAttributes(attribute.String("websub.topic", d.resource.Topic), attribute.Int("websub.attempt", d.attempt))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.callback, bytes.NewReader(d.resource.Body))
	if err != nil {
		return 0, fmt.Errorf("cannot create request: %w", err)
	}
	if d.resource.ContentType != "" {
		req.Header.Set(pkgHttp.ContentTypeHeaderKey, d.resource.ContentType)
	}
	req.Header.Set(pkgHttp.LinkHeaderKey, pkgHttp.FormatLinks(
		pkgHttp.Link{URL: d.resource.Topic, Rel: pkgHttp.RelSelf},
		pkgHttp.Link{URL: h.publicURL, Rel: pkgHttp.RelHub},
	))
	resp, err := h.client.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxVerificationBodySize))
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(resp.StatusCode))
	return resp.StatusCode, nil
}

// PublishTopic fetches the topic from its publisher and distributes the content.
func (h *Hub) PublishTopic(ctx context.Context, topic string) (int, error) {
	res, selfAdvertised, err := h.fetcher.Fetch(ctx, topic)
	if err != nil {
		return 0, err
	}
	if selfAdvertised {
		h.discoverer.Remember(topic, res.Topic)
	}
	return h.Publish(ctx, res)
}

// HandlePublishRequest fetches and distributes the pinged topics on the task queue.
func (h *Hub) HandlePublishRequest(_ context.Context, req PublishRequest) error {
	if err := h.queue.Submit(func() { h.publishTopics(req.Topics) }); err != nil {
		return fmt.Errorf("cannot dispatch publish: %w", err)
	}
	return nil
}

func (h *Hub) publishTopics(topics []string) {
	var g errgroup.Group
	g.SetLimit(maxParallelFetches)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			if _, err := h.PublishTopic(h.ctx, topic); err != nil {
				h.logger.With(log.TopicKey, topic).Warnf("cannot publish topic: %w", err)
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}
