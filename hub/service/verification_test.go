package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/subscriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationURL(t *testing.T) {
	got, err := verificationURL("http://subscriber/callback?id=1&wontconfirm=true", verificationQuery{
		Mode:         "subscribe",
		Topic:        "http://publisher/resource?a=b",
		Challenge:    "abc",
		LeaseSeconds: 60,
	})
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/callback", u.Path)
	q := u.Query()
	assert.Equal(t, "1", q.Get("id"))
	assert.True(t, q.Has("wontconfirm"))
	assert.Equal(t, "subscribe", q.Get(uri.ModeKey))
	assert.Equal(t, "http://publisher/resource?a=b", q.Get(uri.TopicKey))
	assert.Equal(t, "abc", q.Get(uri.ChallengeKey))
	assert.Equal(t, "60", q.Get(uri.LeaseSecondsKey))
	assert.False(t, q.Has(uri.ReasonKey))
}

func TestHubSubscribeVerified(t *testing.T) {
	h := newTestHub(t, makeTestHubConfig())
	s := newTestSubscriber(t)
	callback, rec := s.register()
	const topic = "http://publisher.test/resource"

	err := h.HandleSubscriptionRequest(context.Background(), SubscriptionRequest{Mode: store.ModeSubscribe, Topic: topic, Callback: callback, LeaseSeconds: 3600})
	require.NoError(t, err)
	ev := h.events.wait(t, EventPendingVerification)
	assert.Equal(t, store.StatePendingVerification, ev.State)

	v := waitVerification(t, rec)
	assert.Equal(t, uri.SubscribeMode, v.Mode)
	assert.Equal(t, topic, v.Topic)
	assert.Equal(t, "3600", v.LeaseSeconds)
	assert.NotEmpty(t, v.Challenge)

	ev = h.events.wait(t, EventVerified)
	assert.Equal(t, store.StateVerified, ev.State)
	sub := h.load(t, topic, callback)
	assert.Equal(t, store.StateVerified, sub.State)
	assert.Nil(t, sub.Pending)
	assert.Equal(t, int64(3600), sub.LeaseSeconds)
	assert.NotZero(t, sub.ExpiresAt)
}

func TestHubSubscribeNotConfirmed(t *testing.T) {
	h := newTestHub(t, makeTestHubConfig())
	s := newTestSubscriber(t)
	callback, rec := s.register()
	callback += "?" + subscriber.WontConfirmKey + "=true"
	const topic = "http://publisher.test/resource"

	err := h.HandleSubscriptionRequest(context.Background(), SubscriptionRequest{Mode: store.ModeSubscribe, Topic: topic, Callback: callback})
	require.NoError(t, err)
	v := waitVerification(t, rec)
	assert.Equal(t, "true", v.Query.Get(subscriber.WontConfirmKey))

	h.events.wait(t, EventVerificationFailed)
	sub := h.load(t, topic, callback)
	assert.Equal(t, store.StatePendingVerification, sub.State)
	assert.Nil(t, sub.Pending)
}

func TestHubUnsubscribe(t *testing.T) {
	h := newTestHub(t, makeTestHubConfig())
	s := newTestSubscriber(t)
	callback, rec := s.register()
	const topic = "http://publisher.test/resource"
	h.subscribe(t, topic, callback)
	waitVerification(t, rec)

	err := h.HandleSubscriptionRequest(context.Background(), SubscriptionRequest{Mode: store.ModeUnsubscribe, Topic: topic, Callback: callback})
	require.NoError(t, err)
	v := waitVerification(t, rec)
	assert.Equal(t, uri.UnsubscribeMode, v.Mode)
	ev := h.events.wait(t, EventUnsubscribed)
	assert.Equal(t, store.StateUnsubscribed, ev.State)
	assert.Equal(t, store.StateUnsubscribed, h.load(t, topic, callback).State)
}

func TestHubPolicyDenies(t *testing.T) {
	h := newTestHub(t, makeTestHubConfig(), WithAcceptancePolicy(CallbackQueryPolicy{Key: "publisher", Value: "denied"}))
	s := newTestSubscriber(t)
	callback, rec := s.register()
	callback += "?publisher=denied"
	const topic = "http://publisher.test/resource"

	err := h.HandleSubscriptionRequest(context.Background(), SubscriptionRequest{Mode: store.ModeSubscribe, Topic: topic, Callback: callback})
	require.NoError(t, err)
	select {
	case d := <-rec.Denials:
		assert.Equal(t, topic, d.Topic)
		assert.NotEmpty(t, d.Reason)
	case v := <-rec.Verifications:
		require.FailNowf(t, "unexpected verification", "%+v", v)
	case <-time.After(testTimeout):
		require.FailNow(t, "denial not received")
	}
	ev := h.events.wait(t, EventDenied)
	assert.NotEmpty(t, ev.Reason)
	sub := h.load(t, topic, callback)
	assert.Equal(t, store.StateDenied, sub.State)
	assert.Equal(t, ev.Reason, sub.DenialReason)
}

func TestHubSupersededAttemptIsDiscarded(t *testing.T) {
	h := newTestHub(t, makeTestHubConfig())
	const topic = "http://publisher.test/resource"
	const callback = "http://subscriber.test/callback"
	ctx := context.Background()

	first := store.Attempt{Mode: store.ModeSubscribe, Challenge: "first", LeaseSeconds: 60}
	sub, err := h.store.UpsertAttempt(ctx, topic, callback, first)
	require.NoError(t, err)
	_, err = h.store.UpsertAttempt(ctx, topic, callback, store.Attempt{Mode: store.ModeSubscribe, Challenge: "second", LeaseSeconds: 60})
	require.NoError(t, err)

	h.resolve(ctx, sub, first, store.OutcomeVerified, "")
	got := h.load(t, topic, callback)
	assert.Equal(t, store.StatePendingVerification, got.State)
	require.NotNil(t, got.Pending)
	assert.Equal(t, "second", got.Pending.Challenge)
	select {
	case ev := <-h.events.events:
		assert.Equal(t, EventPendingVerification, ev.Kind, "superseded outcome must not be published")
	default:
	}
}

func TestHubQueueFull(t *testing.T) {
	cfg := makeTestHubConfig()
	cfg.TaskQueue.GoPoolSize = 1
	cfg.TaskQueue.Size = 1
	h := newTestHub(t, cfg)
	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	// occupy the single worker and the single queue slot
	require.NoError(t, h.queue.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	require.NoError(t, h.queue.Submit(func() { <-block }))

	err := h.HandleSubscriptionRequest(context.Background(), SubscriptionRequest{
		Mode:     store.ModeSubscribe,
		Topic:    "http://publisher.test/resource",
		Callback: "http://subscriber.test/callback",
	})
	require.Error(t, err)
	assert.Equal(t, 503, errToStatus(err))
	sub := h.load(t, "http://publisher.test/resource", "http://subscriber.test/callback")
	assert.Nil(t, sub.Pending)
	assert.NotEqual(t, store.StateVerified, sub.State)
}
