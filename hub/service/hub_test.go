package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/hub/store/memory"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/sync/task/queue"
	"github.com/plgd-dev/websub-hub/subscriber"
	"github.com/stretchr/testify/require"
)

const (
	testHubURL  = "http://hub.test/hub"
	testTimeout = time.Second * 10
)

type eventRecorder struct {
	events chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{events: make(chan Event, 256)}
}

func (r *eventRecorder) PublishEvent(event Event) {
	r.events <- event
}

// wait returns the next event of the kind, other kinds are skipped.
func (r *eventRecorder) wait(t *testing.T, kind EventKind) Event {
	t.Helper()
	timeout := time.After(testTimeout)
	for {
		select {
		case ev := <-r.events:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			require.FailNowf(t, "event not received", "kind %v", kind)
		}
	}
}

func makeTestHubConfig() HubConfig {
	cfg := MakeDefaultHubConfig()
	cfg.Discovery.Enabled = false
	cfg.Policy = PolicyConfig{}
	cfg.Distribution.MaxAttempts = 3
	cfg.Distribution.MinDelay = time.Millisecond * 20
	cfg.Distribution.MaxDelay = time.Millisecond * 100
	cfg.TaskQueue = queue.Config{GoPoolSize: 8, Size: 64, MaxIdleTime: time.Minute}
	return cfg
}

type testHub struct {
	*Hub
	store  *memory.Store
	events *eventRecorder
}

func newTestHub(t *testing.T, cfg HubConfig, opts ...HubOption) *testHub {
	q, err := queue.New(cfg.TaskQueue)
	require.NoError(t, err)
	s := memory.New()
	events := newEventRecorder()
	opts = append([]HubOption{WithEventPublisher(events)}, opts...)
	h := NewHub(context.Background(), cfg, testHubURL, s, q, &http.Client{Timeout: time.Second * 5}, log.Get(), opts...)
	t.Cleanup(func() {
		h.Close()
		q.Release()
		_ = s.Close(context.Background())
	})
	return &testHub{Hub: h, store: s, events: events}
}

func (h *testHub) load(t *testing.T, topic, callback string) *store.Subscription {
	sub, err := store.LoadSubscription(context.Background(), h.store, store.MakeID(topic, callback))
	require.NoError(t, err)
	return sub
}

type testSubscriber struct {
	*subscriber.Endpoint
	server *httptest.Server
}

func newTestSubscriber(t *testing.T) *testSubscriber {
	var handler http.Handler
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	e := subscriber.NewEndpoint(server.URL, log.Get())
	handler = e.Handler()
	return &testSubscriber{Endpoint: e, server: server}
}

// register returns the callback URL of a new recorder.
func (s *testSubscriber) register() (string, *subscriber.Recorder) {
	r := subscriber.NewRecorder(16)
	return s.CallbackURL(s.Register(r)), r
}

func waitVerification(t *testing.T, r *subscriber.Recorder) subscriber.Verification {
	t.Helper()
	select {
	case v := <-r.Verifications:
		return v
	case <-time.After(testTimeout):
		require.FailNow(t, "verification not received")
	}
	return subscriber.Verification{}
}

func waitNotification(t *testing.T, r *subscriber.Recorder) subscriber.Notification {
	t.Helper()
	select {
	case n := <-r.Notifications:
		return n
	case <-time.After(testTimeout):
		require.FailNow(t, "notification not received")
	}
	return subscriber.Notification{}
}

// subscribe runs a verified subscription of the callback.
func (h *testHub) subscribe(t *testing.T, topic, callback string) {
	t.Helper()
	err := h.HandleSubscriptionRequest(context.Background(), SubscriptionRequest{Mode: store.ModeSubscribe, Topic: topic, Callback: callback})
	require.NoError(t, err)
	h.events.wait(t, EventVerified)
}
