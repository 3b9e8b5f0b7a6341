// Package conformance drives a hub through the subscription handshake and content
// distribution and reports which behaviours conform.
package conformance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/plgd-dev/websub-hub/conformance/publisher"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	httpClient "github.com/plgd-dev/websub-hub/pkg/net/http/client"
	"github.com/plgd-dev/websub-hub/subscriber"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Harness owns the publisher double and the subscriber endpoint used by the scenarios.
type Harness struct {
	config     Config
	client     *httpClient.Client
	publisher  *publisher.Publisher
	subscriber *subscriber.Server
	logger     log.Logger
	runID      string
	wg         sync.WaitGroup
}

// New starts the publisher and the subscriber servers.
func New(config Config, logger log.Logger) (*Harness, error) {
	client, err := httpClient.New(config.HTTP, trace.NewNoopTracerProvider())
	if err != nil {
		return nil, fmt.Errorf("cannot create http client: %w", err)
	}
	pub, err := publisher.New(config.Publisher, client.HTTP(), logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	sub, err := subscriber.New(config.Subscriber, logger)
	if err != nil {
		_ = pub.Close()
		client.Close()
		return nil, err
	}
	h := &Harness{
		config:     config,
		client:     client,
		publisher:  pub,
		subscriber: sub,
		logger:     logger,
		runID:      uuid.NewString()[:8],
	}
	for _, serve := range []func() error{pub.Serve, sub.Serve} {
		h.wg.Add(1)
		go func(serve func() error) {
			defer h.wg.Done()
			if errS := serve(); errS != nil {
				logger.Errorf("cannot serve: %w", errS)
			}
		}(serve)
	}
	return h, nil
}

func (h *Harness) Publisher() *publisher.Publisher {
	return h.publisher
}

func (h *Harness) Endpoint() *subscriber.Endpoint {
	return h.subscriber.Endpoint()
}

func (h *Harness) Close() error {
	var errors *multierror.Error
	if err := h.publisher.Close(); err != nil {
		errors = multierror.Append(errors, err)
	}
	if err := h.subscriber.Close(); err != nil {
		errors = multierror.Append(errors, err)
	}
	h.wg.Wait()
	h.client.Close()
	return errors.ErrorOrNil()
}

// Result of one scenario.
type Result struct {
	Scenario   string  `json:"scenario"`
	Passed     bool    `json:"passed"`
	Error      string  `json:"error,omitempty"`
	DurationMs float32 `json:"durationMs"`
}

type Results []Result

func (r Results) Passed() bool {
	for _, v := range r {
		if !v.Passed {
			return false
		}
	}
	return true
}

// Run executes the scenarios, at most config.Parallel at once, and calls report after
// each of them. Results keep the order of the scenarios.
func (h *Harness) Run(ctx context.Context, scenarios []Scenario, report func(Result)) Results {
	results := make(Results, len(scenarios))
	var reportMutex sync.Mutex
	var g errgroup.Group
	g.SetLimit(h.config.Parallel)
	for i, scenario := range scenarios {
		i, scenario := i, scenario
		g.Go(func() error {
			res := h.runScenario(ctx, scenario)
			results[i] = res
			if report != nil {
				reportMutex.Lock()
				defer reportMutex.Unlock()
				report(res)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (h *Harness) runScenario(ctx context.Context, scenario Scenario) Result {
	s := h.newSession(scenario.Name)
	defer s.close(ctx)
	start := time.Now()
	err := scenario.Run(ctx, s)
	res := Result{
		Scenario:   scenario.Name,
		Passed:     err == nil,
		DurationMs: log.DurationToMilliseconds(time.Since(start)),
	}
	if err != nil {
		res.Error = err.Error()
		h.logger.With("scenario", scenario.Name).Debugf("scenario failed: %w", err)
	}
	return res
}

// Session isolates a scenario: it owns a topic and a callback registration.
type Session struct {
	h            *Harness
	name         string
	topicName    string
	recorder     *subscriber.Recorder
	registration string
	// confirmed subscriptions are unsubscribed when the session ends
	confirmed []string
}

var topicNameReplacer = strings.NewReplacer(" ", "-", ":", "", "/", "-", ".", "")

func (h *Harness) newSession(name string) *Session {
	recorder := subscriber.NewRecorder(32)
	return &Session{
		h:            h,
		name:         name,
		topicName:    h.runID + "-" + topicNameReplacer.Replace(strings.ToLower(name)),
		recorder:     recorder,
		registration: h.subscriber.Endpoint().Register(recorder),
	}
}

func (s *Session) close(ctx context.Context) {
	for _, callback := range s.confirmed {
		status, _, err := s.SubscriptionRequest(ctx, UnsubscribeMode, s.Topic(), callback, nil)
		if err != nil || status != http.StatusAccepted {
			continue
		}
		_, _ = s.WaitVerification(ctx, UnsubscribeMode)
	}
	s.h.subscriber.Endpoint().Unregister(s.registration)
}

// Recorder returns the observer of the session callback.
func (s *Session) Recorder() *subscriber.Recorder {
	return s.recorder
}

// Topic returns the self URL of the session resource.
func (s *Session) Topic() string {
	return s.h.publisher.ResourceURL(s.topicName)
}

func (s *Session) HubURL() string {
	return s.h.config.HubURL
}

// Callback returns the session callback URL with the raw query appended.
func (s *Session) Callback(rawQuery string) string {
	u := s.h.subscriber.Endpoint().CallbackURL(s.registration)
	if rawQuery == "" {
		return u
	}
	return u + "?" + rawQuery
}

// Discover fetches the session resource and returns its response.
func (s *Session) Discover(ctx context.Context) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Topic(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.h.client.HTTP().Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch resource: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read resource: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %v of resource", resp.StatusCode)
	}
	res := &Resource{
		ContentType: resp.Header.Get(pkgHttp.ContentTypeHeaderKey),
		Body:        body,
	}
	res.Self, _ = pkgHttp.FindLink(resp.Header, pkgHttp.RelSelf)
	res.Hub, _ = pkgHttp.FindLink(resp.Header, pkgHttp.RelHub)
	return res, nil
}

// Resource is a discovered resource.
type Resource struct {
	Self        string
	Hub         string
	ContentType string
	Body        []byte
}

const (
	SubscribeMode   = "subscribe"
	UnsubscribeMode = "unsubscribe"
)

// PostHub sends the form to the hub and returns the status code and the body.
func (s *Session) PostHub(ctx context.Context, form url.Values) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.h.config.HubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.FormContentType)
	resp, err := s.h.client.HTTP().Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("cannot post to hub: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("cannot read hub response: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

// SubscriptionRequest posts a subscribe or unsubscribe request. Empty values are omitted.
func (s *Session) SubscriptionRequest(ctx context.Context, mode, topic, callback string, extra url.Values) (int, string, error) {
	form := url.Values{}
	for k, v := range extra {
		form[k] = append(form[k], v...)
	}
	for k, v := range map[string]string{"hub.mode": mode, "hub.topic": topic, "hub.callback": callback} {
		if v != "" {
			form.Set(k, v)
		}
	}
	return s.PostHub(ctx, form)
}

// Subscribe subscribes the callback to the session topic and waits for its verification.
func (s *Session) Subscribe(ctx context.Context, callback string) (subscriber.Verification, error) {
	if err := expectAccepted(s.SubscriptionRequest(ctx, SubscribeMode, s.Topic(), callback, nil)); err != nil {
		return subscriber.Verification{}, err
	}
	v, err := s.WaitVerification(ctx, SubscribeMode)
	if err != nil {
		return v, err
	}
	if !v.Query.Has("wontconfirm") {
		s.confirmed = append(s.confirmed, callback)
	}
	return v, s.settle(ctx)
}

// Unsubscribe unsubscribes the callback from the session topic and waits for its verification.
func (s *Session) Unsubscribe(ctx context.Context, callback string) error {
	if err := expectAccepted(s.SubscriptionRequest(ctx, UnsubscribeMode, s.Topic(), callback, nil)); err != nil {
		return err
	}
	if _, err := s.WaitVerification(ctx, UnsubscribeMode); err != nil {
		return err
	}
	for i, c := range s.confirmed {
		if c == callback {
			s.confirmed = append(s.confirmed[:i], s.confirmed[i+1:]...)
			break
		}
	}
	return s.settle(ctx)
}

// settle gives the hub time to commit an observed verification.
func (s *Session) settle(ctx context.Context) error {
	select {
	case <-time.After(s.h.config.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func expectAccepted(status int, body string, err error) error {
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return fmt.Errorf("expected status code 202, got %v: %v", status, body)
	}
	return nil
}

// Publish changes the session resource and pings the hub.
func (s *Session) Publish(ctx context.Context) error {
	return s.h.publisher.Publish(ctx, s.topicName)
}

// Content returns the current body of the session resource.
func (s *Session) Content() string {
	return s.h.publisher.Content(s.topicName)
}

// WaitVerification waits for a verification request with the mode.
func (s *Session) WaitVerification(ctx context.Context, mode string) (subscriber.Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.h.config.Timeout)
	defer cancel()
	for {
		select {
		case v := <-s.recorder.Verifications:
			if v.Mode == mode {
				return v, nil
			}
		case <-ctx.Done():
			return subscriber.Verification{}, fmt.Errorf("no %v verification received: %w", mode, ctx.Err())
		}
	}
}

func (s *Session) WaitDenial(ctx context.Context) (subscriber.Denial, error) {
	ctx, cancel := context.WithTimeout(ctx, s.h.config.Timeout)
	defer cancel()
	select {
	case d := <-s.recorder.Denials:
		return d, nil
	case <-ctx.Done():
		return subscriber.Denial{}, fmt.Errorf("no denial received: %w", ctx.Err())
	}
}

func (s *Session) WaitNotification(ctx context.Context) (subscriber.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.h.config.Timeout)
	defer cancel()
	select {
	case n := <-s.recorder.Notifications:
		return n, nil
	case <-ctx.Done():
		return subscriber.Notification{}, fmt.Errorf("no notification received: %w", ctx.Err())
	}
}

// ExpectQuiet fails when the session callback receives a notification or a verification
// during the quiet period.
func (s *Session) ExpectQuiet(ctx context.Context) error {
	timer := time.NewTimer(s.h.config.QuietPeriod)
	defer timer.Stop()
	select {
	case n := <-s.recorder.Notifications:
		return fmt.Errorf("unexpected notification of %v bytes", len(n.Body))
	case v := <-s.recorder.Verifications:
		return fmt.Errorf("unexpected %v verification", v.Mode)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
