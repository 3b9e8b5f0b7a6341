package conformance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	"github.com/plgd-dev/websub-hub/subscriber"
)

// Scenario is a single conformance check.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, s *Session) error
}

// Query of a callback which never confirms verifications.
const wontConfirm = subscriber.WontConfirmKey + "=true"

func expectEqual(what string, want, got interface{}) error {
	if want != got {
		return fmt.Errorf("%v: expected '%v', got '%v'", what, want, got)
	}
	return nil
}

func expectRejected(status int, body string, err error, param string) error {
	if err != nil {
		return err
	}
	if status < 400 || status >= 600 {
		return fmt.Errorf("expected status code 4xx or 5xx, got %v", status)
	}
	if param != "" && !strings.Contains(body, param) {
		return fmt.Errorf("response body '%v' does not mention %v", body, param)
	}
	return nil
}

func discoveryScenarios() []Scenario {
	return []Scenario{
		{
			Name: "discovery: resource advertises a self link",
			Run: func(ctx context.Context, s *Session) error {
				res, err := s.Discover(ctx)
				if err != nil {
					return err
				}
				if res.Self == "" {
					return errors.New("resource has no self link")
				}
				return nil
			},
		},
		{
			Name: "discovery: resource advertises the hub",
			Run: func(ctx context.Context, s *Session) error {
				res, err := s.Discover(ctx)
				if err != nil {
					return err
				}
				return expectEqual("hub link", s.HubURL(), res.Hub)
			},
		},
	}
}

func subscribingScenarios() []Scenario {
	accepted := func(callback func(s *Session) string, extra url.Values) func(ctx context.Context, s *Session) error {
		return func(ctx context.Context, s *Session) error {
			return expectAccepted(s.SubscriptionRequest(ctx, SubscribeMode, s.Topic(), callback(s), extra))
		}
	}
	wontConfirmCallback := func(s *Session) string {
		return s.Callback(wontConfirm)
	}
	missing := func(param string) func(ctx context.Context, s *Session) error {
		return func(ctx context.Context, s *Session) error {
			form := url.Values{}
			form.Set("hub.mode", SubscribeMode)
			form.Set("hub.topic", s.Topic())
			form.Set("hub.callback", s.Callback(wontConfirm))
			form.Del(param)
			status, body, err := s.PostHub(ctx, form)
			return expectRejected(status, body, err, param)
		}
	}
	return []Scenario{
		{
			Name: "subscribing: valid subscription request returns 202",
			Run:  accepted(wontConfirmCallback, nil),
		},
		{
			Name: "subscribing: accepts http callback urls",
			Run: accepted(func(s *Session) string {
				return strings.Replace(s.Callback(wontConfirm), "https://", "http://", 1)
			}, nil),
		},
		{
			Name: "subscribing: accepts https callback urls",
			Run: accepted(func(s *Session) string {
				return strings.Replace(s.Callback(wontConfirm), "http://", "https://", 1)
			}, nil),
		},
		{
			Name: "subscribing: accepts callback urls with extra query parameters",
			Run: accepted(func(s *Session) string {
				return s.Callback(wontConfirm + "&extra=more")
			}, nil),
		},
		{
			Name: "subscribing: accepts only the discovered self link",
			Run: func(ctx context.Context, s *Session) error {
				res, err := s.Discover(ctx)
				if err != nil {
					return err
				}
				status, body, err := s.SubscriptionRequest(ctx, SubscribeMode, res.Self+"?somextra", s.Callback(wontConfirm), nil)
				return expectRejected(status, body, err, "")
			},
		},
		{
			Name: "subscribing: rejects a request without hub.callback",
			Run:  missing("hub.callback"),
		},
		{
			Name: "subscribing: rejects a request without hub.mode",
			Run:  missing("hub.mode"),
		},
		{
			Name: "subscribing: rejects a request without hub.topic",
			Run:  missing("hub.topic"),
		},
		{
			Name: "subscribing: ignores unknown parameters",
			Run:  accepted(wontConfirmCallback, url.Values{"another": []string{"param"}}),
		},
		{
			Name: "subscribing: accepts re-subscriptions",
			Run: func(ctx context.Context, s *Session) error {
				for i := 0; i < 2; i++ {
					if err := expectAccepted(s.SubscriptionRequest(ctx, SubscribeMode, s.Topic(), s.Callback(wontConfirm), nil)); err != nil {
						return fmt.Errorf("request %v: %w", i+1, err)
					}
				}
				return nil
			},
		},
	}
}

func validationScenarios() []Scenario {
	return []Scenario{
		{
			Name: "validation: denied subscription is reported to the subscriber",
			Run: func(ctx context.Context, s *Session) error {
				if err := expectAccepted(s.SubscriptionRequest(ctx, SubscribeMode, s.Topic(), s.Callback(wontConfirm+"&publisher=denied"), nil)); err != nil {
					return err
				}
				d, err := s.WaitDenial(ctx)
				if err != nil {
					return err
				}
				var errs *multierror.Error
				errs = multierror.Append(errs, expectEqual("hub.mode", "denied", d.Query.Get("hub.mode")))
				errs = multierror.Append(errs, expectEqual("hub.topic", s.Topic(), d.Topic))
				// a denied attempt is never verified
				errs = multierror.Append(errs, s.ExpectQuiet(ctx))
				return errs.ErrorOrNil()
			},
		},
		{
			Name: "verification: request carries the subscription details",
			Run: func(ctx context.Context, s *Session) error {
				v, err := s.Subscribe(ctx, s.Callback(wontConfirm))
				if err != nil {
					return err
				}
				var errs *multierror.Error
				errs = multierror.Append(errs, expectEqual("hub.mode", SubscribeMode, v.Mode))
				errs = multierror.Append(errs, expectEqual("hub.topic", s.Topic(), v.Topic))
				if v.Challenge == "" {
					errs = multierror.Append(errs, errors.New("hub.challenge is empty"))
				}
				lease, err := strconv.ParseInt(v.LeaseSeconds, 10, 64)
				if err != nil {
					errs = multierror.Append(errs, fmt.Errorf("hub.lease_seconds('%v'): %w", v.LeaseSeconds, err))
				} else {
					errs = multierror.Append(errs, expectEqual("hub.lease_seconds", v.LeaseSeconds, strconv.FormatInt(lease, 10)))
				}
				return errs.ErrorOrNil()
			},
		},
	}
}

func distributionScenarios() []Scenario {
	return []Scenario{
		{
			Name: "distribution: verified subscriber receives the content",
			Run: func(ctx context.Context, s *Session) error {
				res, err := s.Discover(ctx)
				if err != nil {
					return err
				}
				if _, err = s.Subscribe(ctx, s.Callback("")); err != nil {
					return err
				}
				if err = s.Publish(ctx); err != nil {
					return err
				}
				n, err := s.WaitNotification(ctx)
				if err != nil {
					return err
				}
				var errs *multierror.Error
				if !pkgHttp.SameMediaType(res.ContentType, n.ContentType) {
					errs = multierror.Append(errs, fmt.Errorf("content type: expected '%v', got '%v'", res.ContentType, n.ContentType))
				}
				self, _ := n.Link(pkgHttp.RelSelf)
				errs = multierror.Append(errs, expectEqual("self link", res.Self, self))
				hub, _ := n.Link(pkgHttp.RelHub)
				errs = multierror.Append(errs, expectEqual("hub link", res.Hub, hub))
				errs = multierror.Append(errs, expectEqual("body", s.Content(), string(n.Body)))
				// exactly one notification per publish
				errs = multierror.Append(errs, s.ExpectQuiet(ctx))
				return errs.ErrorOrNil()
			},
		},
		{
			Name: "distribution: failed notification is retried until 2xx",
			Run: func(ctx context.Context, s *Session) error {
				s.Recorder().SetNotifyStatus(func(n int) int {
					if n == 1 {
						return http.StatusBadRequest
					}
					return http.StatusOK
				})
				if _, err := s.Subscribe(ctx, s.Callback("")); err != nil {
					return err
				}
				if err := s.Publish(ctx); err != nil {
					return err
				}
				first, err := s.WaitNotification(ctx)
				if err != nil {
					return err
				}
				retry, err := s.WaitNotification(ctx)
				if err != nil {
					return fmt.Errorf("notification was not retried: %w", err)
				}
				var errs *multierror.Error
				errs = multierror.Append(errs, expectEqual("retried body", string(first.Body), string(retry.Body)))
				errs = multierror.Append(errs, s.ExpectQuiet(ctx))
				errs = multierror.Append(errs, expectEqual("notification count", 2, s.Recorder().NotificationCount()))
				return errs.ErrorOrNil()
			},
		},
		{
			Name: "distribution: denied subscriptions receive nothing",
			Run: func(ctx context.Context, s *Session) error {
				if err := expectAccepted(s.SubscriptionRequest(ctx, SubscribeMode, s.Topic(), s.Callback("publisher=denied"), nil)); err != nil {
					return err
				}
				if _, err := s.WaitDenial(ctx); err != nil {
					return err
				}
				if err := s.Publish(ctx); err != nil {
					return err
				}
				return s.ExpectQuiet(ctx)
			},
		},
		{
			Name: "distribution: unverified subscriptions receive nothing",
			Run: func(ctx context.Context, s *Session) error {
				if _, err := s.Subscribe(ctx, s.Callback(wontConfirm)); err != nil {
					return err
				}
				if err := s.Publish(ctx); err != nil {
					return err
				}
				return s.ExpectQuiet(ctx)
			},
		},
		{
			Name: "distribution: unsubscribed subscriptions receive nothing",
			Run: func(ctx context.Context, s *Session) error {
				callback := s.Callback("")
				if _, err := s.Subscribe(ctx, callback); err != nil {
					return err
				}
				if err := s.Unsubscribe(ctx, callback); err != nil {
					return err
				}
				if err := s.Publish(ctx); err != nil {
					return err
				}
				return s.ExpectQuiet(ctx)
			},
		},
	}
}

// Scenarios returns the whole suite.
func Scenarios() []Scenario {
	var scenarios []Scenario
	scenarios = append(scenarios, discoveryScenarios()...)
	scenarios = append(scenarios, subscribingScenarios()...)
	scenarios = append(scenarios, validationScenarios()...)
	scenarios = append(scenarios, distributionScenarios()...)
	return scenarios
}
