package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// bounds the verification response, a longer body cannot echo the challenge
const maxVerificationBodySize = 4096

type verificationQuery struct {
	Mode         string `url:"hub.mode"`
	Topic        string `url:"hub.topic"`
	Challenge    string `url:"hub.challenge,omitempty"`
	LeaseSeconds int64  `url:"hub.lease_seconds,omitempty"`
	Reason       string `url:"hub.reason,omitempty"`
}

// verificationURL appends the query to the callback. The query of the callback is kept as is.
func verificationURL(callback string, q verificationQuery) (string, error) {
	v, err := query.Values(q)
	if err != nil {
		return "", fmt.Errorf("cannot encode verification query: %w", err)
	}
	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("cannot parse callback: %w", err)
	}
	if u.RawQuery == "" {
		u.RawQuery = v.Encode()
	} else {
		u.RawQuery += "&" + v.Encode()
	}
	return u.String(), nil
}

func (h *Hub) getCallback(ctx context.Context, callback string, q verificationQuery) (int, []byte, error) {
	u, err := verificationURL(callback, q)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("cannot create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVerificationBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("cannot read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// verify confirms the intent of the subscriber by echoing the challenge.
func (h *Hub) verify(sub *store.Subscription, attempt store.Attempt) {
	ctx, span := h.tracer.Start(h.ctx, "verify")
	defer span.End()
	span.SetAttributes(attribute.String("websub.mode", string(attempt.Mode)), attribute.String("websub.topic", sub.Topic))

	statusCode, body, err := h.getCallback(ctx, sub.Callback, verificationQuery{
		Mode:         string(attempt.Mode),
		Topic:        sub.Topic,
		Challenge:    attempt.Challenge,
		LeaseSeconds: attempt.LeaseSeconds,
	})
	var failure *VerificationFailure
	switch {
	case err != nil:
		failure = &VerificationFailure{Callback: sub.Callback, Reason: err.Error()}
	case !isSuccess(statusCode):
		failure = &VerificationFailure{Callback: sub.Callback, StatusCode: statusCode, Reason: "unexpected status code"}
	case string(body) != attempt.Challenge:
		failure = &VerificationFailure{Callback: sub.Callback, StatusCode: statusCode, Reason: "challenge mismatch"}
	}
	if failure != nil {
		span.SetStatus(codes.Error, failure.Error())
		h.subscriptionLogger(sub).Warnf("%w", failure)
		h.resolve(ctx, sub, attempt, store.OutcomeFailed, failure.Reason)
		return
	}
	h.resolve(ctx, sub, attempt, store.OutcomeVerified, "")
}

// deny informs the subscriber that the subscription was rejected. The denial is final
// regardless of the response.
func (h *Hub) deny(sub *store.Subscription, attempt store.Attempt, reason string) {
	ctx, span := h.tracer.Start(h.ctx, "deny")
	defer span.End()
	span.SetAttributes(attribute.String("websub.topic", sub.Topic))

	statusCode, _, err := h.getCallback(ctx, sub.Callback, verificationQuery{
		Mode:   uri.DeniedMode,
		Topic:  sub.Topic,
		Reason: reason,
	})
	logger := h.subscriptionLogger(sub)
	switch {
	case err != nil:
		logger.Debugf("cannot notify denial: %w", err)
	case !isSuccess(statusCode):
		logger.Debugf("denial notification answered with status code %v", statusCode)
	}
	h.resolve(ctx, sub, attempt, store.OutcomeDenied, reason)
}

func resolutionEvent(mode store.Mode, outcome store.Outcome) EventKind {
	switch outcome {
	case store.OutcomeVerified:
		if mode == store.ModeUnsubscribe {
			return EventUnsubscribed
		}
		return EventVerified
	case store.OutcomeDenied:
		return EventDenied
	}
	return EventVerificationFailed
}

// resolve commits the outcome unless the attempt was superseded meanwhile.
func (h *Hub) resolve(ctx context.Context, sub *store.Subscription, attempt store.Attempt, outcome store.Outcome, reason string) {
	logger := h.subscriptionLogger(sub).With(log.ModeKey, attempt.Mode)
	updated, err := h.store.ResolveAttempt(ctx, store.Resolution{
		ID:         sub.ID,
		Attempt:    attempt,
		Outcome:    outcome,
		Reason:     reason,
		ResolvedAt: time.Now(),
	})
	switch {
	case errors.Is(err, store.ErrNotModified):
		logger.Debugf("attempt was superseded, %v outcome discarded", outcome)
		return
	case errors.Is(err, store.ErrNotFound):
		logger.Debugf("subscription was removed, %v outcome discarded", outcome)
		return
	case err != nil:
		logger.Errorf("cannot resolve attempt: %w", err)
		return
	}
	h.metrics.ObserveVerification(string(attempt.Mode), string(outcome))
	logger.Infof("attempt resolved as %v, state %v", outcome, updated.State)
	ev := newEvent(resolutionEvent(attempt.Mode, outcome), updated)
	ev.Reason = reason
	h.events.PublishEvent(ev)
}
