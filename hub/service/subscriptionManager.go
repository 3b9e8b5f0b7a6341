package service

import (
	"context"
	"fmt"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgTime "github.com/plgd-dev/websub-hub/pkg/time"
)

// HandleSubscriptionRequest stores the attempt and dispatches its verification, or its
// denial when the acceptance policy rejects it. The outcome is not awaited.
func (h *Hub) HandleSubscriptionRequest(ctx context.Context, req SubscriptionRequest) error {
	if req.Mode == store.ModeSubscribe {
		if err := h.discoverer.ValidateTopic(ctx, req.Topic); err != nil {
			return err
		}
	}
	challenge, err := newChallenge()
	if err != nil {
		return err
	}
	attempt := store.Attempt{
		Mode:         req.Mode,
		Challenge:    challenge,
		LeaseSeconds: h.config.Lease.Clamp(req.LeaseSeconds),
		Secret:       req.Secret,
		RequestedAt:  pkgTime.UnixNano(time.Now()),
	}
	sub, err := h.store.UpsertAttempt(ctx, req.Topic, req.Callback, attempt)
	if err != nil {
		return fmt.Errorf("cannot store %v attempt: %w", req.Mode, err)
	}
	logger := h.subscriptionLogger(sub).With(log.ModeKey, req.Mode)
	logger.Debugf("attempt stored")
	if sub.State == store.StatePendingVerification {
		h.events.PublishEvent(newEvent(EventPendingVerification, sub))
	}

	task := func() {
		h.verify(sub, attempt)
	}
	if req.Mode == store.ModeSubscribe {
		if ok, reason := h.policy.Accept(ctx, req); !ok {
			logger.Infof("subscription rejected by policy: %v", reason)
			task = func() {
				h.deny(sub, attempt, reason)
			}
		}
	}
	if err = h.queue.Submit(task); err != nil {
		// the attempt would stay pending forever
		h.resolve(context.Background(), sub, attempt, store.OutcomeFailed, "")
		return fmt.Errorf("cannot dispatch verification: %w", err)
	}
	return nil
}
