package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/stretchr/testify/require"
)

const (
	Topic    = "http://publisher.test/resource"
	Callback = "http://subscriber.test/callback?registration=1"
)

func subscribeAttempt(challenge string) store.Attempt {
	return store.Attempt{
		Mode:         store.ModeSubscribe,
		Challenge:    challenge,
		LeaseSeconds: 3600,
		Secret:       "secret",
		RequestedAt:  time.Now().UnixNano(),
	}
}

func unsubscribeAttempt(challenge string) store.Attempt {
	return store.Attempt{
		Mode:         store.ModeUnsubscribe,
		Challenge:    challenge,
		LeaseSeconds: 3600,
		RequestedAt:  time.Now().UnixNano(),
	}
}

func loadAll(ctx context.Context, t *testing.T, s store.Store, q store.Query) []*store.Subscription {
	var subs []*store.Subscription
	err := s.LoadSubscriptions(ctx, q, func(v *store.Subscription) error {
		subs = append(subs, v.Clone())
		return nil
	})
	require.NoError(t, err)
	return subs
}

// RunStoreTests exercises the behaviour shared by every store implementation.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("upsert is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		sub1, err := s.UpsertAttempt(ctx, Topic, Callback, subscribeAttempt("c1"))
		require.NoError(t, err)
		require.Equal(t, store.StatePendingVerification, sub1.State)
		sub2, err := s.UpsertAttempt(ctx, Topic, Callback, subscribeAttempt("c2"))
		require.NoError(t, err)
		require.Equal(t, sub1.ID, sub2.ID)
		require.Equal(t, "c2", sub2.Pending.Challenge)
		require.Len(t, loadAll(ctx, t, s, store.Query{Topic: Topic}), 1)

		_, err = s.UpsertAttempt(ctx, Topic, Callback, store.Attempt{Mode: store.ModeSubscribe})
		require.ErrorIs(t, err, store.ErrInvalidArgument)
	})

	t.Run("superseded attempt is discarded", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := subscribeAttempt("c1")
		sub, err := s.UpsertAttempt(ctx, Topic, Callback, first)
		require.NoError(t, err)
		second := subscribeAttempt("c2")
		_, err = s.UpsertAttempt(ctx, Topic, Callback, second)
		require.NoError(t, err)

		_, err = s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: first, Outcome: store.OutcomeVerified, ResolvedAt: time.Now()})
		require.ErrorIs(t, err, store.ErrNotModified)

		verified, err := s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: second, Outcome: store.OutcomeVerified, ResolvedAt: time.Now()})
		require.NoError(t, err)
		require.Equal(t, store.StateVerified, verified.State)
		require.Nil(t, verified.Pending)
		require.Equal(t, int64(3600), verified.LeaseSeconds)
		require.Equal(t, "secret", verified.Secret)

		_, err = s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: second, Outcome: store.OutcomeVerified, ResolvedAt: time.Now()})
		require.ErrorIs(t, err, store.ErrNotModified)
		_, err = s.ResolveAttempt(ctx, store.Resolution{ID: "unknown", Attempt: second, Outcome: store.OutcomeVerified, ResolvedAt: time.Now()})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()
		attempt := subscribeAttempt("c1")
		sub, err := s.UpsertAttempt(ctx, Topic, Callback, attempt)
		require.NoError(t, err)
		require.Empty(t, loadAll(ctx, t, s, store.Query{Topic: Topic, ActiveAt: now}))

		_, err = s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: attempt, Outcome: store.OutcomeVerified, ResolvedAt: now})
		require.NoError(t, err)
		active := loadAll(ctx, t, s, store.Query{Topic: Topic, ActiveAt: now})
		require.Len(t, active, 1)
		require.Empty(t, loadAll(ctx, t, s, store.Query{Topic: Topic, ActiveAt: now.Add(2 * time.Hour)}))

		// a pending re-subscription keeps delivering to the verified record
		_, err = s.UpsertAttempt(ctx, Topic, Callback, subscribeAttempt("c2"))
		require.NoError(t, err)
		require.Len(t, loadAll(ctx, t, s, store.Query{Topic: Topic, ActiveAt: now}), 1)

		unsubscribe := unsubscribeAttempt("c3")
		_, err = s.UpsertAttempt(ctx, Topic, Callback, unsubscribe)
		require.NoError(t, err)
		require.Len(t, loadAll(ctx, t, s, store.Query{Topic: Topic, ActiveAt: now}), 1)
		unsubscribed, err := s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: unsubscribe, Outcome: store.OutcomeVerified, ResolvedAt: now})
		require.NoError(t, err)
		require.Equal(t, store.StateUnsubscribed, unsubscribed.State)
		require.Empty(t, loadAll(ctx, t, s, store.Query{Topic: Topic, ActiveAt: now}))

		// subscribe after unsubscribe starts pending again
		resubscribed, err := s.UpsertAttempt(ctx, Topic, Callback, subscribeAttempt("c4"))
		require.NoError(t, err)
		require.Equal(t, store.StatePendingVerification, resubscribed.State)
	})

	t.Run("denied", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		attempt := subscribeAttempt("c1")
		sub, err := s.UpsertAttempt(ctx, Topic, Callback, attempt)
		require.NoError(t, err)
		denied, err := s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: attempt, Outcome: store.OutcomeDenied, Reason: "denied by policy", ResolvedAt: time.Now()})
		require.NoError(t, err)
		require.Equal(t, store.StateDenied, denied.State)
		require.Equal(t, "denied by policy", denied.DenialReason)
		subs := loadAll(ctx, t, s, store.Query{States: []store.State{store.StateDenied}})
		require.Len(t, subs, 1)
		require.Equal(t, sub.ID, subs[0].ID)
	})

	t.Run("unsubscribe of unknown subscription", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		sub, err := s.UpsertAttempt(ctx, Topic, Callback, unsubscribeAttempt("c1"))
		require.NoError(t, err)
		require.Equal(t, store.StateUnsubscribed, sub.State)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()
		verify := func(callback string, outcome store.Outcome) {
			attempt := subscribeAttempt("c-" + callback)
			sub, err := s.UpsertAttempt(ctx, Topic, callback, attempt)
			require.NoError(t, err)
			_, err = s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: attempt, Outcome: outcome, ResolvedAt: now})
			require.NoError(t, err)
		}
		verify("http://a", store.OutcomeVerified)
		verify("http://b", store.OutcomeDenied)
		_, err := s.UpsertAttempt(ctx, Topic, "http://c", subscribeAttempt("c-c"))
		require.NoError(t, err)

		deleted, err := s.DeleteExpiredSubscriptions(ctx, now, time.Hour)
		require.NoError(t, err)
		require.Equal(t, int64(0), deleted)

		deleted, err = s.DeleteExpiredSubscriptions(ctx, now.Add(2*time.Hour), time.Hour)
		require.NoError(t, err)
		require.Equal(t, int64(2), deleted)
		subs := loadAll(ctx, t, s, store.Query{})
		require.Len(t, subs, 1)
		require.Equal(t, "http://c", subs[0].Callback)
	})

	t.Run("expired lease with pending renewal survives sweep", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()
		first := subscribeAttempt("c1")
		first.LeaseSeconds = 1
		sub, err := s.UpsertAttempt(ctx, Topic, Callback, first)
		require.NoError(t, err)
		_, err = s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: first, Outcome: store.OutcomeVerified, ResolvedAt: now.Add(-2 * time.Second)})
		require.NoError(t, err)

		renewal := subscribeAttempt("c2")
		_, err = s.UpsertAttempt(ctx, Topic, Callback, renewal)
		require.NoError(t, err)
		deleted, err := s.DeleteExpiredSubscriptions(ctx, now, time.Hour)
		require.NoError(t, err)
		require.Equal(t, int64(0), deleted)

		renewed, err := s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: renewal, Outcome: store.OutcomeVerified, ResolvedAt: now})
		require.NoError(t, err)
		require.Equal(t, store.StateVerified, renewed.State)
		require.Len(t, loadAll(ctx, t, s, store.Query{Topic: Topic, ActiveAt: now}), 1)

		deleted, err = s.DeleteExpiredSubscriptions(ctx, now.Add(2*time.Hour), time.Hour)
		require.NoError(t, err)
		require.Equal(t, int64(1), deleted)
	})

	t.Run("concurrent resolutions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		attempt := subscribeAttempt("c1")
		sub, err := s.UpsertAttempt(ctx, Topic, Callback, attempt)
		require.NoError(t, err)
		var wg sync.WaitGroup
		var mutex sync.Mutex
		applied := 0
		for _, outcome := range []store.Outcome{store.OutcomeVerified, store.OutcomeDenied, store.OutcomeFailed, store.OutcomeVerified} {
			wg.Add(1)
			go func(outcome store.Outcome) {
				defer wg.Done()
				_, errR := s.ResolveAttempt(ctx, store.Resolution{ID: sub.ID, Attempt: attempt, Outcome: outcome, ResolvedAt: time.Now()})
				if errR == nil {
					mutex.Lock()
					applied++
					mutex.Unlock()
				}
			}(outcome)
		}
		wg.Wait()
		require.Equal(t, 1, applied)
	})
}
