package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/plgd-dev/websub-hub/hub/store"
)

// Store keeps subscriptions in a map guarded by a mutex.
type Store struct {
	mutex         sync.Mutex
	subscriptions map[string]*store.Subscription
	now           func() time.Time
}

func New() *Store {
	return &Store{
		subscriptions: make(map[string]*store.Subscription),
		now:           time.Now,
	}
}

func (s *Store) UpsertAttempt(_ context.Context, topic, callback string, attempt store.Attempt) (*store.Subscription, error) {
	if topic == "" || callback == "" || attempt.Challenge == "" {
		return nil, store.ErrInvalidArgument
	}
	now := s.now()
	id := store.MakeID(topic, callback)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		sub = store.NewSubscription(topic, callback, attempt, now)
		s.subscriptions[id] = sub
		return sub.Clone(), nil
	}
	sub.ApplyAttempt(attempt, now)
	return sub.Clone(), nil
}

func (s *Store) ResolveAttempt(_ context.Context, resolution store.Resolution) (*store.Subscription, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	sub, ok := s.subscriptions[resolution.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated := sub.Clone()
	if err := updated.Resolve(resolution); err != nil {
		return nil, err
	}
	s.subscriptions[resolution.ID] = updated
	return updated.Clone(), nil
}

func (s *Store) LoadSubscriptions(_ context.Context, query store.Query, p store.ProcessSubscriptions) error {
	s.mutex.Lock()
	matched := make([]*store.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		if sub.Matches(query) {
			matched = append(matched, sub.Clone())
		}
	}
	s.mutex.Unlock()
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt == matched[j].CreatedAt {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt < matched[j].CreatedAt
	})
	for _, sub := range matched {
		if err := p(sub); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteExpiredSubscriptions(_ context.Context, now time.Time, retention time.Duration) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var deleted int64
	for id, sub := range s.subscriptions {
		if sub.IsStale(now, retention) {
			delete(s.subscriptions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Close(context.Context) error {
	return nil
}
