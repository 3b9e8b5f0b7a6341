package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type Iterator[T any] interface {
	Next(ctx context.Context, v *T) bool
	Err() error
}

type (
	Process[T any]       func(v *T) error
	ProcessSubscriptions = Process[Subscription]
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotModified     = errors.New("not modified")
	ErrInvalidArgument = errors.New("invalid argument")
)

type MongoIterator[T any] struct {
	Cursor *mongo.Cursor
	err    error
}

func (i *MongoIterator[T]) Next(ctx context.Context, s *T) bool {
	if !i.Cursor.Next(ctx) {
		return false
	}
	if err := i.Cursor.Decode(s); err != nil {
		i.err = err
		return false
	}
	return true
}

func (i *MongoIterator[T]) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.Cursor.Err()
}

// Query selects subscriptions. Empty fields match everything.
type Query struct {
	ID       string
	Topic    string
	Callback string
	States   []State
	// ActiveAt selects verified subscriptions whose lease has not expired at the time.
	ActiveAt time.Time
}

type Store interface {
	// UpsertAttempt stores a new pending attempt for the (topic, callback) pair. A pending
	// attempt of an existing record is superseded.
	UpsertAttempt(ctx context.Context, topic, callback string, attempt Attempt) (*Subscription, error)
	// ResolveAttempt applies the outcome of the attempt with the resolution challenge.
	// ErrNotModified is returned when the attempt was superseded, ErrNotFound when the record is gone.
	ResolveAttempt(ctx context.Context, resolution Resolution) (*Subscription, error)
	// LoadSubscriptions calls p for every subscription matching the query.
	LoadSubscriptions(ctx context.Context, query Query, p ProcessSubscriptions) error
	// DeleteExpiredSubscriptions removes verified subscriptions with expired lease and terminal
	// records which were not updated during the retention.
	DeleteExpiredSubscriptions(ctx context.Context, now time.Time, retention time.Duration) (int64, error)

	Close(ctx context.Context) error
}

// LoadSubscription returns the subscription with the id.
func LoadSubscription(ctx context.Context, s Store, id string) (*Subscription, error) {
	var found *Subscription
	err := s.LoadSubscriptions(ctx, Query{ID: id}, func(v *Subscription) error {
		found = v.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}
