package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/plgd-dev/websub-hub/hub/store"
	pkgMongo "github.com/plgd-dev/websub-hub/pkg/mongodb"
	pkgTime "github.com/plgd-dev/websub-hub/pkg/time"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const pendingChallengeKey = store.PendingKey + "." + store.ChallengeKey

func (s *Store) upsertAttempt(ctx context.Context, topic, callback string, attempt store.Attempt) (*store.Subscription, error) {
	initial := store.NewSubscription(topic, callback, attempt, time.Now())
	update := bson.M{
		pkgMongo.Set: bson.M{
			store.PendingKey:   attempt,
			store.UpdatedAtKey: initial.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			store.TopicKey:        topic,
			store.CallbackKey:     callback,
			store.StateKey:        initial.State,
			store.CreatedAtKey:    initial.CreatedAt,
			store.LeaseSecondsKey: int64(0),
			store.ExpiresAtKey:    int64(0),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var sub store.Subscription
	err := s.Collection(subscriptionsCol).FindOneAndUpdate(ctx, bson.M{store.IDKey: initial.ID}, update, opts).Decode(&sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) UpsertAttempt(ctx context.Context, topic, callback string, attempt store.Attempt) (*store.Subscription, error) {
	if topic == "" || callback == "" || attempt.Challenge == "" {
		return nil, store.ErrInvalidArgument
	}
	sub, err := s.upsertAttempt(ctx, topic, callback, attempt)
	if mongo.IsDuplicateKeyError(err) {
		// concurrent insert of the same pair, the second upsert updates the inserted record
		sub, err = s.upsertAttempt(ctx, topic, callback, attempt)
	}
	if err != nil {
		return nil, err
	}
	if attempt.Mode != store.ModeSubscribe || (sub.State != store.StateDenied && sub.State != store.StateUnsubscribed) {
		return sub, nil
	}
	res, err := s.Collection(subscriptionsCol).UpdateOne(ctx, bson.D{
		{Key: store.IDKey, Value: sub.ID},
		{Key: pendingChallengeKey, Value: attempt.Challenge},
		{Key: store.StateKey, Value: bson.M{pkgMongo.In: bson.A{store.StateDenied, store.StateUnsubscribed}}},
	}, bson.M{pkgMongo.Set: bson.M{store.StateKey: store.StatePendingVerification}})
	if err != nil {
		return nil, err
	}
	if res.ModifiedCount > 0 {
		sub.State = store.StatePendingVerification
	}
	return sub, nil
}

func resolutionUpdate(r store.Resolution) (bson.M, error) {
	set := bson.M{
		store.UpdatedAtKey: pkgTime.UnixNano(r.ResolvedAt),
	}
	unset := bson.M{
		store.PendingKey: "",
	}
	switch r.Outcome {
	case store.OutcomeVerified:
		unset[store.DenialReasonKey] = ""
		if r.Attempt.Mode == store.ModeUnsubscribe {
			set[store.StateKey] = store.StateUnsubscribed
			set[store.ExpiresAtKey] = int64(0)
			break
		}
		set[store.StateKey] = store.StateVerified
		set[store.LeaseSecondsKey] = r.Attempt.LeaseSeconds
		set[store.SecretKey] = r.Attempt.Secret
		set[store.ExpiresAtKey] = r.ResolvedAt.Add(time.Duration(r.Attempt.LeaseSeconds) * time.Second).UnixNano()
	case store.OutcomeDenied:
		set[store.StateKey] = store.StateDenied
		set[store.DenialReasonKey] = r.Reason
		set[store.ExpiresAtKey] = int64(0)
	case store.OutcomeFailed:
	default:
		return nil, store.ErrInvalidArgument
	}
	return bson.M{
		pkgMongo.Set:   set,
		pkgMongo.Unset: unset,
	}, nil
}

func (s *Store) ResolveAttempt(ctx context.Context, resolution store.Resolution) (*store.Subscription, error) {
	if resolution.ID == "" || resolution.Attempt.Challenge == "" {
		return nil, store.ErrInvalidArgument
	}
	update, err := resolutionUpdate(resolution)
	if err != nil {
		return nil, err
	}
	filter := bson.D{
		{Key: store.IDKey, Value: resolution.ID},
		{Key: pendingChallengeKey, Value: resolution.Attempt.Challenge},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var sub store.Subscription
	err = s.Collection(subscriptionsCol).FindOneAndUpdate(ctx, filter, update, opts).Decode(&sub)
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	count, err := s.Collection(subscriptionsCol).CountDocuments(ctx, bson.M{store.IDKey: resolution.ID})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrNotModified
}

func toFilter(query store.Query) bson.D {
	filter := bson.D{}
	if query.ID != "" {
		filter = append(filter, bson.E{Key: store.IDKey, Value: query.ID})
	}
	if query.Topic != "" {
		filter = append(filter, bson.E{Key: store.TopicKey, Value: query.Topic})
	}
	if query.Callback != "" {
		filter = append(filter, bson.E{Key: store.CallbackKey, Value: query.Callback})
	}
	if len(query.States) > 0 {
		filter = append(filter, bson.E{Key: store.StateKey, Value: bson.M{pkgMongo.In: query.States}})
	}
	if !query.ActiveAt.IsZero() {
		filter = append(filter,
			bson.E{Key: pkgMongo.And, Value: bson.A{
				bson.M{store.StateKey: store.StateVerified},
				bson.M{pkgMongo.Or: bson.A{
					bson.M{store.ExpiresAtKey: int64(0)},
					bson.M{store.ExpiresAtKey: bson.M{pkgMongo.Gt: query.ActiveAt.UnixNano()}},
				}},
			}},
		)
	}
	return filter
}

func processCursor[T any](ctx context.Context, cr *mongo.Cursor, process store.Process[T]) error {
	var errors *multierror.Error
	iter := store.MongoIterator[T]{
		Cursor: cr,
	}
	for {
		var stored T
		if !iter.Next(ctx, &stored) {
			break
		}
		if err := process(&stored); err != nil {
			errors = multierror.Append(errors, err)
			break
		}
	}
	errors = multierror.Append(errors, iter.Err())
	errClose := cr.Close(ctx)
	errors = multierror.Append(errors, errClose)
	return errors.ErrorOrNil()
}

func (s *Store) LoadSubscriptions(ctx context.Context, query store.Query, p store.ProcessSubscriptions) error {
	opts := options.Find().SetSort(bson.D{{Key: store.CreatedAtKey, Value: 1}, {Key: store.IDKey, Value: 1}})
	cur, err := s.Collection(subscriptionsCol).Find(ctx, toFilter(query), opts)
	if err != nil {
		return err
	}
	return processCursor(ctx, cur, p)
}

func (s *Store) DeleteExpiredSubscriptions(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	filter := bson.M{
		pkgMongo.Or: bson.A{
			bson.M{
				store.StateKey:     store.StateVerified,
				store.PendingKey:   bson.M{pkgMongo.Exists: false},
				store.ExpiresAtKey: bson.M{pkgMongo.Gt: int64(0), pkgMongo.Lte: now.UnixNano()},
			},
			bson.M{
				store.StateKey:     bson.M{pkgMongo.Ne: store.StateVerified},
				store.PendingKey:   bson.M{pkgMongo.Exists: false},
				store.UpdatedAtKey: bson.M{pkgMongo.Lte: now.Add(-retention).UnixNano()},
			},
		},
	}
	res, err := s.Collection(subscriptionsCol).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
