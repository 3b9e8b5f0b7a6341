package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgTime "github.com/plgd-dev/websub-hub/pkg/time"
)

type State string

const (
	StatePendingVerification State = "PendingVerification"
	StateVerified            State = "Verified"
	StateDenied              State = "Denied"
	StateUnsubscribed        State = "Unsubscribed"
)

func ParseState(s string) (State, error) {
	for _, v := range []State{StatePendingVerification, StateVerified, StateDenied, StateUnsubscribed} {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown state('%v')", ErrInvalidArgument, s)
}

type Mode string

const (
	ModeSubscribe   Mode = "subscribe"
	ModeUnsubscribe Mode = "unsubscribe"
)

// Outcome of a pending attempt.
type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeFailed   Outcome = "failed"
	OutcomeDenied   Outcome = "denied"
)

const (
	IDKey           = "_id"
	TopicKey        = "topic"
	CallbackKey     = "callback"
	StateKey        = "state"
	SecretKey       = "secret"
	LeaseSecondsKey = "leaseSeconds"
	ExpiresAtKey    = "expiresAt"
	CreatedAtKey    = "createdAt"
	UpdatedAtKey    = "updatedAt"
	PendingKey      = "pending"
	DenialReasonKey = "denialReason"
	ChallengeKey    = "challenge"
)

// Attempt is a subscribe or unsubscribe request waiting for its verification.
type Attempt struct {
	Mode         Mode   `bson:"mode" json:"mode"`
	Challenge    string `bson:"challenge" json:"-"`
	LeaseSeconds int64  `bson:"leaseSeconds" json:"leaseSeconds"`
	Secret       string `bson:"secret,omitempty" json:"-"`
	RequestedAt  int64  `bson:"requestedAt" json:"requestedAt"`
}

// Resolution is the outcome of the attempt, matched by its challenge.
type Resolution struct {
	ID         string
	Attempt    Attempt
	Outcome    Outcome
	Reason     string
	ResolvedAt time.Time
}

type Subscription struct {
	ID           string   `bson:"_id" json:"id"`
	Topic        string   `bson:"topic" json:"topic"`
	Callback     string   `bson:"callback" json:"callback"`
	Secret       string   `bson:"secret,omitempty" json:"-"`
	LeaseSeconds int64    `bson:"leaseSeconds" json:"leaseSeconds"`
	State        State    `bson:"state" json:"state"`
	ExpiresAt    int64    `bson:"expiresAt" json:"expiresAt,omitempty"`
	CreatedAt    int64    `bson:"createdAt" json:"createdAt"`
	UpdatedAt    int64    `bson:"updatedAt" json:"updatedAt"`
	DenialReason string   `bson:"denialReason,omitempty" json:"denialReason,omitempty"`
	Pending      *Attempt `bson:"pending,omitempty" json:"pending,omitempty"`
}

var subscriptionNamespace = uuid.MustParse("6f1c4a8e-2b3d-5e7f-9a0b-1c2d3e4f5a6b")

// MakeID returns the stable identifier of the (topic, callback) pair.
func MakeID(topic, callback string) string {
	return uuid.NewSHA1(subscriptionNamespace, []byte(topic+"\n"+callback)).String()
}

// NewSubscription creates the record for the first attempt of the pair.
func NewSubscription(topic, callback string, attempt Attempt, now time.Time) *Subscription {
	state := StatePendingVerification
	if attempt.Mode == ModeUnsubscribe {
		state = StateUnsubscribed
	}
	return &Subscription{
		ID:        MakeID(topic, callback),
		Topic:     topic,
		Callback:  callback,
		State:     state,
		CreatedAt: pkgTime.UnixNano(now),
		UpdatedAt: pkgTime.UnixNano(now),
		Pending:   &attempt,
	}
}

// IsActive reports whether the subscription receives notifications at the time.
func (s *Subscription) IsActive(now time.Time) bool {
	if s.State != StateVerified {
		return false
	}
	return s.ExpiresAt == 0 || now.UnixNano() < s.ExpiresAt
}

func (s *Subscription) Expiration() time.Time {
	return pkgTime.Unix(0, s.ExpiresAt)
}

// Matches reports whether the subscription satisfies the query.
func (s *Subscription) Matches(q Query) bool {
	if q.ID != "" && q.ID != s.ID {
		return false
	}
	if q.Topic != "" && q.Topic != s.Topic {
		return false
	}
	if q.Callback != "" && q.Callback != s.Callback {
		return false
	}
	if len(q.States) > 0 {
		found := false
		for _, st := range q.States {
			if st == s.State {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.ActiveAt.IsZero() && !s.IsActive(q.ActiveAt) {
		return false
	}
	return true
}

// ApplyAttempt supersedes the pending attempt. Denied and unsubscribed records become pending
// again on subscribe, verified records keep receiving notifications until the attempt resolves.
func (s *Subscription) ApplyAttempt(attempt Attempt, now time.Time) {
	a := attempt
	s.Pending = &a
	s.UpdatedAt = pkgTime.UnixNano(now)
	if attempt.Mode == ModeSubscribe && (s.State == StateDenied || s.State == StateUnsubscribed) {
		s.State = StatePendingVerification
	}
}

// Resolve applies the outcome of the pending attempt. It returns ErrNotModified when the
// challenge of the resolution does not belong to the pending attempt.
func (s *Subscription) Resolve(r Resolution) error {
	if s.Pending == nil || s.Pending.Challenge != r.Attempt.Challenge {
		return ErrNotModified
	}
	s.Pending = nil
	s.UpdatedAt = pkgTime.UnixNano(r.ResolvedAt)
	switch r.Outcome {
	case OutcomeVerified:
		s.DenialReason = ""
		if r.Attempt.Mode == ModeUnsubscribe {
			s.State = StateUnsubscribed
			s.ExpiresAt = 0
			return nil
		}
		s.State = StateVerified
		s.LeaseSeconds = r.Attempt.LeaseSeconds
		s.Secret = r.Attempt.Secret
		s.ExpiresAt = r.ResolvedAt.Add(time.Duration(r.Attempt.LeaseSeconds) * time.Second).UnixNano()
	case OutcomeDenied:
		s.State = StateDenied
		s.DenialReason = r.Reason
		s.ExpiresAt = 0
	case OutcomeFailed:
	default:
		return fmt.Errorf("%w: unknown outcome('%v')", ErrInvalidArgument, r.Outcome)
	}
	return nil
}

// IsStale reports whether the record can be removed at the time.
// A record with an attempt awaiting verification is never stale.
func (s *Subscription) IsStale(now time.Time, retention time.Duration) bool {
	if s.Pending != nil {
		return false
	}
	if s.State == StateVerified {
		return s.ExpiresAt > 0 && s.ExpiresAt <= now.UnixNano()
	}
	return s.UpdatedAt <= now.Add(-retention).UnixNano()
}

func (s *Subscription) Clone() *Subscription {
	c := *s
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return &c
}
