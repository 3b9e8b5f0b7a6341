package subscriber

import (
	"net/http"
	"net/url"
	"sync"

	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	"go.uber.org/atomic"
)

// Verification is an intent verification request of the hub.
type Verification struct {
	Registration string
	Mode         string
	Topic        string
	Challenge    string
	LeaseSeconds string
	Query        url.Values
}

// Denial is a notice of a denied subscription.
type Denial struct {
	Registration string
	Topic        string
	Reason       string
	Query        url.Values
}

// Notification is a content distribution request of the hub.
type Notification struct {
	Registration string
	ContentType  string
	Links        []pkgHttp.Link
	Body         []byte
	Header       http.Header
	Query        url.Values
}

// Link returns the URL of the relation carried by the notification.
func (n Notification) Link(rel string) (string, bool) {
	for _, l := range n.Links {
		if l.Rel == rel {
			return l.URL, true
		}
	}
	return "", false
}

// Observer receives requests of the hub. Notified writes the response; its status code
// decides whether the hub retries.
type Observer interface {
	Verified(v Verification)
	Denied(d Denial)
	Notified(w http.ResponseWriter, n Notification)
}

// ObserverFuncs implements Observer with optional functions. Notifications are
// acknowledged with 200 when OnNotified is nil.
type ObserverFuncs struct {
	OnVerified func(v Verification)
	OnDenied   func(d Denial)
	OnNotified func(w http.ResponseWriter, n Notification)
}

func (o ObserverFuncs) Verified(v Verification) {
	if o.OnVerified != nil {
		o.OnVerified(v)
	}
}

func (o ObserverFuncs) Denied(d Denial) {
	if o.OnDenied != nil {
		o.OnDenied(d)
	}
}

func (o ObserverFuncs) Notified(w http.ResponseWriter, n Notification) {
	if o.OnNotified != nil {
		o.OnNotified(w, n)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Recorder is an Observer which forwards the requests to buffered channels.
// Requests are dropped when a channel is full.
type Recorder struct {
	Verifications chan Verification
	Denials       chan Denial
	Notifications chan Notification

	mutex        sync.Mutex
	notifyStatus func(n int) int

	notified atomic.Int32
	dropped  atomic.Int32
}

func NewRecorder(size int) *Recorder {
	return &Recorder{
		Verifications: make(chan Verification, size),
		Denials:       make(chan Denial, size),
		Notifications: make(chan Notification, size),
	}
}

// SetNotifyStatus sets the function returning the status code of the n-th notification,
// n starts at 1. Notifications are acknowledged with 200 by default.
func (r *Recorder) SetNotifyStatus(f func(n int) int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifyStatus = f
}

func (r *Recorder) status(n int) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.notifyStatus == nil {
		return http.StatusOK
	}
	return r.notifyStatus(n)
}

func (r *Recorder) Verified(v Verification) {
	select {
	case r.Verifications <- v:
	default:
		r.dropped.Inc()
	}
}

func (r *Recorder) Denied(d Denial) {
	select {
	case r.Denials <- d:
	default:
		r.dropped.Inc()
	}
}

func (r *Recorder) Notified(w http.ResponseWriter, n Notification) {
	status := r.status(int(r.notified.Inc()))
	select {
	case r.Notifications <- n:
	default:
		r.dropped.Inc()
	}
	w.WriteHeader(status)
}

// NotificationCount returns the number of received notifications.
func (r *Recorder) NotificationCount() int {
	return int(r.notified.Load())
}

// Dropped returns the number of requests which did not fit into the channels.
func (r *Recorder) Dropped() int {
	return int(r.dropped.Load())
}
