package subscriber

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	router "github.com/gorilla/mux"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
)

const (
	// Callback is the path of the default registration.
	Callback = "/callback"
	// RegistrationKey is the path variable of a registration.
	RegistrationKey = "registration"
	// WontConfirmKey makes the endpoint answer verification requests with 404.
	WontConfirmKey = "wontconfirm"

	placeholderBody = "WHAT?"
	deniedBody      = "DENIED"
	maxBodySize     = 16 * 1024 * 1024
)

// Endpoint is the callback endpoint of subscribers. Each registration has its own
// callback path and observer.
type Endpoint struct {
	externalURL string
	logger      log.Logger

	mutex     sync.RWMutex
	observers map[string]Observer
}

// NewEndpoint creates the endpoint reachable at externalURL, e.g. http://localhost:3002.
func NewEndpoint(externalURL string, logger log.Logger) *Endpoint {
	return &Endpoint{
		externalURL: strings.TrimSuffix(externalURL, "/"),
		logger:      logger,
		observers:   make(map[string]Observer),
	}
}

// SetObserver sets the observer of the default registration at /callback.
func (e *Endpoint) SetObserver(observer Observer) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.observers[""] = observer
}

// Register adds a registration and returns its id.
func (e *Endpoint) Register(observer Observer) string {
	id := uuid.NewString()
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.observers[id] = observer
	return id
}

func (e *Endpoint) Unregister(id string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.observers, id)
}

// CallbackURL returns the external callback URL of the registration.
func (e *Endpoint) CallbackURL(id string) string {
	if id == "" {
		return e.externalURL + Callback
	}
	return e.externalURL + Callback + "/" + id
}

func (e *Endpoint) observer(id string) (Observer, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	o, ok := e.observers[id]
	if !ok && id == "" {
		return ObserverFuncs{}, true
	}
	return o, ok
}

// Handler returns the HTTP handler of the endpoint.
func (e *Endpoint) Handler() http.Handler {
	r := router.NewRouter()
	r.Use(pkgHttp.CreateLoggingMiddleware(pkgHttp.WithLogger(e.logger)))

	for _, path := range []string{Callback, Callback + "/{" + RegistrationKey + "}"} {
		r.HandleFunc(path, e.get).Methods(http.MethodGet)
		r.HandleFunc(path, e.post).Methods(http.MethodPost)
	}
	return e.withSelfLink(r)
}

// withSelfLink wraps the whole router so unmatched paths and methods carry the link too.
func (e *Endpoint) withSelfLink(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(pkgHttp.LinkHeaderKey, pkgHttp.FormatLinks(pkgHttp.Link{URL: e.externalURL + r.RequestURI, Rel: pkgHttp.RelSelf}))
		next.ServeHTTP(w, r)
	})
}

func (e *Endpoint) lookup(w http.ResponseWriter, r *http.Request) (string, Observer, bool) {
	id := router.Vars(r)[RegistrationKey]
	o, ok := e.observer(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return "", nil, false
	}
	return id, o, true
}

func (e *Endpoint) get(w http.ResponseWriter, r *http.Request) {
	id, o, ok := e.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	w.Header().Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.TextPlainContentType)
	switch q.Get(uri.ModeKey) {
	case uri.DeniedMode:
		o.Denied(Denial{
			Registration: id,
			Topic:        q.Get(uri.TopicKey),
			Reason:       q.Get(uri.ReasonKey),
			Query:        q,
		})
		_, _ = w.Write([]byte(deniedBody))
	case uri.SubscribeMode, uri.UnsubscribeMode:
		o.Verified(Verification{
			Registration: id,
			Mode:         q.Get(uri.ModeKey),
			Topic:        q.Get(uri.TopicKey),
			Challenge:    q.Get(uri.ChallengeKey),
			LeaseSeconds: q.Get(uri.LeaseSecondsKey),
			Query:        q,
		})
		if q.Has(WontConfirmKey) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(q.Get(uri.ChallengeKey)))
	default:
		_, _ = w.Write([]byte(placeholderBody))
	}
}

func (e *Endpoint) post(w http.ResponseWriter, r *http.Request) {
	id, o, ok := e.lookup(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		pkgHttp.WriteErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	o.Notified(w, Notification{
		Registration: id,
		ContentType:  r.Header.Get(pkgHttp.ContentTypeHeaderKey),
		Links:        pkgHttp.ParseLinks(r.Header.Values(pkgHttp.LinkHeaderKey)...),
		Body:         body,
		Header:       r.Header.Clone(),
		Query:        r.URL.Query(),
	})
}
