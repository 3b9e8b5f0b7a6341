package service

import (
	"net/http"
	"time"

	router "github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
)

// RequestHandler for handling incoming request
type RequestHandler struct {
	hub     *Hub
	metrics Metrics
	logger  log.Logger
}

func NewRequestHandler(hub *Hub, metrics Metrics, logger log.Logger) *RequestHandler {
	return &RequestHandler{
		hub:     hub,
		metrics: metrics,
		logger:  logger,
	}
}

// NewHTTP returns HTTP handler
func NewHTTP(requestHandler *RequestHandler, logger log.Logger) http.Handler {
	r := router.NewRouter()
	r.Use(pkgHttp.CreateLoggingMiddleware(pkgHttp.WithLogger(logger)))
	r.StrictSlash(true)

	r.HandleFunc(uri.Hub, requestHandler.postHub).Methods(http.MethodPost)
	r.HandleFunc(uri.Subscriptions, requestHandler.getSubscriptions).Methods(http.MethodGet)
	r.HandleFunc(uri.Healthcheck, requestHandler.healthcheck).Methods(http.MethodGet)
	r.Handle(uri.Metrics, requestHandler.metrics.Handler()).Methods(http.MethodGet)

	return r
}

func modeLabel(r *http.Request) string {
	switch mode := r.Form.Get(uri.ModeKey); mode {
	case uri.SubscribeMode, uri.UnsubscribeMode, uri.PublishMode:
		return mode
	}
	return "invalid"
}

func (rh *RequestHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := errToStatus(err)
	if statusCode >= http.StatusInternalServerError {
		rh.logger.Errorf("cannot process hub request: %w", err)
	}
	rh.metrics.ObserveRequest(modeLabel(r), statusCode)
	pkgHttp.WriteErrorResponse(w, statusCode, err)
}

func (rh *RequestHandler) postHub(w http.ResponseWriter, r *http.Request) {
	hubReq, err := parseHubRequest(r)
	if err != nil {
		rh.writeError(w, r, err)
		return
	}
	switch req := hubReq.(type) {
	case SubscriptionRequest:
		err = rh.hub.HandleSubscriptionRequest(r.Context(), req)
	case PublishRequest:
		err = rh.hub.HandlePublishRequest(r.Context(), req)
	}
	if err != nil {
		rh.writeError(w, r, err)
		return
	}
	rh.metrics.ObserveRequest(modeLabel(r), http.StatusAccepted)
	w.WriteHeader(http.StatusAccepted)
}

func (rh *RequestHandler) getSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := store.Query{
		Topic: q.Get(uri.TopicQueryKey),
	}
	for _, v := range q[uri.StateQueryKey] {
		state, err := store.ParseState(v)
		if err != nil {
			pkgHttp.WriteErrorResponse(w, http.StatusBadRequest, err)
			return
		}
		query.States = append(query.States, state)
	}
	subs := make([]*store.Subscription, 0, 8)
	err := rh.hub.LoadSubscriptions(r.Context(), query, func(sub *store.Subscription) error {
		subs = append(subs, sub.Clone())
		return nil
	})
	if err != nil {
		pkgHttp.WriteErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.JSONContentType)
	if err = jsoniter.NewEncoder(w).Encode(subs); err != nil {
		rh.logger.Errorf("cannot encode subscriptions: %w", err)
	}
}

func (rh *RequestHandler) healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.JSONContentType)
	_ = jsoniter.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
