package subscriber_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	"github.com/plgd-dev/websub-hub/subscriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const externalURL = "http://subscriber.test:3002"

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestEndpointVerification(t *testing.T) {
	e := subscriber.NewEndpoint(externalURL, log.Get())
	rec := subscriber.NewRecorder(4)
	id := e.Register(rec)
	h := e.Handler()

	tests := []struct {
		name       string
		query      string
		wantCode   int
		wantBody   string
		wantVerify bool
	}{
		{
			name:       "subscribe",
			query:      "?hub.mode=subscribe&hub.topic=http%3A%2F%2Fpub%2Fresource&hub.challenge=abc&hub.lease_seconds=60",
			wantCode:   http.StatusOK,
			wantBody:   "abc",
			wantVerify: true,
		},
		{
			name:       "unsubscribe",
			query:      "?hub.mode=unsubscribe&hub.topic=t&hub.challenge=xyz",
			wantCode:   http.StatusOK,
			wantBody:   "xyz",
			wantVerify: true,
		},
		{
			name:       "wontconfirm",
			query:      "?wontconfirm=true&hub.mode=subscribe&hub.topic=t&hub.challenge=abc",
			wantCode:   http.StatusNotFound,
			wantVerify: true,
		},
		{
			name:     "placeholder",
			query:    "",
			wantCode: http.StatusOK,
			wantBody: "WHAT?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, subscriber.Callback+"/"+id+tt.query, nil)
			w := serve(h, req)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
			self, ok := pkgHttp.FindLink(w.Header(), pkgHttp.RelSelf)
			require.True(t, ok)
			assert.Equal(t, externalURL+subscriber.Callback+"/"+id+tt.query, self)
			if !tt.wantVerify {
				assert.Empty(t, rec.Verifications)
				return
			}
			require.Len(t, rec.Verifications, 1)
			v := <-rec.Verifications
			assert.Equal(t, id, v.Registration)
			assert.Equal(t, req.URL.Query().Get("hub.challenge"), v.Challenge)
			assert.Equal(t, req.URL.Query().Get("hub.topic"), v.Topic)
		})
	}
}

func TestEndpointDenial(t *testing.T) {
	e := subscriber.NewEndpoint(externalURL, log.Get())
	rec := subscriber.NewRecorder(1)
	id := e.Register(rec)

	req := httptest.NewRequest(http.MethodGet, e.CallbackURL(id)+"?hub.mode=denied&hub.topic=http%3A%2F%2Fpub%2Fresource&hub.reason=nope", nil)
	w := serve(e.Handler(), req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.Denials, 1)
	d := <-rec.Denials
	assert.Equal(t, "http://pub/resource", d.Topic)
	assert.Equal(t, "nope", d.Reason)
	assert.Empty(t, rec.Verifications)
}

func TestEndpointNotification(t *testing.T) {
	e := subscriber.NewEndpoint(externalURL, log.Get())
	rec := subscriber.NewRecorder(4)
	rec.SetNotifyStatus(func(n int) int {
		if n == 1 {
			return http.StatusInternalServerError
		}
		return http.StatusNoContent
	})
	id := e.Register(rec)
	h := e.Handler()

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, subscriber.Callback+"/"+id, strings.NewReader("<feed/>"))
		req.Header.Set(pkgHttp.ContentTypeHeaderKey, "application/atom+xml; charset=utf-8")
		req.Header.Set(pkgHttp.LinkHeaderKey, `<http://pub/resource>; rel="self", <http://hub/hub>; rel="hub"`)
		return serve(h, req)
	}
	require.Equal(t, http.StatusInternalServerError, post().Code)
	require.Equal(t, http.StatusNoContent, post().Code)
	require.Equal(t, 2, rec.NotificationCount())

	n := <-rec.Notifications
	assert.Equal(t, "<feed/>", string(n.Body))
	assert.True(t, pkgHttp.SameMediaType("application/atom+xml", n.ContentType))
	self, ok := n.Link(pkgHttp.RelSelf)
	require.True(t, ok)
	assert.Equal(t, "http://pub/resource", self)
	hub, ok := n.Link(pkgHttp.RelHub)
	require.True(t, ok)
	assert.Equal(t, "http://hub/hub", hub)
}

func TestEndpointRegistrations(t *testing.T) {
	e := subscriber.NewEndpoint(externalURL+"/", log.Get())
	h := e.Handler()

	// default registration acknowledges everything
	w := serve(h, httptest.NewRequest(http.MethodPost, subscriber.Callback, strings.NewReader("x")))
	require.Equal(t, http.StatusOK, w.Code)

	notified := 0
	e.SetObserver(subscriber.ObserverFuncs{
		OnNotified: func(w http.ResponseWriter, _ subscriber.Notification) {
			notified++
			w.WriteHeader(http.StatusAccepted)
		},
	})
	w = serve(h, httptest.NewRequest(http.MethodPost, subscriber.Callback, strings.NewReader("x")))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, 1, notified)

	id := e.Register(subscriber.ObserverFuncs{})
	require.Equal(t, externalURL+subscriber.Callback+"/"+id, e.CallbackURL(id))
	e.Unregister(id)
	w = serve(h, httptest.NewRequest(http.MethodGet, subscriber.Callback+"/"+id+"?hub.mode=subscribe&hub.challenge=a", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndpointSelfLinkOnUnroutedRequests(t *testing.T) {
	e := subscriber.NewEndpoint(externalURL, log.Get())
	h := e.Handler()

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{name: "method not allowed", method: http.MethodPut, path: subscriber.Callback, wantCode: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/unknown", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.wantCode, w.Code)
			self, ok := pkgHttp.FindLink(w.Header(), pkgHttp.RelSelf)
			require.True(t, ok)
			assert.Equal(t, externalURL+tt.path, self)
		})
	}
}
