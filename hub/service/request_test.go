package service

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormRequest(form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/hub", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseHubRequest(t *testing.T) {
	const topic = "http://publisher/resource"
	const callback = "http://subscriber/callback?wontconfirm=true"
	tests := []struct {
		name      string
		form      url.Values
		want      interface{}
		wantParam string
	}{
		{
			name: "subscribe",
			form: url.Values{"hub.mode": {"subscribe"}, "hub.topic": {topic}, "hub.callback": {callback}, "hub.lease_seconds": {"60"}, "hub.secret": {"s"}},
			want: SubscriptionRequest{Mode: store.ModeSubscribe, Topic: topic, Callback: callback, LeaseSeconds: 60, Secret: "s"},
		},
		{
			name: "unsubscribe with extra parameters",
			form: url.Values{"hub.mode": {"unsubscribe"}, "hub.topic": {topic}, "hub.callback": {callback}, "another": {"param"}},
			want: SubscriptionRequest{Mode: store.ModeUnsubscribe, Topic: topic, Callback: callback, Extra: url.Values{"another": {"param"}}},
		},
		{
			name: "publish",
			form: url.Values{"hub.mode": {"publish"}, "hub.url": {topic, topic, "http://publisher/other"}},
			want: PublishRequest{Topics: []string{topic, "http://publisher/other"}},
		},
		{
			name: "publish with hub.topic",
			form: url.Values{"hub.mode": {"publish"}, "hub.topic": {topic}},
			want: PublishRequest{Topics: []string{topic}},
		},
		{
			name:      "missing mode",
			form:      url.Values{"hub.topic": {topic}, "hub.callback": {callback}},
			wantParam: "hub.mode",
		},
		{
			name:      "unknown mode",
			form:      url.Values{"hub.mode": {"subscribed"}, "hub.topic": {topic}, "hub.callback": {callback}},
			wantParam: "hub.mode",
		},
		{
			name:      "missing topic",
			form:      url.Values{"hub.mode": {"subscribe"}, "hub.callback": {callback}},
			wantParam: "hub.topic",
		},
		{
			name:      "missing callback",
			form:      url.Values{"hub.mode": {"subscribe"}, "hub.topic": {topic}},
			wantParam: "hub.callback",
		},
		{
			name:      "relative callback",
			form:      url.Values{"hub.mode": {"subscribe"}, "hub.topic": {topic}, "hub.callback": {"/callback"}},
			wantParam: "hub.callback",
		},
		{
			name:      "unsupported topic scheme",
			form:      url.Values{"hub.mode": {"subscribe"}, "hub.topic": {"ftp://publisher/resource"}, "hub.callback": {callback}},
			wantParam: "hub.topic",
		},
		{
			name:      "invalid lease",
			form:      url.Values{"hub.mode": {"subscribe"}, "hub.topic": {topic}, "hub.callback": {callback}, "hub.lease_seconds": {"-1"}},
			wantParam: "hub.lease_seconds",
		},
		{
			name:      "long secret",
			form:      url.Values{"hub.mode": {"subscribe"}, "hub.topic": {topic}, "hub.callback": {callback}, "hub.secret": {strings.Repeat("x", 201)}},
			wantParam: "hub.secret",
		},
		{
			name:      "publish without url",
			form:      url.Values{"hub.mode": {"publish"}},
			wantParam: "hub.url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHubRequest(newFormRequest(tt.form))
			if tt.wantParam != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantParam)
				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, tt.wantParam, validationErr.Param)
				assert.Equal(t, http.StatusBadRequest, errToStatus(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
