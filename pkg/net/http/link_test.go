package http_test

import (
	"net/http"
	"testing"

	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	"github.com/stretchr/testify/require"
)

func TestParseLinks(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []pkgHttp.Link
	}{
		{
			name:   "self and hub",
			values: []string{`<http://a/resource>; rel="self", <http://a/hub>; rel="hub"`},
			want: []pkgHttp.Link{
				{URL: "http://a/resource", Rel: "self"},
				{URL: "http://a/hub", Rel: "hub"},
			},
		},
		{
			name:   "trailing semicolon",
			values: []string{`<http://a/callback?x=1>; rel="self";`},
			want:   []pkgHttp.Link{{URL: "http://a/callback?x=1", Rel: "self"}},
		},
		{
			name:   "multiple headers",
			values: []string{`<http://a/hub>; rel=hub`, `<http://a/r>; rel="self"`},
			want: []pkgHttp.Link{
				{URL: "http://a/hub", Rel: "hub"},
				{URL: "http://a/r", Rel: "self"},
			},
		},
		{
			name:   "relation list and comma in url",
			values: []string{`<http://a/r?x=1,2>; rel="self alternate"`},
			want: []pkgHttp.Link{
				{URL: "http://a/r?x=1,2", Rel: "self"},
				{URL: "http://a/r?x=1,2", Rel: "alternate"},
			},
		},
		{
			name:   "malformed",
			values: []string{`http://a/r; rel="self"`, `<http://a/r; rel="self"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, pkgHttp.ParseLinks(tt.values...))
		})
	}
}

func TestFormatAndFindLink(t *testing.T) {
	v := pkgHttp.FormatLinks(pkgHttp.Link{URL: "http://a/r", Rel: pkgHttp.RelSelf}, pkgHttp.Link{URL: "http://a/hub", Rel: pkgHttp.RelHub})
	require.Equal(t, `<http://a/r>; rel="self", <http://a/hub>; rel="hub"`, v)
	h := http.Header{}
	h.Set(pkgHttp.LinkHeaderKey, v)
	self, ok := pkgHttp.FindLink(h, pkgHttp.RelSelf)
	require.True(t, ok)
	require.Equal(t, "http://a/r", self)
	hub, ok := pkgHttp.FindLink(h, "HUB")
	require.True(t, ok)
	require.Equal(t, "http://a/hub", hub)
	_, ok = pkgHttp.FindLink(h, "alternate")
	require.False(t, ok)
}

func TestSameMediaType(t *testing.T) {
	require.True(t, pkgHttp.SameMediaType("text/html; charset=utf-8", "TEXT/HTML"))
	require.True(t, pkgHttp.SameMediaType("application/json", "application/json;charset=UTF-8"))
	require.False(t, pkgHttp.SameMediaType("text/plain", "text/html"))
	require.Equal(t, "text/plain", pkgHttp.MediaType("text/plain; charset"))
}
