package http

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	"github.com/stretchr/testify/require"
)

type RequestBuilder struct {
	method      string
	body        io.Reader
	uri         string
	header      map[string]string
	queryParams url.Values
	form        url.Values
}

func NewRequest(method, uri string, body io.Reader) *RequestBuilder {
	return &RequestBuilder{
		method:      method,
		body:        body,
		uri:         uri,
		header:      make(map[string]string),
		queryParams: make(url.Values),
	}
}

// NewHubRequest creates a form POST of the hub parameters.
func NewHubRequest(hubURL string, params url.Values) *RequestBuilder {
	b := NewRequest(http.MethodPost, hubURL, nil)
	b.form = params
	return b
}

func (c *RequestBuilder) AddQuery(key string, value ...string) *RequestBuilder {
	for _, v := range value {
		c.queryParams.Add(key, v)
	}
	return c
}

func (c *RequestBuilder) AddFormValue(key string, value ...string) *RequestBuilder {
	if c.form == nil {
		c.form = make(url.Values)
	}
	for _, v := range value {
		c.form.Add(key, v)
	}
	return c
}

func (c *RequestBuilder) ContentType(contentType string) *RequestBuilder {
	if contentType == "" {
		return c
	}
	c.header[pkgHttp.ContentTypeHeaderKey] = contentType
	return c
}

func (c *RequestBuilder) Build(ctx context.Context, t *testing.T) *http.Request {
	u, err := url.Parse(c.uri)
	require.NoError(t, err)
	query := u.Query()
	for k, vals := range c.queryParams {
		for _, v := range vals {
			query.Add(k, v)
		}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	body := c.body
	if c.form != nil {
		body = strings.NewReader(c.form.Encode())
		c.ContentType(pkgHttp.FormContentType)
	}
	request, err := http.NewRequestWithContext(ctx, c.method, u.String(), body)
	require.NoError(t, err)
	for k, v := range c.header {
		request.Header.Add(k, v)
	}
	return request
}

func Do(t *testing.T, req *http.Request) *http.Response {
	c := http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadBody reads and closes the body.
func ReadBody(t *testing.T, resp *http.Response) string {
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// UnmarshalJson decodes a 200 body into v, other codes into the error of the response.
func UnmarshalJson(t *testing.T, resp *http.Response, v any) error {
	body := ReadBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		return pkgHttp.ReadErrorResponse(resp, []byte(body))
	}
	return jsoniter.Unmarshal([]byte(body), v)
}
