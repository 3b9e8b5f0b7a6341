package client

import (
	"fmt"
	"net/http"

	"github.com/plgd-dev/websub-hub/pkg/fn"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Client is an instrumented http.Client.
type Client struct {
	client    *http.Client
	closeFunc fn.FuncList
}

func (c *Client) HTTP() *http.Client {
	return c.client
}

func (c *Client) AddCloseFunc(f func()) {
	c.closeFunc.AddFunc(f)
}

func (c *Client) Close() {
	c.client.CloseIdleConnections()
	c.closeFunc.Execute()
}

// New creates the client. Redirects are not followed.
func New(config Config, tracerProvider trace.TracerProvider) (*Client, error) {
	tlsCfg, err := config.TLS.ToTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("cannot create tls config: %w", err)
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = config.MaxIdleConns
	t.MaxConnsPerHost = config.MaxConnsPerHost
	t.MaxIdleConnsPerHost = config.MaxIdleConnsPerHost
	t.IdleConnTimeout = config.IdleConnTimeout
	t.TLSClientConfig = tlsCfg
	return &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(t, otelhttp.WithTracerProvider(tracerProvider)),
			Timeout:   config.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}
