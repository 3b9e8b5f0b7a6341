package service

import (
	"context"
	"fmt"
	"io"
	"net/http"

	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
)

// Resource is the content of a topic distributed to subscribers.
type Resource struct {
	// Topic is the canonical URL of the resource.
	Topic       string
	Body        []byte
	ContentType string
	// Hub advertised by the resource, informative only.
	Hub string
}

// Fetcher downloads resources from publishers.
type Fetcher struct {
	client         *http.Client
	maxContentSize int64
}

func NewFetcher(client *http.Client, maxContentSize int64) *Fetcher {
	return &Fetcher{
		client:         client,
		maxContentSize: maxContentSize,
	}
}

// Fetch downloads the topic. The returned Resource.Topic is the advertised self link or
// the requested topic when the resource does not advertise one; selfAdvertised reports which.
func (f *Fetcher) Fetch(ctx context.Context, topic string) (res Resource, selfAdvertised bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, topic, nil)
	if err != nil {
		return Resource{}, false, fmt.Errorf("cannot create request for %v: %w", topic, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Resource{}, false, fmt.Errorf("cannot fetch %v: %w", topic, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Resource{}, false, fmt.Errorf("cannot fetch %v: unexpected status code %v", topic, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return Resource{}, false, fmt.Errorf("cannot read %v: %w", topic, err)
	}
	if int64(len(body)) > f.maxContentSize {
		return Resource{}, false, fmt.Errorf("content of %v exceeds %v bytes", topic, f.maxContentSize)
	}
	res = Resource{
		Topic:       topic,
		Body:        body,
		ContentType: resp.Header.Get(pkgHttp.ContentTypeHeaderKey),
	}
	if hub, ok := pkgHttp.FindLink(resp.Header, pkgHttp.RelHub); ok {
		res.Hub = hub
	}
	if self, ok := pkgHttp.FindLink(resp.Header, pkgHttp.RelSelf); ok {
		res.Topic = self
		selfAdvertised = true
	}
	return res, selfAdvertised, nil
}
