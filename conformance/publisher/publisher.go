// Package publisher serves discoverable resources advertising a hub and pings the hub
// when their content changes.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	router "github.com/gorilla/mux"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgHttp "github.com/plgd-dev/websub-hub/pkg/net/http"
	"github.com/plgd-dev/websub-hub/pkg/net/http/server"
	"github.com/plgd-dev/websub-hub/pkg/net/listener"
)

const (
	// Resources is the path prefix of the served resources.
	Resources = "/resource"
	NameKey   = "name"

	ContentType = "application/atom+xml; charset=utf-8"
)

type Config struct {
	Connection listener.Config `yaml:",inline" json:",inline"`
	Server     server.Config   `yaml:",inline" json:",inline"`
	// ExternalURL is the base URL of the resources. It is derived from the listener when empty.
	ExternalURL string `yaml:"externalURL" json:"externalUrl"`
	HubURL      string `yaml:"hubURL" json:"hubUrl"`
}

func (c *Config) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if u, err := url.Parse(c.HubURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("hubURL('%v')", c.HubURL)
	}
	return nil
}

// Publisher serves resources whose Link header advertises the self URL and the hub.
type Publisher struct {
	server      *http.Server
	listener    *listener.Server
	client      *http.Client
	externalURL string
	hubURL      string

	mutex    sync.RWMutex
	versions map[string]int
}

func New(config Config, client *http.Client, logger log.Logger) (*Publisher, error) {
	listener, err := listener.New(config.Connection, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot create publisher listener: %w", err)
	}
	externalURL := strings.TrimSuffix(config.ExternalURL, "/")
	if externalURL == "" {
		externalURL = listener.URL()
	}
	p := &Publisher{
		listener:    listener,
		client:      client,
		externalURL: externalURL,
		hubURL:      config.HubURL,
		versions:    make(map[string]int),
	}
	r := router.NewRouter()
	r.Use(pkgHttp.CreateLoggingMiddleware(pkgHttp.WithLogger(logger)))
	r.HandleFunc(Resources, p.getResource).Methods(http.MethodGet)
	r.HandleFunc(Resources+"/{"+NameKey+"}", p.getResource).Methods(http.MethodGet)
	p.server = server.New(config.Server, r)
	return p, nil
}

// ResourceURL returns the self URL of the named resource.
func (p *Publisher) ResourceURL(name string) string {
	if name == "" {
		return p.externalURL + Resources
	}
	return p.externalURL + Resources + "/" + url.PathEscape(name)
}

func (p *Publisher) HubURL() string {
	return p.hubURL
}

// Content returns the current body of the named resource.
func (p *Publisher) Content(name string) string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?><feed xmlns="http://www.w3.org/2005/Atom"><id>%v</id><updated>%v</updated></feed>`, p.ResourceURL(name), p.versions[name])
}

func (p *Publisher) getResource(w http.ResponseWriter, r *http.Request) {
	name := router.Vars(r)[NameKey]
	w.Header().Set(pkgHttp.ContentTypeHeaderKey, ContentType)
	w.Header().Set(pkgHttp.LinkHeaderKey, pkgHttp.FormatLinks(
		pkgHttp.Link{URL: p.ResourceURL(name), Rel: pkgHttp.RelSelf},
		pkgHttp.Link{URL: p.hubURL, Rel: pkgHttp.RelHub},
	))
	_, _ = w.Write([]byte(p.Content(name)))
}

// Publish changes the content of the named resource and pings the hub.
func (p *Publisher) Publish(ctx context.Context, name string) error {
	p.mutex.Lock()
	p.versions[name]++
	p.mutex.Unlock()

	form := url.Values{}
	form.Set(uri.ModeKey, uri.PublishMode)
	form.Set(uri.URLKey, p.ResourceURL(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.hubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("cannot create publish request: %w", err)
	}
	req.Header.Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.FormContentType)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot ping hub: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hub rejected publish of %v with status code %v: %v", p.ResourceURL(name), resp.StatusCode, string(body))
	}
	return nil
}

// Serve blocks until Close.
func (p *Publisher) Serve() error {
	err := p.server.Serve(p.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err := p.server.Shutdown(ctx)
	if errC := p.listener.Close(); errC != nil && !errors.Is(errC, net.ErrClosed) && err == nil {
		err = errC
	}
	return err
}
