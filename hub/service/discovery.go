package service

import (
	"context"
	"time"

	"github.com/plgd-dev/go-coap/v3/pkg/cache"
	"github.com/plgd-dev/go-coap/v3/pkg/runner/periodic"
	"github.com/plgd-dev/websub-hub/hub/uri"
	"github.com/plgd-dev/websub-hub/pkg/log"
)

// discoveredTopic is the canonical self link of a requested topic. Self is empty when the
// resource does not advertise one.
type discoveredTopic struct {
	Self string
}

// Discoverer resolves requested topics to the self link advertised by the resource.
type Discoverer struct {
	config  DiscoveryConfig
	fetcher *Fetcher
	cache   *cache.Cache[string, discoveredTopic]
	logger  log.Logger
}

func NewDiscoverer(ctx context.Context, config DiscoveryConfig, fetcher *Fetcher, logger log.Logger) *Discoverer {
	c := cache.NewCache[string, discoveredTopic]()
	add := periodic.New(ctx.Done(), time.Minute)
	add(func(now time.Time) bool {
		c.CheckExpirations(now)
		return true
	})
	return &Discoverer{
		config:  config,
		fetcher: fetcher,
		cache:   c,
		logger:  logger,
	}
}

// Remember stores the discovered self link of the topic.
func (d *Discoverer) Remember(topic, self string) {
	validUntil := time.Now().Add(d.config.CacheExpiration)
	v := discoveredTopic{Self: self}
	d.cache.Delete(topic)
	d.cache.LoadOrStore(topic, cache.NewElement(v, validUntil, func(discoveredTopic) {}))
	if self != "" && self != topic {
		d.cache.Delete(self)
		d.cache.LoadOrStore(self, cache.NewElement(discoveredTopic{Self: self}, validUntil, func(discoveredTopic) {}))
	}
}

func (d *Discoverer) lookup(topic string) (discoveredTopic, bool) {
	v := d.cache.Load(topic)
	if v == nil {
		return discoveredTopic{}, false
	}
	return v.Data(), true
}

// ValidateTopic rejects the topic when its resource advertises a different self link.
func (d *Discoverer) ValidateTopic(ctx context.Context, topic string) error {
	if !d.config.Enabled {
		return nil
	}
	discovered, ok := d.lookup(topic)
	if !ok {
		res, selfAdvertised, err := d.fetcher.Fetch(ctx, topic)
		if err != nil {
			if d.config.RequireSelfLink {
				return &ValidationError{Param: uri.TopicKey, Reason: err.Error()}
			}
			d.logger.With(log.TopicKey, topic).Debugf("cannot discover topic: %w", err)
			return nil
		}
		if selfAdvertised {
			discovered.Self = res.Topic
		}
		d.Remember(topic, discovered.Self)
	}
	if discovered.Self == "" {
		if d.config.RequireSelfLink {
			return &ValidationError{Param: uri.TopicKey, Reason: "resource does not advertise a self link"}
		}
		return nil
	}
	if discovered.Self != topic {
		return &TopicMismatchError{Topic: topic, Self: discovered.Self}
	}
	return nil
}
