package service

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/plgd-dev/websub-hub/pkg/config/property/urischeme"
	"github.com/plgd-dev/websub-hub/pkg/fsnotify"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"gopkg.in/yaml.v3"
)

// AcceptancePolicy decides whether the hub accepts a subscription. A rejected
// subscription is denied asynchronously with the returned reason.
type AcceptancePolicy interface {
	Accept(ctx context.Context, req SubscriptionRequest) (bool, string)
}

type AllowAll struct{}

func (AllowAll) Accept(context.Context, SubscriptionRequest) (bool, string) {
	return true, ""
}

// CallbackQueryPolicy denies callbacks whose query carries Key=Value.
type CallbackQueryPolicy struct {
	Key   string
	Value string
}

func (p CallbackQueryPolicy) Accept(_ context.Context, req SubscriptionRequest) (bool, string) {
	u, err := url.Parse(req.Callback)
	if err != nil {
		return false, "invalid callback"
	}
	for _, v := range u.Query()[p.Key] {
		if v == p.Value {
			return false, fmt.Sprintf("callback query %v=%v is denied", p.Key, p.Value)
		}
	}
	return true, ""
}

// Policies accepts a subscription when all policies accept it.
type Policies []AcceptancePolicy

func (p Policies) Accept(ctx context.Context, req SubscriptionRequest) (bool, string) {
	for _, policy := range p {
		if ok, reason := policy.Accept(ctx, req); !ok {
			return false, reason
		}
	}
	return true, ""
}

// DenyList contains URL prefixes of denied topics and callbacks.
type DenyList struct {
	Topics    []string `yaml:"topics"`
	Callbacks []string `yaml:"callbacks"`
}

func matchPrefix(prefixes []string, v string) (string, bool) {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(v, p) {
			return p, true
		}
	}
	return "", false
}

// DenyListPolicy denies topics and callbacks listed in YAML content. A file is reloaded on change.
type DenyListPolicy struct {
	source      urischeme.URIScheme
	file        string
	logger      log.Logger
	fileWatcher *fsnotify.Watcher
	onEvent     func(event fsnotify.Event)

	mutex sync.RWMutex
	list  DenyList
}

func readDenyList(source urischeme.URIScheme) (DenyList, error) {
	var list DenyList
	data, err := source.Read()
	if err != nil {
		return list, fmt.Errorf("cannot read deny list: %w", err)
	}
	if err = yaml.Unmarshal(data, &list); err != nil {
		return list, fmt.Errorf("cannot parse deny list: %w", err)
	}
	return list, nil
}

// NewDenyListPolicy loads the list. A file is watched when fileWatcher is set.
func NewDenyListPolicy(source urischeme.URIScheme, fileWatcher *fsnotify.Watcher, logger log.Logger) (*DenyListPolicy, error) {
	list, err := readDenyList(source)
	if err != nil {
		return nil, err
	}
	p := &DenyListPolicy{
		source: source,
		logger: logger,
		list:   list,
	}
	if fileWatcher == nil || !source.IsFile() {
		return p, nil
	}
	file := filepath.Clean(source.FilePath())
	p.file = file
	p.fileWatcher = fileWatcher
	// editors replace files, so the directory is watched
	if err = fileWatcher.Add(filepath.Dir(file)); err != nil {
		return nil, fmt.Errorf("cannot watch deny list %v: %w", file, err)
	}
	p.onEvent = p.onFileEvent
	fileWatcher.AddOnEventHandler(&p.onEvent)
	return p, nil
}

func (p *DenyListPolicy) onFileEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != p.file {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if err := p.Reload(); err != nil {
		p.logger.Warnf("keeping previous deny list: %w", err)
	}
}

// Reload reads the file again.
func (p *DenyListPolicy) Reload() error {
	list, err := readDenyList(p.source)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.list = list
	p.logger.Infof("deny list %v reloaded", p.source)
	return nil
}

func (p *DenyListPolicy) Accept(_ context.Context, req SubscriptionRequest) (bool, string) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if prefix, ok := matchPrefix(p.list.Topics, req.Topic); ok {
		return false, "topic " + prefix + " is denied"
	}
	if prefix, ok := matchPrefix(p.list.Callbacks, req.Callback); ok {
		return false, "callback " + prefix + " is denied"
	}
	return true, ""
}

func (p *DenyListPolicy) Close() {
	if p.fileWatcher == nil {
		return
	}
	p.fileWatcher.RemoveOnEventHandler(&p.onEvent)
	if err := p.fileWatcher.Remove(filepath.Dir(p.file)); err != nil {
		p.logger.Debugf("cannot stop watching deny list %v: %w", p.file, err)
	}
}

// NewAcceptancePolicy builds the policy chain from the configuration.
func NewAcceptancePolicy(cfg PolicyConfig, fileWatcher *fsnotify.Watcher, logger log.Logger) (AcceptancePolicy, func(), error) {
	var policies Policies
	closeFn := func() {}
	if cfg.CallbackQuery.Enabled {
		policies = append(policies, CallbackQueryPolicy{Key: cfg.CallbackQuery.Key, Value: cfg.CallbackQuery.Value})
	}
	if cfg.DenyList.Enabled {
		p, err := NewDenyListPolicy(cfg.DenyList.File, fileWatcher, logger)
		if err != nil {
			return nil, nil, err
		}
		policies = append(policies, p)
		closeFn = p.Close
	}
	if len(policies) == 0 {
		return AllowAll{}, closeFn, nil
	}
	return policies, closeFn, nil
}
