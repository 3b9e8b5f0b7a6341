package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/config/property/urischeme"
	"github.com/plgd-dev/websub-hub/pkg/fsnotify"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackQueryPolicy(t *testing.T) {
	p := CallbackQueryPolicy{Key: "publisher", Value: "denied"}
	tests := []struct {
		name     string
		callback string
		want     bool
	}{
		{name: "no query", callback: "http://subscriber/callback", want: true},
		{name: "other value", callback: "http://subscriber/callback?publisher=allowed", want: true},
		{name: "denied", callback: "http://subscriber/callback?a=b&publisher=denied", want: false},
		{name: "denied among values", callback: "http://subscriber/callback?publisher=x&publisher=denied", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := p.Accept(context.Background(), SubscriptionRequest{Callback: tt.callback})
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func writeDenyList(t *testing.T, file, content string) {
	tmp := file + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, file))
}

func TestDenyListPolicyReload(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "denylist.yaml")
	writeDenyList(t, file, "topics:\n  - http://publisher.test/private\n")

	watcher, err := fsnotify.NewWatcher(log.Get())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, watcher.Close())
	}()
	p, err := NewDenyListPolicy(urischeme.URIScheme(file), watcher, log.Get())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	private := SubscriptionRequest{Topic: "http://publisher.test/private/feed", Callback: "http://subscriber.test/callback"}
	spam := SubscriptionRequest{Topic: "http://publisher.test/feed", Callback: "http://spam.test/callback"}
	ok, reason := p.Accept(ctx, private)
	assert.False(t, ok)
	assert.Contains(t, reason, "http://publisher.test/private")
	ok, _ = p.Accept(ctx, spam)
	assert.True(t, ok)

	writeDenyList(t, file, "callbacks:\n  - http://spam.test/\n")
	require.Eventually(t, func() bool {
		ok, _ := p.Accept(ctx, spam)
		return !ok
	}, time.Second*5, time.Millisecond*20)
	ok, _ = p.Accept(ctx, private)
	assert.True(t, ok)

	writeDenyList(t, file, "callbacks: [")
	time.Sleep(time.Millisecond * 200)
	ok, _ = p.Accept(ctx, spam)
	assert.False(t, ok, "invalid file keeps the previous list")
}

func TestNewAcceptancePolicy(t *testing.T) {
	policy, closeFn, err := NewAcceptancePolicy(PolicyConfig{}, nil, log.Get())
	require.NoError(t, err)
	closeFn()
	assert.Equal(t, AllowAll{}, policy)

	_, _, err = NewAcceptancePolicy(PolicyConfig{DenyList: DenyListPolicyConfig{Enabled: true, File: urischeme.URIScheme(filepath.Join(t.TempDir(), "missing.yaml"))}}, nil, log.Get())
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "denylist.yaml")
	writeDenyList(t, file, "topics:\n  - http://publisher.test/private\n")
	policy, closeFn, err = NewAcceptancePolicy(PolicyConfig{
		CallbackQuery: CallbackQueryPolicyConfig{Enabled: true, Key: "publisher", Value: "denied"},
		DenyList:      DenyListPolicyConfig{Enabled: true, File: urischeme.URIScheme(file)},
	}, nil, log.Get())
	require.NoError(t, err)
	defer closeFn()
	ok, _ := policy.Accept(context.Background(), SubscriptionRequest{Topic: "http://publisher.test/feed", Callback: "http://subscriber.test/callback?publisher=denied"})
	assert.False(t, ok)
	ok, _ = policy.Accept(context.Background(), SubscriptionRequest{Topic: "http://publisher.test/private", Callback: "http://subscriber.test/callback"})
	assert.False(t, ok)
	ok, _ = policy.Accept(context.Background(), SubscriptionRequest{Topic: "http://publisher.test/feed", Callback: "http://subscriber.test/callback"})
	assert.True(t, ok)
}

func TestDenyListPolicyInline(t *testing.T) {
	watcher, err := fsnotify.NewWatcher(log.Get())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, watcher.Close())
	}()
	p, err := NewDenyListPolicy("data:,callbacks%3A%20%5Bhttp%3A%2F%2Fspam.test%2F%5D", watcher, log.Get())
	require.NoError(t, err)
	defer p.Close()
	ok, reason := p.Accept(context.Background(), SubscriptionRequest{Topic: "http://publisher.test/feed", Callback: "http://spam.test/callback"})
	assert.False(t, ok)
	assert.Equal(t, "callback http://spam.test/ is denied", reason)
	require.NoError(t, p.Reload())
}
