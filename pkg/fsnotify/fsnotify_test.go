package fsnotify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(log.Get())
	require.NoError(t, err)
	err = w.Add(dir)
	require.NoError(t, err)
	err = w.Add(dir)
	require.NoError(t, err)
	err = w.Remove(dir)
	require.NoError(t, err)
	err = w.Remove(dir)
	require.NoError(t, err)
	err = w.Remove(dir)
	require.Error(t, err)
	err = w.Add(dir)
	require.NoError(t, err)

	onEventHandler := func(Event) {}
	w.AddOnEventHandler(&onEventHandler)
	w.RemoveOnEventHandler(&onEventHandler)

	err = w.Close()
	require.NoError(t, err)
	err = w.Close()
	require.NoError(t, err)
}

type testOnEvent struct {
	ch chan Event
}

func (o *testOnEvent) onEvent(event Event) {
	select {
	case o.ch <- event:
	default:
	}
}

func (o *testOnEvent) waitEvent(timeout time.Duration, name string, op Op) (Event, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case event := <-o.ch:
			if event.Op&op == 0 || event.Name != name {
				continue
			}
			return event, true
		case <-deadline:
			return Event{}, false
		}
	}
}

func TestWatcherDirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(log.Get())
	require.NoError(t, err)
	defer func() {
		errC := w.Close()
		require.NoError(t, errC)
	}()

	h := &testOnEvent{ch: make(chan Event, 32)}
	onEvent := h.onEvent
	w.AddOnEventHandler(&onEvent)

	err = w.Add(filepath.Join(dir, "notexist", "x"))
	require.Error(t, err)

	err = w.Add(dir)
	require.NoError(t, err)

	name := filepath.Join(dir, "denylist.yaml")
	err = os.WriteFile(name, []byte("topics: []"), 0o600)
	require.NoError(t, err)
	_, ok := h.waitEvent(time.Second*2, name, Create|Write)
	require.True(t, ok)

	err = os.Remove(name)
	require.NoError(t, err)
	_, ok = h.waitEvent(time.Second*2, name, Remove)
	require.True(t, ok)
}
