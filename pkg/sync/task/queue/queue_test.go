package queue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/sync/task/queue"
	"github.com/stretchr/testify/require"
)

func TestTaskQueueSubmit(t *testing.T) {
	_, err := queue.New(queue.Config{
		GoPoolSize: -1,
		Size:       10,
	})
	require.Error(t, err)
	q, err := queue.New(queue.Config{
		GoPoolSize: 1,
		Size:       2,
	})
	require.NoError(t, err)
	err = q.Submit(func() {}, func() {}, func() {})
	require.ErrorIs(t, err, queue.ErrQueueFull)
	v := make(chan int)
	err = q.Submit(func() { v <- 1 }, func() { v <- 2 })
	require.NoError(t, err)
	d := <-v
	require.Equal(t, 1, d)
	d = <-v
	require.Equal(t, 2, d)
	err = q.Submit(func() { v <- 3; v <- 4 })
	require.NoError(t, err)
	d = <-v
	require.Equal(t, 3, d)
	q.Release()
	d = <-v
	require.Equal(t, 4, d)
	require.Equal(t, 0, q.Len())
}

func TestTaskQueueRunsEveryTask(t *testing.T) {
	q, err := queue.New(queue.Config{
		GoPoolSize: 2,
		Size:       1000,
	})
	require.NoError(t, err)
	defer q.Release()

	const submitters = 8
	const tasks = 100
	var wg sync.WaitGroup
	wg.Add(submitters * tasks)
	for i := 0; i < submitters; i++ {
		go func() {
			for j := 0; j < tasks; j++ {
				// drainers keep exiting on an empty queue while new tasks arrive
				for q.Submit(wg.Done) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		require.FailNow(t, "tasks left in queue", "waiting %v", q.Len())
	}
	require.Equal(t, 0, q.Len())
}

func TestTaskQueueSubmitAfterRelease(t *testing.T) {
	q, err := queue.New(queue.Config{
		GoPoolSize: 1,
		Size:       2,
	})
	require.NoError(t, err)
	q.Release()
	require.Error(t, q.Submit(func() {}))
}

func TestConfigValidate(t *testing.T) {
	cfg := queue.MakeDefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Size = 0
	require.Error(t, cfg.Validate())
	cfg = queue.MakeDefaultConfig()
	cfg.MaxIdleTime = -1
	require.Error(t, cfg.Validate())
}
