package queue

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

var ErrQueueFull = errors.New("reached limit of max processed jobs")

// Queue is a bounded FIFO of tasks drained by a goroutine pool.
type Queue struct {
	goPool  *ants.Pool
	limit   int
	workers int

	mutex    sync.Mutex
	queue    *list.List
	draining int
}

// New creates task queue which is processed by goroutines.
func New(cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// at most GoPoolSize drainers run, so a blocked Submit only waits for a worker that is returning to the pool
	p, err := ants.NewPool(cfg.GoPoolSize, ants.WithPreAlloc(true), ants.WithExpiryDuration(cfg.MaxIdleTime))
	if err != nil {
		return nil, err
	}
	return &Queue{
		queue:   list.New(),
		goPool:  p,
		limit:   cfg.Size,
		workers: cfg.GoPoolSize,
	}, nil
}

// appendQueue reports whether a new drainer must be started for the tasks.
func (q *Queue) appendQueue(tasks []func()) (bool, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.queue.Len()+len(tasks) > q.limit {
		return false, ErrQueueFull
	}
	for _, t := range tasks {
		q.queue.PushBack(t)
	}
	if q.draining >= q.workers {
		return false, nil
	}
	q.draining++
	return true, nil
}

// next pops a task. A drainer leaves only under the lock that saw the queue empty,
// so an appended task always has a running drainer.
func (q *Queue) next() func() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.queue.Len() == 0 {
		q.draining--
		return nil
	}
	return q.queue.Remove(q.queue.Front()).(func())
}

func (q *Queue) drain() {
	for {
		task := q.next()
		if task == nil {
			return
		}
		task()
	}
}

// Len returns number of tasks waiting for a worker.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.queue.Len()
}

// Submit appends tasks to the queue. All or none of them are accepted.
func (q *Queue) Submit(tasks ...func()) error {
	spawn, err := q.appendQueue(tasks)
	if err != nil || !spawn {
		return err
	}
	if err = q.goPool.Submit(q.drain); err != nil {
		// only a released pool refuses work, its waiting tasks are dropped
		q.mutex.Lock()
		q.draining--
		q.mutex.Unlock()
		return err
	}
	return nil
}

// Release closes queue and drops the waiting tasks.
func (q *Queue) Release() {
	q.goPool.Release()
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.queue.Init()
}
