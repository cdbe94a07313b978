// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package workpool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Pool.Enqueue after Shutdown or Close.
var ErrClosed = errors.New(`workpool: pool is closed`)

type (
	// Config models optional configuration, for New.
	Config struct {
		// MaxConcurrency specifies the maximum number of tasks that may run
		// at once, if positive.
		// **Defaults to runtime.GOMAXPROCS(0), if 0, or Config is nil.**
		MaxConcurrency int
	}

	// Pool runs enqueued tasks, FIFO, on up to MaxConcurrency goroutines.
	// Instances must be initialized using the New factory.
	Pool struct {
		// betteralign:ignore

		sem      *semaphore.Weighted
		mu       sync.Mutex
		queue    []func()
		workers  sync.WaitGroup
		closed   bool
		stopOnce sync.Once
	}
)

// New initializes a new Pool, using the provided Config, which may be nil. A
// panic will occur if invalid config is provided.
func New(config *Config) *Pool {
	maxConcurrency := runtime.GOMAXPROCS(0)
	if config != nil && config.MaxConcurrency != 0 {
		maxConcurrency = config.MaxConcurrency
	}
	if maxConcurrency <= 0 {
		panic(`workpool: max concurrency must be positive`)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(maxConcurrency))}
}

// Enqueue schedules task, returning immediately. A nil task is ignored.
// ErrClosed is returned if the pool has been stopped.
func (x *Pool) Enqueue(task func()) error {
	if task == nil {
		return nil
	}

	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return ErrClosed
	}
	x.queue = append(x.queue, task)
	// note: acquire and release both happen under mu, so a worker can't exit
	// between the append and this check, leaving the task stranded
	spawn := x.sem.TryAcquire(1)
	if spawn {
		x.workers.Add(1)
	}
	x.mu.Unlock()

	if spawn {
		go x.work()
	}

	return nil
}

// Len returns the number of queued tasks, that have not yet started.
func (x *Pool) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.queue)
}

// Shutdown prevents further tasks via Enqueue, then waits for all queued and
// running tasks to complete. An error will be returned if ctx is canceled
// prior to this, in which case remaining tasks continue in the background.
func (x *Pool) Shutdown(ctx context.Context) error {
	x.stop()

	done := make(chan struct{})
	go func() {
		x.workers.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Close prevents further tasks via Enqueue, discards any tasks that have not
// started, and blocks until running tasks complete.
func (x *Pool) Close() error {
	x.stop()
	x.mu.Lock()
	clear(x.queue)
	x.queue = x.queue[:0]
	x.mu.Unlock()
	x.workers.Wait()
	return nil
}

func (x *Pool) stop() {
	x.stopOnce.Do(func() {
		x.mu.Lock()
		x.closed = true
		x.mu.Unlock()
	})
}

func (x *Pool) work() {
	defer x.workers.Done()
	for {
		task, ok := x.next()
		if !ok {
			return
		}
		task()
	}
}

// next pops the next task, or releases this worker's slot if there is none.
func (x *Pool) next() (func(), bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.queue) == 0 {
		x.sem.Release(1)
		return nil, false
	}
	task := x.queue[0]
	x.queue[0] = nil
	x.queue = x.queue[1:]
	return task, true
}
