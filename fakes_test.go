package loopsync

import (
	"sync"
	"testing"
)

type scheduledTask struct {
	priority Priority
	task     func()
}

// manualScheduler queues tasks until they are run explicitly, by the test.
type manualScheduler struct {
	err   error
	tasks []scheduledTask
	mu    sync.Mutex
}

func (x *manualScheduler) Schedule(priority Priority, task func()) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return x.err
	}
	x.tasks = append(x.tasks, scheduledTask{priority: priority, task: task})
	return nil
}

func (x *manualScheduler) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.tasks)
}

func (x *manualScheduler) pop() (scheduledTask, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.tasks) == 0 {
		return scheduledTask{}, false
	}
	v := x.tasks[0]
	x.tasks[0] = scheduledTask{}
	x.tasks = x.tasks[1:]
	return v, true
}

// runOne runs the oldest task, if any.
func (x *manualScheduler) runOne() bool {
	v, ok := x.pop()
	if ok {
		v.task()
	}
	return ok
}

// runAll runs tasks until the queue is empty, returning the number run.
func (x *manualScheduler) runAll() (n int) {
	for x.runOne() {
		n++
	}
	return n
}

// recordingPool collects enqueued tasks, without running them.
type recordingPool struct {
	err   error
	tasks []func()
	mu    sync.Mutex
}

func (x *recordingPool) Enqueue(task func()) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return x.err
	}
	x.tasks = append(x.tasks, task)
	return nil
}

func (x *recordingPool) snapshot() []func() {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]func(){}, x.tasks...)
}

type testOwner struct {
	name string
	_    [64]byte
}

// newTestCache returns a cache where every owner shares scheduler.
func newTestCache(t testing.TB, scheduler Scheduler, opts ...Option) *Cache[testOwner] {
	t.Helper()
	cache, err := NewCache(func(*testOwner) Scheduler { return scheduler }, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return cache
}

// recoverRethrow runs task, which is expected to panic with a
// *RethrowToken.
func recoverRethrow(t testing.TB, task func()) (token *RethrowToken) {
	t.Helper()
	defer func() {
		r := recover()
		var ok bool
		if token, ok = r.(*RethrowToken); !ok {
			t.Fatalf(`expected *RethrowToken panic, got %T: %v`, r, r)
		}
	}()
	task()
	return nil
}
