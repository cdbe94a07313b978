// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-loopsync/ambient"
)

// Priority selects the scheduler queue a task is submitted to.
type Priority int

const (
	// PriorityNormal is the default priority, for regular tasks.
	PriorityNormal Priority = iota
	// PriorityHigh is the priority of internal tasks, which run before
	// regular tasks.
	PriorityHigh
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return `normal`
	case PriorityHigh:
		return `high`
	default:
		return fmt.Sprintf(`unknown(%d)`, int(p))
	}
}

type (
	// Callback is the unit of work posted to a Bridge, called with the state
	// passed to Post.
	Callback func(state any)

	// Scheduler is the event-loop owner, as seen by a Bridge.
	//
	// Schedule must not block, and must run tasks one at a time, on a single
	// goroutine, FIFO per priority. An error indicates the task was rejected,
	// and will never run.
	Scheduler interface {
		Schedule(priority Priority, task func()) error
	}

	// SchedulerFunc implements Scheduler.
	SchedulerFunc func(priority Priority, task func()) error

	// Affinity may be implemented by a Scheduler, to allow builds tagged
	// loopsync_debug to assert that bridges are first requested from the
	// owner's goroutine.
	Affinity interface {
		OnOwner() bool
	}

	// WorkerPool runs tasks on arbitrary goroutines, independent of any
	// event loop. See [github.com/joeycumines/go-loopsync/workpool].
	WorkerPool interface {
		Enqueue(task func()) error
	}

	// AmbientContext captures a goroutine's logical context, and later
	// re-establishes it for the duration of a call, on another goroutine.
	AmbientContext interface {
		// Capture returns the calling goroutine's ambient context, or false
		// if it has none.
		Capture() (snapshot any, ok bool)

		// RunWithin calls fn with snapshot established as the ambient
		// context, restoring the prior ambient context however fn exits.
		RunWithin(snapshot any, fn func())
	}

	// Bridge schedules callbacks onto the goroutine of a single event loop,
	// carrying the poster's ambient context, and containing panics.
	//
	// Bridges obtained through a Cache are canonical, per owner, and may be
	// compared with ==, e.g. to determine if two asynchronous flows resume on
	// the same event loop. See also Bridge.Copy.
	Bridge struct {
		// Prevent copying
		_ [0]func()

		owner     any
		scheduler Scheduler
		config    *bridgeConfig
		id        uint64
	}

	goroutineAmbient struct{}
)

var bridgeIDCounter atomic.Uint64

func newBridge(owner any, scheduler Scheduler, config *bridgeConfig) *Bridge {
	return &Bridge{
		owner:     owner,
		scheduler: scheduler,
		config:    config,
		id:        bridgeIDCounter.Add(1),
	}
}

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(priority Priority, task func()) error {
	return f(priority, task)
}

// Post schedules callback(state) to run on the owner's event loop, returning
// immediately. It is fire-and-forget: there is no completion handle, and a
// panic raised by callback is contained (see WithErrorReporter).
//
// ErrNilCallback is returned if callback is nil. An error wrapping
// ErrScheduleRejected is returned if the scheduler rejected the task, e.g.
// because the loop has terminated.
func (x *Bridge) Post(callback Callback, state any) error {
	if callback == nil {
		return ErrNilCallback
	}
	inv := newInvocation(x, callback, state)
	if err := x.scheduler.Schedule(x.config.priority, inv.invoke); err != nil {
		inv.handled(true)
		x.logScheduleRejected(err)
		return fmt.Errorf("%w: %w", ErrScheduleRejected, err)
	}
	return nil
}

// PostFunc is a convenience wrapper of Post.
func (x *Bridge) PostFunc(fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	return x.Post(func(any) { fn() }, nil)
}

// Send always returns ErrSendNotSupported, and never calls callback.
//
// Blocking the caller until the event loop has run callback deadlocks if the
// loop is itself waiting on the caller, and the loop offers no way to drain
// work while waiting.
func (x *Bridge) Send(callback Callback, state any) error {
	return ErrSendNotSupported
}

// Copy returns a new Bridge, bound to the same owner, and sharing the same
// configuration. The copy is not registered in any Cache, and is never
// identical to the canonical bridge.
func (x *Bridge) Copy() *Bridge {
	return newBridge(x.owner, x.scheduler, x.config)
}

// Owner returns the event-loop owner the bridge is bound to.
func (x *Bridge) Owner() any {
	return x.owner
}

// Scheduler returns the scheduler the bridge posts to.
func (x *Bridge) Scheduler() Scheduler {
	return x.scheduler
}

// ID returns an identifier unique to this bridge (copies included), within
// the process. It is used to correlate logs. A canonical bridge that was
// collected, then rebuilt by its Cache, has a different ID.
func (x *Bridge) ID() uint64 {
	return x.id
}

func (goroutineAmbient) Capture() (any, bool) {
	snapshot := ambient.Capture()
	return snapshot, snapshot != nil
}

func (goroutineAmbient) RunWithin(snapshot any, fn func()) {
	s, _ := snapshot.(*ambient.Snapshot)
	ambient.Run(s, fn)
}
