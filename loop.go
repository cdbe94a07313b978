// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"github.com/joeycumines/go-eventloop"
)

// Loops is the Cache used by ForLoop. It uses the default options.
var Loops = func() *Cache[eventloop.Loop] {
	cache, err := NewCache(LoopScheduler)
	if err != nil {
		panic(err)
	}
	return cache
}()

// loopScheduler adapts an [eventloop.Loop] to Scheduler.
type loopScheduler struct {
	loop *eventloop.Loop
}

// LoopScheduler adapts loop to Scheduler. PriorityNormal tasks are submitted
// via [eventloop.Loop.Submit], and PriorityHigh tasks via
// [eventloop.Loop.SubmitInternal].
//
// The loop recovers (and logs) every task panic. Panics implementing
// FatalPanic are therefore re-raised on a new goroutine, terminating the
// process.
func LoopScheduler(loop *eventloop.Loop) Scheduler {
	return loopScheduler{loop: loop}
}

// ForLoop returns the canonical Bridge for loop, from Loops.
func ForLoop(loop *eventloop.Loop) *Bridge {
	return Loops.GetOrCreate(loop)
}

func (x loopScheduler) Schedule(priority Priority, task func()) error {
	task = escapeFatal(task)
	if priority == PriorityHigh {
		return x.loop.SubmitInternal(task)
	}
	return x.loop.Submit(task)
}

// raiseFatal re-raises r away from the loop's goroutine, where nothing
// recovers it.
var raiseFatal = func(r any) {
	go panic(r)
}

func escapeFatal(task func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				if isFatal(r) {
					raiseFatal(r)
					return
				}
				panic(r)
			}
		}()
		task()
	}
}
