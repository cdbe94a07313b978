// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"runtime/debug"
)

// rethrowFallback is used if the worker pool rejects a RethrowToken.
var rethrowFallback = func(token *RethrowToken) {
	go token.Rethrow()
}

// invocation is a single posted callback. It is consumed exactly once, by
// invoke, on the loop's goroutine.
type invocation struct {
	bridge   *Bridge
	callback Callback
	state    any
	snapshot any
	tracer   *tracer
	id       uint64
	captured bool
}

func newInvocation(bridge *Bridge, callback Callback, state any) *invocation {
	x := &invocation{
		bridge:   bridge,
		callback: callback,
		state:    state,
	}

	x.snapshot, x.captured = bridge.config.ambient.Capture()

	if t := activeTracer(); t != nil {
		x.tracer = t
		x.id = t.nextID()
		if t.enabled() {
			t.send(x.id, TraceKindPost, funcName(callback), false)
		}
	}

	return x
}

// invoke runs the callback, within the captured ambient context, if any.
// Panics are contained, except for those implementing FatalPanic. A
// runtime.Goexit passes through, untouched.
func (x *invocation) invoke() {
	if x.tracer.enabled() {
		x.tracer.receive(x.id, TraceKindPost, ``, false)
	}

	var completed bool

	defer func() {
		if completed {
			x.handled(false)
			return
		}

		// every path from here is a failure, including the re-panic
		defer x.handled(true)

		r := recover()
		if r == nil {
			// runtime.Goexit
			return
		}
		if isFatal(r) {
			panic(r)
		}
		x.contain(r, debug.Stack())
	}()

	if x.captured {
		x.bridge.config.ambient.RunWithin(x.snapshot, x.call)
	} else {
		x.call()
	}

	completed = true
}

// handled emits the final trace event. It must be called exactly once per
// invocation, either by invoke, or by Post if the invocation was never
// scheduled.
func (x *invocation) handled(failed bool) {
	if x.tracer.enabled() {
		x.tracer.handled(x.id, TraceKindPost, ``, failed)
	}
}

func (x *invocation) call() {
	x.callback(x.state)
}

// contain routes a recovered panic to exactly one of the error reporter, or
// (if it declined) the worker pool, where it is re-raised.
func (x *invocation) contain(r any, stack []byte) {
	err := &PanicError{
		Value:    r,
		Callback: funcName(x.callback),
		Stack:    stack,
	}

	if x.report(err) {
		x.bridge.logClaimed(err)
		return
	}

	token := &RethrowToken{Err: err, Origin: x.bridge.id}
	x.bridge.logUnhandled(token)

	if enqueueErr := x.bridge.config.workerPool().Enqueue(token.Rethrow); enqueueErr != nil {
		x.bridge.logEnqueueFailed(enqueueErr)
		rethrowFallback(token)
	}
}

func (x *invocation) report(err *PanicError) (handled bool) {
	reporter := x.bridge.config.reporter
	if reporter == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			if isFatal(r) {
				panic(r)
			}
			x.bridge.logReporterPanic(r)
			handled = false
		}
	}()

	return reporter(err)
}
