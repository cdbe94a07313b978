// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrInvalidArgument is the category of all argument validation errors.
	ErrInvalidArgument = errors.New("loopsync: invalid argument")

	// ErrNotSupported is the category of all unsupported operations.
	ErrNotSupported = errors.New("loopsync: not supported")

	// ErrNilCallback is returned by Post when the callback is nil.
	ErrNilCallback = fmt.Errorf("%w: nil callback", ErrInvalidArgument)

	// ErrSendNotSupported is returned by every call to Bridge.Send.
	ErrSendNotSupported = fmt.Errorf("%w: synchronous send onto an event loop", ErrNotSupported)

	// ErrNilOwner is the panic value of Cache.GetOrCreate, given a nil owner.
	ErrNilOwner = fmt.Errorf("%w: nil owner", ErrInvalidArgument)

	// ErrScheduleRejected wraps errors returned by Scheduler.Schedule.
	ErrScheduleRejected = errors.New("loopsync: scheduler rejected task")

	// ErrTracingResolved is returned by SetTraceProvider once tracing has
	// been resolved, which happens on first use.
	ErrTracingResolved = errors.New("loopsync: tracing already resolved")
)

// FatalPanic may be implemented by panic values that must never be contained,
// i.e. those that are intended to terminate the process. See also Abort.
type FatalPanic interface {
	FatalPanic()
}

// AbortError is the panic value used by Abort.
type AbortError struct {
	Reason any
}

// Abort panics with an *AbortError, which implements FatalPanic. Callbacks
// use it to bypass containment. Whether that terminates the process is up to
// the Scheduler: with LoopScheduler, it does.
func Abort(reason any) {
	panic(&AbortError{Reason: reason})
}

// FatalPanic implements FatalPanic.
func (*AbortError) FatalPanic() {}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("loopsync: abort: %v", e.Reason)
}

// Unwrap returns Reason, if it is an error.
func (e *AbortError) Unwrap() error {
	if err, ok := e.Reason.(error); ok {
		return err
	}
	return nil
}

// PanicError is a recovered (non-fatal) callback panic.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
	// Callback is the name of the panicking callback's function, if known.
	Callback string
	// Stack is the stack trace, captured during recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Callback == "" {
		return fmt.Sprintf("loopsync: callback panicked: %v", e.Value)
	}
	return fmt.Sprintf("loopsync: callback %s panicked: %v", e.Callback, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type,
// enabling use with [errors.Is] and [errors.As].
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// RethrowToken carries a contained callback failure, that was not claimed by
// an error reporter, to the worker pool. The enqueued task calls Rethrow.
type RethrowToken struct {
	// Err is the contained failure, typically a *PanicError.
	Err error
	// Origin is the ID of the bridge the callback was posted through.
	Origin uint64
}

// Error implements the error interface.
func (e *RethrowToken) Error() string {
	return fmt.Sprintf("loopsync: unhandled failure from bridge %d: %v", e.Origin, e.Err)
}

// Unwrap returns Err.
func (e *RethrowToken) Unwrap() error {
	return e.Err
}

// Rethrow panics with the receiver.
func (e *RethrowToken) Rethrow() {
	panic(e)
}

func isFatal(v any) bool {
	_, ok := v.(FatalPanic)
	return ok
}
