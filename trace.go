// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Names of the trace points looked up via TraceProvider.TracePoint.
const (
	// TracePointSend is emitted on the posting goroutine, when a callback is
	// posted. The info is the callback's function name.
	TracePointSend = `Send`

	// TracePointReceive is emitted on the loop's goroutine, immediately
	// before the callback runs.
	TracePointReceive = `Receive`

	// TracePointReceiveHandled is the last event for every id that was sent.
	// It is emitted on the loop's goroutine once the callback returns, or
	// exits by panic or runtime.Goexit, or on the posting goroutine if the
	// scheduler rejected the callback. The flag indicates failure.
	TracePointReceiveHandled = `ReceiveHandled`
)

// TraceLevel is the level that dispatch trace events are emitted at.
const TraceLevel = logiface.LevelInformational

// TraceKind identifies the kind of work a trace event correlates to.
type TraceKind uint8

const (
	// TraceKindPost is a callback scheduled by Bridge.Post.
	TraceKindPost TraceKind = iota + 1
)

// String returns the string representation of the trace kind.
func (k TraceKind) String() string {
	switch k {
	case TraceKindPost:
		return `post`
	default:
		return `unknown`
	}
}

type (
	// TraceEmitter emits a single trace event. The id correlates the events
	// of a single posted callback.
	TraceEmitter func(id uint64, kind TraceKind, info string, flag bool)

	// TraceProvider supplies tracing hooks, see SetTraceProvider.
	TraceProvider interface {
		// TracePoint returns the emitter for the named trace point, or false
		// if it is unavailable.
		TracePoint(name string) (TraceEmitter, bool)

		// TraceEnabled reports whether events at level are being consumed.
		// It is called before every emission, and should be cheap.
		TraceEnabled(level logiface.Level) bool
	}

	traceState struct {
		provider TraceProvider
		active   atomic.Pointer[tracer]
		ids      atomic.Uint64
		mu       sync.Mutex
		once     sync.Once
		resolved bool
	}

	tracer struct {
		provider TraceProvider
		send     TraceEmitter
		receive  TraceEmitter
		handled  TraceEmitter
		ids      *atomic.Uint64
	}
)

var tracing = new(traceState)

// SetTraceProvider configures the process-wide trace provider. It must be
// called before the first callback is posted, after which tracing is resolved
// (once), and ErrTracingResolved is returned. If the provider lacks any of the
// three trace points, tracing stays disabled, permanently.
func SetTraceProvider(provider TraceProvider) error {
	tracing.mu.Lock()
	defer tracing.mu.Unlock()
	if tracing.resolved {
		return ErrTracingResolved
	}
	tracing.provider = provider
	return nil
}

// TracingActive reports whether tracing resolved successfully, resolving it
// if necessary.
func TracingActive() bool {
	return activeTracer() != nil
}

// activeTracer returns nil if tracing is inactive.
func activeTracer() *tracer {
	state := tracing
	state.once.Do(state.resolve)
	return state.active.Load()
}

func (x *traceState) resolve() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.resolved = true

	if x.provider == nil {
		return
	}

	lookup := func(name string) TraceEmitter {
		if emit, ok := x.provider.TracePoint(name); ok {
			return emit
		}
		return nil
	}

	t := tracer{
		provider: x.provider,
		send:     lookup(TracePointSend),
		receive:  lookup(TracePointReceive),
		handled:  lookup(TracePointReceiveHandled),
		ids:      &x.ids,
	}
	if t.send == nil || t.receive == nil || t.handled == nil {
		return
	}

	x.active.Store(&t)
}

func (x *tracer) enabled() bool {
	return x != nil && x.provider.TraceEnabled(TraceLevel)
}

func (x *tracer) nextID() uint64 {
	return x.ids.Add(1)
}

// funcName returns the fully qualified name of fn's function, or "".
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ``
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return ``
}
