// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package oteltrace implements [loopsync.TraceProvider] using OpenTelemetry.
//
// Each posted callback is modeled as a span, started when it is posted,
// annotated when the loop picks it up, and ended once it has been handled.
// Spans are parented on the poster's ambient context, if any.
package oteltrace

import (
	"context"
	"sync"

	"github.com/joeycumines/go-loopsync"
	"github.com/joeycumines/go-loopsync/ambient"
	"github.com/joeycumines/logiface"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope name.
const ScopeName = `github.com/joeycumines/go-loopsync`

type (
	// Provider is a [loopsync.TraceProvider] backed by a [trace.Tracer].
	// Instances must be initialized using the New factory.
	//
	// Spans are parented on [ambient.Current], of the posting goroutine. A
	// cache configured with a custom [loopsync.WithAmbientContext] is not
	// consulted, so its spans have whatever parent package ambient holds,
	// typically none.
	Provider struct {
		tracer trace.Tracer
		// uint64 (correlation id) -> trace.Span
		spans sync.Map
		level logiface.Level
	}

	// Option configures a Provider.
	Option func(p *Provider)
)

var _ loopsync.TraceProvider = (*Provider)(nil)

// WithLevel sets the most verbose level that is traced.
// Defaults to [loopsync.TraceLevel].
func WithLevel(level logiface.Level) Option {
	return func(p *Provider) {
		p.level = level
	}
}

// New initializes a new Provider, using tracerProvider, which may not be nil.
func New(tracerProvider trace.TracerProvider, opts ...Option) *Provider {
	if tracerProvider == nil {
		panic(`oteltrace: nil tracer provider`)
	}
	p := &Provider{
		tracer: tracerProvider.Tracer(ScopeName),
		level:  loopsync.TraceLevel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// TracePoint implements [loopsync.TraceProvider].
func (x *Provider) TracePoint(name string) (loopsync.TraceEmitter, bool) {
	switch name {
	case loopsync.TracePointSend:
		return x.send, true
	case loopsync.TracePointReceive:
		return x.receive, true
	case loopsync.TracePointReceiveHandled:
		return x.handled, true
	default:
		return nil, false
	}
}

// TraceEnabled implements [loopsync.TraceProvider].
func (x *Provider) TraceEnabled(level logiface.Level) bool {
	return level.Enabled() && level <= x.level
}

// InFlight returns the number of spans that have been started, but not yet
// ended.
func (x *Provider) InFlight() (n int) {
	x.spans.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func (x *Provider) send(id uint64, kind loopsync.TraceKind, info string, _ bool) {
	ctx := ambient.Current()
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := x.tracer.Start(
		ctx,
		`loopsync.`+kind.String(),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.Int64(`loopsync.id`, int64(id)),
			attribute.String(`loopsync.callback`, info),
		),
	)
	x.spans.Store(id, span)
}

func (x *Provider) receive(id uint64, _ loopsync.TraceKind, _ string, _ bool) {
	if v, ok := x.spans.Load(id); ok {
		v.(trace.Span).AddEvent(`loopsync.receive`)
	}
}

func (x *Provider) handled(id uint64, _ loopsync.TraceKind, _ string, failed bool) {
	v, ok := x.spans.LoadAndDelete(id)
	if !ok {
		return
	}
	span := v.(trace.Span)
	if failed {
		span.SetStatus(codes.Error, `callback panicked`)
	}
	span.End()
}
