// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-loopsync"
	"github.com/joeycumines/go-loopsync/ambient"
	"github.com/joeycumines/go-loopsync/oteltrace"
	"github.com/joeycumines/go-loopsync/workpool"
	"github.com/joeycumines/logiface"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

type producerKey struct{}

// summary is the outcome of a demo run.
type summary struct {
	Posted    int64
	Ran       int64
	Contained int64
	// Mismatched counts callbacks that observed another producer's ambient
	// context, which should never happen.
	Mismatched int64
}

type job struct {
	producer int
	seq      int
}

// runDemo runs an event loop, and posts cfg.Posts callbacks onto it, from
// each of cfg.Producers goroutines, each with its own ambient context.
func runDemo(ctx context.Context, cfg *Config, logger *logiface.Logger[logiface.Event]) (*summary, error) {
	priority, err := cfg.priority()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout.Duration)
	defer cancel()

	if cfg.Trace {
		if err := loopsync.SetTraceProvider(oteltrace.New(otel.GetTracerProvider())); err != nil {
			logger.Warning().Err(err).Log(`tracing unavailable`)
		}
	}

	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	pool := workpool.New(&workpool.Config{MaxConcurrency: cfg.Workers})
	defer pool.Close()

	var (
		result  summary
		pending sync.WaitGroup
	)

	cache, err := loopsync.NewCache(
		loopsync.LoopScheduler,
		loopsync.WithLogger(logger),
		loopsync.WithWorkerPool(pool),
		loopsync.WithPriority(priority),
		loopsync.WithErrorReporter(func(err error) bool {
			var pe *loopsync.PanicError
			if !errors.As(err, &pe) {
				return false
			}
			atomic.AddInt64(&result.Contained, 1)
			logger.Debug().Any(`panic`, pe.Value).Log(`callback panicked`)
			return true
		}),
	)
	if err != nil {
		return nil, err
	}

	// the canonical bridge is first requested from the loop itself
	bridges := make(chan *loopsync.Bridge, 1)
	if err := loop.Submit(func() { bridges <- cache.GetOrCreate(loop) }); err != nil {
		return nil, err
	}
	var bridge *loopsync.Bridge
	select {
	case bridge = <-bridges:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callback := func(state any) {
		defer pending.Done()
		j := state.(job)
		atomic.AddInt64(&result.Ran, 1)
		if v, _ := ambient.Current().Value(producerKey{}).(int); v != j.producer {
			atomic.AddInt64(&result.Mismatched, 1)
		}
		if cfg.PanicEvery > 0 && (j.seq+1)%cfg.PanicEvery == 0 {
			panic(fmt.Sprintf(`producer %d: injected panic at %d`, j.producer, j.seq))
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for producer := range cfg.Producers {
		group.Go(func() (err error) {
			ambient.With(context.WithValue(groupCtx, producerKey{}, producer), func() {
				for seq := range cfg.Posts {
					if err = groupCtx.Err(); err != nil {
						return
					}
					pending.Add(1)
					if err = bridge.Post(callback, job{producer: producer, seq: seq}); err != nil {
						pending.Done()
						return
					}
					atomic.AddInt64(&result.Posted, 1)
				}
			})
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return &result, err
	}

	done := make(chan struct{})
	go func() {
		pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return &result, fmt.Errorf(`waiting for callbacks: %w`, ctx.Err())
	}

	if err := loop.Shutdown(ctx); err != nil && !errors.Is(err, eventloop.ErrLoopTerminated) {
		return &result, err
	}
	if err := pool.Shutdown(ctx); err != nil {
		return &result, err
	}

	logger.Info().
		Int64(`posted`, result.Posted).
		Int64(`ran`, result.Ran).
		Int64(`contained`, result.Contained).
		Int64(`mismatched`, result.Mismatched).
		Log(`demo complete`)

	return &result, nil
}
