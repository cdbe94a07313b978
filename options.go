// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-loopsync/workpool"
	"github.com/joeycumines/logiface"
)

// cacheOptions holds configuration options for Cache creation.
type cacheOptions struct {
	reporter      func(err error) bool
	pool          WorkerPool
	ambient       AmbientContext
	logger        *logiface.Logger[logiface.Event]
	errorLogRates map[time.Duration]int
	priority      Priority
}

// --- Cache Options ---

// Option configures a Cache instance, and every Bridge it creates.
type Option interface {
	applyCache(*cacheOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyCacheFunc func(*cacheOptions) error
}

func (o *optionImpl) applyCache(opts *cacheOptions) error {
	return o.applyCacheFunc(opts)
}

// WithErrorReporter sets the hook that is offered every contained callback
// failure (a *PanicError), on the loop's goroutine. Returning true claims the
// failure. Returning false, or panicking, declines it, in which case it is
// re-raised on the worker pool.
func WithErrorReporter(reporter func(err error) bool) Option {
	return &optionImpl{func(opts *cacheOptions) error {
		opts.reporter = reporter
		return nil
	}}
}

// WithWorkerPool sets the pool that unclaimed failures are re-raised on.
// Defaults to a process-wide [workpool.Pool].
func WithWorkerPool(pool WorkerPool) Option {
	return &optionImpl{func(opts *cacheOptions) error {
		if pool == nil {
			return fmt.Errorf("%w: nil worker pool", ErrInvalidArgument)
		}
		opts.pool = pool
		return nil
	}}
}

// WithAmbientContext sets the ambient context mechanism. Defaults to the
// goroutine-scoped implementation from package ambient.
func WithAmbientContext(ambient AmbientContext) Option {
	return &optionImpl{func(opts *cacheOptions) error {
		if ambient == nil {
			return fmt.Errorf("%w: nil ambient context", ErrInvalidArgument)
		}
		opts.ambient = ambient
		return nil
	}}
}

// WithLogger sets the logger, overriding the package logger (see SetLogger).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *cacheOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPriority sets the priority that Post schedules at.
// Defaults to PriorityNormal.
func WithPriority(priority Priority) Option {
	return &optionImpl{func(opts *cacheOptions) error {
		switch priority {
		case PriorityNormal, PriorityHigh:
		default:
			return fmt.Errorf("%w: priority %d", ErrInvalidArgument, priority)
		}
		opts.priority = priority
		return nil
	}}
}

// WithErrorLogRates sets the per-bridge rate limits, for logging unclaimed
// callback failures, in the format accepted by [catrate.NewLimiter].
// An empty map disables rate limiting.
// Defaults to 5 per second, and 60 per minute.
func WithErrorLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *cacheOptions) error {
		if err := validateRates(rates); err != nil {
			return err
		}
		opts.errorLogRates = rates
		return nil
	}}
}

// validateRates checks rates using catrate's own rules (it panics on invalid
// rates).
func validateRates(rates map[time.Duration]int) (err error) {
	if len(rates) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: error log rates: %v", ErrInvalidArgument, r)
		}
	}()
	catrate.NewLimiter(rates)
	return nil
}

// resolveCacheOptions applies Option instances to cacheOptions.
func resolveCacheOptions(opts []Option) (*cacheOptions, error) {
	cfg := &cacheOptions{
		ambient: goroutineAmbient{},
		errorLogRates: map[time.Duration]int{
			time.Second: 5,
			time.Minute: 60,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyCache(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// bridgeConfig is the resolved configuration shared by a Cache, its bridges,
// and their copies.
type bridgeConfig struct {
	reporter func(err error) bool
	pool     WorkerPool
	ambient  AmbientContext
	logger   *logiface.Logger[logiface.Event]
	limiter  *catrate.Limiter
	priority Priority
}

var defaultPool = sync.OnceValue(func() *workpool.Pool {
	return workpool.New(nil)
})

func newBridgeConfig(opts *cacheOptions) *bridgeConfig {
	cfg := &bridgeConfig{
		reporter: opts.reporter,
		pool:     opts.pool,
		ambient:  opts.ambient,
		logger:   opts.logger,
		priority: opts.priority,
	}
	if len(opts.errorLogRates) != 0 {
		cfg.limiter = catrate.NewLimiter(opts.errorLogRates)
	}
	return cfg
}

func (x *bridgeConfig) workerPool() WorkerPool {
	if x.pool != nil {
		return x.pool
	}
	return defaultPool()
}
