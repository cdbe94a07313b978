// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"fmt"
	"sync"

	"github.com/joeycumines/logiface"
)

var (
	// Package logger, used by bridges without a WithLogger option.
	globalLogger struct {
		sync.RWMutex
		logger *logiface.Logger[logiface.Event]
	}
)

// SetLogger sets the package logger. A nil logger disables logging, which is
// the default.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

func getGlobalLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

// log returns the logger for the bridge, which may be nil (logiface loggers
// are nil-safe).
func (x *Bridge) log() *logiface.Logger[logiface.Event] {
	if x.config.logger != nil {
		return x.config.logger
	}
	return getGlobalLogger()
}

func (x *Bridge) logCreated() {
	x.log().Debug().
		Uint64(`bridge`, x.id).
		Str(`owner`, fmt.Sprintf(`%T`, x.owner)).
		Log(`loopsync: bridge created`)
}

func (x *Bridge) logScheduleRejected(err error) {
	x.log().Warning().
		Err(err).
		Uint64(`bridge`, x.id).
		Str(`priority`, x.config.priority.String()).
		Log(`loopsync: scheduler rejected posted callback`)
}

func (x *Bridge) logClaimed(err *PanicError) {
	x.log().Debug().
		Err(err).
		Uint64(`bridge`, x.id).
		Log(`loopsync: callback failure claimed by error reporter`)
}

func (x *Bridge) logReporterPanic(r any) {
	x.log().Err().
		Any(`panic`, r).
		Uint64(`bridge`, x.id).
		Log(`loopsync: error reporter panicked, treating failure as unhandled`)
}

// logUnhandled is rate limited per bridge, as a misbehaving callback may be
// posted in a loop.
func (x *Bridge) logUnhandled(token *RethrowToken) {
	if x.config.limiter != nil {
		if _, ok := x.config.limiter.Allow(x.id); !ok {
			return
		}
	}
	b := x.log().Err()
	if !b.Enabled() {
		return
	}
	b = b.Err(token.Err).Uint64(`bridge`, x.id)
	if pe, ok := token.Err.(*PanicError); ok && pe.Callback != `` {
		b = b.Str(`callback`, pe.Callback)
	}
	b.Log(`loopsync: unhandled callback failure, re-raising on worker pool`)
}

func (x *Bridge) logEnqueueFailed(err error) {
	x.log().Warning().
		Err(err).
		Uint64(`bridge`, x.id).
		Log(`loopsync: worker pool rejected rethrow, using a new goroutine`)
}
