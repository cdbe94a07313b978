// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ambient

import (
	"context"
	"sync"

	"github.com/joeycumines/go-loopsync/internal/goid"
)

// Snapshot is a captured ambient context. The nil *Snapshot models "no
// ambient context".
type Snapshot struct {
	ctx context.Context
}

// frames maps goroutine id to the *Snapshot currently established on it.
var frames sync.Map

// NewSnapshot wraps ctx. It returns nil if ctx is nil.
func NewSnapshot(ctx context.Context) *Snapshot {
	if ctx == nil {
		return nil
	}
	return &Snapshot{ctx: ctx}
}

// Context returns the captured context, or nil for the nil snapshot.
func (x *Snapshot) Context() context.Context {
	if x == nil {
		return nil
	}
	return x.ctx
}

// Capture returns the snapshot established on the calling goroutine, or nil.
func Capture() *Snapshot {
	if v, ok := frames.Load(goid.Get()); ok {
		return v.(*Snapshot)
	}
	return nil
}

// Current returns the ambient context of the calling goroutine, or nil.
func Current() context.Context {
	return Capture().Context()
}

// Run establishes snapshot as the calling goroutine's ambient context, for
// the duration of fn. A nil snapshot clears it for the duration of fn. The
// prior state is restored however fn exits.
func Run(snapshot *Snapshot, fn func()) {
	id := goid.Get()
	prev, had := frames.Load(id)
	if snapshot == nil {
		frames.Delete(id)
	} else {
		frames.Store(id, snapshot)
	}
	defer func() {
		if had {
			frames.Store(id, prev)
		} else {
			frames.Delete(id)
		}
	}()
	fn()
}

// With is shorthand for Run(NewSnapshot(ctx), fn).
func With(ctx context.Context, fn func()) {
	Run(NewSnapshot(ctx), fn)
}
