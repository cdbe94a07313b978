// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopsync

import (
	"runtime"
	"sync"
	"weak"

	"github.com/joeycumines/go-loopsync/internal/assert"
)

// Cache maps event-loop owners (of type *O) to their canonical Bridge.
//
// The cache holds neither owners nor bridges strongly. A bridge references
// its owner (via its Scheduler), so an entry lives exactly as long as someone
// still holds the bridge, and is always gone once the owner is unreachable.
// Once nobody holds the canonical bridge, the next GetOrCreate builds a new
// one, with a new ID, logging "bridge created" again. Callers that need a
// stable ID, e.g. to correlate logs, should retain the bridge.
//
// Instances must be initialized using the NewCache factory.
type Cache[O any] struct {
	// betteralign:ignore

	adapt  func(owner *O) Scheduler
	config *bridgeConfig
	// weak.Pointer[O] -> weak.Pointer[Bridge]
	entries sync.Map
}

type cacheCleanup[O any] struct {
	key   weak.Pointer[O]
	value weak.Pointer[Bridge]
}

// NewCache initializes a new Cache. The adapt function returns the Scheduler
// for an owner, and is called at most once per bridge. A panic will occur if
// adapt is nil.
func NewCache[O any](adapt func(owner *O) Scheduler, opts ...Option) (*Cache[O], error) {
	if adapt == nil {
		panic(`loopsync: nil adapt function`)
	}
	cfg, err := resolveCacheOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Cache[O]{
		adapt:  adapt,
		config: newBridgeConfig(cfg),
	}, nil
}

// GetOrCreate returns the canonical Bridge for owner, creating it if
// necessary. Concurrent callers, for the same owner, always observe the same
// Bridge. A nil owner panics with ErrNilOwner.
//
// The first call for a given owner is expected to be made on the owner's own
// goroutine. That is only checked in builds tagged loopsync_debug, and only
// if the Scheduler implements Affinity.
func (x *Cache[O]) GetOrCreate(owner *O) *Bridge {
	if owner == nil {
		panic(ErrNilOwner)
	}

	key := weak.Make(owner)

	for {
		current, ok := x.entries.Load(key)
		if ok {
			if bridge := current.(weak.Pointer[Bridge]).Value(); bridge != nil {
				return bridge
			}
		}

		// losers of the race below are simply discarded
		bridge := x.newBridge(owner)
		value := weak.Make(bridge)

		var stored bool
		if ok {
			// stale entry, bridge collected but cleanup still pending
			stored = x.entries.CompareAndSwap(key, current, value)
		} else {
			_, loaded := x.entries.LoadOrStore(key, value)
			stored = !loaded
		}

		if stored {
			runtime.AddCleanup(bridge, x.cleanup, cacheCleanup[O]{key: key, value: value})
			bridge.logCreated()
			return bridge
		}
	}
}

// Len returns the number of owners with a live canonical Bridge.
func (x *Cache[O]) Len() (n int) {
	x.entries.Range(func(_, value any) bool {
		if value.(weak.Pointer[Bridge]).Value() != nil {
			n++
		}
		return true
	})
	return n
}

func (x *Cache[O]) newBridge(owner *O) *Bridge {
	scheduler := x.adapt(owner)
	if assert.Enabled {
		if affinity, ok := scheduler.(Affinity); ok {
			assert.True(`bridge requested from its owner's goroutine`, affinity.OnOwner())
		}
	}
	return newBridge(owner, scheduler, x.config)
}

func (x *Cache[O]) cleanup(entry cacheCleanup[O]) {
	x.entries.CompareAndDelete(entry.key, entry.value)
}
