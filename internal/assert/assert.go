//go:build loopsync_debug

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package assert

import (
	"fmt"
	"runtime"
)

// Enabled is true when built with the loopsync_debug tag.
const Enabled = true

// True panics with the label and caller location, if ok is false.
func True(label string, ok bool) {
	if ok {
		return
	}
	location := "unknown"
	if _, file, line, found := runtime.Caller(1); found {
		location = fmt.Sprintf("%s:%d", file, line)
	}
	panic(fmt.Sprintf("loopsync: assertion %q failed at %s", label, location))
}
