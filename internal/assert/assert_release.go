//go:build !loopsync_debug

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package assert

// Enabled is true when built with the loopsync_debug tag.
const Enabled = false

// True is a no-op without the loopsync_debug tag.
func True(string, bool) {}
