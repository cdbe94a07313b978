// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package goid identifies the calling goroutine.
package goid

import (
	"bytes"
	"runtime"
)

var stackPrefix = []byte("goroutine ")

// Get returns the current goroutine's ID, parsed from the header line of
// runtime.Stack ("goroutine N [running]:"). It returns 0 if the header is
// not in that form.
func Get() uint64 {
	var buf [64]byte
	return parse(buf[:runtime.Stack(buf[:], false)])
}

// parse extracts N from a "goroutine N ..." header. Zero is returned for a
// missing prefix, no digits, or a value that overflows uint64.
func parse(header []byte) (id uint64) {
	digits, ok := bytes.CutPrefix(header, stackPrefix)
	if !ok {
		return 0
	}
	var n int
	for ; n < len(digits) && digits[n] >= '0' && digits[n] <= '9'; n++ {
		d := uint64(digits[n] - '0')
		if id > (^uint64(0)-d)/10 {
			return 0
		}
		id = id*10 + d
	}
	return id
}
