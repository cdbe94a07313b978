// Package ambient implements a goroutine-scoped logical context, which may be
// captured on one goroutine, and re-established for the duration of a
// function call on another.
//
// The ambient value is a [context.Context]. A goroutine has no ambient
// context until one is established with [Run] or [With], and it loses it
// again as soon as that call returns, regardless of how it returns (normal
// return, panic, or [runtime.Goexit]).
//
// Snapshots are immutable. Comparing two snapshots with == tells whether they
// are the same capture.
package ambient
