// Package workpool runs tasks on a bounded set of goroutines, without ever
// blocking the caller of [Pool.Enqueue].
//
// A panicking task is NOT recovered, and will terminate the process. The
// loopsync package relies on this, to re-raise unclaimed callback failures
// away from the event loop's goroutine.
package workpool
