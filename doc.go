// Package loopsync lets any goroutine schedule callbacks onto the goroutine of
// a specific single-goroutine event loop (the "owner"), for example an
// [eventloop.Loop].
//
// # Bridges
//
// A [Bridge] is bound to a single owner. Bridges are obtained from a [Cache],
// which guarantees at most one canonical bridge per owner, at any time, so
// two bridges may be compared with == to determine whether two asynchronous
// flows resume on the same event loop. The cache never keeps an owner alive.
// [ForLoop] uses the package-level cache, [Loops].
//
// [Bridge.Post] is fire-and-forget. [Bridge.Send] (a synchronous call) is
// unsupported, and always fails with [ErrSendNotSupported].
//
// # Ambient context
//
// The poster's ambient context (see package
// [github.com/joeycumines/go-loopsync/ambient]) is captured by Post, and
// re-established on the loop's goroutine for the duration of the callback.
// The loop goroutine's own ambient context is restored afterward, however the
// callback exits. See also [WithAmbientContext].
//
// # Failure containment
//
// A panicking callback never unwinds into the event loop. The recovered
// [PanicError] is first offered to the error reporter ([WithErrorReporter]).
// If it isn't claimed, it is wrapped in a [RethrowToken], and re-raised on a
// [WorkerPool] goroutine, which (by default) terminates the process, rather
// than silently discarding the failure. Panic values implementing
// [FatalPanic] (see [Abort]) are never contained.
//
// # Tracing
//
// An optional [TraceProvider] may be registered via [SetTraceProvider],
// before first use. Tracing is resolved at most once, and costs a single
// check per event, when disabled. See package
// [github.com/joeycumines/go-loopsync/oteltrace] for an OpenTelemetry
// implementation.
//
// # Usage
//
//	loop, err := eventloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go loop.Run(ctx)
//
//	bridge := loopsync.ForLoop(loop)
//	ambient.With(ctx, func() {
//	    _ = bridge.Post(func(state any) {
//	        fmt.Println(state, ambient.Current() == ctx) // hello true
//	    }, "hello")
//	})
package loopsync
