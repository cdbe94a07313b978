package loopsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-loopsync/ambient"
	"github.com/joeycumines/go-loopsync/internal/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningLoop(t *testing.T) (*eventloop.Loop, func()) {
	t.Helper()
	loop, err := eventloop.New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	t.Cleanup(stop)
	return loop, stop
}

func TestForLoop_identity(t *testing.T) {
	loop, _ := newRunningLoop(t)
	other, _ := newRunningLoop(t)

	bridge := ForLoop(loop)
	require.NotNil(t, bridge)
	assert.Same(t, bridge, ForLoop(loop))
	assert.Same(t, bridge, Loops.GetOrCreate(loop))
	assert.Same(t, loop, bridge.Owner())
	assert.NotSame(t, bridge, ForLoop(other))
}

func TestForLoop_postsRunOnLoop(t *testing.T) {
	loop, _ := newRunningLoop(t)
	bridge := ForLoop(loop)

	const posters = 8
	var (
		wg      sync.WaitGroup
		runs    [posters]atomic.Int32
		loopIDs sync.Map
		done    = make(chan struct{}, posters)
	)
	for i := range posters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, bridge.Post(func(state any) {
				runs[state.(int)].Add(1)
				loopIDs.Store(goid.Get(), struct{}{})
				done <- struct{}{}
			}, i))
		}()
	}
	wg.Wait()

	for range posters {
		select {
		case <-done:
		case <-time.After(time.Second * 5):
			t.Fatal(`timed out waiting for callbacks`)
		}
	}

	for i := range runs {
		assert.Equal(t, int32(1), runs[i].Load(), i)
	}
	var goroutines int
	loopIDs.Range(func(any, any) bool {
		goroutines++
		return true
	})
	assert.Equal(t, 1, goroutines, `callbacks must share the loop's goroutine`)
}

func TestForLoop_ambientPropagated(t *testing.T) {
	loop, _ := newRunningLoop(t)
	bridge := ForLoop(loop)

	ctx := context.WithValue(context.Background(), ctxKey{}, `request`)
	observed := make(chan any, 1)
	ambient.With(ctx, func() {
		require.NoError(t, bridge.PostFunc(func() {
			observed <- ambient.Current().Value(ctxKey{})
		}))
	})

	select {
	case v := <-observed:
		assert.Equal(t, `request`, v)
	case <-time.After(time.Second * 5):
		t.Fatal(`timed out`)
	}
}

func TestLoopScheduler_highPriority(t *testing.T) {
	loop, _ := newRunningLoop(t)
	cache, err := NewCache(LoopScheduler, WithPriority(PriorityHigh))
	require.NoError(t, err)
	bridge := cache.GetOrCreate(loop)
	assert.NotSame(t, bridge, ForLoop(loop))

	called := make(chan struct{})
	require.NoError(t, bridge.PostFunc(func() { close(called) }))
	select {
	case <-called:
	case <-time.After(time.Second * 5):
		t.Fatal(`timed out`)
	}
}

func TestForLoop_terminated(t *testing.T) {
	loop, stop := newRunningLoop(t)
	bridge := ForLoop(loop)
	stop()

	err := bridge.PostFunc(func() { t.Error(`should not run`) })
	assert.True(t, errors.Is(err, ErrScheduleRejected), err)
	assert.True(t, errors.Is(err, eventloop.ErrLoopTerminated), err)
}

func TestForLoop_panicContained(t *testing.T) {
	loop, _ := newRunningLoop(t)
	reported := make(chan error, 1)
	cache, err := NewCache(LoopScheduler, WithErrorReporter(func(err error) bool {
		reported <- err
		return true
	}))
	require.NoError(t, err)
	bridge := cache.GetOrCreate(loop)

	require.NoError(t, bridge.Post(panicky, nil))
	select {
	case err := <-reported:
		var pe *PanicError
		assert.True(t, errors.As(err, &pe))
	case <-time.After(time.Second * 5):
		t.Fatal(`timed out`)
	}

	// the loop is still running
	called := make(chan struct{})
	require.NoError(t, bridge.PostFunc(func() { close(called) }))
	select {
	case <-called:
	case <-time.After(time.Second * 5):
		t.Fatal(`timed out`)
	}
}

func TestLoopScheduler_fatalEscapesLoop(t *testing.T) {
	raised := make(chan any, 1)
	old := raiseFatal
	raiseFatal = func(r any) { raised <- r }
	t.Cleanup(func() { raiseFatal = old })

	loop, _ := newRunningLoop(t)
	var reported atomic.Bool
	cache, err := NewCache(LoopScheduler, WithErrorReporter(func(error) bool {
		reported.Store(true)
		return true
	}))
	require.NoError(t, err)

	require.NoError(t, cache.GetOrCreate(loop).PostFunc(func() { Abort(`fatal`) }))
	select {
	case r := <-raised:
		abort, ok := r.(*AbortError)
		require.True(t, ok, r)
		assert.Equal(t, `fatal`, abort.Reason)
	case <-time.After(time.Second * 5):
		t.Fatal(`abort was contained by the loop`)
	}
	assert.False(t, reported.Load())
}

func TestEscapeFatal(t *testing.T) {
	var raised []any
	old := raiseFatal
	raiseFatal = func(r any) { raised = append(raised, r) }
	t.Cleanup(func() { raiseFatal = old })

	var called bool
	escapeFatal(func() { called = true })()
	assert.True(t, called)
	assert.Empty(t, raised)

	assert.PanicsWithValue(t, `plain`, escapeFatal(func() { panic(`plain`) }))
	assert.Empty(t, raised)

	assert.NotPanics(t, escapeFatal(func() { Abort(`fatal`) }))
	require.Len(t, raised, 1)
	assert.IsType(t, (*AbortError)(nil), raised[0])
}
