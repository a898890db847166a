package uv

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l, err := NewLoop(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, l.Close()) })
	return l
}

// runLoop runs l on its own goroutine and fails the test if it does not
// return in time.
func runLoop(t *testing.T, l *Loop) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopInitRunClose(t *testing.T) {
	var l Loop
	require.NoError(t, l.Init())
	assert.False(t, l.Alive())
	assert.NoError(t, l.Run(), "a loop without handles returns immediately")
	assert.NoError(t, l.Run())
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close(), "second close is a no-op")
	assert.ErrorIs(t, l.Run(), ErrInvalidState)
}

func TestLoopUninitialized(t *testing.T) {
	var l Loop
	assert.False(t, l.Alive())
	assert.ErrorIs(t, l.Run(), ErrInvalidState)
	assert.ErrorIs(t, l.Close(), ErrInvalidState)

	var w WakeSignal
	assert.ErrorIs(t, w.Init(&l, func(*WakeSignal) {}), ErrInvalidState)
}

func TestLoopInitTwice(t *testing.T) {
	l := newTestLoop(t)
	assert.ErrorIs(t, l.Init(), ErrInvalidState)
}

func TestLoopCloseWithLiveHandles(t *testing.T) {
	var l Loop
	require.NoError(t, l.Init())

	var w WakeSignal
	require.NoError(t, w.Init(&l, func(*WakeSignal) {}))
	assert.Equal(t, 1, l.ActiveHandles())

	err := l.Close()
	assert.ErrorIs(t, err, ErrInvalidState)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "close", opErr.Op)

	w.Dispose()
	assert.ErrorIs(t, l.Close(), ErrInvalidState, "closing handles are still registered")
	require.NoError(t, l.Run())
	assert.Equal(t, 0, l.ActiveHandles())
	assert.NoError(t, l.Close())
}

func TestLoopRunTwice(t *testing.T) {
	l := newTestLoop(t)

	calls := 0
	for i := 0; i < 2; i++ {
		var w WakeSignal
		require.NoError(t, w.Init(l, func(w *WakeSignal) {
			calls++
			w.Dispose()
		}))
		require.NoError(t, w.Send())
		runLoop(t, l)
	}
	assert.Equal(t, 2, calls)
}

func TestLoopCallbackPanicPropagates(t *testing.T) {
	l := newTestLoop(t)

	calls := 0
	var w WakeSignal
	require.NoError(t, w.Init(l, func(w *WakeSignal) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		w.Dispose()
	}))
	require.NoError(t, w.Send())
	assert.PanicsWithValue(t, "boom", func() { _ = l.Run() })

	// the loop must still be usable
	require.NoError(t, w.Send())
	require.NoError(t, l.Run())
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateClosed, w.State())
}

func TestLoopPanicDoesNotLoseWake(t *testing.T) {
	l := newTestLoop(t)

	var a, b WakeSignal
	bCalls := 0
	require.NoError(t, a.Init(l, func(w *WakeSignal) {
		w.Dispose()
		panic("boom")
	}))
	require.NoError(t, b.Init(l, func(w *WakeSignal) {
		bCalls++
		w.Dispose()
	}))
	require.NoError(t, a.Send())
	require.NoError(t, b.Send())
	assert.Panics(t, func() { _ = l.Run() })

	require.NoError(t, l.Run())
	assert.Equal(t, 1, bCalls)
	assert.Equal(t, 0, l.ActiveHandles())
}

func TestLoopNestedRun(t *testing.T) {
	l := newTestLoop(t)

	var nested error
	var w WakeSignal
	require.NoError(t, w.Init(l, func(w *WakeSignal) {
		nested = l.Run()
		w.Dispose()
	}))
	require.NoError(t, w.Send())
	require.NoError(t, l.Run())
	assert.ErrorIs(t, nested, ErrInvalidState)
}

func TestLoopWalk(t *testing.T) {
	l := newTestLoop(t)

	var a, b WakeSignal
	var tcp TCPHandle
	require.NoError(t, a.Init(l, func(*WakeSignal) {
		l.Walk(func(h Handle) { h.Dispose() })
	}))
	require.NoError(t, b.Init(l, func(*WakeSignal) {}))
	require.NoError(t, tcp.Init(l))

	seen := 0
	l.Walk(func(Handle) { seen++ })
	assert.Equal(t, 3, seen)
	assert.Equal(t, 3, l.ActiveHandles())

	require.NoError(t, a.Send())
	runLoop(t, l)
	assert.Equal(t, 0, l.ActiveHandles())
	assert.Equal(t, StateClosed, tcp.State())
}

func TestLoopUnref(t *testing.T) {
	l := newTestLoop(t)

	var w WakeSignal
	require.NoError(t, w.Init(l, func(*WakeSignal) {}))
	w.Unref()
	w.Unref()
	assert.False(t, w.HasRef())
	assert.False(t, l.Alive())
	runLoop(t, l)
	assert.Equal(t, StateActive, w.State())

	w.Ref()
	assert.True(t, w.HasRef())
	assert.True(t, l.Alive())
	w.Dispose()
	runLoop(t, l)
	assert.Equal(t, StateClosed, w.State())
}

func TestLoopCloseCallback(t *testing.T) {
	l := newTestLoop(t)

	var w WakeSignal
	require.NoError(t, w.Init(l, func(*WakeSignal) {}))

	var closed []Handle
	w.Close(func(h Handle) { closed = append(closed, h) })
	w.Close(func(h Handle) { t.Error("second close must be ignored") })
	w.Dispose()
	assert.Empty(t, closed, "close callback runs on the next iteration")
	assert.Equal(t, StateClosing, w.State())
	assert.True(t, w.IsClosing())
	assert.True(t, l.Alive())

	runLoop(t, l)
	require.Len(t, closed, 1)
	assert.Same(t, &w, closed[0])
	assert.Equal(t, StateClosed, w.State())
	assert.Same(t, l, w.Loop())
}

func TestLoopCloseInCloseCallback(t *testing.T) {
	l := newTestLoop(t)

	var a, b WakeSignal
	require.NoError(t, a.Init(l, func(*WakeSignal) {}))
	require.NoError(t, b.Init(l, func(*WakeSignal) {}))

	order := make([]string, 0, 2)
	a.Close(func(Handle) {
		order = append(order, "a")
		b.Close(func(Handle) { order = append(order, "b") })
	})
	runLoop(t, l)
	assert.Equal(t, []string{"a", "b"}, order)
}
