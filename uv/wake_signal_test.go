package uv

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeSignalInit(t *testing.T) {
	l := newTestLoop(t)

	var w WakeSignal
	assert.ErrorIs(t, w.Init(nil, func(*WakeSignal) {}), ErrInvalidArgument)
	assert.ErrorIs(t, w.Init(l, nil), ErrInvalidArgument)
	assert.Equal(t, StateUninitialized, w.State())

	require.NoError(t, w.Init(l, func(*WakeSignal) {}))
	assert.ErrorIs(t, w.Init(l, func(*WakeSignal) {}), ErrInvalidState)
	w.Dispose()
	runLoop(t, l)
}

func TestWakeSignalSendBeforeRun(t *testing.T) {
	l := newTestLoop(t)

	calls := 0
	var w WakeSignal
	require.NoError(t, w.Init(l, func(w *WakeSignal) {
		calls++
		w.Dispose()
	}))
	require.NoError(t, w.Send())
	runLoop(t, l)
	assert.Equal(t, 1, calls)
}

func TestWakeSignalCoalesces(t *testing.T) {
	l := newTestLoop(t)

	calls := 0
	var w WakeSignal
	require.NoError(t, w.Init(l, func(w *WakeSignal) {
		calls++
		w.Dispose()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Send())
		}()
	}
	wg.Wait()
	runLoop(t, l)
	assert.Equal(t, 1, calls)
}

func TestWakeSignalSendFromAnotherGoroutine(t *testing.T) {
	l := newTestLoop(t)

	calls := 0
	var w WakeSignal
	require.NoError(t, w.Init(l, func(w *WakeSignal) {
		calls++
		w.Dispose()
	}))
	go func() {
		time.Sleep(20 * time.Millisecond)
		assert.NoError(t, w.Send())
	}()
	runLoop(t, l)
	assert.Equal(t, 1, calls)
}

func TestWakeSignalSendDuringCallback(t *testing.T) {
	l := newTestLoop(t)

	calls := 0
	var w WakeSignal
	require.NoError(t, w.Init(l, func(w *WakeSignal) {
		calls++
		if calls == 1 {
			for i := 0; i < 3; i++ {
				assert.NoError(t, w.Send())
			}
			return
		}
		w.Dispose()
	}))
	require.NoError(t, w.Send())
	runLoop(t, l)
	assert.Equal(t, 2, calls)
}

func TestWakeSignalSendAfterClose(t *testing.T) {
	l := newTestLoop(t)

	var w WakeSignal
	require.NoError(t, w.Init(l, func(*WakeSignal) {
		t.Error("callback must not run after close")
	}))
	require.NoError(t, w.Send())
	w.Dispose()
	assert.ErrorIs(t, w.Send(), ErrInvalidState)
	runLoop(t, l)
	assert.ErrorIs(t, w.Send(), ErrInvalidState)
}

func TestWakeSignalDoubleDispose(t *testing.T) {
	l := newTestLoop(t)

	var w WakeSignal
	require.NoError(t, w.Init(l, func(*WakeSignal) {}))
	w.Dispose()
	w.Dispose()
	runLoop(t, l)
	w.Dispose()
	assert.Equal(t, StateClosed, w.State())
}

func TestWakeSignalManySignals(t *testing.T) {
	l := newTestLoop(t)

	const n = 8
	calls := make([]int, n)
	remaining := n
	signals := make([]WakeSignal, n)
	for i := range signals {
		i := i
		require.NoError(t, signals[i].Init(l, func(w *WakeSignal) {
			calls[i]++
			remaining--
			w.Dispose()
		}))
	}
	for i := range signals {
		go func(w *WakeSignal) { assert.NoError(t, w.Send()) }(&signals[i])
	}
	runLoop(t, l)
	assert.Equal(t, 0, remaining)
	for i := range calls {
		assert.Equal(t, 1, calls[i], "signal %d", i)
	}
}
