package uv

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsDefaults(t *testing.T) {
	opts := loadOptions()
	assert.Equal(t, defaultLogger, opts.Logger)
	assert.Equal(t, DefaultReadBufferSize, opts.ReadBufferSize)
	assert.Equal(t, 64, opts.EventListSize)
	assert.False(t, opts.ReusePort)
	assert.Zero(t, opts.TCPKeepAlive)
}

func TestLoadOptionsEventListSize(t *testing.T) {
	for _, tc := range []struct {
		in, want int
	}{
		{0, 64},
		{-3, 64},
		{100, 128},
		{256, 256},
		{1 << 20, 4096},
	} {
		assert.Equal(t, tc.want, loadOptions(WithEventListSize(tc.in)).EventListSize, "in=%d", tc.in)
	}
}

func TestLoopOptions(t *testing.T) {
	logger := log.New(os.Stdout, "[uv] ", 0)
	l := newTestLoop(t,
		WithLogger(logger),
		WithReusePort(true),
		WithTCPKeepAlive(time.Minute),
		WithReadBufferSize(4096),
		WithLockOSThread(true),
	)
	opts := l.Options()
	assert.Equal(t, Logger(logger), l.Logger())
	assert.True(t, opts.ReusePort)
	assert.Equal(t, time.Minute, opts.TCPKeepAlive)
	assert.Equal(t, 4096, opts.ReadBufferSize)
	assert.True(t, opts.LockOSThread)

	var w WakeSignal
	require.NoError(t, w.Init(l, func(w *WakeSignal) { w.Dispose() }))
	require.NoError(t, w.Send())
	require.NoError(t, l.Run())
}

func TestWithOptions(t *testing.T) {
	opts := loadOptions(WithOptions(Options{ReadBufferSize: 10, EventListSize: 1000}))
	assert.Equal(t, 10, opts.ReadBufferSize)
	assert.Equal(t, 1024, opts.EventListSize)
	assert.NotNil(t, opts.Logger)
}
