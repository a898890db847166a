package uv

import (
	"time"

	"github.com/ponnys/uvreactor/uv/internal"
	"github.com/ponnys/uvreactor/uv/internal/netpoll"
)

// DefaultReadBufferSize is the size suggested to AllocCallback.
const DefaultReadBufferSize = 0x10000

// Option configures a Loop at Init.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	opts.normalize()
	return opts
}

// Options is the resolved configuration of a Loop.
type Options struct {
	// Logger receives non-fatal housekeeping failures.
	Logger Logger
	// ReusePort binds TCP handles with SO_REUSEPORT so several loops can
	// listen on one port.
	ReusePort bool
	// TCPKeepAlive, when positive, is applied to every accepted connection.
	TCPKeepAlive time.Duration
	// ReadBufferSize is the suggestedSize passed to AllocCallback.
	ReadBufferSize int
	// EventListSize is the initial number of events fetched per poll;
	// it is rounded up to a power of two and grows on demand.
	EventListSize int
	// LockOSThread pins the goroutine calling Run to its OS thread.
	LockOSThread bool
}

func (opts *Options) normalize() {
	if opts.Logger == nil {
		opts.Logger = defaultLogger
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	opts.EventListSize = internal.ClampPowerOfTwo(opts.EventListSize, netpoll.InitEvents, netpoll.MaxEvents)
}

// WithOptions replaces all options at once.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

func WithLogger(logger Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

func WithTCPKeepAlive(tcpKeepAlive time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = tcpKeepAlive
	}
}

func WithReadBufferSize(size int) Option {
	return func(opts *Options) {
		opts.ReadBufferSize = size
	}
}

func WithEventListSize(size int) Option {
	return func(opts *Options) {
		opts.EventListSize = size
	}
}

func WithLockOSThread(lock bool) Option {
	return func(opts *Options) {
		opts.LockOSThread = lock
	}
}
