//go:build linux || darwin || freebsd

// Package netpoll wraps the readiness facility of the OS (epoll on linux,
// kqueue on darwin/freebsd) together with a coalesced wake descriptor.
//
// A Poller is driven by exactly one goroutine through Polling. Wake is the
// only method that may be called from other goroutines.
package netpoll

import "golang.org/x/sys/unix"

const (
	// InitEvents is the default size of the event list handed to the kernel.
	InitEvents = 64
	// MaxEvents bounds how far the event list may grow.
	MaxEvents = 4096
)

// IOEvent is the readiness reported for one fd.
type IOEvent uint8

const (
	// EventRead fd is readable (data, pending connection or EOF).
	EventRead IOEvent = 1 << iota
	// EventHup peer hung up or shut down its write side.
	EventHup
	// EventErr the kernel reported an error condition on the fd.
	EventErr
)

// IsRead reports whether ev carries readability.
func (ev IOEvent) IsRead() bool { return ev&EventRead != 0 }

// IsHup reports whether ev carries a hangup.
func (ev IOEvent) IsHup() bool { return ev&EventHup != 0 }

// IsErr reports whether ev carries an error.
func (ev IOEvent) IsErr() bool { return ev&EventErr != 0 }

// 8字节的计数器，eventfd只接受uint64写入
var wakeBytes = []byte{1, 0, 0, 0, 0, 0, 0, 0}

// ignoreNotExist treats a missing registration as already removed.
func ignoreNotExist(err error) error {
	if err == unix.ENOENT {
		return nil
	}
	return err
}
