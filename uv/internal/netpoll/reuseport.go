//go:build linux || darwin || freebsd

package netpoll

import (
	"errors"

	"github.com/libp2p/go-reuseport"
)

var errRawConnUnsupported = errors.New("netpoll: raw read/write on a bare fd is not supported")

// fdConn exposes a bare socket as a syscall.RawConn so the reuseport control
// hook can be applied before bind(2).
type fdConn int

func (c fdConn) Control(f func(fd uintptr)) error {
	f(uintptr(c))
	return nil
}

func (c fdConn) Read(func(fd uintptr) bool) error  { return errRawConnUnsupported }
func (c fdConn) Write(func(fd uintptr) bool) error { return errRawConnUnsupported }

// SetReusePort sets SO_REUSEADDR and SO_REUSEPORT on fd, which is about to
// be bound to address on network.
func SetReusePort(fd int, network, address string) error {
	return reuseport.Control(network, address, fdConn(fd))
}
