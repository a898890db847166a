//go:build linux || darwin || freebsd

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetReuseAddr sets SO_REUSEADDR so a restarted server can rebind while old
// connections sit in TIME_WAIT.
func SetReuseAddr(fd int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1))
}

// SetNoDelay toggles Nagle's algorithm.
func SetNoDelay(fd int, noDelay bool) error {
	v := 0
	if noDelay {
		v = 1
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v))
}

// DisableKeepAlive clears SO_KEEPALIVE.
func DisableKeepAlive(fd int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 0))
}
