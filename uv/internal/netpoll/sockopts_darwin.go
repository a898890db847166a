//go:build darwin

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetKeepAlive enables SO_KEEPALIVE with secs as both idle time and probe interval.
func SetKeepAlive(fd, secs int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	// 0x101 是 TCP_KEEPINTVL，老版本系统上可能不支持
	switch err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, 0x101, secs); err {
	case nil, unix.ENOPROTOOPT:
	default:
		return os.NewSyscallError("setsockopt", err)
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, secs))
}
