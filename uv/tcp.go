package uv

import (
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ponnys/uvreactor/uv/internal/netpoll"
)

// TCPRole is what a TCPHandle is currently used for.
type TCPRole int32

const (
	RoleUnbound TCPRole = iota
	RoleBound
	RoleListening
	RoleConnected
)

func (r TCPRole) String() string {
	switch r {
	case RoleUnbound:
		return "unbound"
	case RoleBound:
		return "bound"
	case RoleListening:
		return "listening"
	case RoleConnected:
		return "connected"
	}
	return "unknown"
}

type (
	// ConnectionCallback is invoked once per inbound connection taken off the
	// kernel backlog. status is nil on success; the callback should then call
	// server.Accept with a fresh handle or leave the connection pending.
	// A non-nil status is a platform accept failure (e.g. descriptor
	// exhaustion); the listener keeps running.
	ConnectionCallback func(server *TCPHandle, status error, state interface{})

	// AllocCallback returns the buffer the next read lands in. Returning an
	// empty buffer fails the read with ENOBUFS.
	AllocCallback func(t *TCPHandle, suggestedSize int, state interface{}) []byte

	// ReadCallback receives the result of one read:
	//   nread > 0:  buf holds nread bytes, reading continues;
	//   nread == 0: orderly shutdown by the peer, reading has stopped;
	//   nread < 0:  -errno, err is the platform error, reading has stopped.
	// buf always aliases the buffer returned by AllocCallback so it can be
	// given back to a pool.
	ReadCallback func(t *TCPHandle, nread int, buf []byte, err error, state interface{})
)

// TCPHandle is a TCP endpoint: a listener after Bind and Listen, or a
// stream after Accept.
type TCPHandle struct {
	handle
	fd   int
	role TCPRole

	// listening
	backlog      int
	onConnection ConnectionCallback
	listenState  interface{}
	pendingFD    int  // 已经accept但还没交给用户的连接
	paused       bool // pendingFD未被取走时暂停监听

	// connected
	alloc     AllocCallback
	read      ReadCallback
	readState interface{}
	reading   bool
	spare     []byte // EAGAIN时留到下一次可读事件使用
}

var _ Handle = (*TCPHandle)(nil)

// Init binds the handle to loop. The socket itself is created by Bind, or
// adopted from a listener by Accept.
func (t *TCPHandle) Init(loop *Loop) error {
	if err := t.init("tcp_init", loop, t); err != nil {
		return err
	}
	t.fd, t.pendingFD = -1, -1
	t.role = RoleUnbound
	t.paused, t.reading = false, false
	t.spare = nil
	return nil
}

// Role returns the current role.
func (t *TCPHandle) Role() TCPRole { return t.role }

// IsReading reports whether reads are being delivered.
func (t *TCPHandle) IsReading() bool { return t.reading }

// Bind creates a socket of addr's family and binds it. A nil addr or port 0
// requests an ephemeral port on the wildcard address.
func (t *TCPHandle) Bind(addr *net.TCPAddr) error {
	if err := t.checkActive("bind"); err != nil {
		return err
	}
	if t.role != RoleUnbound {
		return opError("bind", ErrInvalidState, nil)
	}
	sa, family, err := netpoll.TCPAddrToSockaddr(addr)
	if err != nil {
		return opError("bind", ErrAddress, err)
	}
	fd, err := netpoll.Socket(family)
	if err != nil {
		return opError("bind", bindErrKind(err), err)
	}
	if t.loop.opts.ReusePort {
		network, address := "tcp4", "0.0.0.0:0"
		if family == unix.AF_INET6 {
			network = "tcp6"
		}
		if addr != nil {
			address = addr.String()
		}
		err = netpoll.SetReusePort(fd, network, address)
	} else {
		err = netpoll.SetReuseAddr(fd)
	}
	if err != nil {
		_ = unix.Close(fd)
		return opError("bind", bindErrKind(err), err)
	}
	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return opError("bind", bindErrKind(err), os.NewSyscallError("bind", err))
	}
	t.fd = fd
	t.role = RoleBound
	return nil
}

// LocalAddr returns the address the socket is bound to, which carries the
// actual port after binding port 0.
func (t *TCPHandle) LocalAddr() (*net.TCPAddr, error) {
	if err := t.checkActive("getsockname"); err != nil {
		return nil, err
	}
	if t.fd < 0 {
		return nil, opError("getsockname", ErrInvalidState, nil)
	}
	sa, err := unix.Getsockname(t.fd)
	if err != nil {
		return nil, opError("getsockname", nil, os.NewSyscallError("getsockname", err))
	}
	return netpoll.SockaddrToTCPAddr(sa), nil
}

// RemoteAddr returns the peer address of a connected handle.
func (t *TCPHandle) RemoteAddr() (*net.TCPAddr, error) {
	if err := t.checkActive("getpeername"); err != nil {
		return nil, err
	}
	if t.role != RoleConnected {
		return nil, opError("getpeername", ErrInvalidState, nil)
	}
	sa, err := unix.Getpeername(t.fd)
	if err != nil {
		return nil, opError("getpeername", nil, os.NewSyscallError("getpeername", err))
	}
	return netpoll.SockaddrToTCPAddr(sa), nil
}

// Listen turns a bound handle into a listener. backlog bounds the kernel
// queue of established but not yet accepted connections.
func (t *TCPHandle) Listen(backlog int, cb ConnectionCallback, state interface{}) error {
	if err := t.checkActive("listen"); err != nil {
		return err
	}
	if cb == nil || backlog <= 0 {
		return opError("listen", ErrInvalidArgument, nil)
	}
	if t.role != RoleBound {
		return opError("listen", ErrInvalidState, nil)
	}
	if err := unix.Listen(t.fd, backlog); err != nil {
		kind := ErrResource
		if err == unix.EADDRINUSE {
			kind = ErrAddress
		}
		return opError("listen", kind, os.NewSyscallError("listen", err))
	}
	if err := t.loop.watch(t.fd, t); err != nil {
		return opError("listen", ErrResource, err)
	}
	t.backlog = backlog
	t.onConnection = cb
	t.listenState = state
	t.role = RoleListening
	return nil
}

// Accept moves the pending connection of a listener into client, which must
// be an initialized, unbound handle. Without a pending connection it fails
// with ErrWouldBlock.
func (t *TCPHandle) Accept(client *TCPHandle) error {
	if err := t.checkActive("accept"); err != nil {
		return err
	}
	if t.role != RoleListening {
		return opError("accept", ErrInvalidState, nil)
	}
	if client == nil {
		return opError("accept", ErrInvalidArgument, nil)
	}
	if client.State() != StateActive || client.role != RoleUnbound || client.fd >= 0 {
		return opError("accept", ErrInvalidState, nil)
	}
	if t.pendingFD < 0 {
		return opError("accept", ErrWouldBlock, nil)
	}

	fd := t.pendingFD
	t.pendingFD = -1
	client.fd = fd
	client.role = RoleConnected
	if ka := t.loop.opts.TCPKeepAlive; ka > 0 {
		t.loop.sniffErrorAndLog(netpoll.SetKeepAlive(fd, keepAliveSecs(ka)))
	}

	if t.paused {
		if err := t.loop.watch(t.fd, t); err != nil {
			t.loop.sniffErrorAndLog(err)
		} else {
			t.paused = false
		}
	}
	return nil
}

// ReadStart begins delivering reads of a connected handle. For every
// readiness event alloc is asked for a buffer, one nonblocking read is
// performed into it and read is called with the result.
func (t *TCPHandle) ReadStart(alloc AllocCallback, read ReadCallback, state interface{}) error {
	if err := t.checkActive("read_start"); err != nil {
		return err
	}
	if alloc == nil || read == nil {
		return opError("read_start", ErrInvalidArgument, nil)
	}
	if t.role != RoleConnected || t.reading {
		return opError("read_start", ErrInvalidState, nil)
	}
	if err := t.loop.watch(t.fd, t); err != nil {
		return opError("read_start", ErrResource, err)
	}
	t.alloc = alloc
	t.read = read
	t.readState = state
	t.reading = true
	return nil
}

// ReadStop stops delivering reads. It is a no-op when not reading.
func (t *TCPHandle) ReadStop() error {
	if err := t.checkActive("read_stop"); err != nil {
		return err
	}
	t.stopReading()
	return nil
}

// TryWrite writes as much of p as the socket accepts without blocking.
// When nothing can be written it fails with ErrWouldBlock.
func (t *TCPHandle) TryWrite(p []byte) (int, error) {
	if err := t.checkActive("try_write"); err != nil {
		return 0, err
	}
	if t.role != RoleConnected {
		return 0, opError("try_write", ErrInvalidState, nil)
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Write(t.fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, opError("try_write", ErrWouldBlock, err)
		}
		return 0, opError("try_write", nil, os.NewSyscallError("write", err))
	}
	return n, nil
}

// SetNoDelay toggles TCP_NODELAY on a bound or connected socket.
func (t *TCPHandle) SetNoDelay(enable bool) error {
	if err := t.checkFD("nodelay"); err != nil {
		return err
	}
	if err := netpoll.SetNoDelay(t.fd, enable); err != nil {
		return opError("nodelay", nil, err)
	}
	return nil
}

// SetKeepAlive toggles SO_KEEPALIVE; delay is the idle time before probes.
func (t *TCPHandle) SetKeepAlive(enable bool, delay time.Duration) error {
	if err := t.checkFD("keepalive"); err != nil {
		return err
	}
	var err error
	if enable {
		err = netpoll.SetKeepAlive(t.fd, keepAliveSecs(delay))
	} else {
		err = netpoll.DisableKeepAlive(t.fd)
	}
	if err != nil {
		return opError("keepalive", nil, err)
	}
	return nil
}

func (t *TCPHandle) checkFD(op string) error {
	if err := t.checkActive(op); err != nil {
		return err
	}
	if t.fd < 0 {
		return opError(op, ErrInvalidState, nil)
	}
	return nil
}

func keepAliveSecs(d time.Duration) int {
	if secs := int(d / time.Second); secs > 0 {
		return secs
	}
	return 1
}

func (t *TCPHandle) onIO(ev netpoll.IOEvent) {
	switch t.role {
	case RoleListening:
		t.acceptPending()
	case RoleConnected:
		if t.reading {
			t.readOnce()
		}
	}
}

// acceptPending drains the kernel backlog one connection at a time, handing
// each to the connection callback.
func (t *TCPHandle) acceptPending() {
	for t.pendingFD < 0 && t.State() == StateActive && t.role == RoleListening {
		nfd, _, err := netpoll.Accept(t.fd)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			}
			// EMFILE之类的错误交给用户处理，本轮不再重试
			t.onConnection(t, opError("accept", acceptErrKind(err), os.NewSyscallError("accept", err)), t.listenState)
			return
		}
		t.pendingFD = nfd
		t.onConnection(t, nil, t.listenState)
		if t.pendingFD >= 0 && t.State() == StateActive {
			// 回调里没有Accept，暂停监听，新连接留在内核backlog里
			t.loop.unwatch(t.fd)
			t.paused = true
			return
		}
	}
}

func (t *TCPHandle) readOnce() {
	buf := t.spare
	t.spare = nil
	if buf == nil {
		buf = t.alloc(t, t.loop.opts.ReadBufferSize, t.readState)
		// alloc里可能已经停止读或者关闭了handle
		if !t.reading || t.State() != StateActive {
			return
		}
	}
	if len(buf) == 0 {
		t.stopReading()
		t.read(t, -int(unix.ENOBUFS), buf, unix.ENOBUFS, t.readState)
		return
	}

	n, err := unix.Read(t.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			t.spare = buf
			return
		}
		errno, ok := err.(unix.Errno)
		if !ok || errno == 0 {
			errno = unix.EIO
		}
		t.stopReading()
		t.read(t, -int(errno), buf[:0], errno, t.readState)
		return
	}
	if n == 0 {
		// 对端正常关闭，只通知一次
		t.stopReading()
		t.read(t, 0, buf[:0], nil, t.readState)
		return
	}
	t.read(t, n, buf[:n], nil, t.readState)
}

func (t *TCPHandle) stopReading() {
	if !t.reading {
		return
	}
	t.reading = false
	t.loop.unwatch(t.fd)
}

func (t *TCPHandle) onClose() {
	if t.fd >= 0 {
		t.loop.unwatch(t.fd)
	}
	t.reading = false
	t.paused = false
}

// onRelease closes the socket only now, so its fd number can not be reused
// by an accept while stale events of the same poll batch are dispatched.
func (t *TCPHandle) onRelease() {
	if t.pendingFD >= 0 {
		t.loop.sniffErrorAndLog(os.NewSyscallError("close", unix.Close(t.pendingFD)))
		t.pendingFD = -1
	}
	if t.fd >= 0 {
		t.loop.sniffErrorAndLog(os.NewSyscallError("close", unix.Close(t.fd)))
		t.fd = -1
	}
	t.spare = nil
	t.alloc, t.read = nil, nil
	t.onConnection = nil
	t.listenState, t.readState = nil, nil
}
