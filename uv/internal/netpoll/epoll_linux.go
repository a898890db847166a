//go:build linux

package netpoll

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ponnys/uvreactor/uv/internal"
)

const readEvents = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLPRI

// Poller is a level-triggered epoll instance plus an eventfd used to wake it.
type Poller struct {
	fd      int
	wfd     int // eventfd, 唤醒 epoll_wait
	wfdBuf  []byte
	trigger int32 // 非0表示已经写过eventfd，还没被loop读走
	el      *eventList
}

// OpenPoller creates the epoll instance and registers the wake eventfd.
func OpenPoller(size int) (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	if poller.wfd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		err = os.NewSyscallError("eventfd", err)
		return
	}
	if err = poller.AddRead(poller.wfd); err != nil {
		_ = poller.Close()
		poller = nil
		return
	}
	poller.wfdBuf = make([]byte, 8)
	poller.el = newEventList(internal.ClampPowerOfTwo(size, 2, MaxEvents))
	return
}

// Close releases the epoll fd and the eventfd.
func (p *Poller) Close() error {
	err := unix.Close(p.wfd)
	if err0 := unix.Close(p.fd); err0 != nil {
		return os.NewSyscallError("close", err0)
	}
	if err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// AddRead starts watching fd for readability.
func (p *Poller) AddRead(fd int) error {
	return os.NewSyscallError("epoll_ctl add", unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd,
		&unix.EpollEvent{Fd: int32(fd), Events: readEvents}))
}

// Delete stops watching fd. Deleting an fd that is not registered is not an error.
// 关闭fd并不会把它从epoll集合中移除，所以要手动删除
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", ignoreNotExist(unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd,
		&unix.EpollEvent{Fd: int32(fd)})))
}

// Wake makes a blocked or the next Polling call return. Concurrent wakes
// before the loop drains the eventfd collapse into one write.
func (p *Poller) Wake() error {
	if !atomic.CompareAndSwapInt32(&p.trigger, 0, 1) {
		return nil
	}
	if _, err := unix.Write(p.wfd, wakeBytes); err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

// Polling waits at most msec milliseconds (forever when msec < 0) and calls
// callback for every ready fd in the order the kernel reported them.
// woken reports whether Wake fired since the previous call.
func (p *Poller) Polling(msec int, callback func(fd int, ev IOEvent)) (woken bool, err error) {
	n, err := unix.EpollWait(p.fd, p.el.events, msec)
	if err != nil {
		// EINTR发生在系统调用过程中有信号发生的情况，并没有实际错误发生
		if err == unix.EINTR {
			return false, nil
		}
		return false, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		ev := &p.el.events[i]
		fd := int(ev.Fd)
		if fd == p.wfd {
			// 先读走计数器，再清除trigger，保证之后的Wake一定会重新写入
			_, _ = unix.Read(p.wfd, p.wfdBuf)
			atomic.StoreInt32(&p.trigger, 0)
			woken = true
			continue
		}
		callback(fd, toIOEvent(ev.Events))
	}
	if n == p.el.size {
		p.el.expand()
	}
	return woken, nil
}
