//go:build darwin || freebsd

package netpoll

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ponnys/uvreactor/uv/internal"
)

// Poller is a kqueue instance. Wakes go through a user event (EVFILT_USER).
type Poller struct {
	fd      int
	trigger int32
	el      *eventList
}

// OpenPoller creates the kqueue and registers the user wake event.
func OpenPoller(size int) (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.Kqueue(); err != nil {
		poller = nil
		err = os.NewSyscallError("kqueue", err)
		return
	}
	unix.CloseOnExec(poller.fd)
	// kevent由(ident、filter)对来唯一标识，unix.Kevent 结合了 epoll_ctl 和 epoll_wait
	// 注册用户事件，由wakeChanges来触发
	if _, err = unix.Kevent(poller.fd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil); err != nil {
		_ = poller.Close()
		poller = nil
		err = os.NewSyscallError("kevent add|clear", err)
		return
	}
	poller.el = newEventList(internal.ClampPowerOfTwo(size, 2, MaxEvents))
	return
}

// Close releases the kqueue.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// AddRead starts watching fd for readability.
func (p *Poller) AddRead(fd int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_ADD)
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{ev}, nil, nil)
	return os.NewSyscallError("kevent add", err)
}

// Delete stops watching fd. kqueue drops the filter on close by itself, but a
// paused listener still needs an explicit EV_DELETE.
func (p *Poller) Delete(fd int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_DELETE)
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{ev}, nil, nil)
	return os.NewSyscallError("kevent delete", ignoreNotExist(err))
}

// unix.NOTE_TRIGGER 触发用户自定义事件
var wakeChanges = []unix.Kevent_t{
	{Ident: 0, Filter: unix.EVFILT_USER, Fflags: unix.NOTE_TRIGGER},
}

// Wake makes a blocked or the next Polling call return.
func (p *Poller) Wake() error {
	if !atomic.CompareAndSwapInt32(&p.trigger, 0, 1) {
		return nil
	}
	if _, err := unix.Kevent(p.fd, wakeChanges, nil, nil); err != nil {
		return os.NewSyscallError("kevent trigger", err)
	}
	return nil
}

// Polling waits at most msec milliseconds (forever when msec < 0) and calls
// callback for every ready fd.
func (p *Poller) Polling(msec int, callback func(fd int, ev IOEvent)) (woken bool, err error) {
	var ts *unix.Timespec
	if msec >= 0 {
		t := unix.NsecToTimespec(int64(msec) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.fd, nil, p.el.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, os.NewSyscallError("kevent wait", err)
	}
	for i := 0; i < n; i++ {
		ev := &p.el.events[i]
		if ev.Filter == unix.EVFILT_USER {
			atomic.StoreInt32(&p.trigger, 0)
			woken = true
			continue
		}
		callback(int(ev.Ident), toIOEvent(ev))
	}
	if n == p.el.size {
		p.el.expand()
	}
	return woken, nil
}
