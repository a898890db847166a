//go:build linux

package netpoll

import "golang.org/x/sys/unix"

type eventList struct {
	size   int
	events []unix.EpollEvent
}

func newEventList(size int) *eventList {
	return &eventList{
		size:   size,
		events: make([]unix.EpollEvent, size),
	}
}

// expand is only called after every event of the batch has been handled,
// so the old slice does not need to be migrated.
func (el *eventList) expand() {
	if el.size >= MaxEvents {
		return
	}
	el.size <<= 1
	el.events = make([]unix.EpollEvent, el.size)
}

func toIOEvent(events uint32) (ev IOEvent) {
	if events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		ev |= EventRead
	}
	if events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= EventHup
	}
	if events&unix.EPOLLERR != 0 {
		ev |= EventErr
	}
	return
}
