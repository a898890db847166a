//go:build darwin || freebsd

package netpoll

import "golang.org/x/sys/unix"

type eventList struct {
	size   int
	events []unix.Kevent_t
}

func newEventList(size int) *eventList {
	return &eventList{
		size:   size,
		events: make([]unix.Kevent_t, size),
	}
}

// expand is only called after every event of the batch has been handled.
func (el *eventList) expand() {
	if el.size >= MaxEvents {
		return
	}
	el.size <<= 1
	el.events = make([]unix.Kevent_t, el.size)
}

func toIOEvent(ev *unix.Kevent_t) IOEvent {
	out := EventRead
	if ev.Flags&unix.EV_EOF != 0 {
		out |= EventHup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		out |= EventErr
	}
	return out
}
