package uv

import "sync/atomic"

// WakeCallback runs on the loop goroutine after one or more Sends.
type WakeCallback func(w *WakeSignal)

// WakeSignal lets any goroutine schedule a callback on the loop goroutine.
// Sends that happen before the loop observes the signal collapse into a
// single callback invocation.
type WakeSignal struct {
	handle
	pending int32
	cb      WakeCallback
}

var _ Handle = (*WakeSignal)(nil)

// Init registers the signal with loop. The signal keeps Run alive until it
// is closed or unreferenced.
func (w *WakeSignal) Init(loop *Loop, cb WakeCallback) error {
	if cb == nil {
		return opError("wake_init", ErrInvalidArgument, nil)
	}
	if err := w.init("wake_init", loop, w); err != nil {
		return err
	}
	w.cb = cb
	atomic.StoreInt32(&w.pending, 0)
	loop.addWake(w)
	return nil
}

// Send schedules the callback. It is safe to call from any goroutine,
// including the loop goroutine and the callback itself. Once the signal is
// Closing or Closed, Send fails with ErrInvalidState.
func (w *WakeSignal) Send() error {
	if w.State() != StateActive {
		return opError("wake_send", ErrInvalidState, nil)
	}
	// 已经有未处理的通知，loop一定会被唤醒
	if !atomic.CompareAndSwapInt32(&w.pending, 0, 1) {
		return nil
	}
	if err := w.loop.poller.Wake(); err != nil {
		return opError("wake_send", nil, err)
	}
	return nil
}

func (w *WakeSignal) dispatch() {
	if w.State() != StateActive {
		return
	}
	if !atomic.CompareAndSwapInt32(&w.pending, 1, 0) {
		return
	}
	w.cb(w)
}

func (w *WakeSignal) onClose() {}

func (w *WakeSignal) onRelease() {
	w.loop.removeWake(w)
}
