package uv

import "sync/atomic"

// HandleState is the lifecycle state of a handle.
//
//	Uninitialized --Init--> Active --Close/Dispose--> Closing --next loop iteration--> Closed
type HandleState int32

const (
	StateUninitialized HandleState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s HandleState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// CloseCallback runs on the loop goroutine once a handle reached StateClosed.
type CloseCallback func(h Handle)

// Handle is implemented by every reactor-managed resource.
type Handle interface {
	// Loop returns the loop the handle was initialized against.
	Loop() *Loop
	State() HandleState
	// IsClosing reports whether Close was requested (Closing or Closed).
	IsClosing() bool
	// Close requests an asynchronous close. cb, if not nil, runs after the
	// loop finalized the close. Calling Close on a handle that is not
	// Active is a no-op.
	Close(cb CloseCallback)
	// Dispose is Close(nil).
	Dispose()
	// Ref and Unref control whether an active handle keeps Run alive.
	Ref()
	Unref()
	HasRef() bool

	base() *handle
}

// handleImpl is what a concrete handle adds on top of the shared lifecycle.
type handleImpl interface {
	Handle
	// onClose stops event delivery; runs inside Close.
	onClose()
	// onRelease frees OS resources; runs in the loop's finalization phase.
	onRelease()
}

type handle struct {
	loop    *Loop
	self    handleImpl
	state   int32
	unref   bool
	closeCb CloseCallback
}

func (h *handle) base() *handle { return h }

func (h *handle) Loop() *Loop { return h.loop }

func (h *handle) State() HandleState {
	return HandleState(atomic.LoadInt32(&h.state))
}

func (h *handle) setState(s HandleState) {
	atomic.StoreInt32(&h.state, int32(s))
}

func (h *handle) IsClosing() bool {
	s := h.State()
	return s == StateClosing || s == StateClosed
}

func (h *handle) HasRef() bool { return !h.unref }

func (h *handle) Ref() {
	if !h.unref {
		return
	}
	h.unref = false
	if h.State() == StateActive {
		h.loop.refs++
	}
}

func (h *handle) Unref() {
	if h.unref {
		return
	}
	h.unref = true
	if h.State() == StateActive {
		h.loop.refs--
	}
}

// init binds the handle to loop and makes it Active.
func (h *handle) init(op string, loop *Loop, self handleImpl) error {
	if loop == nil {
		return opError(op, ErrInvalidArgument, nil)
	}
	if !loop.ready() {
		return opError(op, ErrInvalidState, nil)
	}
	if h.State() != StateUninitialized {
		return opError(op, ErrInvalidState, nil)
	}
	h.loop = loop
	h.self = self
	h.unref = false
	h.closeCb = nil
	h.setState(StateActive)
	loop.register(h)
	return nil
}

func (h *handle) checkActive(op string) error {
	if h.State() != StateActive {
		return opError(op, ErrInvalidState, nil)
	}
	return nil
}

func (h *handle) Close(cb CloseCallback) {
	if h.State() != StateActive {
		return
	}
	if !h.unref {
		h.loop.refs--
	}
	h.closeCb = cb
	h.setState(StateClosing)
	h.self.onClose()
	h.loop.closing.Add(h)
}

func (h *handle) Dispose() {
	h.Close(nil)
}

// finalize runs once per handle, from Loop.runClosing.
func (h *handle) finalize() {
	h.self.onRelease()
	h.setState(StateClosed)
	h.loop.unregister(h)
	if cb := h.closeCb; cb != nil {
		h.closeCb = nil
		cb(h.self)
	}
}
