package uv

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/ponnys/uvreactor/uv/internal/netpoll"
)

const (
	loopUninitialized int32 = iota
	loopReady
	loopClosed
)

// ioHandler receives readiness for an fd registered through Loop.watch.
type ioHandler interface {
	onIO(ev netpoll.IOEvent)
}

// Loop is the reactor. The zero value is uninitialized; call Init before use.
//
// All methods except those reached through WakeSignal.Send must be called
// from the goroutine that runs the loop, or before the first Run.
type Loop struct {
	opts   *Options
	logger Logger
	poller *netpoll.Poller

	state   int32
	running int32

	// 所有 Active 和 Closing 的 handle
	handles map[*handle]struct{}
	// 引用计数大于0时，Run不会退出
	refs int
	// fd -> handle，只有正在监听读事件的fd在这里
	watchers map[int]ioHandler
	wakes    []*WakeSignal
	// 等待下一轮迭代完成关闭的 handle
	closing *queue.Queue
	// Run 入口处强制扫描一次 wake signal
	rescan bool
}

// NewLoop allocates and initializes a Loop.
func NewLoop(opts ...Option) (*Loop, error) {
	l := new(Loop)
	if err := l.Init(opts...); err != nil {
		return nil, err
	}
	return l, nil
}

// Init allocates the poller. It fails with ErrResource when the OS can not
// provide one and with ErrInvalidState when called twice.
func (l *Loop) Init(opts ...Option) error {
	if atomic.LoadInt32(&l.state) != loopUninitialized {
		return opError("init", ErrInvalidState, nil)
	}
	options := loadOptions(opts...)
	p, err := netpoll.OpenPoller(options.EventListSize)
	if err != nil {
		return opError("init", ErrResource, err)
	}
	l.opts = options
	l.logger = options.Logger
	l.poller = p
	l.handles = make(map[*handle]struct{})
	l.watchers = make(map[int]ioHandler)
	l.closing = queue.New()
	atomic.StoreInt32(&l.state, loopReady)
	return nil
}

func (l *Loop) ready() bool {
	return atomic.LoadInt32(&l.state) == loopReady
}

// Options returns the resolved configuration.
func (l *Loop) Options() Options {
	return *l.opts
}

// Logger returns the loop's logger.
func (l *Loop) Logger() Logger {
	return l.logger
}

// Alive reports whether Run would block: some referenced handle is active or
// some handle still waits for its close to be finalized.
func (l *Loop) Alive() bool {
	if l.closing == nil {
		return false
	}
	return l.refs > 0 || l.closing.Length() > 0
}

// ActiveHandles returns the number of handles that are Active or Closing.
func (l *Loop) ActiveHandles() int {
	return len(l.handles)
}

// Walk calls fn for every handle that is Active or Closing. fn may close
// the handle it is given.
func (l *Loop) Walk(fn func(h Handle)) {
	hs := make([]*handle, 0, len(l.handles))
	for h := range l.handles {
		hs = append(hs, h)
	}
	for _, h := range hs {
		fn(h.self)
	}
}

// Run drives the loop on the calling goroutine until it is no longer Alive.
// It may be called again later. Run returns ErrInvalidState when the loop is
// not initialized or is already running, including a nested Run from a
// callback. A poll failure is returned wrapped; callback panics propagate.
func (l *Loop) Run() error {
	if !l.ready() {
		return opError("run", ErrInvalidState, nil)
	}
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return opError("run", ErrInvalidState, fmt.Errorf("loop is already running"))
	}
	defer atomic.StoreInt32(&l.running, 0)

	if l.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	// 上一次Run可能在处理wake之前被回调的panic打断
	l.rescan = true
	for l.Alive() {
		timeout := -1
		if l.closing.Length() > 0 {
			timeout = 0
		}
		woken, err := l.poller.Polling(timeout, l.dispatch)
		if err != nil {
			return fmt.Errorf("uv: run: %w", err)
		}
		if woken || l.rescan {
			l.rescan = false
			l.processWakes()
		}
		l.runClosing()
	}
	return nil
}

// Close releases the poller. Every handle must have reached StateClosed,
// otherwise ErrInvalidState is returned and nothing is released.
func (l *Loop) Close() error {
	switch atomic.LoadInt32(&l.state) {
	case loopUninitialized:
		return opError("close", ErrInvalidState, nil)
	case loopClosed:
		return nil
	}
	if atomic.LoadInt32(&l.running) != 0 {
		return opError("close", ErrInvalidState, fmt.Errorf("loop is running"))
	}
	if n := len(l.handles); n > 0 {
		return opError("close", ErrInvalidState, fmt.Errorf("%d handles are still open", n))
	}
	atomic.StoreInt32(&l.state, loopClosed)
	return l.poller.Close()
}

func (l *Loop) dispatch(fd int, ev netpoll.IOEvent) {
	// 本轮已经被关闭的handle会先从watchers中删除，这里直接丢弃
	if h, ok := l.watchers[fd]; ok {
		h.onIO(ev)
	}
}

func (l *Loop) processWakes() {
	// 回调中新建的signal会追加到末尾，本轮不处理
	for i, n := 0, len(l.wakes); i < n; i++ {
		l.wakes[i].dispatch()
	}
}

func (l *Loop) runClosing() {
	// 关闭回调里再关闭的handle留到下一轮
	for n := l.closing.Length(); n > 0; n-- {
		l.closing.Remove().(*handle).finalize()
	}
}

func (l *Loop) register(h *handle) {
	l.handles[h] = struct{}{}
	l.refs++
}

func (l *Loop) unregister(h *handle) {
	delete(l.handles, h)
}

func (l *Loop) watch(fd int, h ioHandler) error {
	if err := l.poller.AddRead(fd); err != nil {
		return err
	}
	l.watchers[fd] = h
	return nil
}

func (l *Loop) unwatch(fd int) {
	if _, ok := l.watchers[fd]; !ok {
		return
	}
	delete(l.watchers, fd)
	l.sniffErrorAndLog(l.poller.Delete(fd))
}

func (l *Loop) addWake(w *WakeSignal) {
	l.wakes = append(l.wakes, w)
}

func (l *Loop) removeWake(w *WakeSignal) {
	for i, x := range l.wakes {
		if x == w {
			copy(l.wakes[i:], l.wakes[i+1:])
			l.wakes[len(l.wakes)-1] = nil
			l.wakes = l.wakes[:len(l.wakes)-1]
			return
		}
	}
}

func (l *Loop) sniffErrorAndLog(err error) {
	if err != nil {
		l.logger.Printf("uv: %v\n", err)
	}
}
