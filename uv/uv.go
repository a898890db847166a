// Package uv is a single-goroutine I/O reactor in the style of libuv.
//
// A Loop owns an epoll/kqueue poller. Handles (WakeSignal, TCPHandle) are
// initialized against a loop and their callbacks always run on the goroutine
// that calls Loop.Run. Run returns once no referenced handle is active and
// every closed handle has been finalized.
//
//	var loop uv.Loop
//	if err := loop.Init(); err != nil {
//		// handle error
//	}
//	var wake uv.WakeSignal
//	_ = wake.Init(&loop, func(w *uv.WakeSignal) {
//		w.Dispose()
//	})
//	go wake.Send()
//	_ = loop.Run()
//	_ = loop.Close()
//
// WakeSignal.Send is the only method that may be called from a goroutine
// other than the one running the loop. Panics raised by callbacks are not
// recovered; they unwind out of Run and leave the loop ready to be run again.
package uv

import (
	"log"
	"os"
)

// Logger is used for failures the reactor can not hand back to a caller,
// such as a close(2) error during handle finalization.
type Logger interface {
	Printf(format string, args ...interface{})
}

var defaultLogger = Logger(log.New(os.Stderr, "", log.LstdFlags))
