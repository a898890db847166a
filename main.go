// Command uvreactor runs an upper-casing echo server on top of package uv.
//
// Reads happen on the loop goroutine; the transformation runs on a gopool
// worker and its result is handed back to the loop through a WakeSignal.
package main

import (
	"bytes"
	"errors"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/gopkg/util/gopool"

	"github.com/ponnys/uvreactor/uv"
)

type reply struct {
	conn *uv.TCPHandle
	data []byte
}

type echoServer struct {
	loop    *uv.Loop
	logger  uv.Logger
	server  uv.TCPHandle
	flush   uv.WakeSignal
	stop    uv.WakeSignal
	buffers *uv.BufferPool
	workers gopool.Pool

	mu      sync.Mutex
	replies []reply
}

func newEchoServer(loop *uv.Loop, workers int32) *echoServer {
	return &echoServer{
		loop:    loop,
		logger:  loop.Logger(),
		buffers: uv.NewBufferPool(),
		workers: gopool.NewPool("uvecho", workers, gopool.NewConfig()),
	}
}

func (s *echoServer) listen(addr *net.TCPAddr, backlog int) error {
	if err := s.flush.Init(s.loop, s.onFlush); err != nil {
		return err
	}
	if err := s.stop.Init(s.loop, s.onStop); err != nil {
		return err
	}
	if err := s.server.Init(s.loop); err != nil {
		return err
	}
	if err := s.server.Bind(addr); err != nil {
		return err
	}
	if err := s.server.Listen(backlog, s.onConnection, nil); err != nil {
		return err
	}
	local, err := s.server.LocalAddr()
	if err != nil {
		return err
	}
	s.logger.Printf("uvecho is listening on %s\n", local)
	return nil
}

func (s *echoServer) onConnection(server *uv.TCPHandle, status error, _ interface{}) {
	if status != nil {
		s.logger.Printf("accept failed: %v\n", status)
		return
	}
	conn := new(uv.TCPHandle)
	if err := conn.Init(s.loop); err != nil {
		s.logger.Printf("init connection: %v\n", err)
		return
	}
	if err := server.Accept(conn); err != nil {
		s.logger.Printf("accept: %v\n", err)
		conn.Dispose()
		return
	}
	_ = conn.SetNoDelay(true)
	if err := conn.ReadStart(s.buffers.Alloc, s.onRead, nil); err != nil {
		s.logger.Printf("read start: %v\n", err)
		conn.Dispose()
	}
}

func (s *echoServer) onRead(conn *uv.TCPHandle, nread int, buf []byte, err error, _ interface{}) {
	if nread <= 0 {
		s.buffers.Release(conn)
		if err != nil {
			s.logger.Printf("read: %v\n", err)
		}
		conn.Dispose()
		return
	}
	data := append([]byte(nil), buf[:nread]...)
	s.buffers.Release(conn)
	s.workers.Go(func() {
		out := bytes.ToUpper(data)
		s.mu.Lock()
		s.replies = append(s.replies, reply{conn: conn, data: out})
		s.mu.Unlock()
		if err := s.flush.Send(); err != nil && !errors.Is(err, uv.ErrInvalidState) {
			s.logger.Printf("wake: %v\n", err)
		}
	})
}

// onFlush writes the processed replies back; it runs on the loop goroutine.
func (s *echoServer) onFlush(*uv.WakeSignal) {
	s.mu.Lock()
	replies := s.replies
	s.replies = nil
	s.mu.Unlock()

	for _, r := range replies {
		// the connection may have been closed while the worker was busy
		if r.conn.State() != uv.StateActive {
			continue
		}
		for len(r.data) > 0 {
			n, err := r.conn.TryWrite(r.data)
			if err != nil {
				s.logger.Printf("write: %v\n", err)
				r.conn.Dispose()
				break
			}
			r.data = r.data[n:]
		}
	}
}

func (s *echoServer) onStop(*uv.WakeSignal) {
	s.logger.Printf("uvecho is shutting down, closing %d handles\n", s.loop.ActiveHandles())
	s.loop.Walk(func(h uv.Handle) { h.Dispose() })
}

func main() {
	var (
		addr      string
		backlog   int
		workers   int
		keepAlive time.Duration
		reusePort bool
	)
	flag.StringVar(&addr, "addr", "127.0.0.1:7000", "listen address")
	flag.IntVar(&backlog, "backlog", 128, "listen backlog")
	flag.IntVar(&workers, "workers", 64, "max worker goroutines")
	flag.DurationVar(&keepAlive, "keepalive", time.Minute, "TCP keepalive of accepted connections")
	flag.BoolVar(&reusePort, "reuseport", false, "bind with SO_REUSEPORT")
	flag.Parse()

	logger := log.New(os.Stderr, "[uvecho] ", log.LstdFlags)
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		logger.Fatalf("resolve %s: %v", addr, err)
	}

	loop, err := uv.NewLoop(
		uv.WithLogger(logger),
		uv.WithTCPKeepAlive(keepAlive),
		uv.WithReusePort(reusePort),
		uv.WithLockOSThread(true),
	)
	if err != nil {
		logger.Fatalf("init loop: %v", err)
	}

	s := newEchoServer(loop, int32(workers))
	if err = s.listen(tcpAddr, backlog); err != nil {
		loop.Walk(func(h uv.Handle) { h.Dispose() })
		_ = loop.Run()
		_ = loop.Close()
		logger.Fatalf("listen: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)
	go func() {
		<-shutdown
		if err := s.stop.Send(); err != nil {
			logger.Printf("stop: %v\n", err)
		}
	}()

	if err = loop.Run(); err != nil {
		logger.Fatalf("run: %v", err)
	}
	if err = loop.Close(); err != nil {
		logger.Fatalf("close: %v", err)
	}
}
