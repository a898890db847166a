package uv

import "github.com/ponnys/uvreactor/uv/pool/bytebuffer"

// BufferPool pairs AllocCallback with a pooled buffer per handle. Alloc can
// be passed to ReadStart directly; the read callback calls Release once it
// is done with the data.
//
// A BufferPool belongs to one loop and is not safe for concurrent use.
type BufferPool struct {
	inflight map[*TCPHandle]*bytebuffer.ByteBuffer
}

// NewBufferPool returns an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{inflight: make(map[*TCPHandle]*bytebuffer.ByteBuffer)}
}

// Alloc hands out a buffer of suggestedSize bytes for t. A buffer still held
// by t is reused.
func (p *BufferPool) Alloc(t *TCPHandle, suggestedSize int, _ interface{}) []byte {
	if bb, ok := p.inflight[t]; ok {
		if cap(bb.B) >= suggestedSize {
			bb.B = bb.B[:suggestedSize]
			return bb.B
		}
		bytebuffer.Put(bb)
	}
	bb := bytebuffer.GetSized(suggestedSize)
	p.inflight[t] = bb
	return bb.B
}

// Release returns the buffer held by t to the pool. Slices obtained from
// Alloc for t must not be used afterwards.
func (p *BufferPool) Release(t *TCPHandle) {
	if bb, ok := p.inflight[t]; ok {
		delete(p.inflight, t)
		bytebuffer.Put(bb)
	}
}

// Len returns the number of handles currently holding a buffer.
func (p *BufferPool) Len() int {
	return len(p.inflight)
}
