// Package bytebuffer is a thin pool of growable byte buffers shared by the
// read path.
package bytebuffer

import "github.com/valyala/bytebufferpool"

// ByteBuffer is the pooled buffer type.
type ByteBuffer = bytebufferpool.ByteBuffer

// Get returns an empty buffer from the pool.
func Get() *ByteBuffer { return bytebufferpool.Get() }

// GetSized returns a pooled buffer whose B has length n.
func GetSized(n int) *ByteBuffer {
	b := bytebufferpool.Get()
	if cap(b.B) < n {
		b.B = make([]byte, n)
	} else {
		b.B = b.B[:n]
	}
	return b
}

// Put returns b to the pool. nil is ignored.
func Put(b *ByteBuffer) {
	if b != nil {
		bytebufferpool.Put(b)
	}
}
