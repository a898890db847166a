package uv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool()
	a, b := new(TCPHandle), new(TCPHandle)

	bufA := pool.Alloc(a, 1024, nil)
	require.Len(t, bufA, 1024)
	again := pool.Alloc(a, 512, nil)
	require.Len(t, again, 512)
	assert.Same(t, &bufA[0], &again[0], "a held buffer is reused")

	bufB := pool.Alloc(b, 16, nil)
	assert.Len(t, bufB, 16)
	assert.Equal(t, 2, pool.Len())

	grown := pool.Alloc(b, 4096, nil)
	assert.Len(t, grown, 4096)
	assert.Equal(t, 2, pool.Len())

	pool.Release(a)
	pool.Release(a)
	assert.Equal(t, 1, pool.Len())
	pool.Release(b)
	assert.Zero(t, pool.Len())
}
