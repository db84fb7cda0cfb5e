package exr

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// MemoryLimitExceededError is returned when a buffer would take the pool
// past its memory limit.
type MemoryLimitExceededError struct {
	Requested int64
	Current   int64
	Limit     int64
}

func (e *MemoryLimitExceededError) Error() string {
	return fmt.Sprintf("exr: memory limit exceeded: %d bytes requested, %d of %d in use", e.Requested, e.Current, e.Limit)
}

// Unwrap lets errors.Is match ErrConfiguration: the limit is too small for
// the blocks being read.
func (e *MemoryLimitExceededError) Unwrap() error { return ErrConfiguration }

// BufferPool recycles chunk buffers in size classes and optionally bounds
// the bytes handed out at once. It is safe for concurrent use.
type BufferPool struct {
	pools []sync.Pool
	limit int64
	used  atomic.Int64
	hits  atomic.Int64
	miss  atomic.Int64
}

// Size classes cover the usual chunk sizes, from small edge tiles to
// 256-line DWA strips. Larger buffers are not pooled.
var bufferSizes = []int{1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20}

// NewBufferPool returns a pool that hands out at most limit bytes at once.
// A limit of 0 means no limit.
func NewBufferPool(limit int64) *BufferPool {
	return &BufferPool{pools: make([]sync.Pool, len(bufferSizes)), limit: limit}
}

func sizeClass(n int) int {
	for i, s := range bufferSizes {
		if n <= s {
			return i
		}
	}
	return -1
}

// Get returns a buffer of length n.
func (p *BufferPool) Get(n int) ([]byte, error) {
	class := sizeClass(n)
	size := int64(n)
	if class >= 0 {
		size = int64(bufferSizes[class])
	}
	if p.limit > 0 {
		if cur := p.used.Add(size); cur > p.limit {
			p.used.Add(-size)
			return nil, &MemoryLimitExceededError{Requested: size, Current: cur - size, Limit: p.limit}
		}
	}
	if class < 0 {
		p.miss.Add(1)
		return make([]byte, n), nil
	}
	if b, ok := p.pools[class].Get().(*[]byte); ok {
		p.hits.Add(1)
		return (*b)[:n], nil
	}
	p.miss.Add(1)
	return make([]byte, n, bufferSizes[class]), nil
}

// Put returns a buffer obtained from Get.
func (p *BufferPool) Put(b []byte) {
	if b == nil {
		return
	}
	class := sizeClass(cap(b))
	size := int64(cap(b))
	if class < 0 || bufferSizes[class] != cap(b) {
		// Unpooled buffers were accounted at their length.
		size = int64(len(b))
		class = -1
	}
	if p.limit > 0 {
		p.used.Add(-size)
	}
	if class >= 0 {
		b = b[:cap(b)]
		p.pools[class].Put(&b)
	}
}

// MemoryUsed returns the bytes currently handed out. It is only tracked
// when the pool has a limit.
func (p *BufferPool) MemoryUsed() int64 { return p.used.Load() }

// Stats returns how many Get calls were served from the pool and how many
// allocated.
func (p *BufferPool) Stats() (hits, misses int64) { return p.hits.Load(), p.miss.Load() }
