// Package capture implements the capture producer fan-out (spec §5): a
// bounded, multi-subscriber distribution of frames from capture sources to
// instances, with reference-counted buffers so a reducer holding a frame
// does not race a producer recycling the backing array.
package capture

import (
	"sync"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// Pool hands out reference-counted pixel buffers, naming convention taken
// from original_source/include/image/MemoryBuffer.h's MemoryBuffer<uint8_t>
// (spec §9 "Frames ... small pool").
type Pool struct {
	mu   sync.Mutex
	free [][]color.RGB
}

// NewPool returns an empty Pool; buffers are allocated on demand and
// recycled once their refcount reaches zero.
func NewPool() *Pool { return &Pool{} }

// Get returns a buffer of exactly n pixels, reused from the free list when a
// same-or-larger one is available.
func (p *Pool) Get(n int) []color.RGB {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, buf := range p.free {
		if cap(buf) >= n {
			p.free[i] = p.free[len(p.free)-1]
			p.free = p.free[:len(p.free)-1]
			return buf[:n]
		}
	}
	return make([]color.RGB, n)
}

func (p *Pool) put(buf []color.RGB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, buf[:0])
}

// RefCounted wraps a pool-owned buffer; Release must be called exactly once
// per Acquire (including the initial allocation) for the buffer to return to
// the pool (spec §9's VideoMemoryManager note: a reducer mid-read must not
// observe a producer recycling the same array).
type RefCounted struct {
	pool *Pool
	mu   sync.Mutex
	refs int
	Pix  []color.RGB
}

// NewRef wraps buf (obtained from pool.Get) with an initial refcount of 1.
func NewRef(pool *Pool, buf []color.RGB) *RefCounted {
	return &RefCounted{pool: pool, refs: 1, Pix: buf}
}

// Acquire increments the refcount; call once per new holder (e.g. once per
// instance a frame fans out to).
func (r *RefCounted) Acquire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs++
}

// Release decrements the refcount, returning the buffer to its pool once it
// reaches zero.
func (r *RefCounted) Release() {
	r.mu.Lock()
	r.refs--
	done := r.refs == 0
	r.mu.Unlock()
	if done && r.pool != nil {
		r.pool.put(r.Pix)
	}
}
