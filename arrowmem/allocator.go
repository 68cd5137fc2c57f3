// Package arrowmem lets Apache Arrow place its buffers in a brkheap heap.
package arrowmem

import (
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/vkngwrapper/brkheap/heap"
)

// Allocator implements memory.Allocator on top of a heap.Heap. Like Arrow's own allocators, it
// panics when the heap is out of memory.
//
// Arrow may allocate from several goroutines at once, so the heap should be created with
// heap.HeapCreateSynchronized unless the caller knows otherwise. Arrow prefers buffers aligned to 64
// bytes, which a heap created with Alignment: 64 provides.
type Allocator struct {
	heap *heap.Heap
}

var _ memory.Allocator = (*Allocator)(nil)

func NewAllocator(h *heap.Heap) *Allocator {
	return &Allocator{heap: h}
}

// Heap returns the heap this allocator places buffers in
func (a *Allocator) Heap() *heap.Heap {
	return a.heap
}

// Allocate returns a buffer of exactly size bytes. Zero-byte buffers are not placed in the heap.
func (a *Allocator) Allocate(size int) []byte {
	if size == 0 {
		return []byte{}
	}

	ptr, err := a.heap.Allocate(size)
	if err != nil {
		panic(err)
	}

	return a.heap.Bytes(ptr)[:size:size]
}

// Reallocate resizes a buffer previously returned by this allocator, preserving its contents.
func (a *Allocator) Reallocate(size int, b []byte) []byte {
	ptr, ok := a.heap.PointerOf(b)
	if !ok {
		out := a.Allocate(size)
		copy(out, b)
		return out
	}

	if size == 0 {
		a.heap.Release(ptr)
		return []byte{}
	}

	ptr, err := a.heap.Resize(ptr, size)
	if err != nil {
		panic(err)
	}

	return a.heap.Bytes(ptr)[:size:size]
}

// Free releases a buffer previously returned by this allocator. Buffers that don't belong to the heap,
// including zero-byte buffers, are ignored.
func (a *Allocator) Free(b []byte) {
	ptr, ok := a.heap.PointerOf(b)
	if !ok {
		return
	}

	a.heap.Release(ptr)
}
