package heap

import (
	"context"

	"github.com/JohnCGriffin/overflow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/block"
	"golang.org/x/exp/slog"
)

// Allocate returns a pointer to at least size bytes of uninitialized memory. The first free block
// large enough is reused, and trimmed if it is much larger than needed. When no free block fits, a
// new block is appended at the heap's edge, growing the heap if slack doesn't cover it.
//
// The only failure besides a negative size is memutils.OutOfMemoryError, in which case the heap is
// unchanged.
func (h *Heap) Allocate(size int) (Pointer, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checkUsable()
	defer memutils.DebugValidate(heapValidator{h})

	h.stats.Allocations++
	return h.allocate(size)
}

// Release returns an allocation to the heap. Releasing Null does nothing. Releasing the physically
// last block returns its bytes to slack rather than to the free list.
//
// Releasing a pointer that is not live is undefined behavior unless the heap was created with
// HeapCreateTrackAllocations, in which case it is logged and ignored.
func (h *Heap) Release(ptr Pointer) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checkUsable()
	defer memutils.DebugValidate(heapValidator{h})

	if ptr != Null {
		h.stats.Releases++
	}
	h.release(ptr)
}

// Resize changes the size of an allocation, preserving its contents up to the lesser of the old and
// new sizes. Resizing Null is an Allocate, and resizing to 0 is a Release that returns Null.
//
// The allocation stays in place when it shrinks, when it is the heap's last block and can grow into
// slack or new memory, or when the block after it is free and large enough to absorb. Otherwise it
// is moved into a new allocation. If that fails, memutils.OutOfMemoryError is returned and ptr is
// still valid and unchanged.
func (h *Heap) Resize(ptr Pointer, size int) (Pointer, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checkUsable()
	defer memutils.DebugValidate(heapValidator{h})

	h.stats.Resizes++
	return h.resize(ptr, size)
}

// AllocateZeroed allocates count*size bytes and zeroes the whole payload. A product that overflows
// is reported as memutils.OutOfMemoryError.
func (h *Heap) AllocateZeroed(count, size int) (Pointer, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checkUsable()
	defer memutils.DebugValidate(heapValidator{h})

	if count < 0 || size < 0 {
		return Null, errors.Wrapf(memutils.InvalidSizeError, "cannot allocate %d elements of %d bytes", count, size)
	}

	total, ok := overflow.Mul(count, size)
	if !ok {
		return Null, errors.Wrapf(memutils.OutOfMemoryError, "%d elements of %d bytes overflows", count, size)
	}

	h.stats.Allocations++
	ptr, err := h.allocate(total)
	if err != nil {
		return Null, err
	}

	memory.Set(h.region.Payload(h.blockOf(ptr)), 0)
	return ptr, nil
}

func (h *Heap) allocate(size int) (Pointer, error) {
	if size < 0 {
		return Null, errors.Wrapf(memutils.InvalidSizeError, "cannot allocate %d bytes", size)
	}

	err := h.checkBlockSize(size)
	if err != nil {
		return Null, err
	}

	b := block.None
	if h.tail != block.None {
		b = h.search(size)
	}

	if b != block.None {
		h.take(b)
		h.trySplit(b, size)
		h.stats.FreeListHits++
	} else {
		b, err = h.appendNewBlock(size)
		if err != nil {
			return Null, err
		}
	}

	ptr := h.pointerOf(b)
	h.allocCount++
	h.trackAllocation(ptr, size)

	return ptr, nil
}

// checkBlockSize rejects payload sizes whose padded block size can't be represented
func (h *Heap) checkBlockSize(size int) error {
	_, ok := overflow.Add(size, h.layout.Overhead()+int(h.layout.Alignment()))
	if !ok {
		return errors.Wrapf(memutils.OutOfMemoryError, "a block with a payload of %d bytes overflows the address space", size)
	}

	return nil
}

func (h *Heap) release(ptr Pointer) {
	if ptr == Null {
		return
	}

	if !h.trackRelease(ptr) {
		return
	}

	b := h.blockOf(ptr)
	h.allocCount--

	if b == h.tail {
		h.releaseTail()
		return
	}

	// Free blocks advertise their full capacity so that first-fit sees every usable byte
	h.region.WriteTags(b, h.layout.PayloadOf(h.region.TotalSize(b)), true)
	h.onRelease(b)
}

// releaseTail returns the tail's footprint to slack. If the block before it is free, that block is
// now at the edge of the heap and is returned to slack as well. Free blocks are never adjacent, so
// the new tail, if there is one, is allocated.
func (h *Heap) releaseTail() {
	b := h.tail
	h.slack += h.region.TotalSize(b)
	h.tail = block.None
	h.stats.TailReleases++

	if b == firstBlock {
		return
	}

	prev := h.region.Prev(b)
	if !h.region.Available(prev) {
		h.tail = prev
		return
	}

	h.checkCanary(prev)
	h.remove(prev)
	h.slack += h.region.TotalSize(prev)

	if prev != firstBlock {
		h.tail = h.region.Prev(prev)
	}
}

func (h *Heap) resize(ptr Pointer, size int) (Pointer, error) {
	if ptr == Null {
		return h.allocate(size)
	}

	if size < 0 {
		return Null, errors.Wrapf(memutils.InvalidSizeError, "cannot resize to %d bytes", size)
	}

	err := h.checkBlockSize(size)
	if err != nil {
		return Null, err
	}

	if !h.isLive(ptr) {
		return Null, errors.Wrapf(memutils.InvalidPointerError, "cannot resize pointer %d", ptr)
	}

	if size == 0 {
		h.release(ptr)
		return Null, nil
	}

	b := h.blockOf(ptr)
	if h.resizeInPlace(b, size) {
		h.trackAllocation(ptr, size)
		return ptr, nil
	}

	newPtr, err := h.allocate(size)
	if err != nil {
		return Null, errors.Wrapf(err, "could not relocate the allocation at %d", ptr)
	}

	copy(h.region.Payload(h.blockOf(newPtr)), h.region.Payload(b))
	h.release(ptr)
	h.stats.ResizeRelocations++

	h.logger.LogAttrs(context.Background(), slog.LevelDebug, "relocated allocation",
		slog.Int("from", int(ptr)),
		slog.Int("to", int(newPtr)),
		slog.Int("size", size),
	)

	return newPtr, nil
}

// resizeInPlace attempts every strategy that keeps the allocation at the same address
func (h *Heap) resizeInPlace(b block.Block, size int) bool {
	current := h.region.PayloadSize(b)

	if current >= size {
		if b == h.tail {
			h.slack += h.layout.PaddedSize(current) - h.layout.PaddedSize(size)
			h.region.WriteTags(b, size, false)
		} else {
			h.trySplit(b, size)
		}

		h.stats.ResizeShrinks++
		return true
	}

	if b == h.tail {
		err := h.growTail(h.layout.PaddedSize(size) - h.region.TotalSize(b))
		if err != nil {
			h.logger.LogAttrs(context.Background(), slog.LevelDebug, "could not grow the tail block in place",
				slog.Int("offset", int(b)),
				slog.Any("error", err),
			)
			return false
		}

		h.region.WriteTags(b, size, false)
		h.stats.ResizeTailGrowths++
		return true
	}

	next := h.region.Next(b)
	if !h.region.Available(next) {
		return false
	}

	combined := h.layout.PayloadOf(h.region.TotalSize(b) + h.region.TotalSize(next))
	if combined < size {
		return false
	}

	h.take(next)
	h.region.WriteTags(b, combined, false)
	h.trySplit(b, size)
	h.stats.ResizeMerges++

	return true
}
