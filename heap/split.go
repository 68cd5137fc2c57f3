package heap

import (
	"github.com/vkngwrapper/brkheap/memutils/block"
)

// trySplit shrinks the allocated block b to required bytes of payload and releases the remainder as
// a new free block. Remainders no larger than the minimum block size stay inside b as padding.
//
// b must not be the tail: shrinking the tail returns its padding to slack instead.
func (h *Heap) trySplit(b block.Block, required int) bool {
	current := h.region.PayloadSize(b)
	if required > current {
		return false
	}

	remainderSize := h.layout.PaddedSize(current) - h.layout.PaddedSize(required)
	if remainderSize <= h.layout.MinBlockSize() {
		return false
	}

	h.region.WriteTags(b, required, false)

	remainder := h.region.Next(b)
	h.region.WriteTags(remainder, h.layout.PayloadOf(remainderSize), true)
	h.stats.Splits++

	h.onRelease(remainder)
	return true
}
