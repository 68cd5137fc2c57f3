package heap

import (
	"fmt"

	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/block"
)

// insertOrdered links b into the free list before the first free block at a higher address
func (h *Heap) insertOrdered(b block.Block) {
	prev := block.None
	next := h.freeHead
	for next != block.None && next < b {
		prev = next
		next = h.region.NextFree(next)
	}

	h.region.SetPrevFree(b, prev)
	h.region.SetNextFree(b, next)

	if prev == block.None {
		h.freeHead = b
	} else {
		h.region.SetNextFree(prev, b)
	}

	if next != block.None {
		h.region.SetPrevFree(next, b)
	}

	h.freeCount++
	h.writeCanary(b)
}

// remove unlinks b from the free list using its own links
func (h *Heap) remove(b block.Block) {
	if !h.region.Available(b) {
		panic(fmt.Sprintf("attempted to remove the block at offset %d from the free list, but it is not free", b))
	}

	prev := h.region.PrevFree(b)
	next := h.region.NextFree(b)

	if prev == block.None {
		if h.freeHead != b {
			panic(fmt.Sprintf("block at offset %d has no previous free block, but it is not the head of the free list", b))
		}
		h.freeHead = next
	} else {
		h.region.SetNextFree(prev, next)
	}

	if next != block.None {
		h.region.SetPrevFree(next, prev)
	}

	h.freeCount--
}

// replace hands old's position in the free list to replacement. old's links are left in place but
// are no longer reachable from the list.
func (h *Heap) replace(old, replacement block.Block) {
	prev := h.region.PrevFree(old)
	next := h.region.NextFree(old)

	h.region.SetPrevFree(replacement, prev)
	h.region.SetNextFree(replacement, next)

	if prev == block.None {
		h.freeHead = replacement
	} else {
		h.region.SetNextFree(prev, replacement)
	}

	if next != block.None {
		h.region.SetPrevFree(next, replacement)
	}
}

// search returns the lowest-addressed free block with a payload of at least minSize
func (h *Heap) search(minSize int) block.Block {
	for b := h.freeHead; b != block.None; b = h.region.NextFree(b) {
		if h.region.PayloadSize(b) >= minSize {
			return b
		}
	}

	return block.None
}

// take removes a free block from the free list and marks it allocated
func (h *Heap) take(b block.Block) {
	h.checkCanary(b)
	h.remove(b)
	h.region.SetAvailable(b, false)
}

func (h *Heap) writeCanary(b block.Block) {
	offset, ok := h.region.CanaryOffset(b, memutils.DebugMargin)
	if ok {
		memutils.WriteMagicValue(h.region.Bytes(), offset)
	}
}

func (h *Heap) checkCanary(b block.Block) {
	offset, ok := h.region.CanaryOffset(b, memutils.DebugMargin)
	if ok && !memutils.ValidateMagicValue(h.region.Bytes(), offset) {
		panic(fmt.Sprintf("the free block at offset %d was written to after it was released", b))
	}
}
