package heap

import (
	"github.com/vkngwrapper/brkheap/memutils/block"
)

// tryMerge folds succ into pred when both are free and physically adjacent. predLinked and
// succLinked say whether each block is currently a member of the free list: if both are, succ is
// unlinked; if only succ is, pred takes over its place in the list; if only pred is, the list is
// already correct. When neither is linked the caller is responsible for inserting pred.
//
// The tail is always allocated, so it is never a party to a merge.
func (h *Heap) tryMerge(pred, succ block.Block, predLinked, succLinked bool) bool {
	if pred == block.None || succ == block.None {
		return false
	}

	if !h.region.Available(pred) || !h.region.Available(succ) {
		return false
	}

	if h.region.Next(pred) != succ {
		return false
	}

	merged := h.layout.PayloadOf(h.region.TotalSize(pred) + h.region.TotalSize(succ))

	if succLinked {
		if predLinked {
			h.remove(succ)
		} else {
			h.replace(succ, pred)
		}
	}

	h.region.WriteTags(pred, merged, true)
	h.writeCanary(pred)
	h.stats.Merges++

	return true
}

// onRelease returns a free block that is not the tail to the free list, merging it with its
// physical neighbors when they are free. The forward merge runs first so that, when both succeed,
// the backward merge knows the released block has already inherited its successor's links.
func (h *Heap) onRelease(b block.Block) {
	next := h.region.Next(b)
	prev := block.None
	if b != firstBlock {
		prev = h.region.Prev(b)
	}

	forward := h.tryMerge(b, next, false, true)
	backward := h.tryMerge(prev, b, true, forward)
	if forward || backward {
		return
	}

	h.insertOrdered(b)
}
