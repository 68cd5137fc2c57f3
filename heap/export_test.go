package heap

import "github.com/vkngwrapper/brkheap/memutils/block"

func (h *Heap) SetGrowHook(hook func(previousBreak, increment int)) {
	h.onGrow = hook
}

// FreeBlocks lists the free list in order as (block offset, payload size) pairs
func (h *Heap) FreeBlocks() [][2]int {
	var blocks [][2]int
	for b := h.freeHead; b != block.None; b = h.region.NextFree(b) {
		blocks = append(blocks, [2]int{int(b), h.region.PayloadSize(b)})
	}

	return blocks
}
