package heap

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/block"
)

type heapValidator struct {
	h *Heap
}

func (v heapValidator) Validate() error {
	return v.h.validate()
}

// Validate walks the physical chain of blocks and the free list and returns an error describing the
// first inconsistency it finds.
func (h *Heap) Validate() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.validate()
}

func (h *Heap) validate() error {
	if len(h.env.Memory()) != h.brk {
		return errors.Errorf("the heap believes the break is at %d, but the environment has %d bytes", h.brk, len(h.env.Memory()))
	}

	var used, allocCount, freeCount int

	if h.tail != block.None {
		prevFree := false
		last := block.None
		b := firstBlock
		for {
			if !memutils.IsAligned(int(b), h.layout.Alignment()) {
				return errors.Errorf("block at offset %d is not aligned to %d", b, h.layout.Alignment())
			}

			if int(b)+h.layout.MinBlockSize() > h.extent() {
				return errors.Errorf("block at offset %d begins past the end of the heap", b)
			}

			payload := h.region.PayloadSize(b)
			if payload < 0 {
				return errors.Errorf("block at offset %d has a negative payload size %d", b, payload)
			}
			if h.checkBlockSize(payload) != nil {
				return errors.Errorf("block at offset %d has a payload size %d too large to pad", b, payload)
			}

			total := h.region.TotalSize(b)
			if int(b)+total > h.extent() {
				return errors.Errorf("block at offset %d with size %d extends past the end of the heap at %d", b, total, h.extent())
			}

			if footer := h.region.FooterPayloadSize(b); footer != payload {
				return errors.Errorf("block at offset %d has a header size of %d but a footer size of %d", b, payload, footer)
			}

			if last != block.None && h.region.Prev(b) != last {
				return errors.Errorf("the footer before block at offset %d does not lead back to the block at offset %d", b, last)
			}

			used += total

			if h.region.Available(b) {
				if prevFree {
					return errors.Errorf("block at offset %d is free, but so is the block before it", b)
				}
				if b == h.tail {
					return errors.Errorf("the tail block at offset %d is free", b)
				}

				freeCount++
				prevFree = true
			} else {
				allocCount++
				prevFree = false
			}

			if b == h.tail {
				break
			}

			last = b
			next := h.region.Next(b)
			if next <= b {
				return errors.Errorf("block at offset %d does not advance the physical chain", b)
			}
			b = next
		}
	}

	if used+h.slack != h.extent() {
		return errors.Errorf("the heap extent is %d, but the blocks added up to %d with %d bytes of slack", h.extent(), used, h.slack)
	}

	// Before the first growth, slack is negative by the alignment padding still owed
	if h.slack < 0 && h.extent() >= 0 {
		return errors.Errorf("the heap has %d bytes of slack", h.slack)
	}

	freeListCount := 0
	prev := block.None
	for b := h.freeHead; b != block.None; b = h.region.NextFree(b) {
		if freeListCount > freeCount {
			return errors.Errorf("the free list is longer than the %d free blocks in the physical chain", freeCount)
		}

		if !h.region.Available(b) {
			return errors.Errorf("block at offset %d is in the free list but it is not free", b)
		}

		if h.region.PrevFree(b) != prev {
			return errors.Errorf("block at offset %d lists the block at offset %d as its previous block, but the block before it is at offset %d", b, h.region.PrevFree(b), prev)
		}

		if prev != block.None && b <= prev {
			return errors.Errorf("block at offset %d follows the block at offset %d in the free list, which is out of address order", b, prev)
		}

		freeListCount++
		prev = b
	}

	if freeListCount != freeCount {
		return errors.Errorf("the number of free blocks in the physical chain and the number of blocks in the free list do not match! free list size: %d, physical chain free blocks: %d", freeListCount, freeCount)
	}

	if freeCount != h.freeCount {
		return errors.Errorf("the free block count of the heap is %d, but there were %d free blocks", h.freeCount, freeCount)
	}

	if allocCount != h.allocCount {
		return errors.Errorf("the allocation count of the heap is %d, but the allocated blocks added up to %d", h.allocCount, allocCount)
	}

	if h.live != nil && h.live.Count() != allocCount {
		return errors.Errorf("%d allocations are tracked, but there are %d allocated blocks", h.live.Count(), allocCount)
	}

	return nil
}

// CheckCorruption verifies the canary written into every free block large enough to hold one. It
// only detects anything when built with the debug_mem_utils tag.
func (h *Heap) CheckCorruption() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for b := h.freeHead; b != block.None; b = h.region.NextFree(b) {
		offset, ok := h.region.CanaryOffset(b, memutils.DebugMargin)
		if ok && !memutils.ValidateMagicValue(h.region.Bytes(), offset) {
			return errors.Errorf("memory corruption detected in the free block at offset %d", b)
		}
	}

	return nil
}

func (h *Heap) checkUsable() {
	if h.destroyed {
		panic("attempted to use a heap after it was destroyed")
	}
}
