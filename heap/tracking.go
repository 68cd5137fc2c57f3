package heap

import (
	"context"

	"golang.org/x/exp/slog"
)

func (h *Heap) trackAllocation(ptr Pointer, size int) {
	if h.live == nil {
		return
	}

	h.live.Put(ptr, size)
}

func (h *Heap) isLive(ptr Pointer) bool {
	if h.live == nil {
		return true
	}

	_, ok := h.live.Get(ptr)
	return ok
}

// trackRelease forgets a live pointer. It returns false if allocation tracking caught a release of
// a pointer that is not live.
func (h *Heap) trackRelease(ptr Pointer) bool {
	if h.live == nil {
		return true
	}

	if !h.live.Delete(ptr) {
		h.logger.LogAttrs(context.Background(), slog.LevelError, "[INVALID RELEASE] pointer is not a live allocation",
			slog.Int("pointer", int(ptr)),
		)
		return false
	}

	return true
}

// RequestedSize returns the size that was last requested for a live allocation. It is only
// available when the heap was created with HeapCreateTrackAllocations.
func (h *Heap) RequestedSize(ptr Pointer) (int, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.live == nil {
		return 0, false
	}

	return h.live.Get(ptr)
}
