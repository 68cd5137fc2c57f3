package heap

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Destroy retires the heap. If any allocations are still live, each is logged at error level and an
// error is returned, leaving the heap usable. Otherwise the heap can no longer be used. The memory
// obtained from the environment is not returned; that is up to the environment's owner.
func (h *Heap) Destroy() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checkUsable()

	if h.allocCount > 0 {
		// Log all remaining allocations
		err := h.visitAllRegions(func(offset int, size int, ptr Pointer, free bool) error {
			if free {
				return nil
			}

			h.logUnreleasedMemory(ptr, size)
			return nil
		})
		if err != nil {
			h.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		return errors.Newf("%d allocations were not released before the destruction of this heap", h.allocCount)
	}

	h.destroyed = true
	h.live = nil
	return nil
}

func (h *Heap) logUnreleasedMemory(ptr Pointer, size int) {
	attrs := []slog.Attr{
		slog.Int("pointer", int(ptr)),
		slog.Int("size", size),
		slog.Int("payload", h.region.PayloadSize(h.blockOf(ptr))),
	}

	if h.live != nil {
		requested, ok := h.live.Get(ptr)
		if ok {
			attrs = append(attrs, slog.Int("requestedSize", requested))
		}
	}

	h.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased allocation", attrs...)
}
