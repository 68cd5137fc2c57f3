package heap

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/block"
	"golang.org/x/exp/slog"
)

// growTail claims additional bytes at the heap's edge, consuming slack first and only asking the
// environment for what slack can't cover. Nothing is modified when the environment refuses.
func (h *Heap) growTail(additional int) error {
	if h.slack >= additional {
		h.slack -= additional
		return nil
	}

	request := additional - h.slack
	if h.options.GrowthIncrement > 0 {
		request = memutils.AlignUp(request, uint(h.options.GrowthIncrement))
		if request < additional-h.slack {
			return errors.Wrapf(memutils.OutOfMemoryError, "could not round a growth of %d bytes up to the growth increment", additional-h.slack)
		}
	}

	previous, err := h.env.Sbrk(request)
	if err != nil {
		return errors.WithSecondaryError(
			errors.Wrapf(memutils.OutOfMemoryError, "could not grow the heap by %d bytes", request),
			err,
		)
	}

	if previous != h.brk {
		panic(fmt.Sprintf("the environment's break moved from %d to %d outside of this heap", h.brk, previous))
	}

	h.brk = previous + request
	h.slack += request - additional
	h.region.Reset(h.env.Memory()[h.base:])

	h.stats.GrowCalls++
	h.stats.GrowBytes += request

	h.logger.LogAttrs(context.Background(), slog.LevelDebug, "grew heap",
		slog.Int("previousBreak", previous),
		slog.Int("increment", request),
		slog.Int("slack", h.slack),
	)

	if h.onGrow != nil {
		h.onGrow(previous, request)
	}

	return nil
}

// appendNewBlock places a new allocated block directly after the tail, or at the heap base when the
// heap is empty, and makes it the tail.
func (h *Heap) appendNewBlock(size int) (block.Block, error) {
	err := h.growTail(h.layout.PaddedSize(size))
	if err != nil {
		return block.None, err
	}

	b := firstBlock
	if h.tail != block.None {
		b = h.region.Next(h.tail)
	}

	h.region.WriteTags(b, size, false)
	h.tail = b
	h.stats.Appends++

	return b, nil
}
