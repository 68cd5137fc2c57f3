// Package heap is a first-fit, boundary-tag allocator over a single region obtained from an
// sbrk.Environment. Blocks carry their size and availability in tags written into the managed memory,
// free blocks form an address-ordered doubly linked list threaded through their own payloads, and
// the physically last block is never free: the bytes behind it are tracked as slack instead.
package heap

import (
	"io"

	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/brkheap/internal/utils"
	"github.com/vkngwrapper/brkheap/memutils/block"
	"github.com/vkngwrapper/brkheap/memutils/sbrk"
	"golang.org/x/exp/slog"
)

// Pointer is the offset of an allocation's payload within the heap. Use Heap.Bytes to access the
// memory behind it.
type Pointer int

// Null is the pointer returned for zero-byte resizes and accepted as a no-op by Release. No payload
// can begin at offset 0, since every payload is preceded by its header.
const Null Pointer = 0

// firstBlock is the offset of the first block ever created. It has no physical predecessor.
const firstBlock block.Block = 0

// Heap is a single growable heap. Use New to create one.
type Heap struct {
	logger  *slog.Logger
	env     sbrk.Environment
	layout  block.Layout
	region  *block.Region
	options CreateOptions
	mutex   utils.OptionalMutex

	// base is the offset within env.Memory() of the first block, aligned to the layout's alignment
	base int
	// brk is the environment's break as of our last growth
	brk int

	tail      block.Block
	slack     int
	freeHead  block.Block
	freeCount int

	allocCount int
	live       *swiss.Map[Pointer, int]

	stats     HeapStats
	onGrow    func(previousBreak, increment int)
	destroyed bool
}

// New creates a heap that grows through env. The heap assumes it is the only consumer of env: the
// break must not move except through this heap. logger may be nil to discard log output.
func New(logger *slog.Logger, env sbrk.Environment, options CreateOptions) (*Heap, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	err := options.validate()
	if err != nil {
		return nil, err
	}

	layout, err := options.layout()
	if err != nil {
		return nil, err
	}

	memory := env.Memory()
	start := len(memory)
	if options.HeapSizeLimit > 0 {
		env = sbrk.WithLimit(env, start+options.HeapSizeLimit)
	}

	padding := block.AlignmentPadding(memory, start, layout.Alignment())

	h := &Heap{
		logger:  logger,
		env:     env,
		layout:  layout,
		region:  block.NewRegion(layout, nil),
		options: options,

		base: start + padding,
		brk:  start,

		tail:     block.None,
		freeHead: block.None,
		// The alignment padding in front of the first block is owed to the environment before any
		// block can be placed, so slack starts out negative when the break is misaligned.
		slack: -padding,
	}
	h.mutex.UseMutex = options.Flags&HeapCreateSynchronized != 0

	if options.Flags&HeapCreateTrackAllocations != 0 {
		h.live = swiss.NewMap[Pointer, int](42)
	}

	return h, nil
}

// Layout returns the block geometry this heap was created with
func (h *Heap) Layout() block.Layout {
	return h.layout
}

// Slack returns the number of bytes obtained from the environment that no block occupies yet
func (h *Heap) Slack() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.slack
}

// Extent returns the number of bytes obtained from the environment, measured from the first block
func (h *Heap) Extent() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.extent()
}

func (h *Heap) extent() int {
	return h.brk - h.base
}

// IsEmpty returns true if the heap contains no blocks, free or allocated
func (h *Heap) IsEmpty() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.tail == block.None
}

func (h *Heap) pointerOf(b block.Block) Pointer {
	return Pointer(h.region.PayloadOffset(b))
}

func (h *Heap) blockOf(ptr Pointer) block.Block {
	return h.region.BlockAt(int(ptr))
}

// Bytes returns the payload of a live allocation. The slice is valid until the allocation is released
// or resized, and its length is the allocation's usable size.
func (h *Heap) Bytes(ptr Pointer) []byte {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if ptr == Null {
		return nil
	}

	return h.region.Payload(h.blockOf(ptr))
}

// UsableSize returns the number of payload bytes behind a live allocation, which is at least the size
// that was requested for it.
func (h *Heap) UsableSize(ptr Pointer) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if ptr == Null {
		return 0
	}

	return h.region.PayloadSize(h.blockOf(ptr))
}

// PointerOf maps a slice returned by Bytes back to its allocation. It returns false if data does not
// begin inside the heap. It does not check that data begins at a payload.
func (h *Heap) PointerOf(data []byte) (Pointer, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	offset, ok := h.region.OffsetOf(data)
	if !ok || offset == 0 {
		return Null, false
	}

	return Pointer(offset), true
}
