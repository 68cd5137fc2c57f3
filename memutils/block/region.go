package block

import (
	"unsafe"

	"github.com/vkngwrapper/brkheap/memutils"
)

// Block is the offset of a block's header within a Region. Free blocks are linked to one another by
// Block handles stored in their own payloads, so a Block is also a free-list node.
type Block int

// None marks the absence of a block: an empty free list, a missing link, or an empty heap's tail.
const None Block = -1

// Region is a typed view over the raw bytes of a heap. It reads and writes the boundary tags and
// free-list links that live inside the managed memory itself. These are unchecked primitives: callers
// are responsible for passing offsets of real blocks.
type Region struct {
	layout Layout
	data   []byte
}

// NewRegion creates a view over data using the provided layout. data must start at an address aligned
// to the layout's alignment unit, and must be re-supplied with Reset whenever the region grows.
func NewRegion(layout Layout, data []byte) *Region {
	return &Region{layout: layout, data: data}
}

// Reset replaces the bytes under this view, typically after the environment extended the break. The
// new slice must share its prefix with the old one.
func (r *Region) Reset(data []byte) {
	r.data = data
}

func (r *Region) Layout() Layout { return r.layout }
func (r *Region) Len() int       { return len(r.data) }
func (r *Region) Bytes() []byte  { return r.data }

func (r *Region) word(offset int) int {
	_ = r.data[offset+wordSize-1]
	return int(*(*int64)(unsafe.Pointer(&r.data[offset])))
}

func (r *Region) setWord(offset int, value int) {
	_ = r.data[offset+wordSize-1]
	*(*int64)(unsafe.Pointer(&r.data[offset])) = int64(value)
}

// WriteTags writes the header (payload size and availability) and the footer (payload size) of the
// block at b. The footer position is derived from the new payload size.
func (r *Region) WriteTags(b Block, payloadSize int, available bool) {
	r.setWord(int(b), payloadSize)
	r.SetAvailable(b, available)
	r.setWord(int(b)+r.layout.PaddedSize(payloadSize)-wordSize, payloadSize)
}

// PayloadSize reads the payload size from the block's header
func (r *Region) PayloadSize(b Block) int {
	return r.word(int(b))
}

// FooterPayloadSize reads the payload size from the block's footer
func (r *Region) FooterPayloadSize(b Block) int {
	return r.word(int(b) + r.TotalSize(b) - wordSize)
}

// TotalSize is the block's full footprint, derived from its header
func (r *Region) TotalSize(b Block) int {
	return r.layout.PaddedSize(r.PayloadSize(b))
}

// Available reports whether the block is free
func (r *Region) Available(b Block) bool {
	return r.data[int(b)+wordSize] != 0
}

func (r *Region) SetAvailable(b Block, available bool) {
	var flag byte
	if available {
		flag = 1
	}
	r.data[int(b)+wordSize] = flag
}

// Next returns the offset immediately after the block, which is its physical successor unless the
// block is the last one in the heap.
func (r *Region) Next(b Block) Block {
	return b + Block(r.TotalSize(b))
}

// Prev reads the footer that immediately precedes b and returns the physical predecessor. The caller
// must know that b is not the first block.
func (r *Region) Prev(b Block) Block {
	prevPayload := r.word(int(b) - wordSize)
	return b - Block(r.layout.PaddedSize(prevPayload))
}

// PayloadOffset returns the offset of the first payload byte of b
func (r *Region) PayloadOffset(b Block) int {
	return int(b) + r.layout.headerSize
}

// BlockAt returns the block whose payload begins at payloadOffset
func (r *Region) BlockAt(payloadOffset int) Block {
	return Block(payloadOffset - r.layout.headerSize)
}

// Payload returns the block's payload bytes. The slice's capacity is clipped to the payload so that
// appends cannot scribble over the footer.
func (r *Region) Payload(b Block) []byte {
	start := r.PayloadOffset(b)
	end := start + r.PayloadSize(b)
	return r.data[start:end:end]
}

// PrevFree reads the free-list link to the previous free block. Only meaningful while b is free.
func (r *Region) PrevFree(b Block) Block {
	return Block(r.word(r.PayloadOffset(b)))
}

// NextFree reads the free-list link to the next free block. Only meaningful while b is free.
func (r *Region) NextFree(b Block) Block {
	return Block(r.word(r.PayloadOffset(b) + wordSize))
}

func (r *Region) SetPrevFree(b Block, prev Block) {
	r.setWord(r.PayloadOffset(b), int(prev))
}

func (r *Region) SetNextFree(b Block, next Block) {
	r.setWord(r.PayloadOffset(b)+wordSize, int(next))
}

// CanaryOffset is the offset of the debug canary inside a free block's payload, just past the links.
// It returns false when the payload is too small to hold a canary of the provided size.
func (r *Region) CanaryOffset(b Block, margin int) (int, bool) {
	if margin == 0 || r.PayloadSize(b) < linkSize+margin {
		return 0, false
	}

	return r.PayloadOffset(b) + linkSize, true
}

// AlignmentPadding returns the number of bytes that must be skipped from data[offset] to reach an
// address aligned to alignment. offset may equal or exceed len(data) as long as it is within the
// slice's backing allocation.
func AlignmentPadding(data []byte, offset int, alignment uint) int {
	address := int(uintptr(unsafe.Pointer(unsafe.SliceData(data)))) + offset
	return memutils.AlignUp(address, alignment) - address
}

// OffsetOf returns the offset within the region of the first byte of data. It returns false if data
// does not begin inside the region.
func (r *Region) OffsetOf(data []byte) (int, bool) {
	if cap(data) == 0 || len(r.data) == 0 {
		return 0, false
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(r.data)))
	address := uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	if address < base || address >= base+uintptr(len(r.data)) {
		return 0, false
	}

	return int(address - base), true
}
