package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/heap"
	"github.com/vkngwrapper/brkheap/memutils"
)

func TestResizeNullAllocates(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{})

	p, err := h.Resize(heap.Null, 64)
	require.NoError(t, err)
	require.NotEqual(t, heap.Null, p)
	require.Equal(t, 64, h.UsableSize(p))
}

func TestResizeToZeroReleases(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{})

	p, err := h.Allocate(64)
	require.NoError(t, err)

	p, err = h.Resize(p, 0)
	require.NoError(t, err)
	require.Equal(t, heap.Null, p)
	require.True(t, h.IsEmpty())
	require.NoError(t, h.Validate())
}

func TestResizeGrowsTailInPlace(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{})

	_, err := h.Allocate(16)
	require.NoError(t, err)
	p, err := h.Allocate(100)
	require.NoError(t, err)
	fill(h.Bytes(p), 0x5A)

	grown, err := h.Resize(p, 1000)
	require.NoError(t, err)
	require.Equal(t, p, grown)
	require.Equal(t, 1000, h.UsableSize(p))
	require.Equal(t, 1, h.Stats().ResizeTailGrowths)

	data := h.Bytes(p)
	for i := 0; i < 100; i++ {
		require.Equal(t, byte(0x5A), data[i])
	}
	require.NoError(t, h.Validate())
}

func TestResizeMergesFreeSuccessor(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{})

	a, err := h.Allocate(40)
	require.NoError(t, err)
	b, err := h.Allocate(200)
	require.NoError(t, err)
	_, err = h.Allocate(8)
	require.NoError(t, err)

	fill(h.Bytes(a), 0x11)
	h.Release(b)

	growCalls := h.Stats().GrowCalls
	grown, err := h.Resize(a, 150)
	require.NoError(t, err)
	require.Equal(t, a, grown)
	require.Equal(t, 150, h.UsableSize(a))
	require.Equal(t, 1, h.Stats().ResizeMerges)
	require.Equal(t, growCalls, h.Stats().GrowCalls)

	// 64 + 224 bytes merged, 176 kept, 112 split back off
	require.Equal(t, [][2]int{{176, 88}}, h.FreeBlocks())

	data := h.Bytes(a)
	for i := 0; i < 40; i++ {
		require.Equal(t, byte(0x11), data[i])
	}
	require.NoError(t, h.Validate())
}

func TestResizeMergeWithoutSplit(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{})

	a, err := h.Allocate(40)
	require.NoError(t, err)
	b, err := h.Allocate(40)
	require.NoError(t, err)
	_, err = h.Allocate(8)
	require.NoError(t, err)

	h.Release(b)

	grown, err := h.Resize(a, 100)
	require.NoError(t, err)
	require.Equal(t, a, grown)
	require.Equal(t, 104, h.UsableSize(a))
	require.Empty(t, h.FreeBlocks())
	require.NoError(t, h.Validate())
}

func TestResizeRelocates(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{})

	a, err := h.Allocate(40)
	require.NoError(t, err)
	_, err = h.Allocate(40)
	require.NoError(t, err)

	data := h.Bytes(a)
	for i := range data {
		data[i] = byte(i)
	}

	moved, err := h.Resize(a, 500)
	require.NoError(t, err)
	require.NotEqual(t, a, moved)
	require.Equal(t, 1, h.Stats().ResizeRelocations)

	data = h.Bytes(moved)
	require.Len(t, data, 500)
	for i := 0; i < 40; i++ {
		require.Equal(t, byte(i), data[i])
	}

	require.Equal(t, [][2]int{{0, 40}}, h.FreeBlocks())
	require.NoError(t, h.Validate())
}

func TestResizeRelocatesIntoFreeBlock(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{})

	x, err := h.Allocate(400)
	require.NoError(t, err)
	a, err := h.Allocate(40)
	require.NoError(t, err)
	_, err = h.Allocate(8)
	require.NoError(t, err)
	h.Release(x)

	data := h.Bytes(a)
	for i := range data {
		data[i] = byte(100 + i)
	}

	moved, err := h.Resize(a, 300)
	require.NoError(t, err)
	require.Equal(t, x, moved)
	require.Equal(t, 1, h.Stats().ResizeRelocations)

	data = h.Bytes(moved)
	for i := 0; i < 40; i++ {
		require.Equal(t, byte(100+i), data[i])
	}

	// The split remainder of x and the old location of a are one free block
	require.Equal(t, [][2]int{{336, 136}}, h.FreeBlocks())
	require.NoError(t, h.Validate())
}

func TestResizeRelocationFailureKeepsOriginal(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{HeapSizeLimit: 256})

	a, err := h.Allocate(40)
	require.NoError(t, err)
	_, err = h.Allocate(40)
	require.NoError(t, err)
	fill(h.Bytes(a), 0x77)

	moved, err := h.Resize(a, 10000)
	require.True(t, errors.Is(err, memutils.OutOfMemoryError))
	require.Equal(t, heap.Null, moved)

	require.Equal(t, 40, h.UsableSize(a))
	for _, value := range h.Bytes(a) {
		require.Equal(t, byte(0x77), value)
	}
	require.NoError(t, h.Validate())
}

func TestResizeTailFailureFallsBackToFreeBlock(t *testing.T) {
	h := newTestHeap(t, heap.CreateOptions{HeapSizeLimit: 400})

	a, err := h.Allocate(200)
	require.NoError(t, err)
	_, err = h.Allocate(8)
	require.NoError(t, err)
	tail, err := h.Allocate(40)
	require.NoError(t, err)
	fill(h.Bytes(tail), 0x42)
	h.Release(a)

	// The tail can't grow by another 144 bytes, but the released block can hold it
	moved, err := h.Resize(tail, 180)
	require.NoError(t, err)
	require.Equal(t, a, moved)

	data := h.Bytes(moved)
	for i := 0; i < 40; i++ {
		require.Equal(t, byte(0x42), data[i])
	}
	require.NoError(t, h.Validate())
}
