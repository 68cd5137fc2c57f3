package heap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/block"
)

// HeapStats counts the operations a heap has performed since it was created
type HeapStats struct {
	// Allocations counts calls to Allocate and AllocateZeroed
	Allocations int
	// Releases counts calls to Release with a non-null pointer
	Releases int
	// Resizes counts calls to Resize
	Resizes int

	// FreeListHits counts allocations served from the free list
	FreeListHits int
	// Appends counts blocks created at the edge of the heap
	Appends int
	// Splits counts blocks trimmed into an allocation and a free remainder
	Splits int
	// Merges counts pairs of adjacent free blocks joined into one
	Merges int
	// TailReleases counts releases that returned the last block to slack
	TailReleases int

	ResizeShrinks     int
	ResizeTailGrowths int
	ResizeMerges      int
	ResizeRelocations int

	// GrowCalls counts successful requests to the environment
	GrowCalls int
	// GrowBytes is the total number of bytes obtained from the environment
	GrowBytes int
}

// Stats returns a copy of this heap's operation counters
func (h *Heap) Stats() HeapStats {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.stats
}

// VisitAllRegions calls handleRegion for every block in address order, followed by the slack at the
// end of the heap if there is any. size is the full footprint of the region, and ptr is Null for
// free regions. Iteration stops at the first error, which is returned.
func (h *Heap) VisitAllRegions(handleRegion func(offset int, size int, ptr Pointer, free bool) error) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.visitAllRegions(handleRegion)
}

func (h *Heap) visitAllRegions(handleRegion func(offset int, size int, ptr Pointer, free bool) error) error {
	end := 0
	if h.tail != block.None {
		for b := firstBlock; ; b = h.region.Next(b) {
			free := h.region.Available(b)
			ptr := h.pointerOf(b)
			if free {
				ptr = Null
			}

			err := handleRegion(int(b), h.region.TotalSize(b), ptr, free)
			if err != nil {
				return err
			}

			if b == h.tail {
				end = int(h.region.Next(b))
				break
			}
		}
	}

	if h.slack > 0 {
		return handleRegion(end, h.slack, Null, true)
	}

	return nil
}

// AddStatistics sums this heap into stats. The heap counts as a single block whose size is every
// byte obtained from the environment, and allocation bytes include tag overhead.
func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	stats.BlockCount++
	stats.AllocationCount += h.allocCount
	stats.BlockBytes += h.extentBytes()

	_ = h.visitAllRegions(func(offset int, size int, ptr Pointer, free bool) error {
		if !free {
			stats.AllocationBytes += size
		}
		return nil
	})
}

// AddDetailedStatistics sums this heap into stats, including the size distribution of allocations
// and of unused ranges. Slack counts as an unused range.
func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.addDetailedStatistics(stats)
}

func (h *Heap) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += h.extentBytes()

	_ = h.visitAllRegions(func(offset int, size int, ptr Pointer, free bool) error {
		if free {
			stats.AddUnusedRange(size)
		} else {
			stats.AddAllocation(size)
		}
		return nil
	})
}

func (h *Heap) extentBytes() int {
	if h.extent() < 0 {
		return 0
	}

	return h.extent()
}

// BlockJsonData populates a json object with a summary of this heap
func (h *Heap) BlockJsonData(json *jwriter.ObjectState) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.blockJsonData(json)
}

func (h *Heap) blockJsonData(json *jwriter.ObjectState) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	h.addDetailedStatistics(&stats)

	json.Name("TotalBytes").Int(stats.BlockBytes)
	json.Name("UnusedBytes").Int(stats.BlockBytes - stats.AllocationBytes)
	json.Name("Allocations").Int(stats.AllocationCount)
	json.Name("UnusedRanges").Int(stats.UnusedRangeCount)
	json.Name("Slack").Int(h.slack)
}

// PrintDetailedMap writes a json object describing this heap's layout, a summary, and every region
// in address order.
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	objState := writer.Object()
	defer objState.End()

	layoutObj := objState.Name("Layout").Object()
	layoutObj.Name("Alignment").Int(int(h.layout.Alignment()))
	layoutObj.Name("HeaderSize").Int(h.layout.HeaderSize())
	layoutObj.Name("FooterSize").Int(h.layout.FooterSize())
	layoutObj.Name("MinBlockSize").Int(h.layout.MinBlockSize())
	layoutObj.End()

	objState.Name("Flags").String(h.options.Flags.String())
	h.blockJsonData(&objState)

	h.printDetailedMapRegions(&objState)
}

func (h *Heap) printDetailedMapRegions(json *jwriter.ObjectState) {
	arrayState := json.Name("Regions").Array()
	defer arrayState.End()

	_ = h.visitAllRegions(func(offset int, size int, ptr Pointer, free bool) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(offset)
		obj.Name("Size").Int(size)

		if free {
			obj.Name("Type").String("Free")
			return nil
		}

		obj.Name("Type").String("Allocated")
		obj.Name("Pointer").Int(int(ptr))
		obj.Name("Payload").Int(h.region.PayloadSize(h.blockOf(ptr)))

		if h.live != nil {
			requested, ok := h.live.Get(ptr)
			if ok {
				obj.Name("RequestedSize").Int(requested)
			}
		}

		return nil
	})
}
