package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/internal/utils"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/block"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

var heapCreateFlagsMapping = utils.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	heapCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return heapCreateFlagsMapping.FlagsToString(f)
}

const (
	// HeapCreateSynchronized wraps every public operation of the heap in a single mutex. Without it,
	// the consumer must guarantee the heap is used from only one goroutine at a time.
	HeapCreateSynchronized CreateFlags = 1 << iota
	// HeapCreateTrackAllocations records every live allocation so that releasing or resizing a pointer
	// that is not live is detected instead of corrupting the heap. It costs a map entry per allocation.
	HeapCreateTrackAllocations
)

func init() {
	HeapCreateSynchronized.Register("HeapCreateSynchronized")
	HeapCreateTrackAllocations.Register("HeapCreateTrackAllocations")
}

// CreateOptions contains optional settings when creating a heap. The zero value is valid.
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags

	// Alignment is the alignment unit of every block and payload. It must be a power of two and at
	// least 8. When left at 0, block.DefaultAlignment (16) is used.
	Alignment uint

	// GrowthIncrement can be left at 0, in which case the heap asks the environment for exactly the
	// bytes it is missing. Otherwise it must be a power of two, and every request to the environment is
	// rounded up to a multiple of it. The excess is kept as slack and consumed by later growth.
	GrowthIncrement int

	// HeapSizeLimit can be left at 0 for no limit. Otherwise it is the maximum number of bytes the heap
	// will obtain from the environment. Growth beyond the limit fails with memutils.OutOfMemoryError.
	HeapSizeLimit int
}

func (o CreateOptions) layout() (block.Layout, error) {
	alignment := o.Alignment
	if alignment == 0 {
		alignment = block.DefaultAlignment
	}

	return block.NewLayout(alignment)
}

func (o CreateOptions) validate() error {
	if o.GrowthIncrement < 0 {
		return errors.Wrapf(memutils.InvalidSizeError, "growth increment is %d", o.GrowthIncrement)
	}

	if o.GrowthIncrement > 0 {
		err := memutils.CheckPow2(o.GrowthIncrement, "growth increment")
		if err != nil {
			return err
		}
	}

	if o.HeapSizeLimit < 0 {
		return errors.Wrapf(memutils.InvalidSizeError, "heap size limit is %d", o.HeapSizeLimit)
	}

	return nil
}
