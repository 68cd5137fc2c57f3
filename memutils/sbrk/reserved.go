package sbrk

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

// Reserved is an Environment backed by a Go byte slice whose capacity is reserved up front. The break
// moves within that capacity; requests beyond it fail with memutils.OutOfMemoryError.
type Reserved struct {
	data []byte
}

var _ Environment = &Reserved{}

// NewReserved reserves capacity bytes of address space for a heap
func NewReserved(capacity int) *Reserved {
	return &Reserved{
		data: make([]byte, 0, capacity),
	}
}

func (r *Reserved) Sbrk(increment int) (int, error) {
	previous := len(r.data)

	if increment < 0 {
		return previous, errors.Newf("sbrk: negative increment %d", increment)
	}

	if increment > cap(r.data)-previous {
		return previous, errors.Wrapf(memutils.OutOfMemoryError,
			"sbrk: cannot extend break %d by %d bytes with a reservation of %d bytes", previous, increment, cap(r.data))
	}

	r.data = r.data[:previous+increment]
	return previous, nil
}

func (r *Reserved) Memory() []byte {
	return r.data
}

// Capacity returns the number of bytes reserved for the region
func (r *Reserved) Capacity() int {
	return cap(r.data)
}
