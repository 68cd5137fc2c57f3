//go:build linux || darwin

package sbrk

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/sys/unix"
)

// Mmap is an Environment backed by an anonymous private mapping. The whole capacity is mapped with
// MAP_NORESERVE up front, so pages are only committed by the kernel once the heap touches them.
type Mmap struct {
	mapping []byte
	brk     int
}

var _ Environment = &Mmap{}

// NewMmap maps capacity bytes of address space for a heap. The mapping must be released with Close.
func NewMmap(capacity int) (*Mmap, error) {
	if capacity <= 0 {
		return nil, errors.Newf("sbrk: invalid mapping capacity %d", capacity)
	}

	mapping, err := unix.Mmap(-1, 0, capacity,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		return nil, errors.Wrapf(err, "sbrk: failed to map %d bytes", capacity)
	}

	return &Mmap{mapping: mapping}, nil
}

func (m *Mmap) Sbrk(increment int) (int, error) {
	previous := m.brk

	if m.mapping == nil {
		return previous, errors.New("sbrk: mapping has been closed")
	}

	if increment < 0 {
		return previous, errors.Newf("sbrk: negative increment %d", increment)
	}

	if increment > len(m.mapping)-previous {
		return previous, errors.Wrapf(memutils.OutOfMemoryError,
			"sbrk: cannot extend break %d by %d bytes with a mapping of %d bytes", previous, increment, len(m.mapping))
	}

	m.brk += increment
	return previous, nil
}

func (m *Mmap) Memory() []byte {
	return m.mapping[:m.brk:m.brk]
}

// Close unmaps the region. Every slice obtained from Memory becomes invalid.
func (m *Mmap) Close() error {
	if m.mapping == nil {
		return nil
	}

	err := unix.Munmap(m.mapping)
	m.mapping = nil
	m.brk = 0
	return errors.Wrap(err, "sbrk: failed to unmap region")
}
