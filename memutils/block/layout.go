package block

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

const (
	// wordSize is the width of a size tag or a free-list link
	wordSize = 8
	// linkSize is the space a free block needs in its payload for its prev/next links
	linkSize = 2 * wordSize
	// DefaultAlignment is the alignment unit used when none is specified
	DefaultAlignment uint = 16
)

// Layout describes the geometry of every block in a heap: the alignment unit, and how many bytes of
// header and footer surround each payload. All size calculations must go through the same Layout, since
// the footer position, the physical successor and the physical predecessor are all derived from
// PaddedSize.
//
// The header holds the payload size word followed by the availability byte, and is padded out to the
// alignment unit so that payloads are aligned whenever block offsets are. The footer repeats the payload
// size word.
type Layout struct {
	alignment    uint
	headerSize   int
	footerSize   int
	minBlockSize int
}

// NewLayout creates a Layout for the provided alignment unit, which must be a power of two no smaller
// than a machine word.
func NewLayout(alignment uint) (Layout, error) {
	err := memutils.CheckPow2(alignment, "alignment")
	if err != nil {
		return Layout{}, err
	}

	if alignment < wordSize {
		return Layout{}, errors.Newf("alignment must be at least %d bytes, but it is %d", wordSize, alignment)
	}

	headerSize := memutils.AlignUp(wordSize+1, alignment)
	footerSize := wordSize

	return Layout{
		alignment:    alignment,
		headerSize:   headerSize,
		footerSize:   footerSize,
		minBlockSize: memutils.AlignUp(headerSize+linkSize+footerSize, alignment),
	}, nil
}

// DefaultLayout returns the Layout for DefaultAlignment
func DefaultLayout() Layout {
	layout, err := NewLayout(DefaultAlignment)
	if err != nil {
		panic(err)
	}

	return layout
}

func (l Layout) Alignment() uint   { return l.alignment }
func (l Layout) HeaderSize() int   { return l.headerSize }
func (l Layout) FooterSize() int   { return l.footerSize }
func (l Layout) Overhead() int     { return l.headerSize + l.footerSize }
func (l Layout) MinBlockSize() int { return l.minBlockSize }

// MinPayload is the payload size of a block whose total size is MinBlockSize. It is always large
// enough to hold the free-list links.
func (l Layout) MinPayload() int { return l.minBlockSize - l.Overhead() }

// PaddedSize returns the total number of bytes a block with the provided payload size occupies:
// the smallest multiple of the alignment unit that holds the payload and both tags, and never less
// than MinBlockSize.
func (l Layout) PaddedSize(payloadSize int) int {
	total := memutils.AlignUp(payloadSize+l.Overhead(), l.alignment)
	if total < l.minBlockSize {
		return l.minBlockSize
	}

	return total
}

// PayloadOf returns the largest payload size that a block of the provided total size can carry.
// PaddedSize(PayloadOf(total)) == total for every aligned total of at least MinBlockSize.
func (l Layout) PayloadOf(totalSize int) int {
	return totalSize - l.Overhead()
}
