package sbrk

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

// Limited wraps an Environment and refuses to move the break past a fixed number of bytes
type Limited struct {
	Environment
	limit int
}

var _ Environment = &Limited{}

// WithLimit caps the break of env at limit bytes
func WithLimit(env Environment, limit int) *Limited {
	return &Limited{Environment: env, limit: limit}
}

func (l *Limited) Sbrk(increment int) (int, error) {
	current := len(l.Environment.Memory())
	if increment > l.limit-current {
		return current, errors.Wrapf(memutils.OutOfMemoryError,
			"sbrk: extending break %d by %d bytes would exceed the limit of %d bytes", current, increment, l.limit)
	}

	return l.Environment.Sbrk(increment)
}

// Limit returns the maximum break of this environment
func (l *Limited) Limit() int {
	return l.limit
}
