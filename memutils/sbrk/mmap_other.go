//go:build !(linux || darwin)

package sbrk

import (
	"github.com/cockroachdb/errors"
)

// Mmap is only available on linux and darwin
type Mmap struct{}

var _ Environment = &Mmap{}

// NewMmap always fails on this platform; use NewReserved instead
func NewMmap(capacity int) (*Mmap, error) {
	return nil, errors.New("sbrk: anonymous mappings are not supported on this platform")
}

func (m *Mmap) Sbrk(increment int) (int, error) {
	return 0, errors.New("sbrk: anonymous mappings are not supported on this platform")
}

func (m *Mmap) Memory() []byte { return nil }

func (m *Mmap) Close() error { return nil }
