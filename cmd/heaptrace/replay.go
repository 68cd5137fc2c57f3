package main

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/heap"
	"github.com/zeebo/xxh3"
	"golang.org/x/exp/slog"
)

// IntegrityError is returned when a live allocation's contents changed between operations
var IntegrityError = errors.New("allocation contents were corrupted")

type slot struct {
	ptr  heap.Pointer
	size int
	hash uint64
}

// Replayer runs trace operations against a heap. Every live allocation is filled with a pattern
// derived from its id and the line that last wrote it, and its xxh3 hash is checked before the heap
// touches it again.
type Replayer struct {
	heap     *heap.Heap
	logger   *slog.Logger
	validate bool

	slots map[string]*slot
	ops   int
}

func NewReplayer(logger *slog.Logger, h *heap.Heap, validate bool) *Replayer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Replayer{
		heap:     h,
		logger:   logger,
		validate: validate,
		slots:    make(map[string]*slot),
	}
}

// Live returns the number of trace ids with a live allocation
func (r *Replayer) Live() int {
	return len(r.slots)
}

// Ops returns the number of operations replayed so far
func (r *Replayer) Ops() int {
	return r.ops
}

func (r *Replayer) Run(ops []Op) error {
	for _, op := range ops {
		err := r.step(op)
		if err != nil {
			return errors.Wrapf(err, "line %d: %s %s", op.Line, op.Kind, op.ID)
		}
		r.ops++

		if r.validate {
			err = r.heap.Validate()
			if err != nil {
				return errors.Wrapf(err, "heap is inconsistent after line %d", op.Line)
			}
		}
	}

	return nil
}

// ReleaseAll releases every allocation that the trace left live, checking its contents first
func (r *Replayer) ReleaseAll() error {
	for id, s := range r.slots {
		err := r.verify(id, s)
		if err != nil {
			return err
		}

		r.heap.Release(s.ptr)
		delete(r.slots, id)
	}

	return nil
}

func (r *Replayer) step(op Op) error {
	existing, exists := r.slots[op.ID]

	switch op.Kind {
	case OpAllocate, OpAllocateZeroed:
		if exists {
			return errors.Newf("id %s is already live", op.ID)
		}
		return r.allocate(op)
	case OpResize:
		if !exists {
			return r.allocate(op)
		}
		return r.resize(op, existing)
	case OpRelease:
		if !exists {
			return errors.Newf("id %s is not live", op.ID)
		}

		err := r.verify(op.ID, existing)
		if err != nil {
			return err
		}

		r.heap.Release(existing.ptr)
		delete(r.slots, op.ID)
		return nil
	}

	return errors.Newf("unknown operation %q", byte(op.Kind))
}

func (r *Replayer) allocate(op Op) error {
	var ptr heap.Pointer
	var err error
	size := op.Size

	if op.Kind == OpAllocateZeroed {
		size = op.Count * op.Size
		ptr, err = r.heap.AllocateZeroed(op.Count, op.Size)
		if err != nil {
			return err
		}

		for i, value := range r.heap.Bytes(ptr)[:size] {
			if value != 0 {
				return errors.Wrapf(IntegrityError, "byte %d of a zeroed allocation is %d", i, value)
			}
		}
	} else {
		ptr, err = r.heap.Allocate(size)
		if err != nil {
			return err
		}
	}

	s := &slot{ptr: ptr, size: size}
	r.fill(op, s)
	r.slots[op.ID] = s
	return nil
}

func (r *Replayer) resize(op Op, s *slot) error {
	err := r.verify(op.ID, s)
	if err != nil {
		return err
	}

	kept := s.size
	if op.Size < kept {
		kept = op.Size
	}
	prefixHash := xxh3.Hash(r.heap.Bytes(s.ptr)[:kept])

	ptr, err := r.heap.Resize(s.ptr, op.Size)
	if err != nil {
		return err
	}

	if op.Size == 0 {
		delete(r.slots, op.ID)
		return nil
	}

	if ptr != s.ptr {
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocation moved",
			slog.String("id", op.ID),
			slog.Int("line", op.Line),
			slog.Int("from", int(s.ptr)),
			slog.Int("to", int(ptr)),
		)
	}

	if xxh3.Hash(r.heap.Bytes(ptr)[:kept]) != prefixHash {
		return errors.Wrapf(IntegrityError, "the first %d bytes of id %s did not survive the resize", kept, op.ID)
	}

	s.ptr = ptr
	s.size = op.Size
	r.fill(op, s)
	return nil
}

func (r *Replayer) fill(op Op, s *slot) {
	data := r.heap.Bytes(s.ptr)[:s.size]
	seed := xxh3.HashString(op.ID) + uint64(op.Line)
	for i := range data {
		data[i] = byte(seed>>(8*(i%8))) ^ byte(i)
	}

	s.hash = xxh3.Hash(data)
}

func (r *Replayer) verify(id string, s *slot) error {
	if xxh3.Hash(r.heap.Bytes(s.ptr)[:s.size]) != s.hash {
		return errors.Wrapf(IntegrityError, "id %s at pointer %d", id, s.ptr)
	}

	return nil
}
