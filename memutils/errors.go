package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// OutOfMemoryError is returned when the environment refuses to extend the heap. No existing allocation
// is disturbed when it is returned.
var OutOfMemoryError error = errors.New("out of memory")

// InvalidSizeError is returned when a negative or otherwise unrepresentable size is requested
var InvalidSizeError error = errors.New("invalid allocation size")

// InvalidPointerError is returned when allocation tracking is enabled and a pointer that is not a live
// allocation is passed to the heap
var InvalidPointerError error = errors.New("pointer is not a live allocation")
