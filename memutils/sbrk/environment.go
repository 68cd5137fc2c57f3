// Package sbrk provides the heap-growth primitive that a heap draws its memory from. An Environment
// behaves like sbrk(2): it extends a flat region by a requested number of bytes and reports the
// previous end of the region (the break), or refuses outright. It never grants a partial request.
//
// The region never moves once reserved, so slices handed out from it stay valid across growth.
package sbrk

//go:generate mockgen -source environment.go -destination ./mock_sbrk/environment.go -package mock_sbrk

// Environment is the operating environment's heap-growth primitive
type Environment interface {
	// Sbrk extends the region by increment bytes and returns the previous break. An increment of 0
	// reports the current break without changing anything. On failure the break is left unchanged and
	// an error wrapping memutils.OutOfMemoryError is returned.
	Sbrk(increment int) (int, error)
	// Memory returns the bytes of the region below the current break
	Memory() []byte
}
