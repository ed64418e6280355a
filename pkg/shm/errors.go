package shm

import "errors"

var (
	// ErrInvalidSize is returned when the reserved data size is out of range.
	ErrInvalidSize = errors.New("invalid reserved data size")
	// ErrHandleInUse is returned when a handle already holds a different region.
	ErrHandleInUse = errors.New("handle already holds another region")
	// ErrClosed is returned when operating on a closed region.
	ErrClosed = errors.New("shared memory region is closed")
	// ErrIndexOutOfRange is returned for pid slot indexes outside [0, PIDSlots).
	ErrIndexOutOfRange = errors.New("pid slot index out of range")
	// ErrShortBuffer is returned when a buffer cannot hold the header.
	ErrShortBuffer = errors.New("buffer shorter than header")
)
