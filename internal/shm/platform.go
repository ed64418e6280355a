// Package shm contains platform-specific helpers for mapping named shared memory regions.
package shm

import (
	"errors"
	"strings"
)

var (
	// ErrSizeMismatch is returned when an existing region is opened with a different size.
	ErrSizeMismatch = errors.New("shared memory size mismatch")
	// ErrNoSpace is returned when the backing store cannot hold the requested region.
	ErrNoSpace = errors.New("share memory had not left space")
	// ErrInvalidName is returned for empty names or names containing a path separator.
	ErrInvalidName = errors.New("invalid shared memory name")
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Name string
	// Created reports whether this mapping created the OS object.
	Created bool

	handle uintptr // fd on unix, mapping handle on windows
}

// Size returns the mapped length in bytes.
func (r *MappedRegion) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Addr)
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	// Size is the region length. Zero adopts the size of an existing region.
	Size int
	// Create allows the region to be created when it does not exist.
	Create bool
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

// Function implementations are provided in platform-specific files (platform_unix.go, platform_windows.go).
