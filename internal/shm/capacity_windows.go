//go:build windows

package shm

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// CheckCapacity reports ErrNoSpace when the pagefile-backed commit limit cannot hold size more bytes.
func CheckCapacity(size uint64) error {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	if vm.Available < size {
		return fmt.Errorf("available %d: %w", vm.Available, ErrNoSpace)
	}
	return nil
}
