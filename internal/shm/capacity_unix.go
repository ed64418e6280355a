//go:build unix

package shm

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// CheckCapacity reports ErrNoSpace when the shm filesystem cannot hold size more bytes.
// A failing probe is not fatal; the subsequent ftruncate or mmap reports the real error.
func CheckCapacity(size uint64) error {
	usage, err := disk.Usage(Dir())
	if err != nil {
		return nil
	}
	if usage.Free < size {
		return fmt.Errorf("free %d: %w", usage.Free, ErrNoSpace)
	}
	return nil
}
