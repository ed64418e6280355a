package shm

import (
	"sync/atomic"
	"unsafe"
)

// Mapped memory is page aligned, so any 4-byte aligned offset is valid for these helpers.

// AtomicLoadInt32 loads an int32 from shared memory atomically.
func AtomicLoadInt32(addr unsafe.Pointer) int32 {
	return atomic.LoadInt32((*int32)(addr))
}

// AtomicStoreInt32 stores an int32 to shared memory atomically.
func AtomicStoreInt32(addr unsafe.Pointer, val int32) {
	atomic.StoreInt32((*int32)(addr), val)
}

// AtomicAddInt32 atomically adds delta to the int32 in shared memory and returns the new value.
func AtomicAddInt32(addr unsafe.Pointer, delta int32) int32 {
	return atomic.AddInt32((*int32)(addr), delta)
}
