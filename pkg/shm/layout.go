package shm

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	internalshm "github.com/srediag/plugin-shmdata/internal/shm"
)

// Layout of the shared data map. Integers are int32 in host byte order.
//
//	offset 0:   int32     currentPointer
//	offset 4:   int32     clearCount
//	offset 8:   int32[32] pids
//	offset 136: byte[N]   data
const (
	PIDSlots = 32

	currentPointerOffset = 0
	clearCountOffset     = currentPointerOffset + 4
	pidsOffset           = clearCountOffset + 4
	dataOffset           = pidsOffset + 4*PIDSlots

	// HeaderSize is the fixed prefix preceding the data buffer.
	HeaderSize = dataOffset
)

var byteOrder = binary.NativeEndian

// Header is a decoded copy of the fixed prefix.
type Header struct {
	CurrentPointer int32
	ClearCount     int32
	PIDs           [PIDSlots]int32
}

// DecodeHeader reads a Header from the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, fmt.Errorf("decode %d bytes: %w", len(b), ErrShortBuffer)
	}
	h.CurrentPointer = int32(byteOrder.Uint32(b[currentPointerOffset:]))
	h.ClearCount = int32(byteOrder.Uint32(b[clearCountOffset:]))
	for i := range h.PIDs {
		h.PIDs[i] = int32(byteOrder.Uint32(b[pidsOffset+4*i:]))
	}
	return h, nil
}

// Encode writes h into the first HeaderSize bytes of b.
func (h Header) Encode(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("encode into %d bytes: %w", len(b), ErrShortBuffer)
	}
	byteOrder.PutUint32(b[currentPointerOffset:], uint32(h.CurrentPointer))
	byteOrder.PutUint32(b[clearCountOffset:], uint32(h.ClearCount))
	for i, pid := range h.PIDs {
		byteOrder.PutUint32(b[pidsOffset+4*i:], uint32(pid))
	}
	return nil
}

// DataMap is a live view over a mapped region. Reads and writes go straight
// to shared memory; nothing is copied and nothing is synchronized.
//
// A DataMap must not be used after the Region it came from is closed.
type DataMap struct {
	mem []byte
}

func newDataMap(mem []byte) *DataMap {
	if len(mem) < HeaderSize {
		return nil
	}
	return &DataMap{mem: mem}
}

// Len returns the total size of the view in bytes.
func (m *DataMap) Len() int { return len(m.mem) }

// CurrentPointer returns the rolling write cursor.
func (m *DataMap) CurrentPointer() int32 {
	return int32(byteOrder.Uint32(m.mem[currentPointerOffset:]))
}

// SetCurrentPointer stores the rolling write cursor.
func (m *DataMap) SetCurrentPointer(v int32) {
	byteOrder.PutUint32(m.mem[currentPointerOffset:], uint32(v))
}

// ClearCount atomically loads the clear counter.
func (m *DataMap) ClearCount() int32 {
	return internalshm.AtomicLoadInt32(unsafe.Pointer(&m.mem[clearCountOffset]))
}

// SetClearCount atomically stores the clear counter.
func (m *DataMap) SetClearCount(v int32) {
	internalshm.AtomicStoreInt32(unsafe.Pointer(&m.mem[clearCountOffset]), v)
}

// IncrementClearCount atomically adds one to the clear counter and returns the new value.
func (m *DataMap) IncrementClearCount() int32 {
	return internalshm.AtomicAddInt32(unsafe.Pointer(&m.mem[clearCountOffset]), 1)
}

// PID returns the identifier stored in slot i.
func (m *DataMap) PID(i int) (int32, error) {
	if i < 0 || i >= PIDSlots {
		return 0, fmt.Errorf("slot %d: %w", i, ErrIndexOutOfRange)
	}
	return int32(byteOrder.Uint32(m.mem[pidsOffset+4*i:])), nil
}

// SetPID stores v in slot i.
func (m *DataMap) SetPID(i int, v int32) error {
	if i < 0 || i >= PIDSlots {
		return fmt.Errorf("slot %d: %w", i, ErrIndexOutOfRange)
	}
	byteOrder.PutUint32(m.mem[pidsOffset+4*i:], uint32(v))
	return nil
}

// PIDs returns a copy of all identifier slots.
func (m *DataMap) PIDs() [PIDSlots]int32 {
	h, _ := DecodeHeader(m.mem)
	return h.PIDs
}

// Header returns a snapshot of the fixed prefix.
func (m *DataMap) Header() Header {
	h, _ := DecodeHeader(m.mem)
	return h
}

// SetHeader overwrites the fixed prefix.
func (m *DataMap) SetHeader(h Header) {
	_ = h.Encode(m.mem)
}

// Data returns the trailing buffer. The slice aliases shared memory.
func (m *DataMap) Data() []byte {
	return m.mem[dataOffset:]
}
