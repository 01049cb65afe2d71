package proc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MemoryReader is like io.ReaderAt, but the offset is a uint64 so that it
// can address all of the target's memory.
type MemoryReader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// MemoryReadWriter is a MemoryReader that can also be written. Memory
// images opened with OpenDump refuse writes with ErrReadOnly.
type MemoryReadWriter interface {
	MemoryReader
	WriteMemory(addr uint64, data []byte) (written int, err error)
}

// ErrReadOnly is returned by operations that would need to modify the
// target's memory.
var ErrReadOnly = errors.New("target memory is read only")

// OutOfBoundsError is returned when a read falls outside of physical
// memory.
type OutOfBoundsError struct {
	Addr uint64
	Size uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("physical address %#x out of bounds (memory size %#x)", e.Addr, e.Size)
}

// UnmappedError is returned when a virtual address has no present mapping.
type UnmappedError struct {
	Addr uint32
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("virtual address %#08x is not mapped", e.Addr)
}

// wordSize is the size of a machine word on the target.
const wordSize = 4

// ReadWord reads a little endian machine word at addr.
func ReadWord(mem MemoryReader, addr uint64) (uint32, error) {
	var buf [wordSize]byte
	if _, err := mem.ReadMemory(buf[:], addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteWord stores a little endian machine word at addr.
func WriteWord(mem MemoryReadWriter, addr uint64, v uint32) error {
	var buf [wordSize]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := mem.WriteMemory(addr, buf[:])
	return err
}
