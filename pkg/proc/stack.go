package proc

import (
	"encoding/binary"
)

// FrameArgs is the number of words above the return address that are
// reported as arguments of every frame.
//
// The callee's real arity is unknown: frames of functions taking fewer
// arguments report unrelated stack contents in the remaining slots.
const FrameArgs = 5

// Stackframe is a frame reconstructed from the frame pointer convention:
//
//	[fp+0]  saved frame pointer of the caller
//	[fp+4]  return address
//	[fp+8]  first argument word
//	...
type Stackframe struct {
	// FramePointer is the value of %ebp inside the frame.
	FramePointer uint32
	// Ret is the address this frame returns to.
	Ret uint32
	// Args are the FrameArgs words above the return address.
	Args [FrameArgs]uint32
}

// StackIterator walks a frame pointer chain, starting from a frame pointer
// and following saved frame pointers until it reads zero.
//
// Walking is best effort. Nothing about the frames is verified: code built
// without frame pointers, a corrupted chain or a cycle in the chain will
// produce garbage frames or never terminate. The only thing the iterator
// guarantees is that it never reads through a zero frame pointer.
type StackIterator struct {
	mem   MemoryReader
	fp    uint32
	frame Stackframe
	err   error
}

// NewStackIterator returns an iterator over the frames whose innermost
// frame pointer is fp. mem must address virtual memory.
func NewStackIterator(mem MemoryReader, fp uint32) *StackIterator {
	return &StackIterator{mem: mem, fp: fp}
}

// Next reads the next frame. It returns false at the root of the chain or
// when the saved frame pointer or return address cannot be read, see Err.
// Argument words that cannot be read are reported as zero.
func (it *StackIterator) Next() bool {
	if it.err != nil || it.fp == 0 {
		return false
	}
	var buf [(2 + FrameArgs) * wordSize]byte
	if _, err := it.mem.ReadMemory(buf[:], uint64(it.fp)); err != nil {
		if !it.readSlow(buf[:]) {
			return false
		}
	}
	word := func(i int) uint32 {
		return binary.LittleEndian.Uint32(buf[i*wordSize:])
	}
	it.frame = Stackframe{FramePointer: it.fp, Ret: word(1)}
	for i := range it.frame.Args {
		it.frame.Args[i] = word(2 + i)
	}
	it.fp = word(0)
	return true
}

// readSlow reads the frame at it.fp one piece at a time, after the argument
// window could not be read in one go. Only the saved frame pointer and the
// return address are required; unreadable argument words read as zero.
func (it *StackIterator) readSlow(buf []byte) bool {
	if _, err := it.mem.ReadMemory(buf[:2*wordSize], uint64(it.fp)); err != nil {
		it.err = err
		return false
	}
	for i := 2; i < 2+FrameArgs; i++ {
		slot := buf[i*wordSize : (i+1)*wordSize]
		if _, err := it.mem.ReadMemory(slot, uint64(it.fp)+uint64(i*wordSize)); err != nil {
			for j := range slot {
				slot[j] = 0
			}
		}
	}
	return true
}

// Frame returns the frame read by the last call to Next.
func (it *StackIterator) Frame() Stackframe {
	return it.frame
}

// Err returns the read error that stopped the iteration, if any.
func (it *StackIterator) Err() error {
	return it.err
}
