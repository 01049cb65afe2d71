package proc

import (
	"github.com/jos-tools/kmon/pkg/memlayout"
)

// SparseMemory is a page granular physical memory that only stores the
// pages that have been written. Pages never written read as zero, like
// freshly cleared RAM. It is used to build synthetic machines.
type SparseMemory struct {
	size  uint64
	pages map[uint64]*[memlayout.PGSIZE]byte
}

// NewSparseMemory returns a zeroed physical memory of the given size.
func NewSparseMemory(size uint64) *SparseMemory {
	return &SparseMemory{size: size, pages: make(map[uint64]*[memlayout.PGSIZE]byte)}
}

// Size returns the size of the memory in bytes.
func (m *SparseMemory) Size() uint64 {
	return m.size
}

func (m *SparseMemory) check(addr uint64, n int) error {
	if addr > m.size || uint64(n) > m.size-addr {
		return &OutOfBoundsError{Addr: addr, Size: m.size}
	}
	return nil
}

// ReadMemory implements MemoryReader.ReadMemory.
func (m *SparseMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	if err := m.check(addr, len(buf)); err != nil {
		return 0, err
	}
	n := 0
	for n < len(buf) {
		pn, off := (addr+uint64(n))/memlayout.PGSIZE, (addr+uint64(n))%memlayout.PGSIZE
		chunk := buf[n:]
		if rem := memlayout.PGSIZE - off; uint64(len(chunk)) > rem {
			chunk = chunk[:rem]
		}
		if page := m.pages[pn]; page != nil {
			copy(chunk, page[off:])
		} else {
			for i := range chunk {
				chunk[i] = 0
			}
		}
		n += len(chunk)
	}
	return n, nil
}

// WriteMemory implements MemoryReadWriter.WriteMemory.
func (m *SparseMemory) WriteMemory(addr uint64, data []byte) (int, error) {
	if err := m.check(addr, len(data)); err != nil {
		return 0, err
	}
	n := 0
	for n < len(data) {
		pn, off := (addr+uint64(n))/memlayout.PGSIZE, (addr+uint64(n))%memlayout.PGSIZE
		page := m.pages[pn]
		if page == nil {
			page = new([memlayout.PGSIZE]byte)
			m.pages[pn] = page
		}
		n += copy(page[off:], data[n:])
	}
	return n, nil
}
