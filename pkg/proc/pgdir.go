package proc

import (
	"github.com/jos-tools/kmon/pkg/memlayout"
)

// Walk returns the physical address of the page table entry that controls
// the virtual address va in the two level page directory located at the
// physical address pgdir. ok is false if the page directory entry for va is
// not present, in which case no page table exists for va.
//
// The page directory is read through mem, which must address physical
// memory. Allocating missing page tables (create == true) is not possible
// on an inspected machine and returns ErrReadOnly.
func Walk(mem MemoryReader, pgdir uint64, va uint32, create bool) (pte uint64, ok bool, err error) {
	if create {
		return 0, false, ErrReadOnly
	}
	pde, err := ReadWord(mem, pgdir+uint64(memlayout.PDX(va))*memlayout.PTESIZE)
	if err != nil {
		return 0, false, err
	}
	if pde&memlayout.PTE_P == 0 {
		return 0, false, nil
	}
	pt := uint64(memlayout.PTE_ADDR(pde))
	return pt + uint64(memlayout.PTX(va))*memlayout.PTESIZE, true, nil
}

// Mapping describes how a virtual page is mapped.
// Only VA is meaningful when Present is false.
type Mapping struct {
	VA       uint32
	PA       uint32
	Present  bool
	Writable bool
	User     bool
}

// LookupMapping resolves the page containing va through the page directory
// at pgdir.
func LookupMapping(mem MemoryReader, pgdir uint64, va uint32) (Mapping, error) {
	m := Mapping{VA: va}
	pteAddr, ok, err := Walk(mem, pgdir, va, false)
	if err != nil || !ok {
		return m, err
	}
	pte, err := ReadWord(mem, pteAddr)
	if err != nil {
		return m, err
	}
	if pte&memlayout.PTE_P == 0 {
		return m, nil
	}
	m.PA = memlayout.PTE_ADDR(pte)
	m.Present = true
	m.Writable = pte&memlayout.PTE_W != 0
	m.User = pte&memlayout.PTE_U != 0
	return m, nil
}

// VirtualMemory is a MemoryReader over the virtual address space defined
// by a page directory. Every page touched by a read is translated
// separately; reads that touch an unmapped page fail with *UnmappedError.
type VirtualMemory struct {
	phys  MemoryReader
	pgdir uint64
}

// NewVirtualMemory returns the address space of the page directory at pgdir.
func NewVirtualMemory(phys MemoryReader, pgdir uint64) *VirtualMemory {
	return &VirtualMemory{phys: phys, pgdir: pgdir}
}

// ReadMemory implements MemoryReader.ReadMemory.
func (vm *VirtualMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	n := 0
	for n < len(buf) {
		va := addr + uint64(n)
		if va > 0xFFFFFFFF {
			return n, &UnmappedError{Addr: uint32(va)}
		}
		m, err := LookupMapping(vm.phys, vm.pgdir, uint32(va))
		if err != nil {
			return n, err
		}
		if !m.Present {
			return n, &UnmappedError{Addr: uint32(va)}
		}
		off := memlayout.PGOFF(uint32(va))
		chunk := buf[n:]
		if rem := memlayout.PGSIZE - off; uint32(len(chunk)) > rem {
			chunk = chunk[:rem]
		}
		pn, err := vm.phys.ReadMemory(chunk, uint64(m.PA+off))
		n += pn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
