// Package test builds synthetic machines for tests: a sparse physical
// memory with a page directory, page tables and hand built kernel stacks.
package test

import (
	"fmt"

	"github.com/jos-tools/kmon/pkg/memlayout"
	"github.com/jos-tools/kmon/pkg/proc"
)

// Physical memory of a synthetic machine. The page directory lives at
// PgdirPA, page tables are allocated from the pages that follow it and
// DataPA is the first physical page tests are free to use.
const (
	PgdirPA = 0x1000
	DataPA  = 0x10000
	MemSize = 4 << 20
)

// Machine is a synthetic machine under construction.
type Machine struct {
	Mem    proc.MemoryReadWriter
	nextPT uint32
}

// NewMachine returns a machine with an empty page directory.
func NewMachine() *Machine {
	return &Machine{Mem: proc.NewSparseMemory(MemSize), nextPT: PgdirPA + memlayout.PGSIZE}
}

// Registers returns registers with %cr3 pointing at the page directory.
func (m *Machine) Registers(ebp uint32) proc.Registers {
	return proc.Registers{Ebp: ebp, Cr3: PgdirPA}
}

// Target returns a target for the machine.
func (m *Machine) Target(ebp uint32, cfg proc.NewTargetConfig) *proc.Target {
	cfg.Phys = m.Mem
	cfg.Registers = m.Registers(ebp)
	t, err := proc.NewTarget(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// SetPDE stores a raw page directory entry for va.
func (m *Machine) SetPDE(va uint32, pde uint32) {
	m.mustWrite(PgdirPA+memlayout.PDX(va)*memlayout.PTESIZE, pde)
}

// Map maps the page containing va to the physical page containing pa with
// the given permission bits. The page directory entry is created present,
// writable and user accessible so that the page table entry alone decides
// the permissions.
func (m *Machine) Map(va, pa uint32, perm uint32) {
	pdeAddr := PgdirPA + memlayout.PDX(va)*memlayout.PTESIZE
	pde, err := proc.ReadWord(m.Mem, uint64(pdeAddr))
	if err != nil {
		panic(err)
	}
	if pde&memlayout.PTE_P == 0 {
		if m.nextPT >= DataPA {
			panic("synthetic machine out of page tables")
		}
		pde = m.nextPT | memlayout.PTE_P | memlayout.PTE_W | memlayout.PTE_U
		m.nextPT += memlayout.PGSIZE
		m.mustWrite(pdeAddr, pde)
	}
	pteAddr := memlayout.PTE_ADDR(pde) + memlayout.PTX(va)*memlayout.PTESIZE
	m.mustWrite(pteAddr, memlayout.PTE_ADDR(pa)|perm)
}

// MapRange maps size bytes starting at va to physical memory starting at pa.
func (m *Machine) MapRange(va, pa, size uint32, perm uint32) {
	for off := uint32(0); off < size; off += memlayout.PGSIZE {
		m.Map(va+off, pa+off, perm)
	}
}

// WriteVirt writes words starting at the virtual address va, which must be
// mapped.
func (m *Machine) WriteVirt(va uint32, words ...uint32) {
	for i, w := range words {
		a := va + uint32(i)*4
		mapping, err := proc.LookupMapping(m.Mem, PgdirPA, a)
		if err != nil {
			panic(err)
		}
		if !mapping.Present {
			panic(fmt.Sprintf("WriteVirt: %#x not mapped", a))
		}
		m.mustWrite(mapping.PA+memlayout.PGOFF(a), w)
	}
}

// Frame describes a frame to build on a synthetic stack.
type Frame struct {
	Ret  uint32
	Args [proc.FrameArgs]uint32
}

// FrameSize is the distance between consecutive synthetic frames.
const FrameSize = 0x20

// BuildStack lays out frames, innermost first, at increasing addresses
// starting at base (which must be mapped) and links them through their
// saved frame pointers. The outermost frame's saved frame pointer is zero.
// It returns the frame pointer of the innermost frame, or zero if frames
// is empty.
func (m *Machine) BuildStack(base uint32, frames []Frame) uint32 {
	if len(frames) == 0 {
		return 0
	}
	for i, f := range frames {
		fp := base + uint32(i)*FrameSize
		var saved uint32
		if i+1 < len(frames) {
			saved = fp + FrameSize
		}
		m.WriteVirt(fp, append([]uint32{saved, f.Ret}, f.Args[:]...)...)
	}
	return base
}

func (m *Machine) mustWrite(pa uint32, v uint32) {
	if err := proc.WriteWord(m.Mem, uint64(pa), v); err != nil {
		panic(err)
	}
}
