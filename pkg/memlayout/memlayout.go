// Package memlayout describes the 32-bit x86 paging structures and the
// kernel's virtual memory layout as seen by the monitor.
package memlayout

import "fmt"

// Page directory and page table geometry.
const (
	PGSIZE     = 4096 // bytes mapped by a page
	PGSHIFT    = 12   // log2(PGSIZE)
	NPDENTRIES = 1024 // page directory entries per page directory
	NPTENTRIES = 1024 // page table entries per page table

	// PTSIZE is the number of bytes mapped by a page directory entry.
	PTSIZE = PGSIZE * NPTENTRIES

	PTXSHIFT = 12 // offset of PTX in a linear address
	PDXSHIFT = 22 // offset of PDX in a linear address

	// PTESIZE is the size in bytes of a page directory or page table entry.
	PTESIZE = 4
)

// Page table/directory entry flags.
const (
	PTE_P   = 0x001 // Present
	PTE_W   = 0x002 // Writeable
	PTE_U   = 0x004 // User
	PTE_PWT = 0x008 // Write-Through
	PTE_PCD = 0x010 // Cache-Disable
	PTE_A   = 0x020 // Accessed
	PTE_D   = 0x040 // Dirty
	PTE_PS  = 0x080 // Page Size
	PTE_G   = 0x100 // Global
)

// KERNBASE is the default virtual address at which all of physical memory
// is mapped for the kernel.
const KERNBASE = 0xF0000000

// PDX returns the page directory index of a linear address.
func PDX(la uint32) uint32 {
	return (la >> PDXSHIFT) & 0x3FF
}

// PTX returns the page table index of a linear address.
func PTX(la uint32) uint32 {
	return (la >> PTXSHIFT) & 0x3FF
}

// PGOFF returns the offset of a linear address within its page.
func PGOFF(la uint32) uint32 {
	return la & 0xFFF
}

// PTE_ADDR returns the physical frame address stored in a page table or
// page directory entry.
func PTE_ADDR(pte uint32) uint32 {
	return pte &^ 0xFFF
}

// RoundDown rounds a down to the nearest multiple of n.
func RoundDown(a, n uint32) uint32 {
	return a - a%n
}

// RoundUp rounds a up to the nearest multiple of n.
func RoundUp(a, n uint32) uint32 {
	return RoundDown(a+n-1, n)
}

// Layout holds the parts of the kernel's memory layout that can differ
// between kernel builds.
type Layout struct {
	KernBase uint32
}

// Default is the layout of a stock kernel.
var Default = Layout{KernBase: KERNBASE}

// PADDR converts a kernel virtual address (in the KERNBASE region) to the
// corresponding physical address.
func (l Layout) PADDR(kva uint32) (uint32, error) {
	if kva < l.KernBase {
		return 0, fmt.Errorf("PADDR called with invalid kva %08x", kva)
	}
	return kva - l.KernBase, nil
}

// KADDR converts a physical address to the kernel virtual address that maps
// it.
func (l Layout) KADDR(pa uint32) (uint32, error) {
	if uint64(pa)+uint64(l.KernBase) > 0xFFFFFFFF {
		return 0, fmt.Errorf("KADDR called with invalid pa %08x", pa)
	}
	return pa + l.KernBase, nil
}
