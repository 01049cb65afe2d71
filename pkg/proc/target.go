package proc

import (
	"errors"
	"io"

	"github.com/jos-tools/kmon/pkg/logflags"
	"github.com/jos-tools/kmon/pkg/memlayout"
	"github.com/jos-tools/kmon/pkg/symbols"
)

// Registers are the privileged and frame registers the monitor reads
// directly from the CPU.
type Registers struct {
	// Ebp is the frame pointer of the monitor's own frame, where stack
	// unwinding starts.
	Ebp uint32 `yaml:"ebp"`
	// Cr3 is the physical address of the active page directory.
	Cr3 uint32 `yaml:"cr3"`
}

// Target represents the trapped machine the monitor is inspecting.
type Target struct {
	phys    MemoryReader
	virt    *VirtualMemory
	regs    Registers
	tf      *Trapframe
	symbols symbols.Resolver
	layout  memlayout.Layout
	log     logflags.Logger
}

// NewTargetConfig contains the configuration for a new Target.
type NewTargetConfig struct {
	Phys      MemoryReader     // physical memory of the machine
	Registers Registers        // register state at the time of the trap
	Trapframe *Trapframe       // trapped execution state, may be nil
	Symbols   symbols.Resolver // kernel symbols, may be nil
	Layout    memlayout.Layout // kernel memory layout
}

var errNoMemory = errors.New("target has no physical memory")

// NewTarget returns an initialized Target.
func NewTarget(cfg NewTargetConfig) (*Target, error) {
	if cfg.Phys == nil {
		return nil, errNoMemory
	}
	if cfg.Symbols == nil {
		cfg.Symbols = symbols.Empty
	}
	if cfg.Trapframe == nil {
		cfg.Trapframe = &Trapframe{}
	}
	if cfg.Layout.KernBase == 0 {
		cfg.Layout = memlayout.Default
	}
	return &Target{
		phys:    cfg.Phys,
		virt:    NewVirtualMemory(cfg.Phys, uint64(memlayout.PTE_ADDR(cfg.Registers.Cr3))),
		regs:    cfg.Registers,
		tf:      cfg.Trapframe,
		symbols: cfg.Symbols,
		layout:  cfg.Layout,
		log:     logflags.PmapLogger(),
	}, nil
}

// Physical returns physical memory, the view in which page directories and
// page tables are addressable.
func (t *Target) Physical() MemoryReader {
	return t.phys
}

// Memory returns the virtual address space of the active page directory.
func (t *Target) Memory() MemoryReader {
	return t.virt
}

// PageDirectory returns the physical address of the active page directory,
// as loaded in %cr3.
func (t *Target) PageDirectory() uint64 {
	return uint64(memlayout.PTE_ADDR(t.regs.Cr3))
}

// FramePointer returns the current frame pointer.
func (t *Target) FramePointer() uint32 {
	return t.regs.Ebp
}

// Trapframe returns the trapped execution state.
func (t *Target) Trapframe() *Trapframe {
	return t.tf
}

// Symbols returns the kernel symbol table.
func (t *Target) Symbols() symbols.Resolver {
	return t.symbols
}

// Layout returns the kernel memory layout.
func (t *Target) Layout() memlayout.Layout {
	return t.layout
}

// Stacktrace returns an iterator over the frame chain starting at the
// current frame pointer.
func (t *Target) Stacktrace() *StackIterator {
	return NewStackIterator(t.virt, t.FramePointer())
}

// Mapping resolves the page containing va in the active page directory.
func (t *Target) Mapping(va uint32) (Mapping, error) {
	m, err := LookupMapping(t.phys, t.PageDirectory(), va)
	if logflags.Pmap() {
		t.log.WithFields(logflags.Fields{"pgdir": t.PageDirectory(), "va": va}).Debugf("mapping %+v err=%v", m, err)
	}
	return m, err
}

// Close releases the target's physical memory, if it holds any resource.
func (t *Target) Close() error {
	if c, ok := t.phys.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
