package symbols

import (
	"sort"
)

// Func is a function of the kernel image.
type Func struct {
	Name  string
	Entry uint32 // first instruction
	End   uint32 // first address past the function, 0 if the size is unknown
}

// Line maps the instructions starting at Addr to a source line.
type Line struct {
	Addr uint32
	File string
	Line int
}

const unknownFile = "<unknown>"

// Table is an in-memory symbol table.
type Table struct {
	funcs []Func
	lines []Line
	syms  map[string]uint32
}

// NewTable builds a table from a list of functions, a line table and a set
// of named symbols. Function names are also available through Lookup.
// The arguments are copied.
func NewTable(funcs []Func, lines []Line, syms map[string]uint32) *Table {
	t := &Table{
		funcs: append([]Func(nil), funcs...),
		lines: append([]Line(nil), lines...),
		syms:  make(map[string]uint32, len(syms)+len(funcs)),
	}
	sort.SliceStable(t.funcs, func(i, j int) bool { return t.funcs[i].Entry < t.funcs[j].Entry })
	sort.SliceStable(t.lines, func(i, j int) bool { return t.lines[i].Addr < t.lines[j].Addr })
	for _, fn := range t.funcs {
		t.syms[fn.Name] = fn.Entry
	}
	for name, addr := range syms {
		t.syms[name] = addr
	}
	return t
}

// Resolve implements Resolver.Resolve. The file and line of an address come
// from the closest line table entry at or below the address, within the
// enclosing function. Functions without line information resolve to the
// file "<unknown>" and line 0.
func (t *Table) Resolve(addr uint32) (Info, bool) {
	i := sort.Search(len(t.funcs), func(i int) bool { return t.funcs[i].Entry > addr }) - 1
	if i < 0 {
		return Info{}, false
	}
	fn := t.funcs[i]
	end := uint64(fn.End)
	if fn.End == 0 {
		end = 1 << 32
		if i+1 < len(t.funcs) {
			end = uint64(t.funcs[i+1].Entry)
		}
	}
	if uint64(addr) >= end {
		return Info{}, false
	}

	info := Info{File: unknownFile, Func: fn.Name, FuncAddr: fn.Entry}
	j := sort.Search(len(t.lines), func(j int) bool { return t.lines[j].Addr > addr }) - 1
	if j >= 0 && t.lines[j].Addr >= fn.Entry {
		info.File = t.lines[j].File
		info.Line = t.lines[j].Line
	}
	return info, true
}

// Lookup implements Resolver.Lookup.
func (t *Table) Lookup(name string) (uint32, bool) {
	addr, ok := t.syms[name]
	return addr, ok
}
