// Package symbols maps kernel instruction addresses to source locations
// and function names.
package symbols

// Info is the debugging information known about an instruction address.
type Info struct {
	File     string // source file containing the address
	Line     int    // source line number, 0 if unknown
	Func     string // name of the function containing the address
	FuncAddr uint32 // start address of the function
}

// Resolver looks up kernel symbols.
type Resolver interface {
	// Resolve returns the debugging information for addr. ok is false when
	// addr is not inside any known function.
	Resolve(addr uint32) (info Info, ok bool)
	// Lookup returns the value of the named symbol.
	Lookup(name string) (addr uint32, ok bool)
}

type empty struct{}

func (empty) Resolve(uint32) (Info, bool)  { return Info{}, false }
func (empty) Lookup(string) (uint32, bool) { return 0, false }

// Empty is a Resolver that knows no symbols.
var Empty Resolver = empty{}
