package symbols

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/jos-tools/kmon/pkg/logflags"
)

var errNotELF32 = errors.New("kernel image is not a 32-bit ELF file")

// LoadELF reads the symbol table and, if present, the DWARF line table of
// the kernel image at path.
func LoadELF(path string) (*Table, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readELF(f)
}

func readELF(f *elf.File) (*Table, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, errNotELF32
	}
	logger := logflags.SymbolsLogger()

	elfsyms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, fmt.Errorf("could not read symbol table: %v", err)
	}
	var funcs []Func
	syms := make(map[string]uint32)
	for _, sym := range elfsyms {
		if sym.Name == "" || sym.Section == elf.SHN_UNDEF {
			continue
		}
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC:
			fn := Func{Name: sym.Name, Entry: uint32(sym.Value)}
			if sym.Size > 0 {
				fn.End = uint32(sym.Value + sym.Size)
			}
			funcs = append(funcs, fn)
		case elf.STT_NOTYPE, elf.STT_OBJECT:
			syms[sym.Name] = uint32(sym.Value)
		}
	}

	var lines []Line
	dw, err := f.DWARF()
	if err != nil {
		logger.Debugf("no DWARF line information: %v", err)
	} else {
		lines, err = readLines(dw)
		if err != nil {
			return nil, fmt.Errorf("could not read line table: %v", err)
		}
	}

	logger.Debugf("loaded %d functions, %d symbols, %d line entries", len(funcs), len(syms), len(lines))
	return NewTable(funcs, lines, syms), nil
}

func readLines(dw *dwarf.Data) ([]Line, error) {
	var lines []Line
	rdr := dw.Reader()
	for {
		e, err := rdr.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			return lines, nil
		}
		rdr.SkipChildren()
		if e.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := dw.LineReader(e)
		if err != nil {
			return nil, err
		}
		if lr == nil {
			continue
		}
		var le dwarf.LineEntry
		for {
			err := lr.Next(&le)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			if le.EndSequence || le.File == nil {
				continue
			}
			lines = append(lines, Line{Addr: uint32(le.Address), File: le.File.Name, Line: le.Line})
		}
	}
}
