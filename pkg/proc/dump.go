package proc

import (
	"errors"
	"fmt"
	"os"

	"github.com/jos-tools/kmon/pkg/logflags"
)

// DumpMemory is the physical memory of a machine read from a raw memory
// image, such as the one written by QEMU's pmemsave monitor command.
// Physical address 0 is at offset 0 of the file.
type DumpMemory struct {
	path  string
	data  []byte
	unmap func([]byte) error
}

var errEmptyDump = errors.New("memory dump is empty")

// OpenDump maps the memory image at path.
func OpenDump(path string) (*DumpMemory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, errEmptyDump
	}
	data, unmap, err := mapFile(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("could not map %s: %v", path, err)
	}
	logflags.MemoryLogger().WithField("path", path).Debugf("loaded %d bytes of physical memory", len(data))
	return &DumpMemory{path: path, data: data, unmap: unmap}, nil
}

// Size returns the size of the memory image in bytes.
func (m *DumpMemory) Size() uint64 {
	return uint64(len(m.data))
}

// ReadMemory implements MemoryReader.ReadMemory.
func (m *DumpMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	size := uint64(len(m.data))
	if addr > size || uint64(len(buf)) > size-addr {
		return 0, &OutOfBoundsError{Addr: addr, Size: size}
	}
	return copy(buf, m.data[addr:]), nil
}

// WriteMemory always fails, memory images are inspected read only.
func (m *DumpMemory) WriteMemory(addr uint64, data []byte) (int, error) {
	return 0, ErrReadOnly
}

// Close releases the memory image.
func (m *DumpMemory) Close() error {
	if m.data == nil {
		return nil
	}
	err := m.unmap(m.data)
	m.data = nil
	return err
}
