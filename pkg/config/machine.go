package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/jos-tools/kmon/pkg/proc"
)

// Machine describes a captured machine: its physical memory image, the
// kernel it was running and its register state when it trapped.
//
//	memory: mem.bin
//	kernel: obj/kern/kernel
//	registers:
//	  ebp: 0xf0116f58
//	  cr3: 0x00117000
//	trapframe:
//	  trapno: 3
//	  eip: 0xf0100bd2
type Machine struct {
	// Memory is the path of the raw physical memory image.
	Memory string `yaml:"memory"`
	// Kernel is the path of the kernel ELF image, used for symbols.
	Kernel string `yaml:"kernel"`
	// Registers are the frame pointer and page directory base.
	Registers proc.Registers `yaml:"registers"`
	// Trapframe is the trapped execution state, if any.
	Trapframe *proc.Trapframe `yaml:"trapframe"`
}

// LoadMachine reads a machine description. Relative paths inside it are
// interpreted relative to the directory containing the description.
func LoadMachine(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Machine
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("could not decode machine description %s: %v", path, err)
	}
	dir := filepath.Dir(path)
	m.Memory = resolvePath(dir, m.Memory)
	m.Kernel = resolvePath(dir, m.Kernel)
	return &m, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
