package proc

// PushRegs are the general purpose registers saved by pushal.
type PushRegs struct {
	Edi  uint32 `yaml:"edi"`
	Esi  uint32 `yaml:"esi"`
	Ebp  uint32 `yaml:"ebp"`
	Oesp uint32 `yaml:"oesp"` // useless
	Ebx  uint32 `yaml:"ebx"`
	Edx  uint32 `yaml:"edx"`
	Ecx  uint32 `yaml:"ecx"`
	Eax  uint32 `yaml:"eax"`
}

// Trapframe is the machine state saved when the kernel trapped into the
// monitor. It is handed to every command unmodified.
type Trapframe struct {
	Regs   PushRegs `yaml:"regs"`
	Es     uint16   `yaml:"es"`
	Ds     uint16   `yaml:"ds"`
	Trapno uint32   `yaml:"trapno"`
	// below here defined by x86 hardware
	Err    uint32 `yaml:"err"`
	Eip    uint32 `yaml:"eip"`
	Cs     uint16 `yaml:"cs"`
	Eflags uint32 `yaml:"eflags"`
	// below here only when crossing rings, such as from user to kernel
	Esp uint32 `yaml:"esp"`
	Ss  uint16 `yaml:"ss"`
}
