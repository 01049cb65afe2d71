package cmds

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jos-tools/kmon/pkg/config"
	"github.com/jos-tools/kmon/pkg/logflags"
	"github.com/jos-tools/kmon/pkg/memlayout"
	"github.com/jos-tools/kmon/pkg/proc"
	"github.com/jos-tools/kmon/pkg/symbols"
	"github.com/jos-tools/kmon/pkg/terminal"
	"github.com/jos-tools/kmon/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string

	// opts describes the machine to inspect.
	opts targetOptions

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const kmonCommandLongDesc = `kmon is the kernel monitor of a 32-bit x86 teaching kernel.

kmon inspects a machine captured while its kernel was trapped: a raw image of
its physical memory (for example written by QEMU's pmemsave command), the kernel
image it was running and the contents of %ebp and %cr3. It offers the monitor
commands of the kernel's console: help, kerninfo, backtrace and showmappings.

The machine is described either with flags or with a YAML file:

	memory: mem.bin
	kernel: obj/kern/kernel
	registers:
	  ebp: 0xf0116f58
	  cr3: 0x00117000
	trapframe:
	  trapno: 3
	  eip: 0xf0100bd2

Flags override the values of the machine file.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main kmon root command.
	rootCommand = &cobra.Command{
		Use:   "kmon",
		Short: "kmon is a kernel monitor for captured JOS machines.",
		Long:  kmonCommandLongDesc,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.ebpSet = cmd.Flags().Changed("ebp")
			opts.cr3Set = cmd.Flags().Changed("cr3")
			os.Exit(execute(opts, conf))
		},
	}

	rootCommand.SetGlobalNormalizationFunc(normalizeFlagName)

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'kmon help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'kmon help log').")

	rootCommand.Flags().StringVar(&opts.machine, "machine", "", "Machine description file.")
	rootCommand.Flags().StringVar(&opts.memory, "memory", "", "Raw physical memory image.")
	rootCommand.Flags().StringVar(&opts.kernel, "kernel", "", "Kernel ELF image, used for symbols.")
	rootCommand.Flags().Uint32Var(&opts.ebp, "ebp", 0, "Frame pointer where backtraces start.")
	rootCommand.Flags().Uint32Var(&opts.cr3, "cr3", 0, "Physical address of the active page directory.")
	rootCommand.Flags().StringVar(&initFile, "init", "", "Init file, executed by the monitor before the first prompt.")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kmon kernel monitor\n%s\n", version.KmonVersion)
			if log {
				fmt.Println(version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	monitor		Log command dispatch (default)
	pmap		Log page table lookups
	symbols		Log kernel symbol loading
	memory		Log memory image loading

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// normalizeFlagName accepts underscores in flag names, --log_output is
// --log-output.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func execute(opts targetOptions, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	target, err := opts.load(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer target.Close()

	term := terminal.New(target, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}

// targetOptions are the command line options describing the machine.
type targetOptions struct {
	machine string
	memory  string
	kernel  string
	ebp     uint32
	cr3     uint32
	ebpSet  bool
	cr3Set  bool
}

var errNoMemoryImage = errors.New("no memory image, use --memory or --machine")

// load opens the machine described by the options.
func (o targetOptions) load(conf *config.Config) (*proc.Target, error) {
	var m config.Machine
	if o.machine != "" {
		mm, err := config.LoadMachine(o.machine)
		if err != nil {
			return nil, err
		}
		m = *mm
	}
	if o.memory != "" {
		m.Memory = o.memory
	}
	if o.kernel != "" {
		m.Kernel = o.kernel
	}
	switch {
	case o.ebpSet:
		m.Registers.Ebp = o.ebp
	case m.Registers.Ebp == 0 && m.Trapframe != nil:
		m.Registers.Ebp = m.Trapframe.Regs.Ebp
	}
	if o.cr3Set {
		m.Registers.Cr3 = o.cr3
	}
	if m.Memory == "" {
		return nil, errNoMemoryImage
	}

	var syms symbols.Resolver
	if m.Kernel != "" {
		table, err := symbols.LoadELF(m.Kernel)
		if err != nil {
			return nil, fmt.Errorf("could not load kernel symbols from %s: %v", m.Kernel, err)
		}
		cached, err := symbols.NewCached(table, conf.SymbolCacheSize)
		if err != nil {
			return nil, err
		}
		syms = cached
	}

	mem, err := proc.OpenDump(m.Memory)
	if err != nil {
		return nil, fmt.Errorf("could not open memory image: %v", err)
	}
	target, err := proc.NewTarget(proc.NewTargetConfig{
		Phys:      mem,
		Registers: m.Registers,
		Trapframe: m.Trapframe,
		Symbols:   syms,
		Layout:    memlayout.Layout{KernBase: conf.KernBase},
	})
	if err != nil {
		mem.Close()
		return nil, err
	}
	return target, nil
}
