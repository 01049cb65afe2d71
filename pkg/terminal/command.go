// Package terminal implements the kernel monitor console: the command
// registry, the tokenizer and dispatcher in front of it, the built-in
// commands and the read-eval-print loop.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/derekparker/trie"

	"github.com/jos-tools/kmon/pkg/logflags"
	"github.com/jos-tools/kmon/pkg/memlayout"
	"github.com/jos-tools/kmon/pkg/proc"
)

// Signal tells the read-eval-print loop whether to keep going after a
// command.
type Signal int

const (
	// Continue prompts for the next command.
	Continue Signal = iota
	// Stop ends the session.
	Stop
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	}
	return "Signal(" + strconv.Itoa(int(s)) + ")"
}

// callContext is the state every command is invoked with. Commands must not
// modify it.
type callContext struct {
	Trapframe *proc.Trapframe
}

// cmdfunc is the signature of a command. args holds the whole command line,
// args[0] being the command name. Returning ExitRequestError ends the
// session, any other error is printed and the session continues.
type cmdfunc func(t *Term, ctx callContext, args []string) error

type command struct {
	aliases        []string
	builtinAliases []string
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the monitor, in the order they are
// looked up and listed by help.
type Commands struct {
	cmds  []command
	names *trie.Trie
}

// DuplicateCommandError is returned when two commands would answer to the
// same name.
type DuplicateCommandError struct {
	Name string
}

func (err *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command name %q is used more than once", err.Name)
}

// DebugCommands returns a Commands struct with the built-in commands.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help"}, cmdFn: c.help, helpMsg: "Display this list of commands"},
		{aliases: []string{"kerninfo"}, cmdFn: kerninfo, helpMsg: "Display information about the kernel"},
		{aliases: []string{"backtrace"}, cmdFn: backtrace, helpMsg: "Display information about the backtrace"},
		{aliases: []string{"showmappings"}, cmdFn: showmappings, helpMsg: "Display memory mappings for a range of virtual addresses"},
		{aliases: []string{"exit"}, cmdFn: exitCommand, helpMsg: "Leave the kernel monitor"},
	}

	if err := c.index(); err != nil {
		panic(err)
	}
	return c
}

// index checks that no name is used twice and rebuilds the completion trie.
func (c *Commands) index() error {
	names := trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			if _, ok := names.Find(alias); ok {
				return &DuplicateCommandError{Name: alias}
			}
			names.Add(alias, nil)
		}
	}
	c.names = names
	return nil
}

// Register adds a command. The name must not be in use already.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) error {
	if c.Find(cmdstr) != nil {
		return &DuplicateCommandError{Name: cmdstr}
	}
	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
	c.names.Add(cmdstr, nil)
	return nil
}

// Find returns the function of the first command answering to cmdstr, or
// nil if there is none.
func (c *Commands) Find(cmdstr string) cmdfunc {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}
	return nil
}

// Call tokenizes cmdstr and dispatches it with the trapped state of the
// terminal's target.
func (c *Commands) Call(cmdstr string, t *Term) Signal {
	return c.CallWithContext(cmdstr, t, callContext{Trapframe: t.target.Trapframe()})
}

// CallWithContext tokenizes cmdstr and dispatches it in the given context.
// A line with too many arguments is reported and not dispatched.
func (c *Commands) CallWithContext(cmdstr string, t *Term, ctx callContext) Signal {
	args, err := tokenize(cmdstr)
	if err != nil {
		fmt.Fprintln(t.stdout, err)
		return Continue
	}
	return c.dispatch(t, ctx, args)
}

func (c *Commands) dispatch(t *Term, ctx callContext, args []string) Signal {
	if len(args) == 0 {
		return Continue
	}
	cmdfn := c.Find(args[0])
	if logflags.Monitor() {
		t.log.WithField("args", args).Debugf("dispatch found=%t", cmdfn != nil)
	}
	if cmdfn == nil {
		fmt.Fprintf(t.stdout, "Unknown command '%s'\n", args[0])
		return Continue
	}
	if err := cmdfn(t, ctx, args); err != nil {
		if _, ok := err.(ExitRequestError); ok {
			return Stop
		}
		fmt.Fprintln(t.stdout, err)
	}
	return Continue
}

// Merge takes aliases defined in the config struct and merges them with the
// default aliases. If an alias clashes with another name the aliases are
// left as they were before the call and the error is returned.
func (c *Commands) Merge(allAliases map[string][]string) error {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
	if err := c.index(); err != nil {
		for i := range c.cmds {
			if c.cmds[i].builtinAliases != nil {
				c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
			}
		}
		c.index()
		return err
	}
	return nil
}

// complete returns the command names starting with line.
func (c *Commands) complete(line string) []string {
	r := c.names.PrefixSearch(strings.ToLower(line))
	sort.Strings(r)
	return r
}

func (c *Commands) help(t *Term, ctx callContext, args []string) error {
	for _, cmd := range c.cmds {
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(t.stdout, "%s (alias: %s) - %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), cmd.helpMsg)
		} else {
			fmt.Fprintf(t.stdout, "%s - %s\n", cmd.aliases[0], cmd.helpMsg)
		}
	}
	return nil
}

var kernelSymbols = [...]string{"_start", "entry", "etext", "edata", "end"}

func kerninfo(t *Term, ctx callContext, args []string) error {
	var addrs [len(kernelSymbols)]uint32
	for i, name := range kernelSymbols {
		addr, ok := t.target.Symbols().Lookup(name)
		if !ok {
			return fmt.Errorf("kernel symbol %s not found", name)
		}
		addrs[i] = addr
	}
	start, entry, etext, edata, end := addrs[0], addrs[1], addrs[2], addrs[3], addrs[4]

	layout := t.target.Layout()
	var phys [len(kernelSymbols)]uint32
	for i := 1; i < len(addrs); i++ {
		pa, err := layout.PADDR(addrs[i])
		if err != nil {
			return fmt.Errorf("kernel symbol %s: %v", kernelSymbols[i], err)
		}
		phys[i] = pa
	}
	if end < entry {
		return fmt.Errorf("kernel symbol end (%#08x) is below entry (%#08x)", end, entry)
	}

	fmt.Fprintf(t.stdout, "Special kernel symbols:\n")
	fmt.Fprintf(t.stdout, "  _start                  %08x (phys)\n", start)
	fmt.Fprintf(t.stdout, "  entry  %08x (virt)  %08x (phys)\n", entry, phys[1])
	fmt.Fprintf(t.stdout, "  etext  %08x (virt)  %08x (phys)\n", etext, phys[2])
	fmt.Fprintf(t.stdout, "  edata  %08x (virt)  %08x (phys)\n", edata, phys[3])
	fmt.Fprintf(t.stdout, "  end    %08x (virt)  %08x (phys)\n", end, phys[4])
	fmt.Fprintf(t.stdout, "Kernel executable memory footprint: %dKB\n", memlayout.RoundUp(end-entry, 1024)/1024)
	return nil
}

func backtrace(t *Term, ctx callContext, args []string) error {
	fmt.Fprintln(t.stdout, "Stack backtrace:")
	it := t.target.Stacktrace()
	for it.Next() {
		fr := it.Frame()
		fmt.Fprintf(t.stdout, "  ebp %08x eip %08x args %08x %08x %08x %08x %08x \n",
			fr.FramePointer, fr.Ret, fr.Args[0], fr.Args[1], fr.Args[2], fr.Args[3], fr.Args[4])
		if info, ok := t.target.Symbols().Resolve(fr.Ret); ok {
			fmt.Fprintf(t.stdout, "\t%s:%d: %s+%d\n", info.File, info.Line, t.highlight(info.Func), fr.Ret-info.FuncAddr)
		}
	}
	if err := it.Err(); err != nil {
		fmt.Fprintf(t.stdout, "error: %v\n", err)
	}
	return nil
}

var errShowmappingsUsage = errors.New("usage: showmappings begin_va end_va")

func parseAddress(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint32(n), nil
}

func showmappings(t *Term, ctx callContext, args []string) error {
	if len(args) != 3 {
		return errShowmappingsUsage
	}
	begin, err := parseAddress(args[1])
	if err != nil {
		return err
	}
	end, err := parseAddress(args[2])
	if err != nil {
		return err
	}
	if begin > end {
		return fmt.Errorf("begin va (0x%x) is greater than end va (0x%x)", begin, end)
	}

	va := memlayout.RoundDown(begin, memlayout.PGSIZE)
	for {
		m, err := t.target.Mapping(va)
		if err != nil {
			return fmt.Errorf("va 0x%x: %v", va, err)
		}
		if !m.Present {
			fmt.Fprintf(t.stdout, "va 0x%x is not mapped\n", va)
		} else {
			fmt.Fprintf(t.stdout, "va 0x%x: 0x%x PTE_P %d PTE_W %d PTE_U %d\n", va, m.PA, pteBit(m.Present), pteBit(m.Writable), pteBit(m.User))
		}
		if end-va < memlayout.PGSIZE {
			break
		}
		va += memlayout.PGSIZE
	}
	return nil
}

func pteBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ExitRequestError is returned when the user
// exits the monitor.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, ctx callContext, args []string) error {
	return ExitRequestError{}
}

// executeFile runs every line of the file at path through the dispatcher.
// Empty lines and lines starting with '#' are skipped. It returns
// ExitRequestError if one of the commands stopped the session.
func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if logflags.Monitor() {
			t.log.WithField("file", name).Debugf("line %d: %s", lineno, line)
		}
		if c.Call(line, t) == Stop {
			return ExitRequestError{}
		}
	}

	return scanner.Err()
}
