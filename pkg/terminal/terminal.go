package terminal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-delve/liner"
	"github.com/mattn/go-isatty"

	"github.com/jos-tools/kmon/pkg/config"
	"github.com/jos-tools/kmon/pkg/logflags"
	"github.com/jos-tools/kmon/pkg/proc"
)

const (
	historyFile                 string = "history"
	defaultPrompt               string = "K> "
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"

	ansiCyan = 36
)

// console is the line editor the terminal reads commands from.
// Prompt returns liner.ErrPromptAborted when the user aborts the line and
// io.EOF when no more input will come.
type console interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// historyConsole is implemented by consoles able to persist their history.
type historyConsole interface {
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
}

// Term represents the kernel monitor console.
type Term struct {
	target   *proc.Target
	conf     *config.Config
	prompt   string
	line     console
	cmds     *Commands
	stdout   io.Writer
	colorize bool
	log      logflags.Logger
	InitFile string
}

// New returns a new Term reading from the process' terminal.
func New(target *proc.Target, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}

	colorize := conf.Color &&
		strings.ToLower(os.Getenv("TERM")) != "dumb" &&
		isatty.IsTerminal(os.Stdout.Fd())

	var w io.Writer = os.Stdout
	if colorize {
		w = getColorableWriter(os.Stdout)
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	t := newTerm(target, conf, line, w)
	t.colorize = colorize
	line.SetCompleter(t.cmds.complete)
	return t
}

func newTerm(target *proc.Target, conf *config.Config, line console, stdout io.Writer) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	cmds := DebugCommands()
	if conf.Aliases != nil {
		if err := cmds.Merge(conf.Aliases); err != nil {
			fmt.Fprintf(os.Stderr, "Ignoring configured aliases: %v\n", err)
		}
	}
	prompt := conf.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	return &Term{
		target: target,
		conf:   conf,
		prompt: prompt,
		line:   line,
		cmds:   cmds,
		stdout: stdout,
		log:    logflags.MonitorLogger(),
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run begins running the monitor in the terminal. It returns when a command
// stops the session or the input ends.
func (t *Term) Run() (int, error) {
	defer t.Close()

	t.loadHistory()

	fmt.Fprintln(t.stdout, "Welcome to the JOS kernel monitor!")
	fmt.Fprintln(t.stdout, "Type 'help' for a list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		if t.cmds.Call(cmdstr, t) == Stop {
			return t.handleExit()
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if strings.TrimLeft(l, whitespace) != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) historyConsole() (historyConsole, string, bool) {
	h, ok := t.line.(historyConsole)
	if !ok || !t.conf.HistoryEnabled() {
		return nil, "", false
	}
	path, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
		return nil, "", false
	}
	return h, path, true
}

func (t *Term) loadHistory() {
	h, path, ok := t.historyConsole()
	if !ok {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Printf("Unable to open history file: %v. History will not be loaded for this session.\n", err)
		}
		return
	}
	h.ReadHistory(f)
	f.Close()
}

func (t *Term) handleExit() (int, error) {
	h, path, ok := t.historyConsole()
	if !ok {
		return 0, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Println("Unable to create history directory:", err)
		return 0, nil
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Println("Unable to open history file:", err)
		return 0, nil
	}
	if _, err := h.WriteHistory(f); err != nil {
		fmt.Println("readline history error:", err)
	}
	f.Close()
	return 0, nil
}

// highlight returns s wrapped in colour escapes when the output supports
// them.
func (t *Term) highlight(s string) string {
	if !t.colorize {
		return s
	}
	return fmt.Sprintf(terminalHighlightEscapeCode, ansiCyan) + s + terminalResetEscapeCode
}
