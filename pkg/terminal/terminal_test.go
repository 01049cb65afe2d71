package terminal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/go-delve/liner"
	"github.com/sebdah/goldie/v2"

	"github.com/jos-tools/kmon/pkg/config"
	"github.com/jos-tools/kmon/pkg/proc"
)

// ctrlC in a script makes the console abort the prompt.
const ctrlC = "\x03"

// scriptedConsole feeds lines from a script and echoes the prompt and every
// line to out, producing the transcript a user would see. It reports
// io.EOF once the script is exhausted.
type scriptedConsole struct {
	out     io.Writer
	script  []string
	prompts int
	history []string
	closed  bool
}

func (c *scriptedConsole) Prompt(prompt string) (string, error) {
	c.prompts++
	fmt.Fprint(c.out, prompt)
	if len(c.script) == 0 {
		return "", io.EOF
	}
	l := c.script[0]
	c.script = c.script[1:]
	if l == ctrlC {
		fmt.Fprintln(c.out, "^C")
		return "", liner.ErrPromptAborted
	}
	fmt.Fprintln(c.out, l)
	return l, nil
}

func (c *scriptedConsole) AppendHistory(item string) {
	c.history = append(c.history, item)
}

func (c *scriptedConsole) Close() error {
	c.closed = true
	return nil
}

// historyScriptedConsole is a scriptedConsole that persists its history
// one line per entry.
type historyScriptedConsole struct {
	*scriptedConsole
}

func (c historyScriptedConsole) ReadHistory(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	c.history = append(lines, c.history...)
	return len(lines), nil
}

func (c historyScriptedConsole) WriteHistory(w io.Writer) (int, error) {
	for i, l := range c.history {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return i, err
		}
	}
	return len(c.history), nil
}

func runScript(t *testing.T, conf *config.Config, initFile string, script ...string) (string, *scriptedConsole) {
	t.Helper()
	out := new(bytes.Buffer)
	cons := &scriptedConsole{out: out, script: script}
	runConsole(t, conf, initFile, cons, cons)
	return out.String(), cons
}

func runConsole(t *testing.T, conf *config.Config, initFile string, line console, cons *scriptedConsole) {
	t.Helper()
	m, fp := testMachine()
	target := m.Target(fp, proc.NewTargetConfig{Symbols: testSymbols()})
	term := newTerm(target, conf, line, cons.out)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil || status != 0 {
		t.Fatalf("Run returned %d, %v", status, err)
	}
	if !cons.closed {
		t.Fatal("console not closed")
	}
}

func TestSessionTranscript(t *testing.T) {
	out, cons := runScript(t, nil, "",
		"help",
		"",
		"kerninfo",
		"backtrace",
		"showmappings 0x1000 0x3000",
		"showmappings 0x3000 0x1000",
		"showmappings 0x1000",
		"showmappings 0x1000 zz",
		"frobnicate",
		"a b c d e f g h i j k l m n o p",
		ctrlC,
		"exit",
		"help",
	)

	g := goldie.New(t)
	g.Assert(t, "session", []byte(out))

	if len(cons.script) != 1 {
		t.Fatalf("session did not stop at exit, %d lines left", len(cons.script))
	}
	if len(cons.history) != 10 || cons.history[0] != "help" || cons.history[9] != "exit" {
		t.Fatalf("unexpected history %q", cons.history)
	}
}

func TestSessionEndOfInput(t *testing.T) {
	out, cons := runScript(t, nil, "", "showmappings 0x1000 0x1000")
	want := "Welcome to the JOS kernel monitor!\n" +
		"Type 'help' for a list of commands.\n" +
		"K> showmappings 0x1000 0x1000\n" +
		"va 0x1000: 0x20000 PTE_P 1 PTE_W 1 PTE_U 1\n" +
		"K> exit\n"
	if out != want {
		t.Fatalf("expected\n%q\ngot\n%q", want, out)
	}
	if cons.prompts != 2 {
		t.Fatalf("expected 2 prompts, got %d", cons.prompts)
	}
}

func TestSessionAbortedPrompts(t *testing.T) {
	_, cons := runScript(t, nil, "", ctrlC, ctrlC, ctrlC, "exit")
	if cons.prompts != 4 {
		t.Fatalf("expected 4 prompts, got %d", cons.prompts)
	}
	if len(cons.history) != 1 {
		t.Fatalf("aborted lines recorded in history: %q", cons.history)
	}
}

func TestSessionConfig(t *testing.T) {
	conf := &config.Config{
		Prompt:  "kmon> ",
		Aliases: map[string][]string{"backtrace": {"bt"}, "exit": {"quit", "q"}},
	}
	out, _ := runScript(t, conf, "", "bt", "q")

	g := goldie.New(t)
	g.Assert(t, "config", []byte(out))
}

func TestSessionInitFile(t *testing.T) {
	dir := t.TempDir()

	stop := filepath.Join(dir, "stop")
	if err := os.WriteFile(stop, []byte("# inspect and leave\nshowmappings 0x3000 0x3000\nexit\nhelp\n"), 0600); err != nil {
		t.Fatal(err)
	}
	out, cons := runScript(t, nil, stop, "help")
	want := "Welcome to the JOS kernel monitor!\n" +
		"Type 'help' for a list of commands.\n" +
		"va 0x3000: 0x21000 PTE_P 1 PTE_W 0 PTE_U 0\n"
	if out != want {
		t.Fatalf("expected\n%q\ngot\n%q", want, out)
	}
	if cons.prompts != 0 {
		t.Fatalf("prompted after init file stopped the session")
	}

	out, cons = runScript(t, nil, filepath.Join(dir, "missing"), "exit")
	if !strings.HasSuffix(out, "K> exit\n") || cons.prompts != 1 {
		t.Fatalf("missing init file must not end the session: %q", out)
	}
}

func TestSessionHistory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("home directory is not taken from $HOME")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".kmon", historyFile)

	session := func(conf *config.Config, script ...string) *scriptedConsole {
		cons := &scriptedConsole{out: new(bytes.Buffer), script: script}
		runConsole(t, conf, "", historyScriptedConsole{cons}, cons)
		return cons
	}
	readHistory := func() string {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	// no history file yet, it is created on exit
	cons := session(nil, "kerninfo", "", "exit")
	if len(cons.history) != 2 {
		t.Fatalf("unexpected history %q", cons.history)
	}
	if got := readHistory(); got != "kerninfo\nexit\n" {
		t.Fatalf("unexpected history file %q", got)
	}

	// the next session starts from the saved history, end of input saves too
	cons = session(nil, "backtrace")
	want := []string{"kerninfo", "exit", "backtrace"}
	if !reflect.DeepEqual(cons.history, want) {
		t.Fatalf("expected history %q, got %q", want, cons.history)
	}
	if got := readHistory(); got != "kerninfo\nexit\nbacktrace\n" {
		t.Fatalf("unexpected history file %q", got)
	}

	// disabled history neither loads nor saves
	off := false
	cons = session(&config.Config{History: &off}, "help", "exit")
	if !reflect.DeepEqual(cons.history, []string{"help", "exit"}) {
		t.Fatalf("history loaded while disabled: %q", cons.history)
	}
	if got := readHistory(); got != "kerninfo\nexit\nbacktrace\n" {
		t.Fatalf("history saved while disabled: %q", got)
	}
}
