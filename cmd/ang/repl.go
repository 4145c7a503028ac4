package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/chazu/angstrom/compiler"
	"github.com/chazu/angstrom/vm"
)

const (
	prompt         = ">> "
	continuePrompt = ".. "
)

// repl holds the state of an interactive session: pending input lines and
// the most recently run unit for :disasm.
type repl struct {
	sess *compiler.Session
	out  io.Writer

	pending   strings.Builder
	lastCode  []vm.Word
	lastEntry int
	units     int
}

func newREPL(sess *compiler.Session, out io.Writer) *repl {
	return &repl{sess: sess, out: out}
}

func runREPL(sess *compiler.Session) {
	cfg := &readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryFile = filepath.Join(home, ".angstrom_history")
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("angstrom REPL (type 'exit' to quit, ':help' for commands)")
	r := newREPL(sess, rl.Stdout())
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.pending.Reset()
			rl.SetPrompt(prompt)
			continue
		}
		if err != nil {
			break
		}
		next, quit := r.feed(line)
		if quit {
			break
		}
		rl.SetPrompt(next)
	}
}

// feed consumes one input line and returns the prompt for the next one.
// Input is accumulated while it ends inside an open block or tuple; a
// blank line forces evaluation of what has been entered.
func (r *repl) feed(line string) (next string, quit bool) {
	trimmed := strings.TrimSpace(line)
	if r.pending.Len() == 0 {
		switch {
		case trimmed == "":
			return prompt, false
		case trimmed == "exit" || trimmed == "quit":
			return prompt, true
		case strings.HasPrefix(trimmed, ":"):
			return prompt, r.command(trimmed)
		}
	}

	if r.pending.Len() > 0 {
		r.pending.WriteByte('\n')
	}
	r.pending.WriteString(line)
	input := r.pending.String()
	if trimmed != "" && incomplete(input) {
		return continuePrompt, false
	}
	r.pending.Reset()
	r.eval(input)
	return prompt, false
}

// incomplete reports whether source stops inside an unclosed block or
// tuple, so more lines may complete it.
func incomplete(source string) bool {
	_, err := compiler.Parse(source, "repl")
	code, ok := compiler.ErrorCodeOf(err)
	return ok && (code == vm.ErrUnclosedBlock || code == vm.ErrUnclosedTuple)
}

func (r *repl) eval(input string) {
	r.units++
	name := fmt.Sprintf("repl:%d", r.units)
	code, entry, err := r.sess.Compile(input, name)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	r.lastCode, r.lastEntry = code, entry

	v, err := r.sess.Execute(code)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	if !v.IsNil() {
		fmt.Fprintln(r.out, r.sess.Format(v))
	}
}

// command runs a REPL meta-command and reports whether to quit.
func (r *repl) command(cmd string) bool {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :disasm           Disassemble the last evaluated input")
		fmt.Fprintln(r.out, "  :disasm all       Disassemble all loaded code")
		fmt.Fprintln(r.out, "  :gc               Collect garbage and show heap statistics")
		fmt.Fprintln(r.out, "  :types            List declared types")
		fmt.Fprintln(r.out, "  :globals          List globals with their types")
		fmt.Fprintln(r.out, "  :profile on|off   Start or stop profiling")
		fmt.Fprintln(r.out, "  :profile          Show the profile")
		fmt.Fprintln(r.out, "  :quit, exit       Exit REPL")
	case ":disasm":
		if len(fields) > 1 && fields[1] == "all" {
			fmt.Fprint(r.out, vm.Disassemble(r.sess.VM().Code(), 0))
			break
		}
		if r.lastCode == nil {
			fmt.Fprintln(r.out, "Nothing evaluated yet")
			break
		}
		fmt.Fprint(r.out, vm.DisassembleWithName(r.lastCode, r.lastEntry, fmt.Sprintf("repl:%d", r.units)))
	case ":gc":
		freed := r.sess.VM().CollectGarbage()
		stats := r.sess.VM().GCStats()
		fmt.Fprintf(r.out, "freed %d, live %d, next collection at %d\n", freed, stats.Live, stats.Threshold)
		fmt.Fprintf(r.out, "%d cycles, %d freed in total, %s paused\n", stats.Cycles, stats.Freed, stats.TotalPause)
	case ":types":
		names := r.sess.Compiler().TypeNames()
		if len(names) == 0 {
			fmt.Fprintln(r.out, "No types declared")
		}
		for _, name := range names {
			t, _ := r.sess.Compiler().LookupType(name)
			fmt.Fprintf(r.out, "type %s :: %s\n", name, t.Underlying)
		}
	case ":globals":
		for _, sym := range r.sess.Compiler().Globals() {
			fmt.Fprintf(r.out, "%4d  %s :: %s\n", sym.Location, sym.Name, sym.Type)
		}
	case ":profile":
		r.profile(fields[1:])
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}

func (r *repl) profile(args []string) {
	m := r.sess.VM()
	if len(args) > 0 {
		switch args[0] {
		case "on":
			m.SetProfiler(vm.NewProfiler())
			fmt.Fprintln(r.out, "Profiling on")
		case "off":
			m.SetProfiler(nil)
			fmt.Fprintln(r.out, "Profiling off")
		default:
			fmt.Fprintf(r.out, "Usage: :profile [on|off]\n")
		}
		return
	}
	if m.Profiler() == nil {
		fmt.Fprintln(r.out, "Profiling is off (:profile on)")
		return
	}
	writeProfile(r.out, m.Profiler())
}

// writeProfile prints aggregate counts and the most called lambdas.
func writeProfile(w io.Writer, p *vm.Profiler) {
	stats := p.Stats()
	fmt.Fprintf(w, "%d instructions, %d calls to %d lambdas (%d hot)\n",
		stats.Instructions, stats.Calls, stats.Lambdas, stats.HotLambdas)
	for _, l := range p.TopLambdas(10) {
		fmt.Fprintf(w, "  %04d  %d calls\n", l.Entry, l.InvocationCount)
	}
}
