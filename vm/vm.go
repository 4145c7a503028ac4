package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

// DefaultStackSize is the number of value slots on the execution stack.
const DefaultStackSize = 256

// State is the lifecycle state of a VM run.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Config holds VM construction parameters. Zero fields take defaults.
type Config struct {
	StackSize   int
	GCThreshold int
	Trace       io.Writer // receives one line per executed instruction
	Stdout      io.Writer // output of the print native
}

// VM executes programs against a bounded value stack, a register file, a
// global slot array and a garbage-collected heap.
//
// Code is append-only: each Load adds a unit after the previous ones, so
// closures created by earlier runs keep valid entry addresses.
type VM struct {
	types *TypeRegistry
	heap  *Heap

	code []Word

	stack   []Value
	sp, fp  int
	ip      int
	globals []Value
	regs    [NumRegisters]Value

	state   State
	natives []native

	trace    io.Writer
	stdout   io.Writer
	profiler *Profiler
	log      commonlog.Logger
}

// New creates a VM that resolves runtime types through types.
func New(types *TypeRegistry, cfg Config) *VM {
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	return &VM{
		types:  types,
		heap:   NewHeap(cfg.GCThreshold),
		code:   make([]Word, 0, 1024),
		stack:  make([]Value, cfg.StackSize),
		trace:  cfg.Trace,
		stdout: cfg.Stdout,
		log:    commonlog.GetLogger("angstrom.vm"),
	}
}

// Types returns the type registry the VM resolves runtime types through.
func (vm *VM) Types() *TypeRegistry { return vm.types }

// Heap returns the VM's heap.
func (vm *VM) Heap() *Heap { return vm.heap }

// State returns the lifecycle state of the current or last run.
func (vm *VM) State() State { return vm.state }

// SetTrace sets or clears the instruction trace writer.
func (vm *VM) SetTrace(w io.Writer) { vm.trace = w }

// SetProfiler attaches a profiler; nil detaches it.
func (vm *VM) SetProfiler(p *Profiler) { vm.profiler = p }

// Profiler returns the attached profiler, or nil.
func (vm *VM) Profiler() *Profiler { return vm.profiler }

// Stdout returns the writer natives print to.
func (vm *VM) Stdout() io.Writer { return vm.stdout }

// Load validates code and appends it to the program. It returns the address
// of the first loaded word. Jump and closure addresses in code must already
// be absolute.
func (vm *VM) Load(code []Word) (int, error) {
	if err := Validate(code); err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	base := len(vm.code)
	vm.code = append(vm.code, code...)
	return base, nil
}

// CodeLen returns the address the next Load will start at.
func (vm *VM) CodeLen() int { return len(vm.code) }

// Code returns the loaded program.
func (vm *VM) Code() []Word { return vm.code }

// TruncateCode discards loaded code at and after addr.
func (vm *VM) TruncateCode(addr int) {
	if addr >= 0 && addr < len(vm.code) {
		vm.code = vm.code[:addr]
	}
}

// EnsureGlobals grows the global slot array to at least n slots.
func (vm *VM) EnsureGlobals(n int) {
	for len(vm.globals) < n {
		vm.globals = append(vm.globals, Nil)
	}
}

// NumGlobals returns the number of global slots.
func (vm *VM) NumGlobals() int { return len(vm.globals) }

// Global returns the value in global slot i.
func (vm *VM) Global(i int) Value {
	if i < 0 || i >= len(vm.globals) {
		return Nil
	}
	return vm.globals[i]
}

// SetGlobal stores v in global slot i, growing the array if needed.
func (vm *VM) SetGlobal(i int, v Value) {
	vm.EnsureGlobals(i + 1)
	vm.globals[i] = v
}

// Register returns the contents of register r.
func (vm *VM) Register(r Register) Value {
	if r < 0 || int(r) >= NumRegisters {
		return Nil
	}
	return vm.regs[r]
}

// Stack returns the live portion of the stack.
func (vm *VM) Stack() []Value { return vm.stack[:vm.sp] }

// Result returns the value on top of the stack after a run.
func (vm *VM) Result() (Value, bool) {
	if vm.sp == 0 {
		return Nil, false
	}
	return vm.stack[vm.sp-1], true
}

// Pop removes and returns the value on top of the stack.
func (vm *VM) Pop() (Value, bool) {
	if vm.sp == 0 {
		return Nil, false
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Nil
	return v, true
}

// Run executes from entry until HALT or a fault. The stack is reset before
// the run; globals, registers and the heap carry over from earlier runs.
func (vm *VM) Run(entry int) error {
	for i := 0; i < vm.sp; i++ {
		vm.stack[i] = Nil
	}
	vm.sp, vm.fp, vm.ip = 0, 0, entry
	vm.state = StateRunning

	for vm.state == StateRunning {
		if vm.heap.Pending() {
			vm.CollectGarbage()
		}
		if err := vm.step(); err != nil {
			vm.state = StateHalted
			vm.log.Errorf("%s", err.Error())
			return err
		}
	}
	return nil
}

// CollectGarbage runs a full collection with the stack, globals and
// registers as roots.
func (vm *VM) CollectGarbage() int {
	return vm.heap.Collect(vm.stack[:vm.sp], vm.globals, vm.regs[:])
}

// GCStats returns collector statistics.
func (vm *VM) GCStats() GCStats { return vm.heap.Stats() }

// TypeOfValue returns the runtime type of v.
func (vm *VM) TypeOfValue(v Value) *Type {
	switch v.Kind() {
	case KindNum:
		return vm.types.Num
	case KindBool:
		return vm.types.Bool
	case KindRef:
		if t := vm.heap.TypeOf(v.AsRef()); t != nil {
			return t
		}
	}
	return vm.types.Nil
}

// NewString allocates a string value.
func (vm *VM) NewString(s string) Value {
	return FromRef(vm.heap.AllocString(vm.types.String, s))
}

// NewArray allocates an array value of type t.
func (vm *VM) NewArray(t *Type, elems []Value) Value {
	return FromRef(vm.heap.AllocElements(t, elems))
}
