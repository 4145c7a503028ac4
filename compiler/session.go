package compiler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/angstrom/vm"
)

// Options configures a Session.
type Options struct {
	VM vm.Config

	// NoBuiltins skips registering clock, time, print and len.
	NoBuiltins bool
}

// Session owns a type registry, a compiler and a VM that share state across
// compilation units: globals, declared types and loaded code persist from
// one CompileAndRun to the next.
type Session struct {
	ID string

	types    *vm.TypeRegistry
	compiler *Compiler
	machine  *vm.VM
	natives  []string
	started  time.Time
	log      commonlog.Logger
}

// NewSession creates a session, registering the built-in natives unless
// opts.NoBuiltins is set.
func NewSession(opts Options) *Session {
	types := vm.NewTypeRegistry()
	s := &Session{
		ID:       uuid.NewString(),
		types:    types,
		compiler: NewCompiler(types),
		machine:  vm.New(types, opts.VM),
		started:  time.Now(),
		log:      commonlog.GetLogger("angstrom.compiler"),
	}
	if !opts.NoBuiltins {
		if err := s.registerBuiltins(); err != nil {
			panic(err)
		}
	}
	s.log.Debugf("session %s started", s.ID)
	return s
}

// VM returns the session's virtual machine.
func (s *Session) VM() *vm.VM { return s.machine }

// Types returns the session's type registry.
func (s *Session) Types() *vm.TypeRegistry { return s.types }

// Compiler returns the session's compiler.
func (s *Session) Compiler() *Compiler { return s.compiler }

// Natives returns the names of the registered natives in global slot order.
func (s *Session) Natives() []string { return s.natives }

// RegisterNative installs a host function as an immutable global named
// name. Its type is the foreign function type returning result.
func (s *Session) RegisterNative(name string, fn vm.NativeFunc, result *vm.Type) error {
	t := s.types.Foreign(result)
	sym, err := s.compiler.DeclareGlobal(name, t, false)
	if err != nil {
		return fmt.Errorf("register native %s: %w", name, err)
	}
	v, err := s.machine.DefineNative(name, t, fn)
	if err != nil {
		return fmt.Errorf("register native %s: %w", name, err)
	}
	s.machine.SetGlobal(sym.Location, v)
	s.natives = append(s.natives, name)
	return nil
}

// Compile parses and compiles source without loading it. The returned code
// starts at entry, the address the next load will use.
func (s *Session) Compile(source, name string) (code []vm.Word, entry int, err error) {
	prog, err := Parse(source, name)
	if err != nil {
		return nil, 0, err
	}
	return s.CompileProgram(prog)
}

// CompileProgram compiles an already parsed program.
func (s *Session) CompileProgram(prog *Program) (code []vm.Word, entry int, err error) {
	entry = s.machine.CodeLen()
	code, err = s.compiler.Compile(prog, entry)
	if err != nil {
		return nil, 0, err
	}
	return code, entry, nil
}

// CompileAndRun compiles source, runs it and returns the value it leaves on
// the stack. A unit that fails to compile or faults at run time declares
// nothing: later units cannot see its globals or types.
func (s *Session) CompileAndRun(source, name string) (vm.Value, error) {
	code, _, err := s.Compile(source, name)
	if err != nil {
		return vm.Nil, err
	}
	return s.Execute(code)
}

// Execute loads and runs code produced by the latest Compile or
// CompileProgram. On a runtime fault the unit's declarations are discarded.
func (s *Session) Execute(code []vm.Word) (vm.Value, error) {
	v, err := s.run(code, 0, s.compiler.NumGlobals())
	if err != nil {
		s.compiler.Discard()
	}
	return v, err
}

// run loads code and runs it from offset words into it.
func (s *Session) run(code []vm.Word, offset, globals int) (vm.Value, error) {
	base, err := s.machine.Load(code)
	if err != nil {
		return vm.Nil, err
	}
	s.machine.EnsureGlobals(globals)
	if err := s.machine.Run(base + offset); err != nil {
		return vm.Nil, err
	}
	v, _ := s.machine.Pop()
	return v, nil
}

// Format renders a value produced by this session.
func (s *Session) Format(v vm.Value) string {
	return s.machine.Format(v)
}

// Image compiles source into a loadable program image. The image records
// the natives it was compiled against.
func (s *Session) Image(source, name string) (*vm.Image, error) {
	prog, err := Parse(source, name)
	if err != nil {
		return nil, err
	}
	return s.ImageProgram(prog)
}

// ImageProgram compiles an already parsed program into an image.
func (s *Session) ImageProgram(prog *Program) (*vm.Image, error) {
	code, entry, err := s.CompileProgram(prog)
	if err != nil {
		return nil, err
	}
	img, err := vm.NewImage(prog.Name, s.types, code, entry, entry, s.compiler.NumGlobals(), s.natives)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", prog.Name, err)
	}
	return img, nil
}

// RunImage installs an image into the session and runs it. The session must
// provide the natives the image was compiled against, in the same order,
// and no other globals.
func (s *Session) RunImage(img *vm.Image) (vm.Value, error) {
	if len(img.Natives) != len(s.natives) || s.compiler.NumGlobals() != len(s.natives) {
		return vm.Nil, fmt.Errorf("image %s: compiled against natives %v, session has %v", img.Name, img.Natives, s.natives)
	}
	for i, name := range img.Natives {
		if s.natives[i] != name {
			return vm.Nil, fmt.Errorf("image %s: native slot %d is %s, session has %s", img.Name, i, name, s.natives[i])
		}
	}
	base := s.machine.CodeLen()
	code, entry, err := img.Install(s.types, base)
	if err != nil {
		return vm.Nil, fmt.Errorf("image %s: %w", img.Name, err)
	}
	s.log.Debugf("running image %s (build %s)", img.Name, img.BuildID)
	return s.run(code, entry-base, img.Globals)
}

// Check parses and compiles source in a fresh session without running it.
// The returned program carries resolved types even when err is non-nil for
// the nodes compiled before the first error.
func Check(source, name string) (*Program, error) {
	prog, err := Parse(source, name)
	if err != nil {
		return nil, err
	}
	s := NewSession(Options{})
	if _, _, err := s.CompileProgram(prog); err != nil {
		return prog, err
	}
	return prog, nil
}
