package compiler

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/chazu/angstrom/vm"
)

// registerBuiltins installs the natives every session provides:
//
//	clock()  seconds since the session started
//	time()   seconds since the Unix epoch
//	print(v) writes v and a newline to the VM's output, returns nil
//	len(v)   length of a string, array or tuple
func (s *Session) registerBuiltins() error {
	builtins := []struct {
		name   string
		fn     vm.NativeFunc
		result *vm.Type
	}{
		{"clock", s.nativeClock, s.types.Num},
		{"time", nativeTime, s.types.Num},
		{"print", nativePrint, s.types.Nil},
		{"len", nativeLen, s.types.Num},
	}
	for _, b := range builtins {
		if err := s.RegisterNative(b.name, b.fn, b.result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) nativeClock(_ *vm.VM, _ vm.Value) (vm.Value, error) {
	return vm.Num(time.Since(s.started).Seconds()), nil
}

func nativeTime(_ *vm.VM, arg vm.Value) (vm.Value, error) {
	if !arg.IsNil() {
		return vm.Nil, vm.Faultf(vm.ErrInvalidLambdaParam, "takes no arguments")
	}
	return vm.Num(float64(time.Now().Unix())), nil
}

func nativePrint(m *vm.VM, arg vm.Value) (vm.Value, error) {
	if _, err := fmt.Fprintln(m.Stdout(), m.Format(arg)); err != nil {
		return vm.Nil, err
	}
	return vm.Nil, nil
}

func nativeLen(m *vm.VM, arg vm.Value) (vm.Value, error) {
	if arg.IsRef() {
		h := m.Heap()
		if str, ok := h.String(arg.AsRef()); ok {
			return vm.Num(float64(utf8.RuneCountInString(str))), nil
		}
		if elems, ok := h.Elements(arg.AsRef()); ok {
			return vm.Num(float64(len(elems))), nil
		}
	}
	return vm.Nil, vm.Faultf(vm.ErrInvalidLambdaParam, "cannot take the length of %s", m.TypeOfValue(arg))
}
