package vm

import (
	"errors"
	"fmt"
)

// NativeFunc is a host function callable from the language. It receives the
// single call argument and returns the result value.
type NativeFunc func(vm *VM, arg Value) (Value, error)

type native struct {
	name string
	fn   NativeFunc
}

// Faultf builds a runtime fault for natives to return.
func Faultf(code ErrorCode, format string, args ...interface{}) *RuntimeError {
	return faultf(code, format, args...)
}

// DefineNative registers fn and returns a foreign function value of type t
// that calls it. t must be a foreign function type.
func (vm *VM) DefineNative(name string, t *Type, fn NativeFunc) (Value, error) {
	if t == nil || t.Category != CategoryForeignFunction {
		return Nil, fmt.Errorf("native %s: type %s is not a foreign function type", name, t)
	}
	vm.natives = append(vm.natives, native{name: name, fn: fn})
	return FromRef(vm.heap.AllocNative(t, len(vm.natives)-1)), nil
}

// NativeName returns the name a native was registered under.
func (vm *VM) NativeName(index int) string {
	if index < 0 || index >= len(vm.natives) {
		return ""
	}
	return vm.natives[index].name
}

func (vm *VM) callNative(index int, arg Value) (Value, *RuntimeError) {
	if index < 0 || index >= len(vm.natives) {
		return Nil, faultf(ErrNonLambdaCall, "no native function %d", index)
	}
	n := vm.natives[index]
	result, err := n.fn(vm, arg)
	if err != nil {
		var rt *RuntimeError
		if errors.As(err, &rt) {
			return Nil, &RuntimeError{Code: rt.Code, IP: -1, Message: n.name + ": " + rt.Message}
		}
		return Nil, faultf(ErrTypeError, "%s: %v", n.name, err)
	}
	return result, nil
}
