package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// step fetches, traces and executes one instruction. A non-nil result is a
// fault; the caller halts the machine.
func (vm *VM) step() (err *RuntimeError) {
	at := vm.ip
	defer func() {
		if err != nil && err.IP < 0 {
			err.IP = at
		}
	}()

	if at < 0 || at >= len(vm.code) {
		return faultf(ErrUnknownOpcode, "instruction pointer out of range")
	}
	w := vm.code[at]
	if w.Kind != WordOp || !w.Op.IsValid() {
		return faultf(ErrUnknownOpcode, "not an opcode: %s word", w.Kind)
	}
	if vm.trace != nil {
		vm.traceInstruction(at)
	}
	if vm.profiler != nil {
		vm.profiler.recordOp(w.Op)
	}
	vm.ip = at + w.Op.InstructionLen()
	ops := vm.code[at+1 : vm.ip]

	switch w.Op {
	// Stack manipulation
	case OpHalt:
		vm.state = StateHalted
		return nil
	case OpPush:
		return vm.push(ops[0].Value)
	case OpStr:
		return vm.push(vm.NewString(ops[0].Str))
	case OpPop:
		_, err := vm.pop()
		return err
	case OpPopN:
		n := ops[0].Int
		if n < 0 || n > vm.sp {
			return faultf(ErrStackUnderflow, "POPN %d with %d values on the stack", n, vm.sp)
		}
		for i := 0; i < n; i++ {
			vm.sp--
			vm.stack[vm.sp] = Nil
		}
		return nil
	case OpDup:
		v, err := vm.peek()
		if err != nil {
			return err
		}
		return vm.push(v)

	// Integer arithmetic
	case OpAddI, OpSubI, OpMulI, OpDivI:
		a, b, err := vm.popNums()
		if err != nil {
			return err
		}
		x, y := Num(a).AsInt(), Num(b).AsInt()
		var r int32
		switch w.Op {
		case OpAddI:
			r = x + y
		case OpSubI:
			r = x - y
		case OpMulI:
			r = x * y
		case OpDivI:
			if y == 0 {
				return faultf(ErrTypeError, "integer division by zero")
			}
			r = x / y
		}
		return vm.push(Num(float64(r)))

	// Float arithmetic
	case OpAddF, OpSubF, OpMulF, OpDivF:
		a, b, err := vm.popNums()
		if err != nil {
			return err
		}
		var r float64
		switch w.Op {
		case OpAddF:
			r = a + b
		case OpSubF:
			r = a - b
		case OpMulF:
			r = a * b
		case OpDivF:
			r = a / b
		}
		return vm.push(Num(r))
	case OpNegF:
		a, err := vm.popNum()
		if err != nil {
			return err
		}
		return vm.push(Num(-a))

	// Tests
	case OpIsNeg, OpIsZero, OpIsPos:
		a, err := vm.popNum()
		if err != nil {
			return err
		}
		switch w.Op {
		case OpIsNeg:
			return vm.push(Bool(a < 0))
		case OpIsZero:
			return vm.push(Bool(a == 0))
		default:
			return vm.push(Bool(a > 0))
		}
	case OpEq:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(Bool(vm.heap.Equal(a, b)))
	case OpNot:
		v, err := vm.popBool()
		if err != nil {
			return err
		}
		return vm.push(Bool(!v))

	// Control flow
	case OpJmp:
		return vm.jump(ops[0].Int)
	case OpJmpF:
		v, err := vm.popBool()
		if err != nil {
			return err
		}
		if !v {
			return vm.jump(ops[0].Int)
		}
		return nil
	case OpCall:
		return vm.call()
	case OpRet:
		return vm.ret()

	// Storage
	case OpGLoad:
		return vm.push(vm.Global(ops[0].Int))
	case OpGStore:
		v, err := vm.peek()
		if err != nil {
			return err
		}
		if ops[0].Int < 0 {
			return faultf(ErrUndeclaredVariable, "global slot %d", ops[0].Int)
		}
		vm.SetGlobal(ops[0].Int, v)
		return nil
	case OpLoad:
		i, err := vm.local(ops[0].Int)
		if err != nil {
			return err
		}
		return vm.push(vm.stack[i])
	case OpStore:
		i, err := vm.local(ops[0].Int)
		if err != nil {
			return err
		}
		v, err := vm.peek()
		if err != nil {
			return err
		}
		vm.stack[i] = v
		return nil
	case OpRLoad:
		r, err := register(ops[0])
		if err != nil {
			return err
		}
		return vm.push(vm.regs[r])
	case OpRStore:
		r, err := register(ops[0])
		if err != nil {
			return err
		}
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.regs[r] = v
		return nil
	case OpRSwap, OpRMove:
		r1, err := register(ops[0])
		if err != nil {
			return err
		}
		r2, err := register(ops[1])
		if err != nil {
			return err
		}
		if w.Op == OpRSwap {
			vm.regs[r1], vm.regs[r2] = vm.regs[r2], vm.regs[r1]
		} else {
			vm.regs[r1] = vm.regs[r2]
		}
		return nil

	// Composite values
	case OpTuple, OpArray:
		n := ops[1].Int
		if n < 0 || n > vm.sp {
			return faultf(ErrStackUnderflow, "%s of %d elements with %d values on the stack", w.Op, n, vm.sp)
		}
		elems := make([]Value, n)
		for i := 0; i < n; i++ {
			elems[i], _ = vm.pop()
		}
		return vm.push(FromRef(vm.heap.AllocElements(ops[0].Type, elems)))
	case OpTIndex, OpAIndex:
		idx, err := vm.popNum()
		if err != nil {
			return err
		}
		elems, err := vm.popElements()
		if err != nil {
			return err
		}
		i, err := checkIndex(idx, len(elems))
		if err != nil {
			return err
		}
		return vm.push(elems[i])
	case OpTSet, OpASet:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		idx, err := vm.popNum()
		if err != nil {
			return err
		}
		elems, err := vm.popElements()
		if err != nil {
			return err
		}
		i, err := checkIndex(idx, len(elems))
		if err != nil {
			return err
		}
		elems[i] = v
		return vm.push(v)
	case OpClosure:
		env := vm.stack[vm.fp:vm.sp]
		return vm.push(FromRef(vm.heap.AllocClosure(ops[0].Type, ops[1].Int, env)))
	case OpCmpType, OpCmpStruct:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		actual := vm.TypeOfValue(v)
		if w.Op == OpCmpType {
			return vm.push(Bool(Equal(ops[0].Type, actual)))
		}
		return vm.push(Bool(StructurallyEqual(ops[0].Type, actual)))
	}

	return faultf(ErrUnknownOpcode, "unhandled opcode %s", w.Op)
}

// ---------------------------------------------------------------------------
// Call convention
// ---------------------------------------------------------------------------

// call pops the argument into A and the callee. Closures get a frame:
// saved fp and ip are pushed, fp moves to the stack top and the captured
// environment is copied above it. Natives run directly.
func (vm *VM) call() *RuntimeError {
	arg, err := vm.pop()
	if err != nil {
		return err
	}
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	if !callee.IsRef() {
		return faultf(ErrNonLambdaCall, "cannot call %s", callee.Kind())
	}
	r := callee.AsRef()
	kind, ok := vm.heap.Kind(r)
	if !ok {
		return faultf(ErrNonLambdaCall, "callee %s has been freed", r)
	}
	switch kind {
	case ObjClosure:
		entry, env, _ := vm.heap.Closure(r)
		if vm.profiler != nil {
			vm.profiler.recordCall(entry)
		}
		vm.regs[RegA] = arg
		if err := vm.push(Num(float64(vm.fp))); err != nil {
			return err
		}
		if err := vm.push(Num(float64(vm.ip))); err != nil {
			return err
		}
		vm.fp = vm.sp
		for _, v := range env {
			if err := vm.push(v); err != nil {
				return err
			}
		}
		return vm.jump(entry)
	case ObjNative:
		idx, _ := vm.heap.Native(r)
		result, err := vm.callNative(idx, arg)
		if err != nil {
			return err
		}
		return vm.push(result)
	default:
		return faultf(ErrNonLambdaCall, "cannot call %s", vm.heap.TypeOf(r))
	}
}

// ret unwinds the current frame and pushes the return value for the caller.
func (vm *VM) ret() *RuntimeError {
	rv, err := vm.pop()
	if err != nil {
		return err
	}
	vm.regs[RegRV] = rv
	if vm.fp < 2 {
		return faultf(ErrStackUnderflow, "RET outside of a call frame")
	}
	for i := vm.fp; i < vm.sp; i++ {
		vm.stack[i] = Nil
	}
	vm.sp = vm.fp
	ip, _ := vm.pop()
	fp, _ := vm.pop()
	vm.ip = int(ip.AsNum())
	vm.fp = int(fp.AsNum())
	return vm.push(rv)
}

func (vm *VM) jump(addr int) *RuntimeError {
	if addr < 0 || addr >= len(vm.code) {
		return faultf(ErrUnknownOpcode, "jump target %04d out of range", addr)
	}
	vm.ip = addr
	return nil
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) *RuntimeError {
	if vm.sp >= len(vm.stack) {
		return faultf(ErrStackOverflow, "stack size %d exceeded", len(vm.stack))
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() (Value, *RuntimeError) {
	if vm.sp == 0 {
		return Nil, faultf(ErrStackUnderflow, "pop from empty stack")
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Nil
	return v, nil
}

func (vm *VM) peek() (Value, *RuntimeError) {
	if vm.sp == 0 {
		return Nil, faultf(ErrStackUnderflow, "read from empty stack")
	}
	return vm.stack[vm.sp-1], nil
}

func (vm *VM) popNum() (float64, *RuntimeError) {
	v, err := vm.pop()
	if err != nil {
		return 0, err
	}
	if !v.IsNum() {
		return 0, faultf(ErrTypeError, "expected a number, got %s", v.Kind())
	}
	return v.AsNum(), nil
}

// popNums pops b then a for an "a op b" instruction.
func (vm *VM) popNums() (a, b float64, err *RuntimeError) {
	if b, err = vm.popNum(); err != nil {
		return 0, 0, err
	}
	if a, err = vm.popNum(); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (vm *VM) popBool() (bool, *RuntimeError) {
	v, err := vm.pop()
	if err != nil {
		return false, err
	}
	if !v.IsBool() {
		return false, faultf(ErrTypeError, "expected a boolean, got %s", v.Kind())
	}
	return v.AsBool(), nil
}

func (vm *VM) popElements() ([]Value, *RuntimeError) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	if !v.IsRef() {
		return nil, faultf(ErrTypeError, "expected a product or array, got %s", v.Kind())
	}
	elems, ok := vm.heap.Elements(v.AsRef())
	if !ok {
		return nil, faultf(ErrTypeError, "expected a product or array, got %s", vm.heap.TypeOf(v.AsRef()))
	}
	return elems, nil
}

func (vm *VM) local(slot int) (int, *RuntimeError) {
	i := vm.fp + slot
	if slot < 0 || i >= vm.sp {
		return 0, faultf(ErrStackUnderflow, "local slot %d not on the stack", slot)
	}
	return i, nil
}

func register(w Word) (Register, *RuntimeError) {
	r := w.Register()
	if r < 0 || int(r) >= NumRegisters {
		return 0, faultf(ErrUnknownOpcode, "no register %d", w.Int)
	}
	return r, nil
}

func checkIndex(idx float64, n int) (int, *RuntimeError) {
	if math.IsNaN(idx) || idx < 0 || idx >= float64(n) {
		return 0, faultf(ErrArrOutOfBounds, "index %s out of range [0, %d)", formatNum(idx), n)
	}
	return int(idx), nil
}

func (vm *VM) traceInstruction(at int) {
	line, _ := FormatInstruction(vm.code, at)
	fmt.Fprintf(vm.trace, "%04d  %-28s sp=%d fp=%d %s\n", at, line, vm.sp, vm.fp, vm.formatStack())
}
