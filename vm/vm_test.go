package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// run loads the builder's code into a fresh VM and runs it from the start.
func run(t *testing.T, r *TypeRegistry, b *Builder, cfg Config) (*VM, error) {
	t.Helper()
	m := New(r, cfg)
	base, err := m.Load(b.Code())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m, m.Run(base)
}

func mustResult(t *testing.T, m *VM, err error) Value {
	t.Helper()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	v, ok := m.Result()
	if !ok {
		t.Fatalf("empty stack after run")
	}
	return v
}

func faultCode(t *testing.T, err error) ErrorCode {
	t.Helper()
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("err = %v, want *RuntimeError", err)
	}
	return rt.Code
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		op   Opcode
		want float64
	}{
		{"addf", 3, 4.5, OpAddF, 7.5},
		{"subf", 3, 4, OpSubF, -1},
		{"mulf", 3, 4, OpMulF, 12},
		{"divf", 3, 4, OpDivF, 0.75},
		{"addi", 3.9, 4.9, OpAddI, 7},
		{"subi", 10, 2.5, OpSubI, 8},
		{"muli", 2.5, 3, OpMulI, 6},
		{"divi", 7, 2, OpDivI, 3},
		{"divi negative", -7, 2, OpDivI, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTypeRegistry()
			b := NewBuilder(0)
			b.EmitPush(Num(tt.a))
			b.EmitPush(Num(tt.b))
			b.Emit(tt.op)
			b.Emit(OpHalt)
			m, err := run(t, r, b, Config{})
			if got := mustResult(t, m, err); got.AsNum() != tt.want {
				t.Errorf("result = %v, want %v", got.AsNum(), tt.want)
			}
		})
	}
}

func TestSignTests(t *testing.T) {
	tests := []struct {
		op   Opcode
		in   float64
		want bool
	}{
		{OpIsNeg, -1, true},
		{OpIsNeg, 0, false},
		{OpIsZero, 0, true},
		{OpIsZero, 2, false},
		{OpIsPos, 2, true},
		{OpIsPos, -2, false},
	}
	for _, tt := range tests {
		r := NewTypeRegistry()
		b := NewBuilder(0)
		b.EmitPush(Num(tt.in))
		b.Emit(tt.op)
		b.Emit(OpNot)
		b.Emit(OpHalt)
		m, err := run(t, r, b, Config{})
		if got := mustResult(t, m, err); got.AsBool() == tt.want {
			t.Errorf("NOT %s(%v) = %v, want %v", tt.op, tt.in, got.AsBool(), !tt.want)
		}
	}
}

func TestHaltStates(t *testing.T) {
	r := NewTypeRegistry()
	m := New(r, Config{})
	if m.State() != StateReady {
		t.Errorf("State = %s, want ready", m.State())
	}
	b := NewBuilder(0)
	b.Emit(OpHalt)
	base, _ := m.Load(b.Code())
	if err := m.Run(base); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.State() != StateHalted {
		t.Errorf("State = %s, want halted", m.State())
	}
}

func TestFaults(t *testing.T) {
	r := NewTypeRegistry()
	tests := []struct {
		name  string
		build func(b *Builder)
		cfg   Config
		want  ErrorCode
	}{
		{"underflow", func(b *Builder) { b.Emit(OpAddF) }, Config{}, ErrStackUnderflow},
		{"overflow", func(b *Builder) {
			for i := 0; i < 5; i++ {
				b.EmitPush(Nil)
			}
		}, Config{StackSize: 4}, ErrStackOverflow},
		{"out of bounds", func(b *Builder) {
			b.EmitPush(Num(1))
			b.EmitPush(Num(2))
			b.Emit(OpArray, TypeWord(r.Array(r.Num)), IntWord(2))
			b.EmitPush(Num(2))
			b.Emit(OpAIndex)
		}, Config{}, ErrArrOutOfBounds},
		{"negative index", func(b *Builder) {
			b.EmitPush(Num(1))
			b.Emit(OpTuple, TypeWord(r.Tuple(r.Num)), IntWord(1))
			b.EmitPush(Num(-1))
			b.Emit(OpTIndex)
		}, Config{}, ErrArrOutOfBounds},
		{"call a number", func(b *Builder) {
			b.EmitPush(Num(1))
			b.EmitPush(Num(2))
			b.Emit(OpCall)
		}, Config{}, ErrNonLambdaCall},
		{"call a string", func(b *Builder) {
			b.Emit(OpStr, StringWord("f"))
			b.EmitPush(Nil)
			b.Emit(OpCall)
		}, Config{}, ErrNonLambdaCall},
		{"add a bool", func(b *Builder) {
			b.EmitPush(True)
			b.EmitPush(Num(1))
			b.Emit(OpAddF)
		}, Config{}, ErrTypeError},
		{"ret at top level", func(b *Builder) {
			b.EmitPush(Num(1))
			b.Emit(OpRet)
		}, Config{}, ErrStackUnderflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(0)
			tt.build(b)
			b.Emit(OpHalt)
			m, err := run(t, r, b, tt.cfg)
			if got := faultCode(t, err); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
			if m.State() != StateHalted {
				t.Errorf("State = %s, want halted", m.State())
			}
		})
	}
}

func TestFaultReportsAddress(t *testing.T) {
	r := NewTypeRegistry()
	b := NewBuilder(0)
	b.EmitPush(Num(1))
	at := b.Emit(OpAddF)
	b.Emit(OpHalt)
	_, err := run(t, r, b, Config{})
	var rt *RuntimeError
	if !errors.As(err, &rt) || rt.IP != at {
		t.Fatalf("err = %v, want fault at %04d", err, at)
	}
	if !strings.Contains(err.Error(), "STACK_UNDERFLOW") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTupleConstructionAndIndex(t *testing.T) {
	r := NewTypeRegistry()
	b := NewBuilder(0)
	// Elements are pushed in reverse; the first pop is element 0.
	b.EmitPush(Num(20))
	b.EmitPush(Num(10))
	b.Emit(OpTuple, TypeWord(r.Tuple(r.Num, r.Num)), IntWord(2))
	b.Emit(OpDup)
	b.EmitPush(Num(1))
	b.Emit(OpTIndex)
	b.Emit(OpRStore, RegWord(RegC))
	b.EmitPush(Num(0))
	b.Emit(OpTIndex)
	b.Emit(OpRLoad, RegWord(RegC))
	b.Emit(OpSubF)
	b.Emit(OpHalt)
	m, err := run(t, r, b, Config{})
	if got := mustResult(t, m, err); got.AsNum() != -10 {
		t.Errorf("result = %v, want -10", got.AsNum())
	}
}

func TestTupleSet(t *testing.T) {
	r := NewTypeRegistry()
	b := NewBuilder(0)
	b.EmitPush(Num(2))
	b.EmitPush(Num(1))
	b.Emit(OpTuple, TypeWord(r.Tuple(r.Num, r.Num)), IntWord(2))
	b.Emit(OpGStore, IntWord(0))
	b.EmitPush(Num(0))
	b.EmitPush(Num(9))
	b.Emit(OpTSet)
	b.Emit(OpPop)
	b.Emit(OpHalt)
	m, err := run(t, r, b, Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.Format(m.Global(0)); got != "(9.0, 2.0)" {
		t.Errorf("global = %s, want (9.0, 2.0)", got)
	}
}

func TestRegisters(t *testing.T) {
	r := NewTypeRegistry()
	b := NewBuilder(0)
	b.EmitPush(Num(1))
	b.Emit(OpRStore, RegWord(RegA))
	b.EmitPush(Num(2))
	b.Emit(OpRStore, RegWord(RegB))
	b.Emit(OpRSwap, RegWord(RegA), RegWord(RegB))
	b.Emit(OpRMove, RegWord(RegD), RegWord(RegA))
	b.Emit(OpHalt)
	m, err := run(t, r, b, Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Register(RegA).AsNum() != 2 || m.Register(RegB).AsNum() != 1 || m.Register(RegD).AsNum() != 2 {
		t.Errorf("A, B, D = %v, %v, %v", m.Register(RegA), m.Register(RegB), m.Register(RegD))
	}
}

func TestJumps(t *testing.T) {
	r := NewTypeRegistry()
	b := NewBuilder(0)
	b.EmitPush(False)
	skip := b.EmitJump(OpJmpF)
	b.EmitPush(Num(1))
	b.Emit(OpHalt)
	b.PatchJump(skip)
	b.EmitPush(Num(2))
	b.Emit(OpHalt)
	m, err := run(t, r, b, Config{})
	if got := mustResult(t, m, err); got.AsNum() != 2 {
		t.Errorf("result = %v, want 2", got.AsNum())
	}
}

// closureProgram builds "(fn(x) => x + k)(arg)" where k is captured from
// the defining frame.
func closureProgram(r *TypeRegistry, k, arg float64) *Builder {
	fn := r.Function(r.Num, r.Num)
	b := NewBuilder(0)
	b.EmitPush(Num(k)) // captured local 0
	over := b.EmitJump(OpJmp)
	entry := b.Here()
	b.Emit(OpRLoad, RegWord(RegA))
	b.EmitInt(OpLoad, 0)
	b.Emit(OpAddF)
	b.Emit(OpRet)
	b.PatchJump(over)
	b.Emit(OpClosure, TypeWord(fn), IntWord(entry))
	b.EmitPush(Num(arg))
	b.Emit(OpCall)
	b.Emit(OpHalt)
	return b
}

func TestCallAndReturn(t *testing.T) {
	r := NewTypeRegistry()
	m, err := run(t, r, closureProgram(r, 100, 5), Config{})
	if got := mustResult(t, m, err); got.AsNum() != 105 {
		t.Errorf("result = %v, want 105", got.AsNum())
	}
	// Captured k, then the call result.
	if len(m.Stack()) != 2 {
		t.Errorf("stack = %d values after call, want 2", len(m.Stack()))
	}
	if m.Register(RegRV).AsNum() != 105 {
		t.Errorf("RV = %v, want 105", m.Register(RegRV))
	}
}

func TestNativeCall(t *testing.T) {
	r := NewTypeRegistry()
	m := New(r, Config{})
	double, err := m.DefineNative("double", r.Foreign(r.Num), func(_ *VM, arg Value) (Value, error) {
		if !arg.IsNum() {
			return Nil, Faultf(ErrInvalidLambdaParam, "expected a number")
		}
		return Num(arg.AsNum() * 2), nil
	})
	if err != nil {
		t.Fatalf("DefineNative: %v", err)
	}
	m.SetGlobal(0, double)

	b := NewBuilder(0)
	b.EmitInt(OpGLoad, 0)
	b.EmitPush(Num(21))
	b.Emit(OpCall)
	b.Emit(OpHalt)
	base, _ := m.Load(b.Code())
	if got := mustResult(t, m, m.Run(base)); got.AsNum() != 42 {
		t.Errorf("result = %v, want 42", got.AsNum())
	}

	b = NewBuilder(m.CodeLen())
	b.EmitInt(OpGLoad, 0)
	b.EmitPush(Nil)
	b.Emit(OpCall)
	b.Emit(OpHalt)
	base, _ = m.Load(b.Code())
	if got := faultCode(t, m.Run(base)); got != ErrInvalidLambdaParam {
		t.Errorf("code = %s, want INVALID_LAMBDA_PARAM", got)
	}
}

func TestDefineNativeRequiresForeignType(t *testing.T) {
	r := NewTypeRegistry()
	m := New(r, Config{})
	if _, err := m.DefineNative("f", r.Function(r.Num, r.Num), nil); err == nil {
		t.Errorf("DefineNative accepted a lambda type")
	}
}

func TestCompareType(t *testing.T) {
	r := NewTypeRegistry()
	xy := r.Product([]string{"x", "y"}, []*Type{r.Num, r.Num})
	ab := r.Product([]string{"a", "b"}, []*Type{r.Num, r.Num})

	tests := []struct {
		name string
		op   Opcode
		want bool
	}{
		{"nominal", OpCmpType, false},
		{"structural", OpCmpStruct, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(0)
			b.EmitPush(Num(2))
			b.EmitPush(Num(1))
			b.Emit(OpTuple, TypeWord(ab), IntWord(2))
			b.Emit(tt.op, TypeWord(xy))
			b.Emit(OpHalt)
			m, err := run(t, r, b, Config{})
			if got := mustResult(t, m, err); got.AsBool() != tt.want {
				t.Errorf("result = %v, want %v", got.AsBool(), tt.want)
			}
		})
	}
}

func TestCollectionDuringRun(t *testing.T) {
	r := NewTypeRegistry()
	b := NewBuilder(0)
	b.Emit(OpStr, StringWord("kept"))
	b.Emit(OpGStore, IntWord(0))
	b.Emit(OpPop)
	for i := 0; i < 100; i++ {
		b.Emit(OpStr, StringWord("garbage"))
		b.Emit(OpPop)
	}
	b.Emit(OpHalt)
	m, err := run(t, r, b, Config{GCThreshold: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	stats := m.GCStats()
	if stats.Cycles == 0 {
		t.Fatalf("no collection ran")
	}
	if m.Heap().Len() > 10 {
		t.Errorf("heap holds %d objects, want at most 10", m.Heap().Len())
	}
	if s, ok := m.Heap().String(m.Global(0).AsRef()); !ok || s != "kept" {
		t.Errorf("global string = %q, %v, want kept", s, ok)
	}
}

func TestTrace(t *testing.T) {
	r := NewTypeRegistry()
	var buf bytes.Buffer
	b := NewBuilder(0)
	b.EmitPush(Num(1))
	b.EmitPush(Num(2))
	b.Emit(OpAddF)
	b.Emit(OpHalt)
	if _, err := run(t, r, b, Config{Trace: &buf}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("trace has %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "ADDF") || !strings.Contains(lines[2], "[1.0 2.0]") {
		t.Errorf("trace line = %q", lines[2])
	}
}

func TestFormat(t *testing.T) {
	r := NewTypeRegistry()
	m := New(r, Config{})
	h := m.Heap()
	rec := r.Product([]string{"x", "y"}, []*Type{r.Num, r.String})

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"integral", Num(11), "11.0"},
		{"fraction", Num(0.5), "0.5"},
		{"negative", Num(-3), "-3.0"},
		{"bool", True, "true"},
		{"nil", Nil, "nil"},
		{"string", m.NewString("hi"), "hi"},
		{"tuple", FromRef(h.AllocElements(r.Tuple(r.Num, r.Bool), []Value{Num(1), False})), "(1.0, false)"},
		{"record", FromRef(h.AllocElements(rec, []Value{Num(1), m.NewString("a")})), `(x: 1.0, y: "a")`},
		{"array", m.NewArray(r.Array(r.Num), []Value{Num(1), Num(2)}), "[1.0, 2.0]"},
		{"closure", FromRef(h.AllocClosure(r.Function(r.Num, r.Num), 0, nil)), "<fn Num=>Num>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Format(tt.v); got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}
