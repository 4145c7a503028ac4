package vm

import "math"

// Kind discriminates the variants of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindNum
	KindBool
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindNum:
		return "num"
	case KindBool:
		return "bool"
	case KindRef:
		return "ref"
	default:
		return "invalid"
	}
}

// Value is a tagged union of a number, a boolean, nil or a heap reference.
//
// Values are small and passed by copy. Heap references are handles into the
// VM's Heap; they are only meaningful for the heap that produced them.
type Value struct {
	kind Kind
	num  float64
	ref  Ref
}

// Nil is the nil value. The zero Value is also nil.
var Nil = Value{}

// True and False are the boolean values.
var (
	True  = Value{kind: KindBool, num: 1}
	False = Value{kind: KindBool}
)

// Num wraps a float64.
func Num(f float64) Value {
	return Value{kind: KindNum, num: f}
}

// Bool wraps a bool.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromRef wraps a heap handle.
func FromRef(r Ref) Value {
	return Value{kind: KindRef, ref: r}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool  { return v.kind == KindNil }
func (v Value) IsNum() bool  { return v.kind == KindNum }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) IsRef() bool  { return v.kind == KindRef }

// AsNum returns the numeric payload. Non-numbers yield 0.
func (v Value) AsNum() float64 {
	if v.kind != KindNum {
		return 0
	}
	return v.num
}

// AsInt truncates the numeric payload to an int32, the way the integer
// opcodes see their operands.
func (v Value) AsInt() int32 {
	f := v.AsNum()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(f)
}

// AsBool returns the boolean payload. Non-booleans yield false.
func (v Value) AsBool() bool {
	return v.kind == KindBool && v.num != 0
}

// AsRef returns the heap handle. Non-references yield the zero Ref.
func (v Value) AsRef() Ref {
	if v.kind != KindRef {
		return Ref{}
	}
	return v.ref
}

// Identical reports whether two values are the same immediate or the same
// heap handle. It does not look inside heap objects; see Heap.Equal.
func (v Value) Identical(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindRef:
		return v.ref == o.ref
	default:
		return v.num == o.num
	}
}
