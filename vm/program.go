package vm

import "fmt"

// WordKind tags a program word.
type WordKind uint8

const (
	WordOp WordKind = iota
	WordInt
	WordValue
	WordType
	WordString
)

func (k WordKind) String() string {
	switch k {
	case WordOp:
		return "op"
	case WordInt:
		return "int"
	case WordValue:
		return "value"
	case WordType:
		return "type"
	case WordString:
		return "string"
	default:
		return fmt.Sprintf("WordKind(%d)", k)
	}
}

// Word is one slot of a program: an opcode or one of its operands.
type Word struct {
	Kind  WordKind
	Op    Opcode
	Int   int
	Value Value
	Type  *Type
	Str   string
}

// OpWord, IntWord, ValueWord, TypeWord and StringWord construct program words.
func OpWord(op Opcode) Word        { return Word{Kind: WordOp, Op: op} }
func IntWord(n int) Word           { return Word{Kind: WordInt, Int: n} }
func ValueWord(v Value) Word       { return Word{Kind: WordValue, Value: v} }
func TypeWord(t *Type) Word        { return Word{Kind: WordType, Type: t} }
func StringWord(s string) Word     { return Word{Kind: WordString, Str: s} }
func RegWord(r Register) Word      { return IntWord(int(r)) }
func (w Word) Register() Register  { return Register(w.Int) }
func (w Word) IsOp(op Opcode) bool { return w.Kind == WordOp && w.Op == op }

// Builder accumulates a program. Addresses returned by a Builder are
// absolute: they include the base offset at which the code will be loaded.
type Builder struct {
	base int
	code []Word
}

// NewBuilder creates a builder whose first word will live at address base.
func NewBuilder(base int) *Builder {
	return &Builder{base: base, code: make([]Word, 0, 64)}
}

// Base returns the load address of the first word.
func (b *Builder) Base() int { return b.base }

// Here returns the address of the next word to be emitted.
func (b *Builder) Here() int { return b.base + len(b.code) }

// Code returns the emitted words.
func (b *Builder) Code() []Word { return b.code }

// Len returns the number of emitted words.
func (b *Builder) Len() int { return len(b.code) }

// Emit appends an instruction and returns its address. The operands must
// match the opcode's operand kinds.
func (b *Builder) Emit(op Opcode, operands ...Word) int {
	info := GetOpcodeInfo(op)
	if len(operands) != len(info.Operands) {
		panic(fmt.Sprintf("vm: %s takes %d operands, got %d", info.Name, len(info.Operands), len(operands)))
	}
	for i, w := range operands {
		if w.Kind != info.Operands[i] {
			panic(fmt.Sprintf("vm: %s operand %d is %s, want %s", info.Name, i, w.Kind, info.Operands[i]))
		}
	}
	addr := b.Here()
	b.code = append(b.code, OpWord(op))
	b.code = append(b.code, operands...)
	return addr
}

// EmitInt emits an instruction with integer operands.
func (b *Builder) EmitInt(op Opcode, operands ...int) int {
	words := make([]Word, len(operands))
	for i, n := range operands {
		words[i] = IntWord(n)
	}
	return b.Emit(op, words...)
}

// EmitPush emits PUSH v.
func (b *Builder) EmitPush(v Value) int {
	return b.Emit(OpPush, ValueWord(v))
}

// EmitJump emits a jump with a placeholder target and returns the address of
// the placeholder for later patching.
func (b *Builder) EmitJump(op Opcode) int {
	return b.Emit(op, IntWord(-1)) + 1
}

// PatchJump points the jump placeholder at the current position.
func (b *Builder) PatchJump(placeholder int) {
	b.PatchJumpTo(placeholder, b.Here())
}

// PatchJumpTo points the jump placeholder at target.
func (b *Builder) PatchJumpTo(placeholder, target int) {
	b.code[placeholder-b.base].Int = target
}

// Truncate discards every word at or after addr.
func (b *Builder) Truncate(addr int) {
	if i := addr - b.base; i >= 0 && i < len(b.code) {
		b.code = b.code[:i]
	}
}

// Validate checks that code is a well-formed instruction stream: every
// opcode is known and is followed by operands of the right kinds.
func Validate(code []Word) error {
	for i := 0; i < len(code); {
		w := code[i]
		if w.Kind != WordOp || !w.Op.IsValid() {
			return &RuntimeError{Code: ErrUnknownOpcode, IP: i, Message: fmt.Sprintf("expected opcode, found %s word", w.Kind)}
		}
		info := GetOpcodeInfo(w.Op)
		for j, kind := range info.Operands {
			k := i + 1 + j
			if k >= len(code) || code[k].Kind != kind {
				return &RuntimeError{Code: ErrUnknownOpcode, IP: i, Message: fmt.Sprintf("%s: missing %s operand", info.Name, kind)}
			}
		}
		i += 1 + len(info.Operands)
	}
	return nil
}
