package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble returns a human-readable listing of code. Addresses are
// printed relative to base.
func Disassemble(code []Word, base int) string {
	return DisassembleWithName(code, base, "")
}

// DisassembleWithName returns a listing with a name header.
func DisassembleWithName(code []Word, base int, name string) string {
	var sb strings.Builder
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	for i := 0; i < len(code); {
		line, n := FormatInstruction(code, i)
		sb.WriteString(fmt.Sprintf("%04d  %s\n", base+i, line))
		if n == 0 {
			break
		}
		i += n
	}
	return sb.String()
}

// FormatInstruction renders the instruction at offset and returns it with
// the instruction's length in words.
func FormatInstruction(code []Word, offset int) (string, int) {
	if offset >= len(code) {
		return "<end of code>", 0
	}
	w := code[offset]
	if w.Kind != WordOp {
		return fmt.Sprintf("<stray %s word>", w.Kind), 1
	}
	info := GetOpcodeInfo(w.Op)
	n := 1 + len(info.Operands)
	if offset+n > len(code) {
		return info.Name + " <truncated>", len(code) - offset
	}

	parts := []string{info.Name}
	for _, op := range code[offset+1 : offset+n] {
		parts = append(parts, formatOperand(w.Op, op))
	}
	return strings.Join(parts, " "), n
}

func formatOperand(op Opcode, w Word) string {
	switch w.Kind {
	case WordValue:
		return formatImmediate(w.Value)
	case WordString:
		return strconv.Quote(w.Str)
	case WordType:
		return w.Type.String()
	case WordInt:
		switch op {
		case OpRLoad, OpRStore, OpRSwap, OpRMove:
			return w.Register().String()
		case OpJmp, OpJmpF, OpClosure:
			return fmt.Sprintf("@%04d", w.Int)
		}
		return strconv.Itoa(w.Int)
	default:
		return "?"
	}
}

func formatImmediate(v Value) string {
	switch v.Kind() {
	case KindNil:
		return "nil"
	case KindNum:
		return formatNum(v.AsNum())
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	default:
		return v.AsRef().String()
	}
}
