package vm

import "fmt"

// Opcode represents a VM instruction.
// Opcodes are grouped by category; each one is followed in the program by a
// fixed number of operand words.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpHalt Opcode = 0x00 // Stop the machine
	OpPush Opcode = 0x01 // Push constant: PUSH <value>
	OpStr  Opcode = 0x02 // Allocate and push a string: STR <string>
	OpPop  Opcode = 0x03 // Pop top of stack
	OpPopN Opcode = 0x04 // Pop n values: POPN <n>
	OpDup  Opcode = 0x05 // Duplicate top of stack

	// ========================================================================
	// Integer arithmetic (0x10-0x1F)
	// ========================================================================

	OpAddI Opcode = 0x10 // Pop two, push int32 sum
	OpSubI Opcode = 0x11 // Pop two, push int32 difference (a - b where b is TOS)
	OpMulI Opcode = 0x12 // Pop two, push int32 product
	OpDivI Opcode = 0x13 // Pop two, push truncated int32 quotient

	// ========================================================================
	// Float arithmetic (0x20-0x2F)
	// ========================================================================

	OpAddF Opcode = 0x20 // Pop two, push sum
	OpSubF Opcode = 0x21 // Pop two, push difference (a - b where b is TOS)
	OpMulF Opcode = 0x22 // Pop two, push product
	OpDivF Opcode = 0x23 // Pop two, push quotient
	OpNegF Opcode = 0x24 // Negate top of stack

	// ========================================================================
	// Tests (0x30-0x3F)
	// ========================================================================

	OpIsNeg  Opcode = 0x30 // Replace TOS with TOS < 0
	OpIsZero Opcode = 0x31 // Replace TOS with TOS == 0
	OpIsPos  Opcode = 0x32 // Replace TOS with TOS > 0
	OpEq     Opcode = 0x33 // Pop two, push structural value equality
	OpNot    Opcode = 0x34 // Logical NOT

	// ========================================================================
	// Control flow (0x40-0x4F)
	// ========================================================================

	OpJmp  Opcode = 0x40 // Unconditional jump: JMP <addr>
	OpJmpF Opcode = 0x41 // Pop, jump if false: JMPF <addr>
	OpCall Opcode = 0x42 // Pop argument and callee, enter callee
	OpRet  Opcode = 0x43 // Return TOS to caller

	// ========================================================================
	// Storage (0x50-0x5F)
	// ========================================================================

	OpGLoad  Opcode = 0x50 // Push global: GLOAD <slot>
	OpGStore Opcode = 0x51 // Store TOS to global without popping: GSTORE <slot>
	OpLoad   Opcode = 0x52 // Push local relative to fp: LOAD <slot>
	OpStore  Opcode = 0x53 // Store TOS to local without popping: STORE <slot>
	OpRLoad  Opcode = 0x54 // Push register: RLOAD <reg>
	OpRStore Opcode = 0x55 // Pop into register: RSTORE <reg>
	OpRSwap  Opcode = 0x56 // Swap two registers: RSWAP <reg> <reg>
	OpRMove  Opcode = 0x57 // Copy register: RMOVE <dst> <src>

	// ========================================================================
	// Composite values (0x60-0x6F)
	// ========================================================================

	OpTuple     Opcode = 0x60 // Pop n elements, push product: TUPLE <type> <n>
	OpTIndex    Opcode = 0x61 // Pop index and product, push field
	OpTSet      Opcode = 0x62 // Pop value, index and product, store field, push value
	OpArray     Opcode = 0x63 // Pop n elements, push array: ARRAY <type> <n>
	OpAIndex    Opcode = 0x64 // Pop index and array, push element
	OpASet      Opcode = 0x65 // Pop value, index and array, store element, push value
	OpClosure   Opcode = 0x66 // Capture stack[fp:sp], push closure: CLOSURE <type> <entry>
	OpCmpType   Opcode = 0x67 // Push whether TOS has the nominal type: CMPTYPE <type>
	OpCmpStruct Opcode = 0x68 // Push whether TOS has the structural type: CMPSTRUCT <type>
)

// Register names one of the VM's registers.
type Register int

const (
	RegA Register = iota
	RegB
	RegC
	RegD
	RegRV

	NumRegisters = 5
)

var registerNames = [...]string{"A", "B", "C", "D", "RV"}

func (r Register) String() string {
	if r >= 0 && int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("R%d", int(r))
}

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string     // Human-readable name
	StackPop  int        // How many values popped from stack (-1 = variable)
	StackPush int        // How many values pushed to stack
	Operands  []WordKind // Kinds of the operand words following the opcode
}

var (
	noOperands = []WordKind(nil)
	oneInt     = []WordKind{WordInt}
	twoInts    = []WordKind{WordInt, WordInt}
	typeAndInt = []WordKind{WordType, WordInt}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpHalt: {"HALT", 0, 0, noOperands},
	OpPush: {"PUSH", 0, 1, []WordKind{WordValue}},
	OpStr:  {"STR", 0, 1, []WordKind{WordString}},
	OpPop:  {"POP", 1, 0, noOperands},
	OpPopN: {"POPN", -1, 0, oneInt},
	OpDup:  {"DUP", 1, 2, noOperands},

	// Integer arithmetic
	OpAddI: {"ADDI", 2, 1, noOperands},
	OpSubI: {"SUBI", 2, 1, noOperands},
	OpMulI: {"MULI", 2, 1, noOperands},
	OpDivI: {"DIVI", 2, 1, noOperands},

	// Float arithmetic
	OpAddF: {"ADDF", 2, 1, noOperands},
	OpSubF: {"SUBF", 2, 1, noOperands},
	OpMulF: {"MULF", 2, 1, noOperands},
	OpDivF: {"DIVF", 2, 1, noOperands},
	OpNegF: {"NEGF", 1, 1, noOperands},

	// Tests
	OpIsNeg:  {"ISNEG", 1, 1, noOperands},
	OpIsZero: {"ISZERO", 1, 1, noOperands},
	OpIsPos:  {"ISPOS", 1, 1, noOperands},
	OpEq:     {"EQ", 2, 1, noOperands},
	OpNot:    {"NOT", 1, 1, noOperands},

	// Control flow
	OpJmp:  {"JMP", 0, 0, oneInt},
	OpJmpF: {"JMPF", 1, 0, oneInt},
	OpCall: {"CALL", 2, -1, noOperands},
	OpRet:  {"RET", -1, 1, noOperands},

	// Storage
	OpGLoad:  {"GLOAD", 0, 1, oneInt},
	OpGStore: {"GSTORE", 1, 1, oneInt},
	OpLoad:   {"LOAD", 0, 1, oneInt},
	OpStore:  {"STORE", 1, 1, oneInt},
	OpRLoad:  {"RLOAD", 0, 1, oneInt},
	OpRStore: {"RSTORE", 1, 0, oneInt},
	OpRSwap:  {"RSWAP", 0, 0, twoInts},
	OpRMove:  {"RMOVE", 0, 0, twoInts},

	// Composite values
	OpTuple:     {"TUPLE", -1, 1, typeAndInt},
	OpTIndex:    {"TINDEX", 2, 1, noOperands},
	OpTSet:      {"TSET", 3, 1, noOperands},
	OpArray:     {"ARRAY", -1, 1, typeAndInt},
	OpAIndex:    {"AINDEX", 2, 1, noOperands},
	OpASet:      {"ASET", 3, 1, noOperands},
	OpClosure:   {"CLOSURE", 0, 1, typeAndInt},
	OpCmpType:   {"CMPTYPE", 1, 1, []WordKind{WordType}},
	OpCmpStruct: {"CMPSTRUCT", 1, 1, []WordKind{WordType}},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(..)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandCount returns the number of operand words for this opcode.
func (op Opcode) OperandCount() int {
	return len(GetOpcodeInfo(op).Operands)
}

// InstructionLen returns the total length of an instruction in words.
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandCount()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJmpF
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// StackEffect returns the net change in stack depth caused by executing op
// with the given operands, as seen by the code that follows it. CALL counts
// as replacing callee and argument with the result; RET ends the frame.
func StackEffect(op Opcode, operands []Word) int {
	switch op {
	case OpPopN:
		return -operands[0].Int
	case OpTuple, OpArray:
		return 1 - operands[1].Int
	case OpCall, OpRet:
		return -1
	}
	info := GetOpcodeInfo(op)
	return info.StackPush - info.StackPop
}
