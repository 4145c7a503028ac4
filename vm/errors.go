package vm

import "fmt"

// ErrorCode identifies a lexical, compile-time or run-time failure.
// The same codes are shared by the compiler diagnostics and VM faults.
type ErrorCode int

const (
	// Lexical and parse errors
	ErrUnexpectedCharacter ErrorCode = iota
	ErrNoRHS
	ErrUnexpectedToken
	ErrUnterminatedString
	ErrUnclosedBlock
	ErrUnclosedTuple

	// Runtime faults
	ErrStackOverflow
	ErrStackUnderflow
	ErrArrOutOfBounds
	ErrUnknownOpcode

	// Compile errors
	ErrUndeclaredVariable
	ErrImmutableVariable
	ErrNameCollision
	ErrUnknownType
	ErrTypeError
	ErrInsufficientTuple
	ErrInvalidDestr
	ErrInvalidSlot
	ErrIncompleteRecord
	ErrUnknownAST
	ErrNonBlockReturn
	ErrInvalidLambdaParam
	ErrNonLambdaCall
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnexpectedCharacter: "UNEXPECTED_CHARACTER",
	ErrNoRHS:               "NO_RHS",
	ErrUnexpectedToken:     "UNEXPECTED_TOKEN",
	ErrUnterminatedString:  "UNTERMINATED_STRING",
	ErrUnclosedBlock:       "UNCLOSED_BLOCK",
	ErrUnclosedTuple:       "UNCLOSED_TUPLE",
	ErrStackOverflow:       "STACK_OVERFLOW",
	ErrStackUnderflow:      "STACK_UNDERFLOW",
	ErrArrOutOfBounds:      "ARR_OUT_OF_BOUNDS",
	ErrUnknownOpcode:       "UNKNOWN_OPCODE",
	ErrUndeclaredVariable:  "UNDECLARED_VARIABLE",
	ErrImmutableVariable:   "IMMUTABLE_VARIABLE",
	ErrNameCollision:       "NAME_COLLISION",
	ErrUnknownType:         "UNKNOWN_TYPE",
	ErrTypeError:           "TYPE_ERROR",
	ErrInsufficientTuple:   "INSUFFICIENT_TUPLE",
	ErrInvalidDestr:        "INVALID_DESTR",
	ErrInvalidSlot:         "INVALID_SLOT",
	ErrIncompleteRecord:    "INCOMPLETE_RECORD",
	ErrUnknownAST:          "UNKNOWN_AST",
	ErrNonBlockReturn:      "NON_BLOCK_RETURN",
	ErrInvalidLambdaParam:  "INVALID_LAMBDA_PARAM",
	ErrNonLambdaCall:       "NON_LAMBDA_CALL",
}

// String returns the upper-case name of the code, e.g. "TYPE_ERROR".
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// RuntimeError is a fault raised while executing bytecode. A fault always
// halts the machine.
type RuntimeError struct {
	Code    ErrorCode
	IP      int // address of the faulting instruction
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("Runtime Error %s at %04d: %s", e.Code, e.IP, e.Message)
}

func faultf(code ErrorCode, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Code: code, IP: -1, Message: fmt.Sprintf(format, args...)}
}
