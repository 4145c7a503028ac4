package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/angstrom/vm"
)

// Diagnostic is a lexical, parse or compile error.
type Diagnostic struct {
	Code    vm.ErrorCode
	Pos     Position
	Source  string // name of the compilation unit
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("[%s:%d] Error %s: %s", d.Source, d.Pos.Line, d.Code, d.Message)
}

// Diagnostics accumulates diagnostics for one compilation unit.
type Diagnostics []*Diagnostic

func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes each diagnostic to errors.As.
func (ds Diagnostics) Unwrap() []error {
	out := make([]error, len(ds))
	for i, d := range ds {
		out[i] = d
	}
	return out
}

// ErrorCodeOf returns the code of the first diagnostic or runtime fault in
// err.
func ErrorCodeOf(err error) (vm.ErrorCode, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Code, true
	}
	var rt *vm.RuntimeError
	if errors.As(err, &rt) {
		return rt.Code, true
	}
	return 0, false
}

// errorf creates a diagnostic located at node n.
func (c *Compiler) errorf(n Node, code vm.ErrorCode, format string, args ...interface{}) error {
	var pos Position
	if n != nil {
		pos = n.Span().Start
	}
	return &Diagnostic{
		Code:    code,
		Pos:     pos,
		Source:  c.source,
		Message: fmt.Sprintf(format, args...),
	}
}
