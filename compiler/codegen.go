package compiler

import (
	"errors"
	"sort"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/angstrom/vm"
)

var compilerLog = commonlog.GetLogger("angstrom.compiler")

// ---------------------------------------------------------------------------
// Codegen: compile AST to VM instructions
// ---------------------------------------------------------------------------

// Compiler compiles programs against a type registry. The root scope and the
// global slot count persist across units, so a REPL can compile one line at
// a time against the same VM.
type Compiler struct {
	types   *vm.TypeRegistry
	root    *scope
	globals int

	// Current unit
	code   *vm.Builder
	scope  *scope
	fn     *funcState
	source string

	// Root additions of the current unit, removed again if it fails
	newSymbols []string
	newTypes   []string
}

// NewCompiler creates a compiler with an empty root scope.
func NewCompiler(types *vm.TypeRegistry) *Compiler {
	return &Compiler{
		types: types,
		root:  newScope(nil, &funcState{}),
	}
}

// Types returns the registry the compiler interns types in.
func (c *Compiler) Types() *vm.TypeRegistry { return c.types }

// NumGlobals returns the number of global slots declared so far.
func (c *Compiler) NumGlobals() int { return c.globals }

// Lookup resolves a global name.
func (c *Compiler) Lookup(name string) (*Symbol, bool) {
	return c.root.lookup(name)
}

// LookupType resolves a type name declared at the top level or built in.
func (c *Compiler) LookupType(name string) (*vm.Type, bool) {
	if t, ok := c.root.lookupType(name); ok {
		return t, true
	}
	return c.types.Resolve(name)
}

// Globals returns the global symbols ordered by slot.
func (c *Compiler) Globals() []*Symbol {
	syms := make([]*Symbol, 0, len(c.root.symbols))
	for _, sym := range c.root.symbols {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Location < syms[j].Location })
	return syms
}

// TypeNames returns the names of the top-level type declarations, sorted.
func (c *Compiler) TypeNames() []string {
	names := make([]string, 0, len(c.root.types))
	for name := range c.root.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeclareGlobal binds name to the next global slot. It is how the host
// installs natives before any program runs.
func (c *Compiler) DeclareGlobal(name string, t *vm.Type, mutable bool) (*Symbol, error) {
	sym := &Symbol{Name: name, Type: t, Mutable: mutable, Assigned: true, Global: true, Location: c.globals}
	if !c.root.declare(sym) {
		return nil, &Diagnostic{Code: vm.ErrNameCollision, Source: "<host>", Message: "'" + name + "' is already declared"}
	}
	c.globals++
	return sym, nil
}

// Compile generates code for prog. base is the address the code will be
// loaded at; jump and closure targets are absolute. The unit's value is
// left on the stack before HALT. On failure nothing the unit declared stays
// visible and the error is a Diagnostics value.
func (c *Compiler) Compile(prog *Program, base int) ([]vm.Word, error) {
	c.code = vm.NewBuilder(base)
	c.scope = c.root
	c.fn = c.root.fn
	c.fn.depth = 0
	c.source = prog.Name
	c.newSymbols, c.newTypes = nil, nil
	globals := c.globals

	t, err := c.compileUnit(prog.Stmts)
	if err != nil {
		c.root.remove(c.newSymbols, c.newTypes)
		c.globals = globals
		compilerLog.Debugf("compile %s failed: %s", prog.Name, err)
		var d *Diagnostic
		if errors.As(err, &d) {
			return nil, Diagnostics{d}
		}
		return nil, err
	}
	c.emit(vm.OpHalt)
	prog.setType(t)
	compilerLog.Debugf("compiled %s: %d words at %04d, %d globals", prog.Name, c.code.Len(), base, c.globals)
	return c.code.Code(), nil
}

// Discard removes the symbols and types declared by the last compiled unit.
// It is used when that unit faulted at run time before assigning them. Their
// global slots are not reused.
func (c *Compiler) Discard() {
	c.root.remove(c.newSymbols, c.newTypes)
	compilerLog.Debugf("discarded %s: %d symbols, %d types", c.source, len(c.newSymbols), len(c.newTypes))
	c.newSymbols, c.newTypes = nil, nil
}

func (c *Compiler) compileUnit(stmts []Node) (*vm.Type, error) {
	if len(stmts) == 0 {
		c.emit(vm.OpPush, vm.ValueWord(vm.Nil))
		return c.types.Nil, nil
	}
	var t *vm.Type
	for i, stmt := range stmts {
		var err error
		if t, err = c.compileStmt(stmt, i == len(stmts)-1); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// emit appends an instruction and tracks the stack depth it leaves.
func (c *Compiler) emit(op vm.Opcode, operands ...vm.Word) int {
	c.fn.depth += vm.StackEffect(op, operands)
	return c.code.Emit(op, operands...)
}

func (c *Compiler) emitReg(op vm.Opcode, r vm.Register) {
	c.emit(op, vm.RegWord(r))
}

func (c *Compiler) emitPush(v vm.Value) {
	c.emit(vm.OpPush, vm.ValueWord(v))
}

// emitJump emits a jump to be patched later and returns its placeholder.
func (c *Compiler) emitJump(op vm.Opcode) int {
	c.fn.depth += vm.StackEffect(op, []vm.Word{vm.IntWord(0)})
	return c.code.EmitJump(op)
}

// declare adds sym to the current frame, remembering root additions for
// rollback.
func (c *Compiler) declare(n Node, sym *Symbol) error {
	if !c.scope.declare(sym) {
		return c.errorf(n, vm.ErrNameCollision, "'%s' is already declared in this scope", sym.Name)
	}
	if c.scope == c.root {
		c.newSymbols = append(c.newSymbols, sym.Name)
	}
	return nil
}

func (c *Compiler) allocGlobal() int {
	slot := c.globals
	c.globals++
	return slot
}

// ---------------------------------------------------------------------------
// Statements and expressions
// ---------------------------------------------------------------------------

// compileStmt compiles a statement. A statement that is not last leaves
// nothing on the stack except the locals it declares; the last statement
// leaves its value.
func (c *Compiler) compileStmt(n Node, last bool) (*vm.Type, error) {
	switch n := n.(type) {
	case *VarDecl:
		return c.compileVarDecl(n, last)
	case *DestructureDecl:
		return c.compileDestructure(n, last)
	case *TypeDecl:
		return c.compileTypeDecl(n, last)
	}
	t, err := c.compileExpr(n)
	if err != nil {
		return nil, err
	}
	if !last {
		c.emit(vm.OpPop)
	}
	return t, nil
}

// compileExpr compiles n so that it pushes exactly one value, and records
// the value's type on the node.
func (c *Compiler) compileExpr(n Node) (*vm.Type, error) {
	t, err := c.compileNode(n)
	if err != nil {
		return nil, err
	}
	n.setType(t)
	return t, nil
}

func (c *Compiler) compileNode(n Node) (*vm.Type, error) {
	switch n := n.(type) {
	case *NumberLit:
		c.emitPush(vm.Num(n.Value))
		return c.types.Num, nil
	case *StringLit:
		c.emit(vm.OpStr, vm.StringWord(n.Value))
		return c.types.String, nil
	case *BoolLit:
		c.emitPush(vm.Bool(n.Value))
		return c.types.Bool, nil
	case *NilLit:
		c.emitPush(vm.Nil)
		return c.types.Nil, nil
	case *Ident:
		return c.compileIdent(n)
	case *TupleLit:
		return c.compileTuple(n)
	case *ArrayLit:
		return c.compileArray(n)
	case *Block:
		return c.compileBlock(n)
	case *Unary:
		return c.compileUnary(n)
	case *Binary:
		return c.compileBinary(n)
	case *Assign:
		return c.compileAssign(n)
	case *Accessor:
		return c.compileAccessor(n)
	case *Index:
		return c.compileIndex(n)
	case *Lambda:
		return c.compileLambda(n)
	case *Call:
		return c.compileCall(n)
	case *Match:
		return c.compileMatch(n)
	case *Return:
		return c.compileReturn(n)
	case *Placeholder:
		c.emitReg(vm.OpRLoad, vm.RegA)
		return n.Type, nil
	}
	return nil, c.errorf(n, vm.ErrUnknownAST, "%s cannot be used as a value", nodeKind(n))
}

func nodeKind(n Node) string {
	switch n.(type) {
	case *VarDecl, *DestructureDecl:
		return "a declaration"
	case *TypeDecl:
		return "a type declaration"
	case *Field:
		return "a record field"
	case *Program:
		return "a program"
	}
	return "this expression"
}

func (c *Compiler) compileIdent(n *Ident) (*vm.Type, error) {
	sym, ok := c.scope.lookup(n.Name)
	if !ok {
		return nil, c.errorf(n, vm.ErrUndeclaredVariable, "undeclared variable '%s'", n.Name)
	}
	if sym.Global {
		c.emit(vm.OpGLoad, vm.IntWord(sym.Location))
	} else {
		c.emit(vm.OpLoad, vm.IntWord(sym.Location))
	}
	return sym.Type, nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var arithmeticOps = map[TokenType]vm.Opcode{
	TokenPlus:  vm.OpAddF,
	TokenMinus: vm.OpSubF,
	TokenStar:  vm.OpMulF,
	TokenSlash: vm.OpDivF,
}

// requireType reports a TYPE_ERROR unless t is Equal to want.
func (c *Compiler) requireType(n Node, want, t *vm.Type, what string) error {
	if vm.Equal(want, t) {
		return nil
	}
	return c.errorf(n, vm.ErrTypeError, "%s must be %s, got %s", what, want, t)
}

func (c *Compiler) compileUnary(n *Unary) (*vm.Type, error) {
	t, err := c.compileExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case TokenMinus:
		if err := c.requireType(n.Operand, c.types.Num, t, "operand of '-'"); err != nil {
			return nil, err
		}
		c.emit(vm.OpNegF)
		return c.types.Num, nil
	case TokenBang:
		if err := c.requireType(n.Operand, c.types.Bool, t, "operand of '!'"); err != nil {
			return nil, err
		}
		c.emit(vm.OpNot)
		return c.types.Bool, nil
	}
	return nil, c.errorf(n, vm.ErrUnknownAST, "unknown unary operator %s", n.Op)
}

func (c *Compiler) compileBinary(n *Binary) (*vm.Type, error) {
	lt, err := c.compileExpr(n.Left)
	if err != nil {
		return nil, err
	}
	rt, err := c.compileExpr(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case TokenEq, TokenNotEq:
		if !vm.Equal(lt, rt) {
			return nil, c.errorf(n, vm.ErrTypeError, "cannot compare %s with %s", lt, rt)
		}
		c.emit(vm.OpEq)
		if n.Op == TokenNotEq {
			c.emit(vm.OpNot)
		}
		return c.types.Bool, nil
	}

	what := "operand of '" + n.Op.String() + "'"
	if err := c.requireType(n.Left, c.types.Num, lt, "left "+what); err != nil {
		return nil, err
	}
	if err := c.requireType(n.Right, c.types.Num, rt, "right "+what); err != nil {
		return nil, err
	}

	if op, ok := arithmeticOps[n.Op]; ok {
		c.emit(op)
		return c.types.Num, nil
	}

	// Comparisons test the sign of the difference.
	c.emit(vm.OpSubF)
	switch n.Op {
	case TokenLess:
		c.emit(vm.OpIsNeg)
	case TokenGreater:
		c.emit(vm.OpIsPos)
	case TokenLessEq:
		c.emit(vm.OpIsPos)
		c.emit(vm.OpNot)
	case TokenGreaterEq:
		c.emit(vm.OpIsNeg)
		c.emit(vm.OpNot)
	default:
		return nil, c.errorf(n, vm.ErrUnknownAST, "unknown binary operator %s", n.Op)
	}
	return c.types.Bool, nil
}

// ---------------------------------------------------------------------------
// Products and arrays
// ---------------------------------------------------------------------------

// compileTuple builds a tuple or record. Elements are pushed last first so
// that TUPLE pops them into order.
func (c *Compiler) compileTuple(n *TupleLit) (*vm.Type, error) {
	if len(n.Elems) == 0 {
		c.emitPush(vm.Nil)
		return c.types.Nil, nil
	}

	names := make([]string, len(n.Elems))
	keyed := 0
	seen := make(map[string]bool)
	for i, e := range n.Elems {
		f, ok := e.(*Field)
		if !ok {
			continue
		}
		keyed++
		if seen[f.Name] {
			return nil, c.errorf(f, vm.ErrNameCollision, "duplicate field '%s'", f.Name)
		}
		seen[f.Name] = true
		names[i] = f.Name
	}
	if keyed > 0 && keyed < len(n.Elems) {
		return nil, c.errorf(n, vm.ErrIncompleteRecord, "record mixes named and positional fields")
	}

	slots := make([]*vm.Type, len(n.Elems))
	for i := len(n.Elems) - 1; i >= 0; i-- {
		e := n.Elems[i]
		if f, ok := e.(*Field); ok {
			e = f.Value
		}
		t, err := c.compileExpr(e)
		if err != nil {
			return nil, err
		}
		n.Elems[i].setType(t)
		slots[i] = t
	}

	t := c.types.Product(names, slots)
	c.emit(vm.OpTuple, vm.TypeWord(t), vm.IntWord(len(slots)))
	return t, nil
}

// compileArray builds an array whose elements share one type. [] is [Any].
func (c *Compiler) compileArray(n *ArrayLit) (*vm.Type, error) {
	types := make([]*vm.Type, len(n.Elems))
	for i := len(n.Elems) - 1; i >= 0; i-- {
		t, err := c.compileExpr(n.Elems[i])
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	elem := c.types.Any
	if len(types) > 0 {
		elem = types[0]
		for i, t := range types[1:] {
			if !vm.Equal(elem, t) {
				return nil, c.errorf(n.Elems[i+1], vm.ErrTypeError, "array element is %s, want %s", t, elem)
			}
		}
	}
	t := c.types.Array(elem)
	c.emit(vm.OpArray, vm.TypeWord(t), vm.IntWord(len(types)))
	return t, nil
}

// fieldIndex resolves a field of a product type. Positional fields may also
// be addressed by index on records.
func (c *Compiler) fieldIndex(n Node, t *vm.Type, field string) (int, *vm.Type, error) {
	lay := t.Layout()
	if lay.Category != vm.CategoryProduct {
		return 0, nil, c.errorf(n, vm.ErrInvalidSlot, "type %s has no field '%s'", t, field)
	}
	idx, ok := lay.SlotIndex(field)
	if !ok {
		i, err := strconv.Atoi(field)
		if err != nil || i < 0 || i >= lay.NumSlots() {
			return 0, nil, c.errorf(n, vm.ErrInvalidSlot, "type %s has no field '%s'", t, field)
		}
		idx = i
	}
	return idx, lay.Slots[idx], nil
}

func (c *Compiler) compileAccessor(n *Accessor) (*vm.Type, error) {
	ot, err := c.compileExpr(n.Object)
	if err != nil {
		return nil, err
	}
	idx, ft, err := c.fieldIndex(n, ot, n.Field)
	if err != nil {
		return nil, err
	}
	c.emitPush(vm.Num(float64(idx)))
	c.emit(vm.OpTIndex)
	return ft, nil
}

// elemType returns the element type of an indexable type.
func (c *Compiler) elemType(n Node, t *vm.Type) (*vm.Type, error) {
	if vm.IsAny(t) {
		return c.types.Any, nil
	}
	if lay := t.Layout(); lay.Category == vm.CategoryArray {
		return lay.Elem(), nil
	}
	return nil, c.errorf(n, vm.ErrTypeError, "cannot index a value of type %s", t)
}

// compileIndexed pushes the array and index of a[i] and returns the element
// type.
func (c *Compiler) compileIndexed(n *Index) (*vm.Type, error) {
	ot, err := c.compileExpr(n.Object)
	if err != nil {
		return nil, err
	}
	elem, err := c.elemType(n.Object, ot)
	if err != nil {
		return nil, err
	}
	it, err := c.compileExpr(n.Index)
	if err != nil {
		return nil, err
	}
	if err := c.requireType(n.Index, c.types.Num, it, "array index"); err != nil {
		return nil, err
	}
	return elem, nil
}

func (c *Compiler) compileIndex(n *Index) (*vm.Type, error) {
	elem, err := c.compileIndexed(n)
	if err != nil {
		return nil, err
	}
	c.emit(vm.OpAIndex)
	return elem, nil
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// compileAssign stores into a variable, field or element and yields the
// stored value.
func (c *Compiler) compileAssign(n *Assign) (*vm.Type, error) {
	switch target := n.Target.(type) {
	case *Ident:
		sym, ok := c.scope.lookup(target.Name)
		if !ok {
			return nil, c.errorf(target, vm.ErrUndeclaredVariable, "undeclared variable '%s'", target.Name)
		}
		if !sym.Mutable {
			return nil, c.errorf(target, vm.ErrImmutableVariable, "cannot assign to immutable '%s'", target.Name)
		}
		vt, err := c.compileExpr(n.Value)
		if err != nil {
			return nil, err
		}
		if !vm.Accepts(sym.Type, vt) {
			return nil, c.errorf(n, vm.ErrTypeError, "cannot assign %s to '%s' of type %s", vt, sym.Name, sym.Type)
		}
		if sym.Global {
			c.emit(vm.OpGStore, vm.IntWord(sym.Location))
		} else {
			c.emit(vm.OpStore, vm.IntWord(sym.Location))
		}
		sym.Assigned = true
		target.setType(sym.Type)
		return sym.Type, nil

	case *Accessor:
		ot, err := c.compileExpr(target.Object)
		if err != nil {
			return nil, err
		}
		idx, ft, err := c.fieldIndex(target, ot, target.Field)
		if err != nil {
			return nil, err
		}
		c.emitPush(vm.Num(float64(idx)))
		vt, err := c.compileExpr(n.Value)
		if err != nil {
			return nil, err
		}
		if !vm.Accepts(ft, vt) {
			return nil, c.errorf(n, vm.ErrTypeError, "cannot assign %s to field '%s' of type %s", vt, target.Field, ft)
		}
		c.emit(vm.OpTSet)
		target.setType(ft)
		return ft, nil

	case *Index:
		elem, err := c.compileIndexed(target)
		if err != nil {
			return nil, err
		}
		vt, err := c.compileExpr(n.Value)
		if err != nil {
			return nil, err
		}
		if !vm.Accepts(elem, vt) {
			return nil, c.errorf(n, vm.ErrTypeError, "cannot store %s in an array of %s", vt, elem)
		}
		c.emit(vm.OpASet)
		target.setType(elem)
		return elem, nil
	}
	return nil, c.errorf(n.Target, vm.ErrUnknownAST, "cannot assign to this expression")
}
