package compiler

import "github.com/chazu/angstrom/vm"

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether pos falls inside the span.
func (s Span) Contains(pos Position) bool {
	return pos.Offset >= s.Start.Offset && pos.Offset < s.End.Offset
}

// Node is the interface implemented by all AST nodes. The set of nodes is
// closed; code generation switches over the concrete types.
type Node interface {
	Span() Span
	// ResolvedType is the type assigned during compilation, or nil.
	ResolvedType() *vm.Type
	setType(t *vm.Type)
	node() // marker method
}

// typed holds the resolved type annotation shared by every node.
type typed struct {
	typ *vm.Type
}

func (t *typed) ResolvedType() *vm.Type { return t.typ }
func (t *typed) setType(typ *vm.Type)   { t.typ = typ }

// Program is a compilation unit.
type Program struct {
	typed
	SpanVal Span
	Name    string
	Stmts   []Node
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// NumberLit is a numeric literal.
type NumberLit struct {
	typed
	SpanVal Span
	Value   float64
}

func (n *NumberLit) Span() Span { return n.SpanVal }
func (n *NumberLit) node()      {}

// StringLit is a string literal.
type StringLit struct {
	typed
	SpanVal Span
	Value   string
}

func (n *StringLit) Span() Span { return n.SpanVal }
func (n *StringLit) node()      {}

// BoolLit is true or false.
type BoolLit struct {
	typed
	SpanVal Span
	Value   bool
}

func (n *BoolLit) Span() Span { return n.SpanVal }
func (n *BoolLit) node()      {}

// NilLit is nil.
type NilLit struct {
	typed
	SpanVal Span
}

func (n *NilLit) Span() Span { return n.SpanVal }
func (n *NilLit) node()      {}

// TupleLit is a parenthesized sequence: a tuple (1, 2) or a record
// (x: 1, y: 2). Record elements are *Field nodes.
type TupleLit struct {
	typed
	SpanVal Span
	Elems   []Node
}

func (n *TupleLit) Span() Span { return n.SpanVal }
func (n *TupleLit) node()      {}

// Field is a key: value element of a record literal.
type Field struct {
	typed
	SpanVal Span
	Name    string
	Value   Node
}

func (n *Field) Span() Span { return n.SpanVal }
func (n *Field) node()      {}

// ArrayLit is [a, b, c].
type ArrayLit struct {
	typed
	SpanVal Span
	Elems   []Node
}

func (n *ArrayLit) Span() Span { return n.SpanVal }
func (n *ArrayLit) node()      {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Ident is a variable reference.
type Ident struct {
	typed
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}

// Block is { stmt* }. Its value is the value of the last statement or of a
// return inside it.
type Block struct {
	typed
	SpanVal Span
	Stmts   []Node
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}

// Unary is -x or !x.
type Unary struct {
	typed
	SpanVal Span
	Op      TokenType
	Operand Node
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}

// Binary is an arithmetic, comparison or equality operation.
type Binary struct {
	typed
	SpanVal Span
	Op      TokenType
	Left    Node
	Right   Node
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}

// Assign stores into a variable, a record field or an array element.
// Target is an *Ident, *Accessor or *Index.
type Assign struct {
	typed
	SpanVal Span
	Target  Node
	Value   Node
}

func (n *Assign) Span() Span { return n.SpanVal }
func (n *Assign) node()      {}

// Accessor is obj.field. Positional fields are named by their index.
type Accessor struct {
	typed
	SpanVal Span
	Object  Node
	Field   string
}

func (n *Accessor) Span() Span { return n.SpanVal }
func (n *Accessor) node()      {}

// Index is arr[i].
type Index struct {
	typed
	SpanVal Span
	Object  Node
	Index   Node
}

func (n *Index) Span() Span { return n.SpanVal }
func (n *Index) node()      {}

// Lambda is fn(x: T, ...) => body.
type Lambda struct {
	typed
	SpanVal Span
	Params  []*Param
	Body    Node
}

func (n *Lambda) Span() Span { return n.SpanVal }
func (n *Lambda) node()      {}

// Param is a lambda parameter.
type Param struct {
	typed
	SpanVal Span
	Name    string
	Type    TypeExpr
}

func (n *Param) Span() Span { return n.SpanVal }
func (n *Param) node()      {}

// Call is callee(args). Several arguments are passed as one tuple.
type Call struct {
	typed
	SpanVal Span
	Callee  Node
	Args    []Node
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}

// Return exits the innermost enclosing block with Value.
type Return struct {
	typed
	SpanVal Span
	Value   Node
}

func (n *Return) Span() Span { return n.SpanVal }
func (n *Return) node()      {}

// Placeholder stands for the argument of the lambda being compiled. It is
// produced by the compiler when lowering parameters, never by the parser.
type Placeholder struct {
	typed
	SpanVal Span
	Type    *vm.Type
}

func (n *Placeholder) Span() Span { return n.SpanVal }
func (n *Placeholder) node()      {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// VarDecl is var name :: Type = init. Type or Init may be nil, not both.
type VarDecl struct {
	typed
	SpanVal   Span
	Name      string
	Type      TypeExpr
	Init      Node
	Immutable bool
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}

// DestructureDecl is var (a, _, (b, c)) = init.
type DestructureDecl struct {
	typed
	SpanVal   Span
	Pattern   *DestrPattern
	Type      TypeExpr
	Init      Node
	Immutable bool
}

func (n *DestructureDecl) Span() Span { return n.SpanVal }
func (n *DestructureDecl) node()      {}

// DestrPattern is either a leaf binding Name ("_" discards) or a nested
// tuple of sub-patterns.
type DestrPattern struct {
	typed
	SpanVal Span
	Name    string
	Elems   []*DestrPattern
}

func (n *DestrPattern) Span() Span { return n.SpanVal }
func (n *DestrPattern) node()      {}

// IsLeaf reports whether the pattern binds a single name.
func (n *DestrPattern) IsLeaf() bool { return n.Elems == nil }

// TypeDecl is type Name :: T.
type TypeDecl struct {
	typed
	SpanVal Span
	Name    string
	Type    TypeExpr
}

func (n *TypeDecl) Span() Span { return n.SpanVal }
func (n *TypeDecl) node()      {}

// ---------------------------------------------------------------------------
// Pattern matching
// ---------------------------------------------------------------------------

// Match is match subject | pattern -> body ...
type Match struct {
	typed
	SpanVal Span
	Subject Node
	Arms    []*MatchArm
}

func (n *Match) Span() Span { return n.SpanVal }
func (n *Match) node()      {}

// MatchArm is one alternative of a match.
type MatchArm struct {
	typed
	SpanVal Span
	Pattern Node // *LiteralPattern, *TypePattern or *WildcardPattern
	Body    Node
}

func (n *MatchArm) Span() Span { return n.SpanVal }
func (n *MatchArm) node()      {}

// LiteralPattern matches a value equal to a literal.
type LiteralPattern struct {
	typed
	SpanVal Span
	Value   Node
}

func (n *LiteralPattern) Span() Span { return n.SpanVal }
func (n *LiteralPattern) node()      {}

// TypePattern matches a value of a type. Product patterns also bind their
// named fields.
type TypePattern struct {
	typed
	SpanVal Span
	Type    TypeExpr
}

func (n *TypePattern) Span() Span { return n.SpanVal }
func (n *TypePattern) node()      {}

// WildcardPattern is _, which matches anything.
type WildcardPattern struct {
	typed
	SpanVal Span
}

func (n *WildcardPattern) Span() Span { return n.SpanVal }
func (n *WildcardPattern) node()      {}

// ---------------------------------------------------------------------------
// Type expressions
// ---------------------------------------------------------------------------

// TypeExpr is the interface for type expression nodes.
type TypeExpr interface {
	Node
	typeExpr() // marker method
}

// NamedType is Name or Name<Args>.
type NamedType struct {
	typed
	SpanVal Span
	Name    string
	Args    []TypeExpr
}

func (n *NamedType) Span() Span { return n.SpanVal }
func (n *NamedType) node()      {}
func (n *NamedType) typeExpr()  {}

// ProductType is (T, U) or (x: T, y: U).
type ProductType struct {
	typed
	SpanVal Span
	Fields  []*FieldType
}

func (n *ProductType) Span() Span { return n.SpanVal }
func (n *ProductType) node()      {}
func (n *ProductType) typeExpr()  {}

// FieldType is one field of a product type expression. Name is empty for a
// positional field.
type FieldType struct {
	typed
	SpanVal Span
	Name    string
	Type    TypeExpr
}

func (n *FieldType) Span() Span { return n.SpanVal }
func (n *FieldType) node()      {}

// SumType is T | U.
type SumType struct {
	typed
	SpanVal  Span
	Variants []TypeExpr
}

func (n *SumType) Span() Span { return n.SpanVal }
func (n *SumType) node()      {}
func (n *SumType) typeExpr()  {}

// FunctionType is T => U.
type FunctionType struct {
	typed
	SpanVal Span
	Param   TypeExpr
	Result  TypeExpr
}

func (n *FunctionType) Span() Span { return n.SpanVal }
func (n *FunctionType) node()      {}
func (n *FunctionType) typeExpr()  {}

// ArrayType is [T].
type ArrayType struct {
	typed
	SpanVal Span
	Elem    TypeExpr
}

func (n *ArrayType) Span() Span { return n.SpanVal }
func (n *ArrayType) node()      {}
func (n *ArrayType) typeExpr()  {}

// WildcardType is _ in type position and stands for Any.
type WildcardType struct {
	typed
	SpanVal Span
}

func (n *WildcardType) Span() Span { return n.SpanVal }
func (n *WildcardType) node()      {}
func (n *WildcardType) typeExpr()  {}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(children ...Node) {
		for _, c := range children {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch n := n.(type) {
	case *Program:
		add(n.Stmts...)
	case *TupleLit:
		add(n.Elems...)
	case *Field:
		add(n.Value)
	case *ArrayLit:
		add(n.Elems...)
	case *Block:
		add(n.Stmts...)
	case *Unary:
		add(n.Operand)
	case *Binary:
		add(n.Left, n.Right)
	case *Assign:
		add(n.Target, n.Value)
	case *Accessor:
		add(n.Object)
	case *Index:
		add(n.Object, n.Index)
	case *Lambda:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *Param:
		add(n.Type)
	case *Call:
		add(n.Callee)
		add(n.Args...)
	case *Return:
		add(n.Value)
	case *VarDecl:
		add(n.Type, n.Init)
	case *DestructureDecl:
		if n.Pattern != nil {
			add(n.Pattern)
		}
		add(n.Type, n.Init)
	case *DestrPattern:
		for _, e := range n.Elems {
			add(e)
		}
	case *TypeDecl:
		add(n.Type)
	case *Match:
		add(n.Subject)
		for _, a := range n.Arms {
			add(a)
		}
	case *MatchArm:
		add(n.Pattern, n.Body)
	case *LiteralPattern:
		add(n.Value)
	case *TypePattern:
		add(n.Type)
	case *NamedType:
		for _, a := range n.Args {
			add(a)
		}
	case *ProductType:
		for _, f := range n.Fields {
			add(f)
		}
	case *FieldType:
		add(n.Type)
	case *SumType:
		for _, v := range n.Variants {
			add(v)
		}
	case *FunctionType:
		add(n.Param, n.Result)
	case *ArrayType:
		add(n.Elem)
	}
	return out
}

// Walk calls fn for n and its descendants in depth-first order. Returning
// false from fn skips the children of that node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}
