package hash

import (
	"encoding/binary"
	"math"

	"github.com/chazu/angstrom/compiler"
	"github.com/chazu/angstrom/vm"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of a compiler AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (uint16=2B, uint32=4B)
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child nodes: serialized inline (flat)
//   - Locals: (scope depth, slot) pairs counted from the innermost scope
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of prog. The
// returned bytes are suitable for hashing with SHA-256.
func Serialize(prog *compiler.Program) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.writeByte(TagProgram)
	s.writeUint32(uint32(len(prog.Stmts)))
	for _, stmt := range prog.Stmts {
		s.serializeNode(stmt)
	}
	return s.buf
}

// scope tracks the locals of one nesting level in declaration order.
type scope struct {
	vars map[string]uint16
	next uint16
}

type serializer struct {
	buf    []byte
	scopes []*scope // empty at the top level, where declarations are globals
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) pushScope() {
	s.scopes = append(s.scopes, &scope{vars: make(map[string]uint16)})
}

func (s *serializer) popScope() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *serializer) global() bool { return len(s.scopes) == 0 }

// bind declares name in the innermost scope. At the top level the name is
// written instead, since globals are hashed by name.
func (s *serializer) bind(name string) {
	if s.global() {
		s.writeString(name)
		return
	}
	sc := s.scopes[len(s.scopes)-1]
	sc.vars[name] = sc.next
	sc.next++
}

func (s *serializer) serializeRef(name string) {
	for depth := len(s.scopes) - 1; depth >= 0; depth-- {
		if slot, ok := s.scopes[depth].vars[name]; ok {
			s.writeByte(TagLocalVarRef)
			s.writeUint16(uint16(len(s.scopes) - 1 - depth))
			s.writeUint16(slot)
			return
		}
	}
	s.writeByte(TagGlobalRef)
	s.writeString(name)
}

func (s *serializer) serializeList(nodes []compiler.Node) {
	s.writeUint32(uint32(len(nodes)))
	for _, n := range nodes {
		s.serializeNode(n)
	}
}

func (s *serializer) serializeNode(node compiler.Node) {
	switch n := node.(type) {
	case nil:
		s.writeByte(TagAbsent)

	case *compiler.NumberLit:
		s.writeByte(TagNumberLiteral)
		s.writeFloat64(n.Value)

	case *compiler.StringLit:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *compiler.BoolLit:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *compiler.NilLit:
		s.writeByte(TagNilLiteral)

	case *compiler.TupleLit:
		s.writeByte(TagTupleLiteral)
		s.serializeList(n.Elems)

	case *compiler.Field:
		s.writeByte(TagField)
		s.writeString(n.Name)
		s.serializeNode(n.Value)

	case *compiler.ArrayLit:
		s.writeByte(TagArrayLiteral)
		s.serializeList(n.Elems)

	case *compiler.Ident:
		s.serializeRef(n.Name)

	case *compiler.Unary:
		s.writeByte(TagUnary)
		s.writeString(n.Op.String())
		s.serializeNode(n.Operand)

	case *compiler.Binary:
		s.writeByte(TagBinary)
		s.writeString(n.Op.String())
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *compiler.Assign:
		s.writeByte(TagAssign)
		s.serializeNode(n.Target)
		s.serializeNode(n.Value)

	case *compiler.Accessor:
		s.writeByte(TagAccessor)
		s.writeString(n.Field)
		s.serializeNode(n.Object)

	case *compiler.Index:
		s.writeByte(TagIndex)
		s.serializeNode(n.Object)
		s.serializeNode(n.Index)

	case *compiler.Block:
		s.writeByte(TagBlock)
		s.pushScope()
		s.serializeList(n.Stmts)
		s.popScope()

	case *compiler.Lambda:
		s.writeByte(TagLambda)
		s.writeUint32(uint32(len(n.Params)))
		for _, p := range n.Params {
			s.serializeType(p.Type)
		}
		s.pushScope()
		for _, p := range n.Params {
			s.bind(p.Name)
		}
		s.serializeNode(n.Body)
		s.popScope()

	case *compiler.Call:
		s.writeByte(TagCall)
		s.serializeNode(n.Callee)
		s.serializeList(n.Args)

	case *compiler.Return:
		s.writeByte(TagReturn)
		s.serializeNode(n.Value)

	case *compiler.VarDecl:
		s.writeByte(TagVarDecl)
		s.writeBool(n.Immutable)
		s.serializeType(n.Type)
		s.serializeNode(n.Init)
		s.bind(n.Name)

	case *compiler.DestructureDecl:
		s.writeByte(TagDestructureDecl)
		s.writeBool(n.Immutable)
		s.serializeType(n.Type)
		s.serializeNode(n.Init)
		s.serializeDestr(n.Pattern)

	case *compiler.TypeDecl:
		s.writeByte(TagTypeDecl)
		s.writeString(n.Name)
		s.serializeType(n.Type)

	case *compiler.Match:
		s.writeByte(TagMatch)
		s.serializeNode(n.Subject)
		s.writeUint32(uint32(len(n.Arms)))
		for _, arm := range n.Arms {
			s.serializeArm(arm)
		}

	default:
		s.writeByte(TagAbsent)
	}
}

func (s *serializer) serializeDestr(p *compiler.DestrPattern) {
	if !p.IsLeaf() {
		s.writeByte(TagDestrTuple)
		s.writeUint32(uint32(len(p.Elems)))
		for _, e := range p.Elems {
			s.serializeDestr(e)
		}
		return
	}
	s.writeByte(TagDestrLeaf)
	if p.Name == vm.WildcardField {
		s.writeByte(0)
		return
	}
	s.writeByte(1)
	s.bind(p.Name)
}

// serializeArm hashes one match arm. A product type pattern binds its named
// fields for the arm body.
func (s *serializer) serializeArm(arm *compiler.MatchArm) {
	switch p := arm.Pattern.(type) {
	case *compiler.LiteralPattern:
		s.writeByte(TagLiteralPattern)
		s.serializeNode(p.Value)
		s.serializeNode(arm.Body)

	case *compiler.TypePattern:
		s.writeByte(TagTypePattern)
		s.serializeType(p.Type)
		s.pushScope()
		if prod, ok := p.Type.(*compiler.ProductType); ok {
			sc := s.scopes[len(s.scopes)-1]
			for _, f := range prod.Fields {
				if f.Name != "" && f.Name != vm.WildcardField {
					sc.vars[f.Name] = sc.next
					sc.next++
				}
			}
		}
		s.serializeNode(arm.Body)
		s.popScope()

	default:
		s.writeByte(TagWildcardPattern)
		s.serializeNode(arm.Body)
	}
}

func (s *serializer) serializeType(te compiler.TypeExpr) {
	switch t := te.(type) {
	case *compiler.NamedType:
		s.writeByte(TagNamedType)
		s.writeString(t.Name)
		s.writeUint32(uint32(len(t.Args)))
		for _, a := range t.Args {
			s.serializeType(a)
		}

	case *compiler.ProductType:
		s.writeByte(TagProductType)
		s.writeUint32(uint32(len(t.Fields)))
		for _, f := range t.Fields {
			s.writeString(f.Name)
			s.serializeType(f.Type)
		}

	case *compiler.SumType:
		s.writeByte(TagSumType)
		s.writeUint32(uint32(len(t.Variants)))
		for _, v := range t.Variants {
			s.serializeType(v)
		}

	case *compiler.FunctionType:
		s.writeByte(TagFunctionType)
		s.serializeType(t.Param)
		s.serializeType(t.Result)

	case *compiler.ArrayType:
		s.writeByte(TagArrayType)
		s.serializeType(t.Elem)

	case *compiler.WildcardType:
		s.writeByte(TagWildcardType)

	default:
		s.writeByte(TagAbsent)
	}
}
