package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/angstrom/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with one token of lookahead
// ---------------------------------------------------------------------------

// Parser parses source text into an AST. Parsing stops at the first error.
type Parser struct {
	lexer     *Lexer
	prevToken Token
	curToken  Token
	peekToken Token
	source    string // name of the compilation unit
}

// parseFailure carries the first error out of the descent.
type parseFailure struct {
	diag *Diagnostic
}

// NewParser creates a new parser for input. name labels diagnostics.
func NewParser(input, name string) *Parser {
	return &Parser{
		lexer:  NewLexer(input),
		source: name,
	}
}

// Parse parses a whole program.
func Parse(input, name string) (*Program, error) {
	return NewParser(input, name).ParseProgram()
}

// ParseProgram parses statements up to EOF. The error is a Diagnostics
// value holding the first problem found.
func (p *Parser) ParseProgram() (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(parseFailure)
			if !ok {
				panic(r)
			}
			prog, err = nil, Diagnostics{f.diag}
		}
	}()

	// Fill curToken and peekToken
	p.nextToken()
	p.nextToken()

	prog = &Program{Name: p.source}
	start := p.curToken.Pos
	for !p.curTokenIs(TokenEOF) {
		prog.Stmts = append(prog.Stmts, p.parseStatement())
	}
	prog.SpanVal = Span{Start: start, End: p.curToken.End}
	return prog, nil
}

// nextToken advances to the next token. A lexical error stops the parse.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.fail(p.curToken.Err, "%s", p.curToken.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect consumes a token of type t or fails. A missing closer at EOF is
// reported as an unclosed block or tuple.
func (p *Parser) expect(t TokenType) Token {
	if p.curTokenIs(t) {
		tok := p.curToken
		p.nextToken()
		return tok
	}
	if p.curTokenIs(TokenEOF) {
		switch t {
		case TokenRBrace:
			p.fail(vm.ErrUnclosedBlock, "missing '}' before end of input")
		case TokenRParen, TokenRBracket:
			p.fail(vm.ErrUnclosedTuple, "missing %s before end of input", t)
		}
	}
	p.fail(vm.ErrUnexpectedToken, "expected %s, got %s", t, p.describe(p.curToken))
	return Token{}
}

// checkUnclosed fails when input ends before closer.
func (p *Parser) checkUnclosed(closer TokenType) {
	if p.curTokenIs(TokenEOF) {
		p.expect(closer)
	}
}

// fail aborts the parse with a diagnostic at the current token.
func (p *Parser) fail(code vm.ErrorCode, format string, args ...interface{}) {
	panic(parseFailure{&Diagnostic{
		Code:    code,
		Pos:     p.curToken.Pos,
		Source:  p.source,
		Message: fmt.Sprintf(format, args...),
	}})
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenNumber:
		return strconv.Quote(tok.Literal)
	case TokenString:
		return "string " + strconv.Quote(tok.Literal)
	}
	return "'" + tok.Type.String() + "'"
}

// span returns the span from start to the end of the last consumed token.
func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.prevToken.End}
}

// sameLine reports whether the current token starts on the line the
// previous token ended on.
func (p *Parser) sameLine() bool {
	return p.curToken.Pos.Line == p.prevToken.End.Line
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() Node {
	n := p.parseExpression()
	for p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return n
}

// parseExpression parses a single expression.
func (p *Parser) parseExpression() Node {
	return p.parseAssignment()
}

// startsExpression reports whether t can begin an expression.
func startsExpression(t TokenType) bool {
	switch t {
	case TokenNumber, TokenString, TokenIdentifier, TokenLParen, TokenLBracket,
		TokenLBrace, TokenTrue, TokenFalse, TokenNil, TokenVar, TokenTypeKw,
		TokenReturn, TokenFn, TokenMatch, TokenMinus, TokenBang:
		return true
	}
	return false
}

// parseOperand parses the right-hand side of an operator with next, failing
// with NO_RHS when nothing that can start an expression follows.
func (p *Parser) parseOperand(op Token, next func() Node) Node {
	if !startsExpression(p.curToken.Type) {
		p.fail(vm.ErrNoRHS, "missing right-hand side of '%s'", op.Type)
	}
	return next()
}

func (p *Parser) parseAssignment() Node {
	start := p.curToken.Pos
	left := p.parseEquality()
	if !p.curTokenIs(TokenAssign) {
		return left
	}
	op := p.curToken
	switch left.(type) {
	case *Ident, *Accessor, *Index:
	default:
		p.fail(vm.ErrUnexpectedToken, "cannot assign to this expression")
	}
	p.nextToken()
	value := p.parseOperand(op, p.parseAssignment)
	return &Assign{SpanVal: p.span(start), Target: left, Value: value}
}

// parseBinary parses a left-associative chain of ops over next.
func (p *Parser) parseBinary(next func() Node, ops ...TokenType) Node {
	start := p.curToken.Pos
	left := next()
	for p.curTokenIn(ops) {
		op := p.curToken
		p.nextToken()
		right := p.parseOperand(op, next)
		left = &Binary{SpanVal: p.span(start), Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) curTokenIn(types []TokenType) bool {
	for _, t := range types {
		if p.curTokenIs(t) {
			return true
		}
	}
	return false
}

func (p *Parser) parseEquality() Node {
	return p.parseBinary(p.parseComparison, TokenEq, TokenNotEq)
}

func (p *Parser) parseComparison() Node {
	return p.parseBinary(p.parseAddition, TokenLess, TokenGreater, TokenLessEq, TokenGreaterEq)
}

func (p *Parser) parseAddition() Node {
	return p.parseBinary(p.parseTerm, TokenPlus, TokenMinus)
}

func (p *Parser) parseTerm() Node {
	return p.parseBinary(p.parseUnary, TokenStar, TokenSlash)
}

func (p *Parser) parseUnary() Node {
	if p.curTokenIs(TokenMinus) || p.curTokenIs(TokenBang) {
		op := p.curToken
		p.nextToken()
		operand := p.parseOperand(op, p.parseUnary)
		return &Unary{SpanVal: p.span(op.Pos), Op: op.Type, Operand: operand}
	}
	return p.parsePostfix()
}

// parsePostfix parses calls, accessors and indexing. A '(' or '[' only
// continues the expression when it is on the same line as the callee.
func (p *Parser) parsePostfix() Node {
	start := p.curToken.Pos
	n := p.parsePrimary()
	for {
		switch {
		case p.curTokenIs(TokenLParen) && p.sameLine():
			p.nextToken()
			var args []Node
			for !p.curTokenIs(TokenRParen) {
				p.checkUnclosed(TokenRParen)
				args = append(args, p.parseExpression())
				if !p.curTokenIs(TokenComma) {
					break
				}
				p.nextToken()
			}
			p.expect(TokenRParen)
			n = &Call{SpanVal: p.span(start), Callee: n, Args: args}
		case p.curTokenIs(TokenLBracket) && p.sameLine():
			p.nextToken()
			idx := p.parseExpression()
			p.expect(TokenRBracket)
			n = &Index{SpanVal: p.span(start), Object: n, Index: idx}
		case p.curTokenIs(TokenDot):
			p.nextToken()
			switch p.curToken.Type {
			case TokenIdentifier:
				p.nextToken()
				n = &Accessor{SpanVal: p.span(start), Object: n, Field: p.prevToken.Literal}
			case TokenNumber:
				// t.0.1 lexes its path as the single number "0.1".
				p.nextToken()
				for _, field := range strings.Split(p.prevToken.Literal, ".") {
					n = &Accessor{SpanVal: p.span(start), Object: n, Field: field}
				}
			default:
				p.fail(vm.ErrUnexpectedToken, "expected a field name after '.', got %s", p.describe(p.curToken))
			}
		default:
			return n
		}
	}
}

// ---------------------------------------------------------------------------
// Primary expressions
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() Node {
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		return p.parseNumber()
	case TokenString:
		p.nextToken()
		return &StringLit{SpanVal: p.span(tok.Pos), Value: tok.Literal}
	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLit{SpanVal: p.span(tok.Pos), Value: tok.Type == TokenTrue}
	case TokenNil:
		p.nextToken()
		return &NilLit{SpanVal: p.span(tok.Pos)}
	case TokenIdentifier:
		p.nextToken()
		return &Ident{SpanVal: p.span(tok.Pos), Name: tok.Literal}
	case TokenLParen:
		return p.parseParen()
	case TokenLBracket:
		return p.parseArray()
	case TokenLBrace:
		return p.parseBlock()
	case TokenVar:
		return p.parseVarDecl()
	case TokenTypeKw:
		return p.parseTypeDecl()
	case TokenReturn:
		p.nextToken()
		value := p.parseOperand(tok, p.parseExpression)
		return &Return{SpanVal: p.span(tok.Pos), Value: value}
	case TokenFn:
		return p.parseLambda()
	case TokenMatch:
		return p.parseMatch()
	}
	p.fail(vm.ErrUnexpectedToken, "unexpected %s", p.describe(tok))
	return nil
}

func (p *Parser) parseNumber() *NumberLit {
	tok := p.curToken
	v, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.fail(vm.ErrUnexpectedToken, "invalid number %q", tok.Literal)
	}
	p.nextToken()
	return &NumberLit{SpanVal: p.span(tok.Pos), Value: v}
}

// parseParen parses a grouping, a tuple or a record literal. A single
// positional element without a trailing comma is a grouping.
func (p *Parser) parseParen() Node {
	start := p.expect(TokenLParen).Pos
	var elems []Node
	trailingComma := false
	for !p.curTokenIs(TokenRParen) {
		p.checkUnclosed(TokenRParen)
		trailingComma = false
		if p.curTokenIs(TokenIdentifier) && p.peekTokenIs(TokenColon) {
			name := p.curToken
			p.nextToken()
			colon := p.curToken
			p.nextToken()
			value := p.parseOperand(colon, p.parseExpression)
			elems = append(elems, &Field{SpanVal: p.span(name.Pos), Name: name.Literal, Value: value})
		} else {
			elems = append(elems, p.parseExpression())
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
		trailingComma = true
	}
	p.expect(TokenRParen)
	if len(elems) == 1 && !trailingComma {
		if _, keyed := elems[0].(*Field); !keyed {
			return elems[0]
		}
	}
	return &TupleLit{SpanVal: p.span(start), Elems: elems}
}

func (p *Parser) parseArray() *ArrayLit {
	start := p.expect(TokenLBracket).Pos
	elems := []Node{}
	for !p.curTokenIs(TokenRBracket) {
		p.checkUnclosed(TokenRBracket)
		elems = append(elems, p.parseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRBracket)
	return &ArrayLit{SpanVal: p.span(start), Elems: elems}
}

func (p *Parser) parseBlock() *Block {
	start := p.expect(TokenLBrace).Pos
	var stmts []Node
	for !p.curTokenIs(TokenRBrace) {
		p.checkUnclosed(TokenRBrace)
		stmts = append(stmts, p.parseStatement())
	}
	p.expect(TokenRBrace)
	return &Block{SpanVal: p.span(start), Stmts: stmts}
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// parseVarDecl parses
//
//	var name :: T = init
//	var name = init :: T
//	var (a, _, (b, c)) = init
func (p *Parser) parseVarDecl() Node {
	start := p.expect(TokenVar)
	var (
		name    string
		pattern *DestrPattern
		typ     TypeExpr
		init    Node
	)
	switch p.curToken.Type {
	case TokenIdentifier:
		name = p.curToken.Literal
		p.nextToken()
	case TokenLParen:
		pattern = p.parseDestrPattern()
	default:
		p.fail(vm.ErrUnexpectedToken, "expected a name after 'var', got %s", p.describe(p.curToken))
	}

	if p.curTokenIs(TokenDoubleColon) {
		p.nextToken()
		typ = p.parseType()
	}
	if p.curTokenIs(TokenAssign) {
		assign := p.curToken
		p.nextToken()
		init = p.parseOperand(assign, p.parseExpression)
		if typ == nil && p.curTokenIs(TokenDoubleColon) {
			p.nextToken()
			typ = p.parseType()
		}
	}
	if typ == nil && init == nil {
		p.fail(vm.ErrNoRHS, "declaration needs a type or an initializer")
	}

	if pattern != nil {
		return &DestructureDecl{SpanVal: p.span(start.Pos), Pattern: pattern, Type: typ, Init: init}
	}
	return &VarDecl{SpanVal: p.span(start.Pos), Name: name, Type: typ, Init: init}
}

func (p *Parser) parseDestrPattern() *DestrPattern {
	start := p.expect(TokenLParen).Pos
	elems := []*DestrPattern{}
	for !p.curTokenIs(TokenRParen) {
		p.checkUnclosed(TokenRParen)
		switch p.curToken.Type {
		case TokenLParen:
			elems = append(elems, p.parseDestrPattern())
		case TokenIdentifier, TokenUnderscore:
			tok := p.curToken
			p.nextToken()
			elems = append(elems, &DestrPattern{SpanVal: p.span(tok.Pos), Name: tok.Literal})
		default:
			p.fail(vm.ErrUnexpectedToken, "expected a name or '(' in pattern, got %s", p.describe(p.curToken))
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
	if len(elems) == 0 {
		p.fail(vm.ErrUnexpectedToken, "empty destructuring pattern")
	}
	return &DestrPattern{SpanVal: p.span(start), Elems: elems}
}

func (p *Parser) parseTypeDecl() *TypeDecl {
	start := p.expect(TokenTypeKw).Pos
	if !p.curTokenIs(TokenIdentifier) {
		p.fail(vm.ErrUnexpectedToken, "expected a type name, got %s", p.describe(p.curToken))
	}
	name := p.curToken.Literal
	p.nextToken()
	p.expect(TokenDoubleColon)
	typ := p.parseType()
	return &TypeDecl{SpanVal: p.span(start), Name: name, Type: typ}
}

// parseLambda parses fn(x: T, y: U) => body.
func (p *Parser) parseLambda() *Lambda {
	start := p.expect(TokenFn).Pos
	p.expect(TokenLParen)
	var params []*Param
	for !p.curTokenIs(TokenRParen) {
		if !p.curTokenIs(TokenIdentifier) {
			p.fail(vm.ErrUnexpectedToken, "expected a parameter name, got %s", p.describe(p.curToken))
		}
		name := p.curToken
		p.nextToken()
		p.expect(TokenColon)
		typ := p.parseType()
		params = append(params, &Param{SpanVal: p.span(name.Pos), Name: name.Literal, Type: typ})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
	arrow := p.expect(TokenFatArrow)
	body := p.parseOperand(arrow, p.parseExpression)
	return &Lambda{SpanVal: p.span(start), Params: params, Body: body}
}

// ---------------------------------------------------------------------------
// Pattern matching
// ---------------------------------------------------------------------------

// parseMatch parses match subject | pattern -> body ...
func (p *Parser) parseMatch() *Match {
	start := p.expect(TokenMatch)
	subject := p.parseOperand(start, p.parseExpression)
	m := &Match{Subject: subject}
	if !p.curTokenIs(TokenBar) {
		p.fail(vm.ErrUnexpectedToken, "expected '|' to start a match arm, got %s", p.describe(p.curToken))
	}
	for p.curTokenIs(TokenBar) {
		armStart := p.curToken.Pos
		p.nextToken()
		pat := p.parsePattern()
		arrow := p.expect(TokenArrow)
		body := p.parseOperand(arrow, p.parseExpression)
		m.Arms = append(m.Arms, &MatchArm{SpanVal: p.span(armStart), Pattern: pat, Body: body})
	}
	m.SpanVal = p.span(start.Pos)
	return m
}

func (p *Parser) parsePattern() Node {
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		lit := p.parseNumber()
		return &LiteralPattern{SpanVal: lit.SpanVal, Value: lit}
	case TokenMinus:
		p.nextToken()
		if !p.curTokenIs(TokenNumber) {
			p.fail(vm.ErrUnexpectedToken, "expected a number after '-' in pattern")
		}
		lit := p.parseNumber()
		lit.Value = -lit.Value
		lit.SpanVal = p.span(tok.Pos)
		return &LiteralPattern{SpanVal: lit.SpanVal, Value: lit}
	case TokenString, TokenTrue, TokenFalse, TokenNil:
		lit := p.parsePrimary()
		return &LiteralPattern{SpanVal: lit.Span(), Value: lit}
	case TokenUnderscore:
		p.nextToken()
		return &WildcardPattern{SpanVal: p.span(tok.Pos)}
	}
	typ := p.parseAtomType()
	return &TypePattern{SpanVal: typ.Span(), Type: typ}
}

// ---------------------------------------------------------------------------
// Type expressions
// ---------------------------------------------------------------------------

// parseType parses sumType ('=>' type)?. The arrow is right-associative.
func (p *Parser) parseType() TypeExpr {
	start := p.curToken.Pos
	t := p.parseSumType()
	if p.curTokenIs(TokenFatArrow) {
		p.nextToken()
		result := p.parseType()
		return &FunctionType{SpanVal: p.span(start), Param: t, Result: result}
	}
	return t
}

func (p *Parser) parseSumType() TypeExpr {
	start := p.curToken.Pos
	first := p.parseAtomType()
	if !p.curTokenIs(TokenBar) {
		return first
	}
	variants := []TypeExpr{first}
	for p.curTokenIs(TokenBar) {
		p.nextToken()
		variants = append(variants, p.parseAtomType())
	}
	return &SumType{SpanVal: p.span(start), Variants: variants}
}

func (p *Parser) parseAtomType() TypeExpr {
	tok := p.curToken
	switch tok.Type {
	case TokenIdentifier:
		p.nextToken()
		n := &NamedType{Name: tok.Literal}
		if p.curTokenIs(TokenLess) {
			p.nextToken()
			for {
				n.Args = append(n.Args, p.parseType())
				if !p.curTokenIs(TokenComma) {
					break
				}
				p.nextToken()
			}
			p.expect(TokenGreater)
		}
		n.SpanVal = p.span(tok.Pos)
		return n
	case TokenNil:
		p.nextToken()
		return &NamedType{SpanVal: p.span(tok.Pos), Name: vm.NilTypeName}
	case TokenUnderscore:
		p.nextToken()
		return &WildcardType{SpanVal: p.span(tok.Pos)}
	case TokenLParen:
		return p.parseProductType()
	case TokenLBracket:
		p.nextToken()
		elem := p.parseType()
		p.expect(TokenRBracket)
		return &ArrayType{SpanVal: p.span(tok.Pos), Elem: elem}
	}
	p.fail(vm.ErrUnexpectedToken, "expected a type, got %s", p.describe(tok))
	return nil
}

// parseProductType parses (T, U) or (x: T, y: U). A single positional
// field without a trailing comma is a grouping.
func (p *Parser) parseProductType() TypeExpr {
	start := p.expect(TokenLParen).Pos
	var fields []*FieldType
	trailingComma := false
	for !p.curTokenIs(TokenRParen) {
		p.checkUnclosed(TokenRParen)
		trailingComma = false
		fieldStart := p.curToken.Pos
		name := ""
		if (p.curTokenIs(TokenIdentifier) || p.curTokenIs(TokenUnderscore)) && p.peekTokenIs(TokenColon) {
			name = p.curToken.Literal
			p.nextToken()
			p.nextToken()
		}
		typ := p.parseType()
		fields = append(fields, &FieldType{SpanVal: p.span(fieldStart), Name: name, Type: typ})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
		trailingComma = true
	}
	p.expect(TokenRParen)
	if len(fields) == 1 && fields[0].Name == "" && !trailingComma {
		return fields[0].Type
	}
	return &ProductType{SpanVal: p.span(start), Fields: fields}
}
