package compiler

import "github.com/chazu/angstrom/vm"

// ---------------------------------------------------------------------------
// Blocks, returns and lambdas
// ---------------------------------------------------------------------------

// openBlock pushes a block frame whose locals start at the current depth.
func (c *Compiler) openBlock() *scope {
	s := newScope(c.scope, c.fn)
	s.isBlock = true
	s.base = c.fn.depth
	c.scope = s
	return s
}

func (c *Compiler) closeScope(s *scope) {
	c.scope = s.parent
}

func (c *Compiler) compileBlock(n *Block) (*vm.Type, error) {
	stmts := n.Stmts
	if len(stmts) == 0 {
		stmts = []Node{&NilLit{SpanVal: n.SpanVal}}
	}
	s := c.openBlock()
	t, err := c.compileBlockBody(s, stmts)
	if err != nil {
		return nil, err
	}
	c.closeScope(s)
	return t, nil
}

// compileBlockBody compiles stmts in block frame s and emits the exit
// sequence: the result is parked in RV while the block's locals are popped,
// and returns land on the reload.
func (c *Compiler) compileBlockBody(s *scope, stmts []Node) (*vm.Type, error) {
	var last *vm.Type
	for i, stmt := range stmts {
		t, err := c.compileStmt(stmt, i == len(stmts)-1)
		if err != nil {
			return nil, err
		}
		last = t
	}

	locals := c.fn.depth - 1 - s.base
	if locals > 0 || len(s.returns) > 0 {
		c.emitReg(vm.OpRStore, vm.RegRV)
		if locals > 0 {
			c.emit(vm.OpPopN, vm.IntWord(locals))
		}
		for _, r := range s.returns {
			c.code.PatchJump(r)
		}
		c.emitReg(vm.OpRLoad, vm.RegRV)
	}

	types := s.returnTypes
	if _, isReturn := stmts[len(stmts)-1].(*Return); !isReturn {
		types = append(types, last)
	}
	return c.types.Sum(types...), nil
}

// compileReturn leaves the innermost block with a value.
func (c *Compiler) compileReturn(n *Return) (*vm.Type, error) {
	blk := c.scope.enclosingBlock()
	if blk == nil {
		return nil, c.errorf(n, vm.ErrNonBlockReturn, "return outside of a block")
	}
	depth := c.fn.depth
	t, err := c.compileExpr(n.Value)
	if err != nil {
		return nil, err
	}
	c.emitReg(vm.OpRStore, vm.RegRV)
	if extra := c.fn.depth - blk.base; extra > 0 {
		c.emit(vm.OpPopN, vm.IntWord(extra))
	}
	blk.returns = append(blk.returns, c.emitJump(vm.OpJmp))
	blk.returnTypes = append(blk.returnTypes, t)

	// Code after the jump is unreachable; keep the depth as if the return
	// had produced a value in place.
	c.fn.depth = depth + 1
	return t, nil
}

// compileLambda emits the body out of line behind a jump and then builds
// the closure. The body runs in a new call frame whose environment is a
// copy of the defining frame, so enclosing locals keep their slot numbers.
func (c *Compiler) compileLambda(n *Lambda) (*vm.Type, error) {
	names := make([]string, len(n.Params))
	types := make([]*vm.Type, len(n.Params))
	seen := make(map[string]bool)
	for i, p := range n.Params {
		if seen[p.Name] {
			return nil, c.errorf(p, vm.ErrNameCollision, "duplicate parameter '%s'", p.Name)
		}
		seen[p.Name] = true
		t, err := c.resolveType(p.Type)
		if err != nil {
			return nil, err
		}
		p.setType(t)
		names[i] = p.Name
		types[i] = t
	}

	var param *vm.Type
	switch len(types) {
	case 0:
		param = c.types.Nil
	case 1:
		param = types[0]
	default:
		param = c.types.Product(names, types)
	}

	skip := c.emitJump(vm.OpJmp)
	entry := c.code.Here()

	outer := c.fn
	c.fn = &funcState{depth: outer.depth, parent: outer}
	s := c.openBlock()

	result, err := c.compileBlockBody(s, c.lowerLambda(n, param))
	if err != nil {
		return nil, err
	}
	c.emit(vm.OpRet)
	c.closeScope(s)
	c.fn = outer
	c.code.PatchJump(skip)

	if b, ok := n.Body.(*Block); ok {
		b.setType(result)
	}
	fnType := c.types.Function(param, result)
	c.emit(vm.OpClosure, vm.TypeWord(fnType), vm.IntWord(entry))
	return fnType, nil
}

// lowerLambda turns the parameters into immutable declarations read from
// the argument register, followed by the body statements.
func (c *Compiler) lowerLambda(n *Lambda, param *vm.Type) []Node {
	var stmts []Node
	arg := &Placeholder{SpanVal: n.SpanVal, Type: param}
	switch len(n.Params) {
	case 0:
	case 1:
		p := n.Params[0]
		stmts = append(stmts, &VarDecl{SpanVal: p.SpanVal, Name: p.Name, Init: arg, Immutable: true})
	default:
		pattern := &DestrPattern{SpanVal: n.SpanVal}
		for _, p := range n.Params {
			pattern.Elems = append(pattern.Elems, &DestrPattern{SpanVal: p.SpanVal, Name: p.Name})
		}
		stmts = append(stmts, &DestructureDecl{SpanVal: n.SpanVal, Pattern: pattern, Init: arg, Immutable: true})
	}

	if b, ok := n.Body.(*Block); ok {
		if len(b.Stmts) == 0 {
			return append(stmts, &NilLit{SpanVal: b.SpanVal})
		}
		return append(stmts, b.Stmts...)
	}
	return append(stmts, n.Body)
}

// compileCall pushes the callee and a single argument: nil for no
// arguments, the value for one and a tuple for several.
func (c *Compiler) compileCall(n *Call) (*vm.Type, error) {
	ft, err := c.compileExpr(n.Callee)
	if err != nil {
		return nil, err
	}
	lay := ft.Layout()
	var result *vm.Type
	switch {
	case vm.IsAny(ft):
		result = c.types.Any
	case lay.IsCallable():
		result = lay.Result()
	default:
		return nil, c.errorf(n.Callee, vm.ErrNonLambdaCall, "cannot call a value of type %s", ft)
	}

	var arg *vm.Type
	switch len(n.Args) {
	case 0:
		c.emitPush(vm.Nil)
		arg = c.types.Nil
	case 1:
		if arg, err = c.compileExpr(n.Args[0]); err != nil {
			return nil, err
		}
	default:
		slots := make([]*vm.Type, len(n.Args))
		for i := len(n.Args) - 1; i >= 0; i-- {
			if slots[i], err = c.compileExpr(n.Args[i]); err != nil {
				return nil, err
			}
		}
		arg = c.types.Tuple(slots...)
		c.emit(vm.OpTuple, vm.TypeWord(arg), vm.IntWord(len(slots)))
	}

	if lay.Category == vm.CategoryFunction && !vm.AcceptsArgument(lay.Param(), arg) {
		return nil, c.errorf(n, vm.ErrInvalidLambdaParam, "argument of type %s does not match parameter type %s", arg, lay.Param())
	}
	c.emit(vm.OpCall)
	return result, nil
}
