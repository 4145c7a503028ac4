package compiler

import "github.com/chazu/angstrom/vm"

// ---------------------------------------------------------------------------
// Pattern matching
// ---------------------------------------------------------------------------

// compileMatch parks the subject in register B and tests the arms in order.
// Each failed test jumps to the next arm; a matched arm jumps to the end
// with its value on the stack. Without a wildcard arm an unmatched subject
// yields nil.
//
//	<subject>  RSTORE B
//	arm:       RLOAD B  <test>  JMPF next  [bindings]  <body>  JMP end
//	next:      ...
//	           PUSH nil
//	end:
func (c *Compiler) compileMatch(n *Match) (*vm.Type, error) {
	subject, err := c.compileExpr(n.Subject)
	if err != nil {
		return nil, err
	}
	c.emitReg(vm.OpRStore, vm.RegB)
	base := c.fn.depth

	var (
		ends     []int
		types    []*vm.Type
		wildcard bool
		lastWild bool
	)
	for _, arm := range n.Arms {
		c.fn.depth = base
		next := -1
		lastWild = false

		var bindings *scope
		switch p := arm.Pattern.(type) {
		case *WildcardPattern:
			wildcard, lastWild = true, true
			p.setType(c.types.Any)

		case *LiteralPattern:
			c.emitReg(vm.OpRLoad, vm.RegB)
			lt, err := c.compileExpr(p.Value)
			if err != nil {
				return nil, err
			}
			if !vm.Accepts(subject, lt) {
				return nil, c.errorf(p, vm.ErrTypeError, "pattern of type %s can never match %s", lt, subject)
			}
			p.setType(lt)
			c.emit(vm.OpEq)
			next = c.emitJump(vm.OpJmpF)

		case *TypePattern:
			pt, err := c.resolveType(p.Type)
			if err != nil {
				return nil, err
			}
			p.setType(pt)
			c.emitReg(vm.OpRLoad, vm.RegB)
			prod, isProduct := p.Type.(*ProductType)
			if !isProduct {
				c.emit(vm.OpCmpType, vm.TypeWord(pt))
				next = c.emitJump(vm.OpJmpF)
				break
			}
			c.emit(vm.OpCmpStruct, vm.TypeWord(pt))
			next = c.emitJump(vm.OpJmpF)
			if bindings, err = c.bindFields(prod, pt); err != nil {
				return nil, err
			}

		default:
			return nil, c.errorf(arm.Pattern, vm.ErrUnknownAST, "unsupported pattern")
		}

		bt, err := c.compileExpr(arm.Body)
		if err != nil {
			return nil, err
		}
		if bindings != nil {
			if k := c.fn.depth - 1 - base; k > 0 {
				c.emitReg(vm.OpRStore, vm.RegRV)
				c.emit(vm.OpPopN, vm.IntWord(k))
				c.emitReg(vm.OpRLoad, vm.RegRV)
			}
			c.closeScope(bindings)
		}
		arm.setType(bt)
		types = append(types, bt)
		ends = append(ends, c.emitJump(vm.OpJmp))
		if next >= 0 {
			c.code.PatchJump(next)
		}
	}

	c.fn.depth = base
	if !lastWild {
		c.emitPush(vm.Nil)
	}
	if !wildcard {
		types = append(types, c.types.Nil)
	}
	for _, end := range ends {
		c.code.PatchJump(end)
	}
	c.fn.depth = base + 1
	return c.types.Sum(types...), nil
}

// bindFields declares the named fields of a matched product pattern as
// immutable locals in a new frame.
func (c *Compiler) bindFields(prod *ProductType, t *vm.Type) (*scope, error) {
	s := newScope(c.scope, c.fn)
	c.scope = s
	lay := t.Layout()
	for i, f := range prod.Fields {
		if f.Name == "" || f.Name == vm.WildcardField {
			continue
		}
		c.emitReg(vm.OpRLoad, vm.RegB)
		c.emitPush(vm.Num(float64(i)))
		c.emit(vm.OpTIndex)
		sym := &Symbol{
			Name:     f.Name,
			Type:     lay.Slots[i],
			Location: c.fn.depth - 1,
			Assigned: true,
			Pos:      f.SpanVal.Start,
		}
		if err := c.declare(f, sym); err != nil {
			return nil, err
		}
	}
	return s, nil
}
