package compiler

import "github.com/chazu/angstrom/vm"

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// compileVarDecl declares a variable. Top-level declarations are globals;
// anywhere else the initializer's stack slot becomes the local.
func (c *Compiler) compileVarDecl(n *VarDecl, last bool) (*vm.Type, error) {
	if _, exists := c.scope.symbols[n.Name]; exists {
		return nil, c.errorf(n, vm.ErrNameCollision, "'%s' is already declared in this scope", n.Name)
	}
	global := c.scope == c.root

	var declared *vm.Type
	if n.Type != nil {
		t, err := c.resolveType(n.Type)
		if err != nil {
			return nil, err
		}
		declared = t
	}

	sym := &Symbol{
		Name:     n.Name,
		Type:     declared,
		Mutable:  !n.Immutable,
		Assigned: n.Init != nil,
		Global:   global,
		Pos:      n.SpanVal.Start,
	}

	// An annotated global is visible to its own initializer, so a lambda
	// bound to it can call itself.
	predeclared := global && declared != nil
	if predeclared {
		sym.Location = c.allocGlobal()
		if err := c.declare(n, sym); err != nil {
			return nil, err
		}
	}

	t := declared
	if n.Init != nil {
		it, err := c.compileExpr(n.Init)
		if err != nil {
			return nil, err
		}
		if declared != nil && !vm.Accepts(declared, it) {
			return nil, c.errorf(n.Init, vm.ErrTypeError, "cannot initialize '%s' of type %s with %s", n.Name, declared, it)
		}
		if declared == nil {
			t = it
		}
	} else {
		c.emitDefault(declared)
	}
	sym.Type = t

	if global {
		if !predeclared {
			sym.Location = c.allocGlobal()
			if err := c.declare(n, sym); err != nil {
				return nil, err
			}
		}
		c.emit(vm.OpGStore, vm.IntWord(sym.Location))
		if !last {
			c.emit(vm.OpPop)
		}
	} else {
		sym.Location = c.fn.depth - 1
		if err := c.declare(n, sym); err != nil {
			return nil, err
		}
		if last {
			c.emit(vm.OpLoad, vm.IntWord(sym.Location))
		}
	}
	n.setType(t)
	return t, nil
}

// emitDefault pushes the default value of t: the stored constant for
// primitives, the field defaults for products, the first variant's default
// for sums, an empty array for arrays and nil for everything else.
func (c *Compiler) emitDefault(t *vm.Type) {
	lay := t.Layout()
	switch lay.Category {
	case vm.CategoryPrimitive:
		if lay == c.types.String {
			c.emit(vm.OpStr, vm.StringWord(""))
			return
		}
		c.emitPush(lay.Default)
	case vm.CategoryProduct:
		for i := len(lay.Slots) - 1; i >= 0; i-- {
			c.emitDefault(lay.Slots[i])
		}
		c.emit(vm.OpTuple, vm.TypeWord(t), vm.IntWord(len(lay.Slots)))
	case vm.CategorySum:
		c.emitDefault(lay.Slots[0])
	case vm.CategoryArray:
		c.emit(vm.OpArray, vm.TypeWord(t), vm.IntWord(0))
	default:
		c.emitPush(vm.Nil)
	}
}

// destrLeaf is one binding of a destructuring pattern together with the
// slot path leading to it from the source value.
type destrLeaf struct {
	pattern *DestrPattern
	path    []int
	typ     *vm.Type
}

// checkPattern matches a destructuring pattern against the source type and
// collects its leaves in source order.
func (c *Compiler) checkPattern(p *DestrPattern, t *vm.Type, path []int, leaves []destrLeaf) ([]destrLeaf, error) {
	p.setType(t)
	if p.IsLeaf() {
		return append(leaves, destrLeaf{pattern: p, path: path, typ: t}), nil
	}
	lay := t.Layout()
	if lay.Category != vm.CategoryProduct {
		return nil, c.errorf(p, vm.ErrInvalidDestr, "cannot destructure a value of type %s", t)
	}
	if len(p.Elems) > len(lay.Slots) {
		return nil, c.errorf(p, vm.ErrInsufficientTuple, "pattern has %d elements but %s has %d", len(p.Elems), t, len(lay.Slots))
	}
	for i, e := range p.Elems {
		sub := make([]int, len(path)+1)
		copy(sub, path)
		sub[len(path)] = i
		var err error
		if leaves, err = c.checkPattern(e, lay.Slots[i], sub, leaves); err != nil {
			return nil, err
		}
	}
	return leaves, nil
}

// compileDestructure binds the leaves of a tuple pattern. The source value
// is parked in register C and each leaf is read back along its slot path.
func (c *Compiler) compileDestructure(n *DestructureDecl, last bool) (*vm.Type, error) {
	global := c.scope == c.root

	var declared *vm.Type
	if n.Type != nil {
		t, err := c.resolveType(n.Type)
		if err != nil {
			return nil, err
		}
		declared = t
	}

	src := declared
	if n.Init != nil {
		it, err := c.compileExpr(n.Init)
		if err != nil {
			return nil, err
		}
		if declared != nil && !vm.Accepts(declared, it) {
			return nil, c.errorf(n.Init, vm.ErrTypeError, "cannot destructure %s as %s", it, declared)
		}
		if declared == nil {
			src = it
		}
	} else {
		c.emitDefault(declared)
	}

	leaves, err := c.checkPattern(n.Pattern, src, nil, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, leaf := range leaves {
		name := leaf.pattern.Name
		if name == vm.WildcardField {
			continue
		}
		if _, exists := c.scope.symbols[name]; exists || seen[name] {
			return nil, c.errorf(leaf.pattern, vm.ErrNameCollision, "'%s' is already declared in this scope", name)
		}
		seen[name] = true
	}

	c.emitReg(vm.OpRStore, vm.RegC)
	for _, leaf := range leaves {
		if leaf.pattern.Name == vm.WildcardField {
			continue
		}
		c.emitReg(vm.OpRLoad, vm.RegC)
		for _, idx := range leaf.path {
			c.emitPush(vm.Num(float64(idx)))
			c.emit(vm.OpTIndex)
		}
		sym := &Symbol{
			Name:     leaf.pattern.Name,
			Type:     leaf.typ,
			Mutable:  !n.Immutable,
			Assigned: true,
			Global:   global,
			Pos:      leaf.pattern.SpanVal.Start,
		}
		if global {
			sym.Location = c.allocGlobal()
			c.emit(vm.OpGStore, vm.IntWord(sym.Location))
			c.emit(vm.OpPop)
		} else {
			sym.Location = c.fn.depth - 1
		}
		if err := c.declare(leaf.pattern, sym); err != nil {
			return nil, err
		}
	}

	n.setType(src)
	if last {
		c.emitPush(vm.Nil)
	}
	return c.types.Nil, nil
}

// compileTypeDecl registers a user-defined alias in the current frame.
func (c *Compiler) compileTypeDecl(n *TypeDecl, last bool) (*vm.Type, error) {
	if _, exists := c.scope.types[n.Name]; exists {
		return nil, c.errorf(n, vm.ErrNameCollision, "type '%s' is already declared in this scope", n.Name)
	}
	underlying, err := c.resolveType(n.Type)
	if err != nil {
		return nil, err
	}
	alias := c.types.Alias(n.Name, underlying)
	c.scope.types[n.Name] = alias
	if c.scope == c.root {
		c.newTypes = append(c.newTypes, n.Name)
	}
	n.setType(alias)
	if last {
		c.emitPush(vm.Nil)
	}
	return c.types.Nil, nil
}
