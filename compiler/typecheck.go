package compiler

import "github.com/chazu/angstrom/vm"

// resolveType compiles a type expression to an interned descriptor.
// Structurally identical expressions resolve to the same *vm.Type.
func (c *Compiler) resolveType(te TypeExpr) (*vm.Type, error) {
	t, err := c.resolveTypeExpr(te)
	if err != nil {
		return nil, err
	}
	te.setType(t)
	return t, nil
}

func (c *Compiler) resolveTypeExpr(te TypeExpr) (*vm.Type, error) {
	switch n := te.(type) {
	case *NamedType:
		if len(n.Args) > 0 {
			args := make([]*vm.Type, len(n.Args))
			for i, a := range n.Args {
				t, err := c.resolveType(a)
				if err != nil {
					return nil, err
				}
				args[i] = t
			}
			return c.types.Parametric(n.Name, args), nil
		}
		if t, ok := c.scope.lookupType(n.Name); ok {
			return t, nil
		}
		if t, ok := c.types.Resolve(n.Name); ok && t.Category == vm.CategoryPrimitive {
			return t, nil
		}
		return nil, c.errorf(n, vm.ErrUnknownType, "unknown type '%s'", n.Name)

	case *WildcardType:
		return c.types.Any, nil

	case *ProductType:
		if len(n.Fields) == 0 {
			return c.types.Nil, nil
		}
		names := make([]string, len(n.Fields))
		slots := make([]*vm.Type, len(n.Fields))
		named := 0
		seen := make(map[string]bool)
		for i, f := range n.Fields {
			if f.Name != "" {
				named++
				if f.Name != vm.WildcardField && seen[f.Name] {
					return nil, c.errorf(f, vm.ErrNameCollision, "duplicate field '%s'", f.Name)
				}
				seen[f.Name] = true
			}
			t, err := c.resolveType(f.Type)
			if err != nil {
				return nil, err
			}
			f.setType(t)
			names[i] = f.Name
			slots[i] = t
		}
		if named > 0 && named < len(n.Fields) {
			return nil, c.errorf(n, vm.ErrIncompleteRecord, "record type mixes named and positional fields")
		}
		return c.types.Product(names, slots), nil

	case *SumType:
		variants := make([]*vm.Type, len(n.Variants))
		for i, v := range n.Variants {
			t, err := c.resolveType(v)
			if err != nil {
				return nil, err
			}
			variants[i] = t
		}
		return c.types.Sum(variants...), nil

	case *FunctionType:
		param, err := c.resolveType(n.Param)
		if err != nil {
			return nil, err
		}
		result, err := c.resolveType(n.Result)
		if err != nil {
			return nil, err
		}
		return c.types.Function(param, result), nil

	case *ArrayType:
		elem, err := c.resolveType(n.Elem)
		if err != nil {
			return nil, err
		}
		return c.types.Array(elem), nil
	}
	return nil, c.errorf(te, vm.ErrUnknownAST, "unsupported type expression")
}
