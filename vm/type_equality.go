package vm

// Equal reports nominal type equality. Product fields must agree by name and
// position; fields named "_" or typed Any in t1 are skipped, and t1 may not
// have more fields than t2. Aliases compare through their underlying layout.
func Equal(t1, t2 *Type) bool {
	return typeEqual(t1, t2, true)
}

// StructurallyEqual is Equal with field names ignored. It is the check applied
// to a call argument (t2) against the callee's parameter type (t1).
func StructurallyEqual(t1, t2 *Type) bool {
	return typeEqual(t1, t2, false)
}

// Accepts reports whether a value of type actual may be bound to a symbol
// declared as declared: the types are Equal, or declared is a sum and every
// variant of actual is Equal to one of its variants.
func Accepts(declared, actual *Type) bool {
	if Equal(declared, actual) {
		return true
	}
	d := declared.Layout()
	if d.Category != CategorySum {
		return false
	}
	for _, v := range variantsOf(actual) {
		if !anyVariant(d.Slots, v, true) {
			return false
		}
	}
	return true
}

// AcceptsArgument is the call-boundary counterpart of Accepts: field names
// are ignored, a sum parameter takes any argument whose variants all match
// its variants, and product parameters apply the same rule field by field.
func AcceptsArgument(param, arg *Type) bool {
	if StructurallyEqual(param, arg) {
		return true
	}
	if param == nil || arg == nil {
		return false
	}
	p, a := param.Layout(), arg.Layout()
	switch {
	case p.Category == CategorySum:
		for _, v := range variantsOf(a) {
			if !anyVariant(p.Slots, v, false) {
				return false
			}
		}
		return true
	case p.Category == CategoryProduct && a.Category == CategoryProduct:
		if len(p.Slots) > len(a.Slots) {
			return false
		}
		for i, slot := range p.Slots {
			if !IsAny(slot) && !AcceptsArgument(slot, a.Slots[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsAny reports whether t is the Any placeholder.
func IsAny(t *Type) bool {
	return t != nil && t.Category == CategoryPrimitive && t.Name == AnyTypeName
}

func typeEqual(t1, t2 *Type, nominal bool) bool {
	if t1 == nil || t2 == nil {
		return t1 == t2
	}
	if t1 == t2 {
		return true
	}
	if IsAny(t1) || IsAny(t2) {
		return true
	}
	a, b := t1.Layout(), t2.Layout()
	if a == b {
		return true
	}
	if a.Category == CategorySum || b.Category == CategorySum {
		return sumEqual(a, b, nominal)
	}
	if a.Category != b.Category {
		return false
	}
	switch a.Category {
	case CategoryProduct:
		return productEqual(a, b, nominal)
	case CategoryFunction:
		return typeEqual(a.Param(), b.Param(), nominal) &&
			typeEqual(a.Result(), b.Result(), nominal)
	case CategoryArray:
		return typeEqual(a.Elem(), b.Elem(), nominal)
	case CategoryForeignFunction:
		return typeEqual(a.Result(), b.Result(), nominal)
	default:
		// Primitives and parametric types are equal only when identical.
		return false
	}
}

func productEqual(a, b *Type, nominal bool) bool {
	if len(a.Slots) > len(b.Slots) {
		return false
	}
	for i, slot := range a.Slots {
		name := a.SlotNames[i]
		if IsAny(slot) || (nominal && name == WildcardField) {
			continue
		}
		if nominal && b.SlotNames[i] != name {
			return false
		}
		if !typeEqual(slot, b.Slots[i], nominal) {
			return false
		}
	}
	return true
}

// sumEqual treats a non-sum operand as a sum of one variant.
func sumEqual(a, b *Type, nominal bool) bool {
	va, vb := variantsOf(a), variantsOf(b)
	for _, v := range va {
		if !anyVariant(vb, v, nominal) {
			return false
		}
	}
	for _, v := range vb {
		if !anyVariant(va, v, nominal) {
			return false
		}
	}
	return true
}

func variantsOf(t *Type) []*Type {
	t = t.Layout()
	if t.Category == CategorySum {
		return t.Slots
	}
	return []*Type{t}
}

func anyVariant(variants []*Type, t *Type, nominal bool) bool {
	for _, v := range variants {
		if typeEqual(v, t, nominal) {
			return true
		}
	}
	return false
}
