package vm

import (
	"strconv"
	"strings"
)

// Names of the built-in primitive types.
const (
	NumTypeName    = "Num"
	BoolTypeName   = "Bool"
	StringTypeName = "String"
	NilTypeName    = "Nil"
	AnyTypeName    = "Any"
	WildcardField  = "_"
)

// TypeRegistry interns type descriptors by canonical name.
//
// The registry is owned by whoever owns the compilation session and is passed
// explicitly to the compiler and the VM. It is append-only: descriptors are
// never removed, so *Type pointers stay valid for the registry's lifetime.
type TypeRegistry struct {
	byName map[string]*Type
	byID   []*Type

	Num    *Type
	Bool   *Type
	String *Type
	Nil    *Type
	Any    *Type
}

// NewTypeRegistry creates a registry holding the built-in primitives.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		byName: make(map[string]*Type),
		byID:   make([]*Type, 0, 64),
	}
	r.Num = r.primitive(NumTypeName, Num(0))
	r.Bool = r.primitive(BoolTypeName, False)
	// String's default is the empty string; it is allocated at run time.
	r.String = r.primitive(StringTypeName, Nil)
	r.Nil = r.primitive(NilTypeName, Nil)
	r.Any = r.primitive(AnyTypeName, Nil)
	return r
}

func (r *TypeRegistry) primitive(name string, def Value) *Type {
	return r.Intern(name, func(t *Type) {
		t.Category = CategoryPrimitive
		t.Default = def
	})
}

// Intern returns the descriptor registered under name, or constructs one with
// build, registers it, and returns it. build is called at most once per name
// and receives a descriptor whose ID and Name are already set.
func (r *TypeRegistry) Intern(name string, build func(t *Type)) *Type {
	if t, ok := r.byName[name]; ok {
		return t
	}
	t := &Type{ID: len(r.byID), Name: name}
	if build != nil {
		build(t)
	}
	r.byName[name] = t
	r.byID = append(r.byID, t)
	return t
}

// Resolve looks up a descriptor by canonical name.
func (r *TypeRegistry) Resolve(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Lookup returns the descriptor with the given ID, or nil.
func (r *TypeRegistry) Lookup(id int) *Type {
	if id < 0 || id >= len(r.byID) {
		return nil
	}
	return r.byID[id]
}

// Len returns the number of descriptors, aliases included.
func (r *TypeRegistry) Len() int { return len(r.byID) }

// All returns every descriptor in creation order. Slot types always precede
// the composite types that reference them.
func (r *TypeRegistry) All() []*Type {
	out := make([]*Type, len(r.byID))
	copy(out, r.byID)
	return out
}

// AddSlot appends a named slot to t.
func (r *TypeRegistry) AddSlot(t *Type, name string, slot *Type) {
	t.addSlot(name, slot)
}

// Product interns a product type. An empty name marks a positional slot,
// which is named by its index.
func (r *TypeRegistry) Product(names []string, slots []*Type) *Type {
	fieldNames := make([]string, len(slots))
	for i := range slots {
		if i < len(names) && names[i] != "" {
			fieldNames[i] = names[i]
		} else {
			fieldNames[i] = strconv.Itoa(i)
		}
	}
	var b strings.Builder
	b.WriteByte('(')
	for i, s := range slots {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fieldNames[i])
		b.WriteByte(':')
		b.WriteString(s.Name)
	}
	b.WriteByte(')')
	return r.Intern(b.String(), func(t *Type) {
		t.Category = CategoryProduct
		for i, s := range slots {
			r.AddSlot(t, fieldNames[i], s)
		}
	})
}

// Tuple interns an anonymous product type.
func (r *TypeRegistry) Tuple(slots ...*Type) *Type {
	return r.Product(nil, slots)
}

// Sum interns a sum type. Nested sums are flattened and duplicate variants
// removed in encounter order. A sum with a single distinct variant is that
// variant.
func (r *TypeRegistry) Sum(variants ...*Type) *Type {
	var flat []*Type
	seen := make(map[*Type]bool)
	var add func(t *Type)
	add = func(t *Type) {
		if t.Category == CategorySum && !t.UserDefined {
			for _, v := range t.Slots {
				add(v)
			}
			return
		}
		if !seen[t] {
			seen[t] = true
			flat = append(flat, t)
		}
	}
	for _, v := range variants {
		add(v)
	}
	if len(flat) == 0 {
		return r.Nil
	}
	if len(flat) == 1 {
		return flat[0]
	}
	names := make([]string, len(flat))
	for i, v := range flat {
		names[i] = componentName(v)
	}
	return r.Intern(strings.Join(names, "|"), func(t *Type) {
		t.Category = CategorySum
		for i, v := range flat {
			r.AddSlot(t, strconv.Itoa(i), v)
		}
	})
}

// Function interns the type of a lambda from param to result.
func (r *TypeRegistry) Function(param, result *Type) *Type {
	name := componentName(param) + "=>" + result.Name
	return r.Intern(name, func(t *Type) {
		t.Category = CategoryFunction
		r.AddSlot(t, "0", param)
		r.AddSlot(t, "1", result)
	})
}

// Array interns the array type with the given element type.
func (r *TypeRegistry) Array(elem *Type) *Type {
	return r.Intern("["+elem.Name+"]", func(t *Type) {
		t.Category = CategoryArray
		r.AddSlot(t, "0", elem)
	})
}

// Parametric interns an applied parametric type such as Box<Num>. Parametric
// types are opaque: they only compare equal to themselves.
func (r *TypeRegistry) Parametric(name string, args []*Type) *Type {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name
	}
	return r.Intern(name+"<"+strings.Join(names, ",")+">", func(t *Type) {
		t.Category = CategoryParametric
		for i, a := range args {
			r.AddSlot(t, strconv.Itoa(i), a)
		}
	})
}

// Foreign interns the type of a host-provided function returning result.
func (r *TypeRegistry) Foreign(result *Type) *Type {
	return r.Intern("foreign=>"+result.Name, func(t *Type) {
		t.Category = CategoryForeignFunction
		r.AddSlot(t, "0", result)
	})
}

// Alias creates a user-defined type named name that shares the layout of
// underlying. Aliases get their own identity but are not registered by name;
// the declaring scope owns the name.
func (r *TypeRegistry) Alias(name string, underlying *Type) *Type {
	t := &Type{
		ID:          len(r.byID),
		Name:        name,
		Category:    underlying.Category,
		Default:     underlying.Default,
		Slots:       underlying.Slots,
		SlotNames:   underlying.SlotNames,
		slotIndex:   underlying.slotIndex,
		UserDefined: true,
		Underlying:  underlying,
	}
	r.byID = append(r.byID, t)
	return t
}

// componentName is the name of t as it appears inside another canonical
// name. Function types are parenthesized so that A=>B=>C and (A=>B)=>C stay
// distinct.
func componentName(t *Type) string {
	if t.Category == CategoryFunction && !t.UserDefined {
		return "(" + t.Name + ")"
	}
	return t.Name
}
