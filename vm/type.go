package vm

import "fmt"

// Category classifies a type descriptor.
type Category uint8

const (
	CategoryPrimitive Category = iota
	CategorySum
	CategoryProduct
	CategoryFunction
	CategoryArray
	CategoryParametric
	CategoryForeignFunction
)

var categoryNames = [...]string{
	CategoryPrimitive:       "primitive",
	CategorySum:             "sum",
	CategoryProduct:         "product",
	CategoryFunction:        "function",
	CategoryArray:           "array",
	CategoryParametric:      "parametric",
	CategoryForeignFunction: "foreign-function",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", c)
}

// Type is a type descriptor. Descriptors are created by a TypeRegistry and
// compared by pointer: two descriptors with the same canonical name are the
// same *Type.
//
// Slot layout by category:
//   - product: one slot per field, named by field name or position
//   - sum: one slot per variant
//   - function: slot 0 is the parameter, slot 1 the result
//   - array: slot 0 is the element type
//   - parametric: one slot per type argument
//   - foreign function: slot 0 is the result type
type Type struct {
	ID       int
	Name     string
	Category Category

	// Default is the stored default for primitives. Composite defaults are
	// built from their slots by the compiler.
	Default Value

	Slots     []*Type
	SlotNames []string
	slotIndex map[string]int

	// UserDefined is set on aliases introduced by a type declaration.
	// Aliases share slot layout with Underlying.
	UserDefined bool
	Underlying  *Type
}

func (t *Type) String() string {
	if t == nil {
		return "<nil type>"
	}
	return t.Name
}

// SlotIndex returns the index of the named slot.
func (t *Type) SlotIndex(name string) (int, bool) {
	if t.slotIndex == nil {
		return 0, false
	}
	i, ok := t.slotIndex[name]
	return i, ok
}

// NumSlots returns the number of slots.
func (t *Type) NumSlots() int { return len(t.Slots) }

// Layout returns the structural type an alias stands for, or t itself.
func (t *Type) Layout() *Type {
	for t.UserDefined && t.Underlying != nil {
		t = t.Underlying
	}
	return t
}

// Param returns the parameter type of a function type.
func (t *Type) Param() *Type {
	if t.Category != CategoryFunction || len(t.Slots) < 2 {
		return nil
	}
	return t.Slots[0]
}

// Result returns the result type of a function or foreign-function type.
func (t *Type) Result() *Type {
	switch t.Category {
	case CategoryFunction:
		if len(t.Slots) == 2 {
			return t.Slots[1]
		}
	case CategoryForeignFunction:
		if len(t.Slots) == 1 {
			return t.Slots[0]
		}
	}
	return nil
}

// Elem returns the element type of an array type.
func (t *Type) Elem() *Type {
	if t.Category != CategoryArray || len(t.Slots) != 1 {
		return nil
	}
	return t.Slots[0]
}

// IsCallable reports whether values of t can be the callee of CALL.
func (t *Type) IsCallable() bool {
	return t.Category == CategoryFunction || t.Category == CategoryForeignFunction
}

func (t *Type) addSlot(name string, slot *Type) {
	if t.slotIndex == nil {
		t.slotIndex = make(map[string]int)
	}
	t.slotIndex[name] = len(t.Slots)
	t.Slots = append(t.Slots, slot)
	t.SlotNames = append(t.SlotNames, name)
}
