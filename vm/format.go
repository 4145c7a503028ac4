package vm

import (
	"strconv"
	"strings"
)

const maxFormatDepth = 16

// Format renders a value for display. Numbers always carry a fractional
// part ("11.0"), strings print raw at the top level and quoted inside
// composites.
func (vm *VM) Format(v Value) string {
	var b strings.Builder
	vm.formatValue(&b, v, 0)
	return b.String()
}

func (vm *VM) formatValue(b *strings.Builder, v Value, depth int) {
	switch v.Kind() {
	case KindNil:
		b.WriteString("nil")
	case KindNum:
		b.WriteString(formatNum(v.AsNum()))
	case KindBool:
		b.WriteString(strconv.FormatBool(v.AsBool()))
	case KindRef:
		vm.formatRef(b, v.AsRef(), depth)
	}
}

func (vm *VM) formatRef(b *strings.Builder, r Ref, depth int) {
	kind, ok := vm.heap.Kind(r)
	if !ok {
		b.WriteString("<freed>")
		return
	}
	t := vm.heap.TypeOf(r)
	switch kind {
	case ObjString:
		s, _ := vm.heap.String(r)
		if depth > 0 {
			b.WriteString(strconv.Quote(s))
		} else {
			b.WriteString(s)
		}
	case ObjElements:
		if depth >= maxFormatDepth {
			b.WriteString("...")
			return
		}
		elems, _ := vm.heap.Elements(r)
		open, closing := "(", ")"
		if t.Category == CategoryArray {
			open, closing = "[", "]"
		}
		named := t.Category == CategoryProduct && !positional(t)
		b.WriteString(open)
		for i, e := range elems {
			if i > 0 {
				b.WriteString(", ")
			}
			if named && i < len(t.SlotNames) {
				b.WriteString(t.SlotNames[i])
				b.WriteString(": ")
			}
			vm.formatValue(b, e, depth+1)
		}
		b.WriteString(closing)
	case ObjClosure:
		b.WriteString("<fn ")
		b.WriteString(t.Name)
		b.WriteString(">")
	case ObjNative:
		idx, _ := vm.heap.Native(r)
		b.WriteString("<native ")
		b.WriteString(vm.NativeName(idx))
		b.WriteString(">")
	}
}

// positional reports whether every slot of a product is named by its index.
func positional(t *Type) bool {
	for i, name := range t.SlotNames {
		if name != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

func formatNum(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.ContainsAny(s, ".nN") {
		return s
	}
	return s + ".0"
}

func (vm *VM) formatStack() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < vm.sp; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == vm.fp && i > 0 {
			b.WriteString("| ")
		}
		vm.formatValue(&b, vm.stack[i], 1)
	}
	b.WriteByte(']')
	return b.String()
}
