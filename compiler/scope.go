package compiler

import "github.com/chazu/angstrom/vm"

// Symbol is a resolved variable binding.
type Symbol struct {
	Name     string
	Type     *vm.Type
	Location int // global slot or frame-relative stack slot
	Mutable  bool
	Assigned bool // a value has been stored, not just the default
	Global   bool
	Pos      Position
}

// funcState tracks the compile-time stack depth of one call frame. Depth
// counts values above the frame pointer: the captured environment, locals
// and temporaries. A local's Location is its depth index.
type funcState struct {
	depth  int
	parent *funcState
}

// scope is one frame of the lexical scope chain.
type scope struct {
	parent  *scope
	fn      *funcState
	symbols map[string]*Symbol
	types   map[string]*vm.Type
	order   []string // declaration order of symbols

	// Block frames collect return jumps patched to the block's exit.
	isBlock     bool
	base        int // depth when the block was entered
	returns     []int
	returnTypes []*vm.Type
}

func newScope(parent *scope, fn *funcState) *scope {
	return &scope{
		parent:  parent,
		fn:      fn,
		symbols: make(map[string]*Symbol),
		types:   make(map[string]*vm.Type),
	}
}

func (s *scope) isRoot() bool { return s.parent == nil }

// declare adds a symbol to this frame. It reports false when the name is
// already declared here.
func (s *scope) declare(sym *Symbol) bool {
	if _, exists := s.symbols[sym.Name]; exists {
		return false
	}
	s.symbols[sym.Name] = sym
	s.order = append(s.order, sym.Name)
	return true
}

// lookup resolves a name through the scope chain.
func (s *scope) lookup(name string) (*Symbol, bool) {
	for f := s; f != nil; f = f.parent {
		if sym, ok := f.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// lookupType resolves a declared type name through the scope chain.
func (s *scope) lookupType(name string) (*vm.Type, bool) {
	for f := s; f != nil; f = f.parent {
		if t, ok := f.types[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// enclosingBlock returns the innermost block frame, or nil.
func (s *scope) enclosingBlock() *scope {
	for f := s; f != nil; f = f.parent {
		if f.isBlock {
			return f
		}
	}
	return nil
}

// remove deletes a symbol and a type name from this frame. It is used to
// roll back the root frame after a failed unit.
func (s *scope) remove(symbols, types []string) {
	for _, name := range symbols {
		delete(s.symbols, name)
	}
	for _, name := range types {
		delete(s.types, name)
	}
	if len(symbols) == 0 {
		return
	}
	kept := s.order[:0]
	for _, name := range s.order {
		if _, ok := s.symbols[name]; ok {
			kept = append(kept, name)
		}
	}
	s.order = kept
}
