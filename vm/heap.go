package vm

import "fmt"

// Ref is a handle to a heap object. A handle stays valid until the object it
// names is swept; after that the slot's generation moves on and the stale
// handle no longer resolves.
type Ref struct {
	index uint32
	gen   uint32
}

func (r Ref) String() string {
	return fmt.Sprintf("#%d.%d", r.index, r.gen)
}

// ObjectKind discriminates heap object payloads.
type ObjectKind uint8

const (
	ObjString ObjectKind = iota + 1
	ObjElements
	ObjClosure
	ObjNative
)

const noLink = -1

type object struct {
	gen    uint32
	live   bool
	marked bool
	next   int32 // intrusive list of live objects

	typ  *Type
	kind ObjectKind

	str    string
	elems  []Value // product fields or array elements
	entry  int
	env    []Value // captured stack frame
	native int
}

// DefaultGCThreshold is the number of live objects that triggers the first
// collection.
const DefaultGCThreshold = 50

// Heap is an arena of garbage-collected objects.
//
// Freed slots go on a free list and are reused. Every allocation links the
// object into an intrusive list that the sweeper walks. When the live count
// reaches the threshold the heap flags a pending collection; the VM runs it at
// the next instruction boundary.
type Heap struct {
	slots []object
	free  []uint32
	head  int32

	count            int
	threshold        int
	initialThreshold int
	pending          bool

	stats GCStats
}

// NewHeap creates a heap that first collects at threshold live objects.
func NewHeap(threshold int) *Heap {
	if threshold <= 0 {
		threshold = DefaultGCThreshold
	}
	return &Heap{
		slots:            make([]object, 0, threshold),
		head:             noLink,
		threshold:        threshold,
		initialThreshold: threshold,
	}
}

// Len returns the number of live objects.
func (h *Heap) Len() int { return h.count }

// Threshold returns the live count at which the next collection is flagged.
func (h *Heap) Threshold() int { return h.threshold }

// Pending reports whether a collection has been requested.
func (h *Heap) Pending() bool { return h.pending }

func (h *Heap) alloc(t *Type, kind ObjectKind) (Ref, *object) {
	var idx uint32
	if n := len(h.free); n > 0 {
		idx = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		idx = uint32(len(h.slots))
		h.slots = append(h.slots, object{})
	}
	o := &h.slots[idx]
	gen := o.gen + 1
	*o = object{gen: gen, live: true, next: h.head, typ: t, kind: kind}
	h.head = int32(idx)
	h.count++
	if h.count >= h.threshold {
		h.pending = true
	}
	return Ref{index: idx, gen: gen}, o
}

// AllocString allocates a string object.
func (h *Heap) AllocString(t *Type, s string) Ref {
	r, o := h.alloc(t, ObjString)
	o.str = s
	return r
}

// AllocElements allocates a product or array holding a copy of elems.
func (h *Heap) AllocElements(t *Type, elems []Value) Ref {
	r, o := h.alloc(t, ObjElements)
	o.elems = append(make([]Value, 0, len(elems)), elems...)
	return r
}

// AllocClosure allocates a closure over a copy of env.
func (h *Heap) AllocClosure(t *Type, entry int, env []Value) Ref {
	r, o := h.alloc(t, ObjClosure)
	o.entry = entry
	o.env = append(make([]Value, 0, len(env)), env...)
	return r
}

// AllocNative allocates a foreign function object.
func (h *Heap) AllocNative(t *Type, index int) Ref {
	r, o := h.alloc(t, ObjNative)
	o.native = index
	return r
}

func (h *Heap) get(r Ref) *object {
	if int(r.index) >= len(h.slots) {
		return nil
	}
	o := &h.slots[r.index]
	if !o.live || o.gen != r.gen {
		return nil
	}
	return o
}

// IsLive reports whether r names an object that has not been freed.
func (h *Heap) IsLive(r Ref) bool { return h.get(r) != nil }

// Kind returns the payload kind of the object r names.
func (h *Heap) Kind(r Ref) (ObjectKind, bool) {
	o := h.get(r)
	if o == nil {
		return 0, false
	}
	return o.kind, true
}

// TypeOf returns the type descriptor of the object r names.
func (h *Heap) TypeOf(r Ref) *Type {
	if o := h.get(r); o != nil {
		return o.typ
	}
	return nil
}

// String returns the contents of a string object.
func (h *Heap) String(r Ref) (string, bool) {
	o := h.get(r)
	if o == nil || o.kind != ObjString {
		return "", false
	}
	return o.str, true
}

// Elements returns the element list of a product or array. The slice is
// shared with the heap; writes through it mutate the object.
func (h *Heap) Elements(r Ref) ([]Value, bool) {
	o := h.get(r)
	if o == nil || o.kind != ObjElements {
		return nil, false
	}
	return o.elems, true
}

// Closure returns the entry address and captured environment of a closure.
func (h *Heap) Closure(r Ref) (entry int, env []Value, ok bool) {
	o := h.get(r)
	if o == nil || o.kind != ObjClosure {
		return 0, nil, false
	}
	return o.entry, o.env, true
}

// Native returns the native function index of a foreign function object.
func (h *Heap) Native(r Ref) (int, bool) {
	o := h.get(r)
	if o == nil || o.kind != ObjNative {
		return 0, false
	}
	return o.native, true
}

// Equal compares two values. Strings compare by content and products and
// arrays element-wise; closures and natives compare by identity. A pair of
// objects already under comparison is assumed equal, so cyclic values
// terminate.
func (h *Heap) Equal(a, b Value) bool {
	return h.equal(a, b, make(map[[2]Ref]bool))
}

func (h *Heap) equal(a, b Value, seen map[[2]Ref]bool) bool {
	if a.Kind() != KindRef || b.Kind() != KindRef {
		return a.Identical(b)
	}
	if a.AsRef() == b.AsRef() {
		return true
	}
	pair := [2]Ref{a.AsRef(), b.AsRef()}
	if seen[pair] {
		return true
	}
	oa, ob := h.get(a.AsRef()), h.get(b.AsRef())
	if oa == nil || ob == nil || oa.kind != ob.kind {
		return false
	}
	switch oa.kind {
	case ObjString:
		return oa.str == ob.str
	case ObjElements:
		if len(oa.elems) != len(ob.elems) {
			return false
		}
		seen[pair] = true
		for i := range oa.elems {
			if !h.equal(oa.elems[i], ob.elems[i], seen) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
