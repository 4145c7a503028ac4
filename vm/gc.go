package vm

import (
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Mark and sweep
// ---------------------------------------------------------------------------

var gcLog = commonlog.GetLogger("angstrom.gc")

// GCStats holds collector statistics.
type GCStats struct {
	Cycles     int           // completed collections
	Freed      int           // objects freed over all cycles
	LastFreed  int           // objects freed by the last cycle
	Live       int           // live objects after the last cycle
	Threshold  int           // live count that flags the next cycle
	LastPause  time.Duration // duration of the last cycle
	TotalPause time.Duration
}

// Stats returns a snapshot of the collector statistics.
func (h *Heap) Stats() GCStats {
	s := h.stats
	s.Live = h.count
	s.Threshold = h.threshold
	return s
}

// Collect marks every object reachable from roots, frees the rest and resets
// the threshold to twice the survivors. Unlike plain doubling, the threshold
// never drops below the initial threshold. It returns the number of objects
// freed.
func (h *Heap) Collect(roots ...[]Value) int {
	start := time.Now()
	h.mark(roots)
	freed := h.sweep()

	h.threshold = 2 * h.count
	if h.threshold < h.initialThreshold {
		h.threshold = h.initialThreshold
	}
	h.pending = false

	pause := time.Since(start)
	h.stats.Cycles++
	h.stats.Freed += freed
	h.stats.LastFreed = freed
	h.stats.LastPause = pause
	h.stats.TotalPause += pause

	gcLog.Debugf("cycle %d: freed %d, live %d, next at %d (%s)",
		h.stats.Cycles, freed, h.count, h.threshold, pause)
	return freed
}

// mark uses an explicit worklist; marked objects are never revisited, so
// cyclic graphs terminate.
func (h *Heap) mark(roots [][]Value) {
	var work []uint32
	push := func(v Value) {
		if v.Kind() != KindRef {
			return
		}
		r := v.AsRef()
		o := h.get(r)
		if o == nil || o.marked {
			return
		}
		o.marked = true
		work = append(work, r.index)
	}

	for _, set := range roots {
		for _, v := range set {
			push(v)
		}
	}

	for len(work) > 0 {
		idx := work[len(work)-1]
		work = work[:len(work)-1]
		o := &h.slots[idx]
		switch o.kind {
		case ObjElements:
			for _, v := range o.elems {
				push(v)
			}
		case ObjClosure:
			for _, v := range o.env {
				push(v)
			}
		}
	}
}

// sweep walks the live list once, unlinking and freeing unmarked objects and
// clearing the mark on survivors.
func (h *Heap) sweep() int {
	freed := 0
	prev := int32(noLink)
	cur := h.head
	for cur != noLink {
		o := &h.slots[cur]
		next := o.next
		if o.marked {
			o.marked = false
			prev = cur
		} else {
			if prev == noLink {
				h.head = next
			} else {
				h.slots[prev].next = next
			}
			h.release(uint32(cur))
			freed++
		}
		cur = next
	}
	h.count -= freed
	return freed
}

// release drops the payload of a slot and puts it on the free list. The
// generation is kept so the next allocation in the slot bumps it.
func (h *Heap) release(idx uint32) {
	o := &h.slots[idx]
	*o = object{gen: o.gen, next: noLink}
	h.free = append(h.free, idx)
}
