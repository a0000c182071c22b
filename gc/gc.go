// Package gc implements the mark-sweep collector described in spec.md
// §4.C/§4.D: one allocation list and memory-usage counter per
// interpreter thread, hard-pin immunity during construction of
// composite values, and a cooperative "GC stop" depth counter.
//
// Go already manages the backing memory for every payload, so there is
// no gc_alloc returning raw bytes here. Instead Heap.Track registers a
// gcObject - something that can mark the Values it holds and free any
// non-Go-GC'd resources it owns (finalizers, FFI auto-pointers,
// coroutine stacks) - and the header bookkeeping (mark bit, hard-pin
// counter, memory accounting) is preserved so the same scheduling and
// finalizer-ordering properties hold.
package gc

import (
	"sync/atomic"

	"github.com/ty-lang/tyrt/value"
)

// Object is implemented by every heap-tracked allocation: Mark walks
// the Values reachable from it, Collect releases whatever it owns once
// the sweep decides it is garbage (spec.md §4.D step 4's per-kind
// collect dispatch).
type Object interface {
	Mark(visit func(value.Value))
	Collect()
}

// Alloc is the per-allocation header spec.md §4.C names: kind tag
// (for diagnostics), accounted size, atomic mark bit, and a reentrant
// hard-pin counter.
type Alloc struct {
	Kind  value.Kind
	Size  int64
	Mark  atomic.Bool
	Hard  atomic.Int32
	Obj   Object
	owner value.Payload
}

// RootProvider seeds the mark worklist (spec.md §4.D step 2): the
// interpreter's operand stack, frame stack, drop stack, try-stack,
// globals, the GCRoots vector, and the immortal set. thread.Ty
// implements this.
type RootProvider interface {
	GCRoots(visit func(value.Value))
}

// Heap is the per-interpreter-thread allocation list from spec.md
// §4.C: "a per-interpreter memory_used counter" plus the gc_prevent
// depth, now per-heap since each interpreter thread only ever collects
// its own heap.
type Heap struct {
	allocs       []*Alloc
	owners       map[value.Payload]*Alloc
	memoryUsed   int64
	softLimit    int64
	preventDepth int32
}

// DefaultSoftLimit mirrors the original's coarse default heap
// threshold before a collection is scheduled.
const DefaultSoftLimit = 8 << 20

func NewHeap() *Heap {
	return &Heap{softLimit: DefaultSoftLimit, owners: make(map[value.Payload]*Alloc)}
}

// Track registers obj as a size-accounted allocation of the given kind
// and returns its header. owner is the payload pointer this allocation
// backs (e.g. the *value.Array itself), used to map a Value back to
// its header during marking without every payload type needing to
// carry one itself. Equivalent to gc_alloc's steps 1-3; step 4
// (schedule-at-safe-point) is surfaced via ShouldCollect, since Go has
// no single safe-point hook to call back into automatically.
func (h *Heap) Track(owner value.Payload, kind value.Kind, size int64, obj Object) *Alloc {
	a := &Alloc{Kind: kind, Size: size, Obj: obj, owner: owner}
	h.allocs = append(h.allocs, a)
	h.owners[owner] = a
	h.memoryUsed += size
	return a
}

// ShouldCollect reports whether memoryUsed has crossed the soft
// threshold and gc_prevent is zero (spec.md §4.C step 4).
func (h *Heap) ShouldCollect() bool {
	return h.memoryUsed > h.softLimit && atomic.LoadInt32(&h.preventDepth) == 0
}

// MemoryUsed reports the current accounted size of live allocations.
func (h *Heap) MemoryUsed() int64 { return h.memoryUsed }

// NOGC hard-pins a: the allocation is immune to sweep until a matching
// OKGC. Reentrant, per spec.md §4.C.
func NOGC(a *Alloc) {
	if a != nil {
		a.Hard.Add(1)
	}
}

// OKGC releases one hard-pin taken by NOGC.
func OKGC(a *Alloc) {
	if a != nil {
		a.Hard.Add(-1)
	}
}

// StopGC defers collection: while any StopGC is outstanding,
// ShouldCollect never reports true. Matches spec.md §4.C's global
// gc_prevent counter, scoped per-heap.
func (h *Heap) StopGC() { atomic.AddInt32(&h.preventDepth, 1) }

// ResumeGC releases one StopGC.
func (h *Heap) ResumeGC() { atomic.AddInt32(&h.preventDepth, -1) }

// Collect runs one full mark-sweep pass over h, per spec.md §4.D steps
// 2-6. The caller is responsible for step 1 (holding the cooperative
// lock for this interpreter before calling Collect - see the thread
// package).
func (h *Heap) Collect(roots RootProvider) {
	h.StopGC()
	defer h.ResumeGC()

	// Step 2+3: seed and drain the mark worklist. A worklist (not
	// recursion) avoids stack overflow on deep structures, per
	// spec.md §4.D step 3.
	var worklist []value.Value
	visit := func(v value.Value) { worklist = append(worklist, v) }
	roots.GCRoots(visit)

	for len(worklist) > 0 {
		n := len(worklist) - 1
		v := worklist[n]
		worklist = worklist[:n]
		h.markValue(v, visit)
	}

	// Step 4+5: sweep allocs, collecting anything left unmarked and
	// unpinned, compacting the list by swap-remove equivalent.
	kept := h.allocs[:0]
	for _, a := range h.allocs {
		if a.Mark.Load() || a.Hard.Load() != 0 {
			a.Mark.Store(false)
			kept = append(kept, a)
			continue
		}
		h.memoryUsed -= a.Size
		if h.memoryUsed < 0 {
			h.memoryUsed = 0
		}
		delete(h.owners, a.owner)
		if a.Obj != nil {
			a.Obj.Collect()
		}
	}
	h.allocs = kept
}

// markValue marks the allocation backing v, if any, and - on first
// visit only - asks it to enqueue whatever it in turn references. Only
// payloads Tracked at allocation time have an entry in owners;
// untracked kinds (Int, Float, Bool, Nil, and other Go-value-only
// payloads) are simply skipped, same as the original's "value types
// carry no alloc header" shortcut.
func (h *Heap) markValue(v value.Value, visit func(value.Value)) {
	a, ok := h.owners[v.Payload]
	if !ok || a.Mark.Load() {
		return
	}
	a.Mark.Store(true)
	if a.Obj != nil {
		a.Obj.Mark(visit)
	}
}
