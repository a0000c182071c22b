// Package generator implements the stackful-coroutine generator state
// from spec.md §3.4 and §4.I, built on the teacher's own
// github.com/PuerkitoBio/gocoro dependency (the same library
// developgo-agora/runtime/funcvm.go uses for its OP_RNGS/OP_RNGP/
// OP_RNGE "for range" coroutines).
package generator

import (
	"fmt"

	"github.com/PuerkitoBio/gocoro"
	"github.com/google/uuid"

	"github.com/ty-lang/tyrt/bytecode"
	"github.com/ty-lang/tyrt/gc"
	"github.com/ty-lang/tyrt/value"
)

// ErrDone is returned by Resume once the underlying coroutine has run
// to completion, wrapping gocoro's own end-of-coroutine sentinel.
var ErrDone = fmt.Errorf("generator: exhausted: %w", gocoro.ErrEndOfCoro)

// state enumerates the generator lifecycle spec.md §3.4 describes:
// "created suspended on first call to a generator function; each
// resume swaps coroutine contexts; completion frees the coroutine
// stack at collection time."
type state int

const (
	stateSuspended state = iota
	stateRunning
	stateDone
)

// frameSnapshot holds the saved execution context spec.md §3.4 names:
// "snapshots of the interpreter's operand stack, frame stack,
// try-stack, drop-stack, and current instruction pointer."
type frameSnapshot struct {
	OperandStack []value.Value
	CallFrames   []any
	TryStack     []any
	DropStack    []value.Value
	IP           int
}

// Body is the coroutine entry point a Generator drives: given a yield
// callback and the first resume argument, it runs the compiled
// function to completion, calling yield at every OP_YLD to suspend
// execution and hand back a value, receiving in return whatever the
// next Resume call supplies. This lets a yield originate from
// arbitrarily deep inside the call chain the generator's body makes -
// the "stackful" part of spec.md §3.4's coroutine state - rather than
// only from the outermost frame the way funcvm.go's OP_YLD/coroState
// trick required.
type Body func(yield func(value.Value) value.Value, firstArg value.Value) value.Value

// Generator is the Value-level handle's backing implementation,
// registered as a value.GeneratorHandle.
type Generator struct {
	ID    uuid.UUID
	Fn    *value.Function
	co    *gocoro.Coro
	state state

	Frame   frameSnapshot
	GCRoots []value.Value

	alloc    *gc.Alloc
	released bool
}

// New starts a suspended generator wrapping fn's compiled body. body is
// supplied by the vm package (it alone knows how to drive bytecode
// execution); generator only owns coroutine lifecycle and GC bookkeeping.
func New(fn *value.Function, body Body) *Generator {
	g := &Generator{ID: uuid.New(), Fn: fn, state: stateSuspended}
	g.co = gocoro.New(func(yield func(interface{}) interface{}, start interface{}) interface{} {
		first, _ := start.(value.Value)
		y := func(v value.Value) value.Value {
			next := yield(v)
			nv, _ := next.(value.Value)
			return nv
		}
		return body(y, first)
	})
	return g
}

// Meta exposes the compiled prototype this generator wraps, for
// introspection built-ins.
func (g *Generator) Meta() *bytecode.FuncMeta { return g.Fn.Meta }

// Resume drives the coroutine forward with arg, returning its next
// yielded value or ErrDone once exhausted (spec.md §4.I).
func (g *Generator) Resume(arg value.Value) (value.Value, error) {
	if g.state == stateDone {
		return value.Value{}, ErrDone
	}
	g.state = stateRunning
	out, err := g.co.Resume(arg)
	if err == gocoro.ErrEndOfCoro {
		g.state = stateDone
		g.releaseIfDone(false)
		return value.Value{}, ErrDone
	}
	if err != nil {
		g.state = stateDone
		g.releaseIfDone(false)
		return value.Value{}, err
	}
	g.state = stateSuspended
	v, _ := out.(value.Value)
	return v, nil
}

// Next implements the iteration surface the vm package's range opcodes
// drive: (v, true) while the generator still has values, (_, false)
// once exhausted (spec.md §8 S4). Wrapping the result in the program's
// `Some`/`None` tagged constructors is the vm package's job - it alone
// knows the interned tag ids a compiled program is using.
func (g *Generator) Next() (value.Value, bool) {
	v, err := g.Resume(value.Nil)
	if err != nil {
		return value.Value{}, false
	}
	return v, true
}

// Mark implements value.GeneratorHandle / gc.Object (spec.md §4.D step
// 3 Generator row): it visits the saved operand stack, the drop-stack,
// the gc-roots list, and the wrapped function's upvalues. The saved
// try-stack and call frames hold no Values and are not walked.
func (g *Generator) Mark(visit func(value.Value)) {
	for _, v := range g.Frame.OperandStack {
		visit(v)
	}
	for _, v := range g.Frame.DropStack {
		visit(v)
	}
	for _, v := range g.GCRoots {
		visit(v)
	}
	for _, v := range g.Fn.Upvalues {
		visit(v)
	}
}

// Collect implements gc.Object / spec.md §4.D step 4 Generator row:
// "free all frame-related vectors and the coroutine stack unless it
// equals the interpreter's top coroutine." Per the Open Question
// resolution in DESIGN.md, a still-active generator is hard-pinned the
// entire time it is running rather than silently skipped here, so by
// the time Collect runs it is always safe to drop every reference -
// there is no "skip freeing" branch left to reproduce.
func (g *Generator) Collect() {
	g.Frame = frameSnapshot{}
	g.GCRoots = nil
}

// Pin hard-pins this generator's allocation record for the duration it
// remains active, implementing the DESIGN.md Open Question resolution
// in place of the original's coroutine-pointer-identity skip check:
// rather than Collect silently declining to free a still-running
// coroutine, the generator is kept unconditionally alive (NOGC) from
// creation and released (OKGC, exactly once) the moment it finishes.
func (g *Generator) Pin(a *gc.Alloc) {
	g.alloc = a
	gc.NOGC(a)
}

// Release force-drops the hard-pin taken by Pin even if the generator
// never reached stateDone - used when a `for range` loop is abandoned
// before exhausting its generator (a `break`), so the coroutine stack
// still becomes collectible once unreferenced instead of leaking for
// the remaining lifetime of the owning thread's heap.
func (g *Generator) Release() {
	g.state = stateDone
	g.releaseIfDone(false)
}

// releaseIfDone drops the hard-pin exactly once when the generator
// transitions to stateDone; released guards against double-releasing
// if Resume is called again after ErrDone.
func (g *Generator) releaseIfDone(_ bool) {
	if g.state != stateDone || g.alloc == nil || g.released {
		return
	}
	g.released = true
	gc.OKGC(g.alloc)
}
