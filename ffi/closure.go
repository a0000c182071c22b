package ffi

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"

	"github.com/ty-lang/tyrt/value"
)

// Closure is a native, C-callable trampoline that re-enters the VM,
// per spec.md §5.9's "ffi.Closure(argT, f)". goffi's closure support
// mirrors libffi's ffi_closure_alloc/ffi_prep_closure_loc pair: an
// executable stub address is handed to the C side, and every call
// through it lands back in the handler goffi invokes with raw
// argument/return buffers. That trampoline runs on whatever OS thread
// the foreign caller used, which may not hold the cooperative lock -
// see Invoke below for the re-entrance rule this grounds on
// (spec.md Design Notes, the same OS-thread-keyed holder id
// thread.Runtime.HoldingLock already exposes).
type Closure struct {
	cif  *Cif
	fn   value.Value
	inv  Invoker
	lk   Locker
	stub unsafe.Pointer
	raw  *ffi.Closure

	mu sync.Mutex
}

// NewClosure allocates a goffi closure whose signature is cif and
// which calls fn (a Ty callable) through inv whenever the C side
// invokes the returned stub pointer. lk/osThreadID drive the
// cooperative-lock re-entrance handling: if the calling OS thread
// already holds the lock (a closure invoked synchronously from within
// a Call this same thread made) it runs fn directly; otherwise it
// takes the lock for the duration of the callback.
func NewClosure(cif *Cif, fn value.Value, inv Invoker, lk Locker, osThreadID func() int64) (*Closure, error) {
	c := &Closure{cif: cif, fn: fn, inv: inv, lk: lk}

	raw, stub, err := ffi.PrepareClosure(&cif.raw, func(retPtr unsafe.Pointer, argPtrs []unsafe.Pointer) {
		c.invoke(retPtr, argPtrs, osThreadID)
	})
	if err != nil {
		return nil, fmt.Errorf("ffi: closure: %w", err)
	}
	c.raw = raw
	c.stub = stub
	return c, nil
}

// Pointer returns the executable address to hand to the C side in
// place of a real function pointer.
func (c *Closure) Pointer() unsafe.Pointer { return c.stub }

// Free releases the closure's backing trampoline memory. Callers must
// not invoke Pointer's address after Free returns.
func (c *Closure) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw != nil {
		ffi.FreeClosure(c.raw)
		c.raw = nil
		c.stub = nil
	}
}

func (c *Closure) invoke(retPtr unsafe.Pointer, argPtrs []unsafe.Pointer, osThreadID func() int64) {
	args := make([]value.Value, len(c.cif.Args))
	for i, t := range c.cif.Args {
		v, err := Load(t, argPtrs[i])
		if err != nil {
			v = value.Nil
		}
		args[i] = v
	}

	run := func() {
		out, err := c.inv.CallValue(c.fn, args)
		if err != nil {
			out = value.Nil
		}
		if retPtr != nil && c.cif.Ret != nil {
			_ = Store(c.cif.Ret, retPtr, out, c.inv)
		}
	}

	tid := int64(0)
	if osThreadID != nil {
		tid = osThreadID()
	}
	if c.lk == nil || (tid != 0 && holderLocker(c.lk, tid)) {
		run()
		return
	}
	// The C caller does not hold the cooperative lock (it isn't a Ty
	// thread); take it for the duration of the re-entrant VM call, the
	// mirror image of Call's Suspend around the outbound direction.
	takeAndRun(c.lk, tid, run)
}

// holderLocker/takeAndRun narrow Locker (Suspend-only) to the extra
// TakeLock/HoldingLock surface thread.Runtime actually exposes, via a
// small type assertion, so this file doesn't need a second interface
// just for the inbound-call direction.
type reentrantLocker interface {
	HoldingLock(osThreadID int64) bool
	TakeLock(osThreadID int64)
	ReleaseLock()
}

func holderLocker(lk Locker, tid int64) bool {
	rl, ok := lk.(reentrantLocker)
	return ok && rl.HoldingLock(tid)
}

func takeAndRun(lk Locker, tid int64, run func()) {
	if rl, ok := lk.(reentrantLocker); ok {
		rl.TakeLock(tid)
		defer rl.ReleaseLock()
		run()
		return
	}
	run()
}

// Auto attaches a finalizer to a pointer so it runs exactly once when
// the pointer Value is collected (spec.md §5.9's "ffi.Auto(ptr, dtor)
// attaches a finalizer run exactly once at collection"). The finalizer
// Value is stashed on Ptr.Tag; PtrObject (below) is the gc.Object that
// actually invokes it, tracked the same way every other heap-owned
// payload is tracked via gc.Heap.Track.
func Auto(ptr value.Ptr, dtor value.Value, inv Invoker) value.Ptr {
	return value.Ptr{P: ptr.P, Extra: ptr.Extra, Tag: &autoFinalizer{dtor: dtor, inv: inv}}
}

type autoFinalizer struct {
	dtor value.Value
	inv  Invoker
	once sync.Once
}

func (f *autoFinalizer) run(p value.Ptr) {
	if f == nil || value.IsNil(f.dtor) || f.inv == nil {
		return
	}
	f.once.Do(func() {
		_, _ = f.inv.CallValue(f.dtor, []value.Value{{Payload: p}})
	})
}

// PtrObject adapts an Auto-wrapped Ptr to gc.Object: it holds no
// reachable Values (a raw pointer is opaque to the collector) but its
// Collect hook runs the attached finalizer exactly once.
type PtrObject struct{ Ptr value.Ptr }

func (PtrObject) Mark(func(value.Value)) {}

func (o PtrObject) Collect() {
	if fz, ok := o.Ptr.Tag.(*autoFinalizer); ok {
		fz.run(o.Ptr)
	}
}
