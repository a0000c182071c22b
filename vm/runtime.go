// Package vm ties intern/value/gc/class/ops/thread/queue/generator/ffi
// together into the interpreter surface spec.md §4.K names: operand
// stack, frames, try-stack, call/return/throw, generalizing
// developgo-agora/runtime/funcvm.go's agoraFuncVM.run opcode loop from
// one fixed language to whatever a compiled bytecode.Program describes.
package vm

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/ty-lang/tyrt/bytecode"
	"github.com/ty-lang/tyrt/class"
	"github.com/ty-lang/tyrt/ffi"
	"github.com/ty-lang/tyrt/intern"
	"github.com/ty-lang/tyrt/natives"
	"github.com/ty-lang/tyrt/ops"
	"github.com/ty-lang/tyrt/thread"
	"github.com/ty-lang/tyrt/tyjson"
	"github.com/ty-lang/tyrt/value"
)

// Runtime is the process-wide collaborator vm.Load constructs: the
// loaded program, the shared intern/class/ops tables every thread reads
// through, the cooperative lock, and ambient config/logging.
type Runtime struct {
	Prog    *bytecode.Program
	Intern  *intern.Table
	Classes *class.Table
	Ops     *ops.Table
	Lock    *thread.Runtime
	Config  Config
	Logger  Logger

	mu      sync.Mutex
	threads map[*thread.Ty]bool

	signals   map[int]value.Value
	signalsMu sync.Mutex

	// Globals is the module-level variable scope: names no frame's own
	// locals or lexical Enclosing chain declares fall back to here, and
	// an assignment at the outermost (entry-point) activation with no
	// existing declaration creates one here rather than a throwaway
	// local - there being no separate compiler-emitted "this is a
	// top-level binding" flag in bytecode.FuncMeta to drive this
	// instead (see DESIGN.md).
	globalsMu sync.Mutex
	Globals   map[string]value.Value
}

// Load builds a Runtime from a compiled program: it seeds the intern
// table from the program's snapshot, reconstructs class.Table entries
// from the class snapshot, and prepares empty operator-dispatch groups
// ready for the program's own op_add calls to populate (spec.md §6.1).
func Load(prog *bytecode.Program) (*Runtime, error) {
	it := intern.New()
	it.Seed(prog.Interned)

	ct := class.NewTable()
	ids := make([]int, len(prog.Classes))
	for i, cm := range prog.Classes {
		var c *class.Class
		if cm.IsTrait {
			c = ct.NewTrait(cm.Name)
		} else {
			c = ct.New(cm.Name)
		}
		c.Final = cm.Final
		ids[i] = c.ID
	}
	for i, cm := range prog.Classes {
		c := ct.Get(ids[i])
		if cm.Super >= 0 && cm.Super < len(ids) {
			ct.SetSuper(c, ids[cm.Super])
		}
		for _, tr := range cm.Traits {
			if tr >= 0 && tr < len(ids) {
				ct.ImplementTrait(c, ids[tr])
			}
		}
		for name, fnIdx := range cm.Methods {
			if fn := funcValueAt(prog, fnIdx); !value.IsNil(fn) {
				ct.AddMethod(c, it.Intern(name), fn)
			}
		}
		for name, fnIdx := range cm.Getters {
			if fn := funcValueAt(prog, fnIdx); !value.IsNil(fn) {
				ct.AddGetter(c, it.Intern(name), fn)
			}
		}
		for name, fnIdx := range cm.Setters {
			if fn := funcValueAt(prog, fnIdx); !value.IsNil(fn) {
				ct.AddSetter(c, it.Intern(name), fn)
			}
		}
		for name, fnIdx := range cm.Statics {
			if fn := funcValueAt(prog, fnIdx); !value.IsNil(fn) {
				ct.AddStatic(c, it.Intern(name), fn)
			}
		}
	}

	rt := &Runtime{
		Prog:    prog,
		Intern:  it,
		Classes: ct,
		Ops:     ops.NewTable(ct),
		Lock:    thread.NewRuntime(),
		Config:  DefaultConfig(),
		Logger:  NewStderrLogger(),
		threads: make(map[*thread.Ty]bool),
		signals: make(map[int]value.Value),
		Globals: make(map[string]value.Value),
	}
	ffi.RegisterPtrMethodResolver(rt.resolvePtrMethod)
	natives.SetCaller(rt.CallValue)
	tyjson.SetCaller(rt.CallValue)
	tyjson.SetMethodResolver(rt.jsonMethod)
	tyjson.SetTagResolver(rt.Intern.Lookup)
	return rt, nil
}

// jsonMethod looks up a `__json__` override for v's class, the
// MethodResolver seam tyjson.Encode uses to let program-defined types
// control their own encoding.
func (rt *Runtime) jsonMethod(v value.Value) (value.Value, bool) {
	o, ok := value.AsObject(v)
	if !ok {
		return value.Value{}, false
	}
	id, ok := rt.Intern.Lookup("__json__")
	if !ok {
		return value.Value{}, false
	}
	fn, ok := rt.Classes.LookupMethod(o.Class, id)
	if !ok {
		return value.Value{}, false
	}
	switch f := fn.Payload.(type) {
	case *value.Function:
		return value.NewMethod(v, f), true
	case *value.BuiltinFunction:
		return value.NewBuiltinMethod(v, f), true
	default:
		return value.Value{}, false
	}
}

// lookupVar resolves name for OP_PUSH's FLG_V case: f's own locals and
// lexical closure chain first, falling back to the Runtime-wide global
// scope.
func (rt *Runtime) lookupVar(f *Frame, name string) (value.Value, bool) {
	if v, ok := f.lookupLocal(name); ok {
		return v, true
	}
	rt.globalsMu.Lock()
	v, ok := rt.Globals[name]
	rt.globalsMu.Unlock()
	return v, ok
}

// assignVar resolves name for OP_POP: reassign an existing declaration
// anywhere in f's local/closure chain or the global scope if one
// exists; otherwise declare a new binding - globally if f is the
// entry-point activation, locally to f otherwise.
func (rt *Runtime) assignVar(f *Frame, name string, v value.Value) {
	if f.assignLocal(name, v) {
		return
	}
	rt.globalsMu.Lock()
	if _, ok := rt.Globals[name]; ok {
		rt.Globals[name] = v
		rt.globalsMu.Unlock()
		return
	}
	rt.globalsMu.Unlock()
	if f.atOutermostScope() {
		rt.globalsMu.Lock()
		rt.Globals[name] = v
		rt.globalsMu.Unlock()
		return
	}
	f.Vars[name] = v
}

func funcValueAt(prog *bytecode.Program, idx int) value.Value {
	if idx < 0 || idx >= len(prog.Funcs) {
		return value.Nil
	}
	return value.NewFunction(prog.Funcs[idx], nil)
}

// resolvePtrMethod implements the ffi.classPtrMethod resolver seam:
// looking up an Object's __ptr__ method through the class table so the
// ffi package's Store/Call can coerce an Object argument to a pointer
// without importing class.
func (rt *Runtime) resolvePtrMethod(o *value.Object) (value.Value, bool) {
	id, ok := rt.Intern.Lookup("__ptr__")
	if !ok {
		return value.Value{}, false
	}
	fn, ok := rt.Classes.LookupMethod(o.Class, id)
	if !ok {
		return value.Value{}, false
	}
	self := value.Value{Payload: o}
	switch f := fn.Payload.(type) {
	case *value.Function:
		return value.NewMethod(self, f), true
	case *value.BuiltinFunction:
		return value.NewBuiltinMethod(self, f), true
	default:
		return value.Value{}, false
	}
}

// NewMainThread starts the Ty context the process's entry-point
// function runs on, registering it with Runtime for GC-root and signal
// bookkeeping.
func (rt *Runtime) NewMainThread() *thread.Ty {
	t := thread.NewTy()
	rt.mu.Lock()
	rt.threads[t] = true
	rt.mu.Unlock()
	return t
}

// SpawnThread starts fn on a new Ty running on its own goroutine
// (locked to an OS thread so thread.Gettid/ThreadKill remain valid for
// its lifetime), matching spec.md §5's pre-emptive-OS-thread model.
// The returned Ty can be joined via Ty.Join.
func (rt *Runtime) SpawnThread(fn value.Value, args []value.Value) *thread.Ty {
	t := thread.NewTy()
	rt.mu.Lock()
	rt.threads[t] = true
	rt.mu.Unlock()

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer t.MarkDead()
		tid := thread.Gettid()
		rt.Lock.TakeLock(tid)
		defer rt.Lock.ReleaseLock()
		if _, err := rt.EvalFunction(t, fn, args); err != nil {
			rt.reportUncaught(t, err, false)
		}
	}()
	return t
}

// GCRootsAll visits the GCRoots vector of every thread registered with
// this Runtime, plus every global. It does not walk frames or queued
// messages, and run's own per-step Collect uses threadRoots (one thread
// plus its live frame chain) rather than this.
func (rt *Runtime) GCRootsAll(visit func(value.Value)) {
	rt.mu.Lock()
	ts := make([]*thread.Ty, 0, len(rt.threads))
	for t := range rt.threads {
		ts = append(ts, t)
	}
	rt.mu.Unlock()
	for _, t := range ts {
		t.Mark(visit)
	}
	rt.globalsMu.Lock()
	globals := make([]value.Value, 0, len(rt.Globals))
	for _, v := range rt.Globals {
		globals = append(globals, v)
	}
	rt.globalsMu.Unlock()
	for _, v := range globals {
		visit(v)
	}
}

// Signal registers a VM callable for signal number sig, spec.md §6.3's
// "process-wide handlers dispatch by signal number to a table of VM
// callables". Delivery is deferred to the caller's next safe point: use
// DeliverSignal to actually invoke it.
func (rt *Runtime) Signal(sig int, handler value.Value) {
	rt.signalsMu.Lock()
	defer rt.signalsMu.Unlock()
	rt.signals[sig] = handler
}

// DeliverSignal invokes the registered handler for sig on t, if any;
// with no handler registered the default action is re-raise, which here
// means propagating a ThrowError the caller's safe point should surface
// exactly like any other uncaught throw.
func (rt *Runtime) DeliverSignal(t *thread.Ty, sig int, payload value.Value) error {
	rt.signalsMu.Lock()
	h, ok := rt.signals[sig]
	rt.signalsMu.Unlock()
	if !ok {
		return NewPanic("unhandled signal %d", sig)
	}
	_, err := rt.EvalFunction(t, h, []value.Value{payload})
	return err
}

// reportUncaught formats and logs (main) or just logs (non-main) an
// uncaught throw escaping a thread's top-level call, per spec.md §6.6.
func (rt *Runtime) reportUncaught(t *thread.Ty, err error, main bool) {
	te, _ := err.(*ThrowError)
	trace := ""
	if te != nil {
		trace = FormatTrace(te)
	} else {
		trace = err.Error()
	}
	rt.Logger.Log(LevelError, "uncaught throw on thread %s:\n%s", t.ID, trace)
	if main {
		fmt.Fprintln(os.Stderr, trace)
		os.Exit(1)
	}
}
