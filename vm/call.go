package vm

import (
	"fmt"

	"github.com/ty-lang/tyrt/natives"
	"github.com/ty-lang/tyrt/thread"
	"github.com/ty-lang/tyrt/value"
)

// classIDOf returns the class/type id operator dispatch and method
// lookup key off: an Object's own class id, or a reserved negative id
// per value.Kind for every built-in kind, so `op_add` registrations
// against a primitive kind (spec.md §4.F's "built-in fast-paths bypass
// dispatch" still leaves room for a program to register `+` overloads
// involving a primitive operand) use a stable, never-colliding key
// without growing class.Table with synthetic entries.
func classIDOf(v value.Value) int {
	if o, ok := value.AsObject(v); ok {
		return o.Class
	}
	return -1 - int(v.Kind())
}

// CallValue implements ffi.Invoker so the ffi package can resolve
// Object.__ptr__ or re-enter the VM from a C closure without importing
// vm. Each call runs fn on a fresh Ty created (and registered) by
// NewMainThread; callers
// that already have a live *thread.Ty (normal opcode execution) should
// prefer Call/CallMethod directly so the call shares that thread's
// heap and stacks.
func (rt *Runtime) CallValue(fn value.Value, args []value.Value) (value.Value, error) {
	t := rt.NewMainThread()
	return rt.Call(t, fn, args, nil)
}

// Call implements spec.md §4.K's call(f, argc): dispatch by f's kind.
// parent is the calling Frame: the new frame's Parent back-pointer (the
// chain FormatTrace and GC root walking follow), the source of its
// inherited generator yield hook, and what makes it a non-outermost
// scope for global assignment. Top-level calls (thread entry points,
// signal handlers, FFI closures) pass nil.
func (rt *Runtime) Call(t *thread.Ty, fn value.Value, args []value.Value, parent *Frame) (value.Value, error) {
	switch f := fn.Payload.(type) {
	case *value.Function:
		return rt.callFunction(t, f, value.Nil, args, parent)
	case *value.BuiltinFunction:
		return f.Fn(nil, args, nil)
	case *value.Method:
		return rt.callFunction(t, f.Fn, f.Receiver, args, parent)
	case *value.BuiltinMethod:
		return f.Fn.Fn(&f.Receiver, args, nil)
	case *value.Operator:
		if f.Fn != nil {
			return rt.callFunction(t, f.Fn, value.Nil, args, parent)
		}
		if f.Nat != nil {
			return f.Nat(nil, args, nil)
		}
		return value.Value{}, NewDispatchError("operator " + f.Name + " has no implementation")
	default:
		return value.Value{}, NewDispatchError(fmt.Sprintf("%s is not callable", fn.Kind()))
	}
}

// CallMethod implements spec.md §4.K's call_method(self, m_id, argc):
// resolve self's class, walk the method itable/super chain, then Call
// the result bound to self. A miss on the class itable falls through to
// the natives package's fixed per-Kind method table (spec.md §6.2) -
// this is how `[1,2,3].map(f)` or `"x".upper()` resolve, since arrays,
// strings, etc. have no class.Table entry of their own.
func (rt *Runtime) CallMethod(t *thread.Ty, self value.Value, methodID int, args []value.Value, parent *Frame) (value.Value, error) {
	classID := classIDOf(self)
	fn, ok := rt.Classes.LookupMethod(classID, methodID)
	if !ok {
		name, nameOk := rt.Intern.NameOf(methodID)
		if nameOk {
			if nf, ok := natives.Lookup(self.Kind(), name); ok {
				return natives.WithCaller(func(fn value.Value, a []value.Value) (value.Value, error) {
					return rt.Call(t, fn, a, parent)
				}, func() (value.Value, error) {
					return nf(&self, args, nil)
				})
			}
		}
		return value.Value{}, NewDispatchError(fmt.Sprintf("no method %q on %s", name, self.Kind()))
	}
	switch f := fn.Payload.(type) {
	case *value.Function:
		return rt.callFunction(t, f, self, args, parent)
	case *value.BuiltinFunction:
		return f.Fn(&self, args, nil)
	default:
		return value.Value{}, NewDispatchError("method slot is not callable")
	}
}

// EvalFunction is spec.md §4.K's eval_function(f, args...): the
// top-level entry point used outside opcode dispatch (thread spawn,
// signal delivery). It is exactly Call with no parent frame.
func (rt *Runtime) EvalFunction(t *thread.Ty, fn value.Value, args []value.Value) (value.Value, error) {
	return rt.Call(t, fn, args, nil)
}

// callFunction instantiates a Frame for fn and runs its bytecode to
// completion or to the first uncaught throw, generalizing funcvm.go's
// newFuncVM + agoraFuncVM.run pairing to this package's Frame/Runtime
// split.
func (rt *Runtime) callFunction(t *thread.Ty, fn *value.Function, this value.Value, args []value.Value, parent *Frame) (value.Value, error) {
	stackSz := fn.Meta.StackSz
	if stackSz == 0 {
		stackSz = rt.Config.InitialStackSize
	}
	frame := newFrame(fn, this, parent, stackSz)
	frame.bindArgs(args)
	return rt.run(t, frame)
}

// dispatchBinary implements spec.md §4.F's priority: consult op_dispatch
// first; only on NO_IMPL fall back to the built-in primitive fast path;
// raise DispatchError if neither applies.
func (rt *Runtime) dispatchBinary(t *thread.Ty, parent *Frame, opName string, x, y value.Value, builtin func(a, b value.Value) (value.Value, bool)) (value.Value, error) {
	opID := rt.Intern.Intern(opName)
	if ref, ok := rt.Ops.Dispatch(opID, classIDOf(x), classIDOf(y)); ok {
		return rt.Call(t, ref, []value.Value{x, y}, parent)
	}
	if builtin != nil {
		if v, ok := builtin(x, y); ok {
			return v, nil
		}
	}
	return value.Value{}, NewDispatchError(fmt.Sprintf("no %s implementation for (%s, %s)", opName, x.Kind(), y.Kind()))
}
