package vm

import (
	"fmt"

	"github.com/ty-lang/tyrt/bytecode"
	"github.com/ty-lang/tyrt/gc"
	"github.com/ty-lang/tyrt/generator"
	"github.com/ty-lang/tyrt/ops"
	"github.com/ty-lang/tyrt/thread"
	"github.com/ty-lang/tyrt/value"
)

// constValue materializes a bytecode constant-table entry as a Value,
// the generalization of funcvm.go's kTable holding Val directly (here
// the constant table is a serializable wire shape instead).
func constValue(c bytecode.ConstVal) value.Value {
	switch c.Kind {
	case bytecode.ConstInt:
		return value.NewInt(c.I)
	case bytecode.ConstFloat:
		return value.NewFloat(c.F)
	case bytecode.ConstString:
		return value.NewString(c.S)
	case bytecode.ConstBool:
		return value.NewBool(c.B)
	default:
		return value.Nil
	}
}

// getVal is funcvm.go's agoraFuncVM.getVal generalized to this
// package's Frame/Runtime split and its Enclosing-chain variable
// resolution.
func (rt *Runtime) getVal(f *Frame, flg bytecode.Flag, ix uint64) (value.Value, error) {
	switch flg {
	case bytecode.FLG_K:
		if int(ix) >= len(f.Fn.Meta.KTable) {
			return value.Value{}, NewPanic("constant index %d out of range", ix)
		}
		return constValue(f.Fn.Meta.KTable[ix]), nil
	case bytecode.FLG_V:
		name := constName(f.Fn.Meta, int64(ix))
		v, ok := rt.lookupVar(f, name)
		if !ok {
			return value.Value{}, NewDispatchError(fmt.Sprintf("undefined variable %q", name))
		}
		return v, nil
	case bytecode.FLG_N:
		return value.Nil, nil
	case bytecode.FLG_T:
		return f.This, nil
	case bytecode.FLG_F:
		if int(ix) >= len(rt.Prog.Funcs) {
			return value.Value{}, NewPanic("function index %d out of range", ix)
		}
		fn := &value.Function{Meta: rt.Prog.Funcs[ix], Enclosing: f}
		return value.Value{Payload: fn}, nil
	case bytecode.FLG_A:
		return f.Args, nil
	default:
		return value.Value{}, NewPanic("invalid flag value %d", flg)
	}
}

func jumpTarget(pc int, flg bytecode.Flag, ix uint64) int {
	if flg == bytecode.FLG_Jf {
		return pc + int(ix)
	}
	return pc - (int(ix) + 1)
}

// handleThrow looks for a handler on f's own try-stack (try/catch is
// scoped to the frame it was pushed in, not threaded through calls);
// on a match it unwinds the operand stack to the handler's depth, jumps
// to its target, and records te as the frame's active exception for a
// later OP_RETHROW. Returns false when f has no handler left, meaning
// te must propagate out of run() as a Go error.
func (f *Frame) handleThrow(te *ThrowError) bool {
	h, ok := f.try.pop()
	if !ok {
		return false
	}
	for f.stk.sp > h.StackSP {
		f.stk.pop()
	}
	f.caught = te
	f.PC = h.CatchPC
	return true
}

// run is the opcode interpreter loop, generalizing funcvm.go's
// agoraFuncVM.run to the fuller bytecode.Opcode set spec.md §4.K names
// (call/call_method/throw/push_try/catch/finally/rethrow) on top of the
// teacher's stack-machine core (push/pop/arith/compare/jump/new/field
// access/bookmarks).
func (rt *Runtime) run(t *thread.Ty, f *Frame) (value.Value, error) {
	code := f.Fn.Meta.Code
	for {
		if f.PC < 0 || f.PC >= len(code) {
			return value.Value{}, NewPanic("program counter %d out of range", f.PC)
		}
		instr := code[f.PC]
		op, flg, ix := instr.Opcode(), instr.Flag(), instr.Index()
		f.PC++

		var stepErr error
		switch op {
		case bytecode.OP_NOP:
			// no-op

		case bytecode.OP_RET:
			return f.stk.pop(), nil

		case bytecode.OP_YLD:
			v := f.stk.pop()
			if f.genYield == nil {
				stepErr = NewDispatchError("yield outside a generator")
				break
			}
			f.stk.push(f.genYield(v))

		case bytecode.OP_PUSH:
			v, err := rt.getVal(f, flg, ix)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_POP:
			name := constName(f.Fn.Meta, int64(ix))
			rt.assignVar(f, name, f.stk.pop())

		case bytecode.OP_ADD:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "+", x, y, ops.BuiltinAdd)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_SUB:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "-", x, y, ops.BuiltinSub)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_MUL:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "*", x, y, ops.BuiltinMul)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_DIV:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "/", x, y, ops.BuiltinDiv)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_MOD:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "%", x, y, ops.BuiltinMod)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_NOT:
			x := f.stk.pop()
			f.stk.push(value.NewBool(!value.Truthy(x)))

		case bytecode.OP_UNM:
			x := f.stk.pop()
			v, err := negate(x)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_EQ:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "==", x, y, builtinEqual)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_NEQ:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "!=", x, y, builtinNotEqual)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_LT:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "<", x, y, builtinCompare(func(c int) bool { return c < 0 }))
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_LTE:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, "<=", x, y, builtinCompare(func(c int) bool { return c <= 0 }))
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_GT:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, ">", x, y, builtinCompare(func(c int) bool { return c > 0 }))
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_GTE:
			y, x := f.stk.pop(), f.stk.pop()
			v, err := rt.dispatchBinary(t, f, ">=", x, y, builtinCompare(func(c int) bool { return c >= 0 }))
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_TEST:
			if !value.Truthy(f.stk.pop()) {
				f.PC += int(ix)
			}

		case bytecode.OP_JMP:
			f.PC = jumpTarget(f.PC, flg, ix)

		case bytecode.OP_NEW:
			d, _ := value.AsDict(value.NewDict())
			for j := ix; j > 0; j-- {
				key, val := f.stk.pop(), f.stk.pop()
				d.Set(key, val)
			}
			dv := value.Value{Payload: d}
			t.Heap.Track(d, value.KindDict, int64(32*d.Len()+32), gc.DictObject{D: d})
			f.stk.push(dv)

		case bytecode.OP_SFLD:
			vr, k, vl := f.stk.pop(), f.stk.pop(), f.stk.pop()
			if err := setField(vr, k, vl); err != nil {
				stepErr = err
			}

		case bytecode.OP_GFLD:
			vr, k := f.stk.pop(), f.stk.pop()
			v, err := getField(vr, k)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_CFLD:
			vr, k := f.stk.pop(), f.stk.pop()
			args := popN(f, ix)
			v, err := rt.callField(t, f, vr, k, args)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_CALL:
			fn := f.stk.pop()
			args := popN(f, ix)
			v, err := rt.Call(t, fn, args, f)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_CALL_METHOD:
			self := f.stk.pop()
			key := f.stk.pop()
			args := popN(f, ix)
			methodID, err := rt.methodID(key)
			if err != nil {
				stepErr = err
				break
			}
			v, err := rt.CallMethod(t, self, methodID, args, f)
			if err != nil {
				stepErr = err
				break
			}
			f.stk.push(v)

		case bytecode.OP_RNGS:
			args := popN(f, ix)
			if len(args) == 0 {
				stepErr = NewPanic("range start requires a generator function")
				break
			}
			rc, err := rt.startRange(t, f, args[0], args[1:])
			if err != nil {
				stepErr = err
				break
			}
			f.ranges = append(f.ranges, rc)

		case bytecode.OP_RNGP:
			if len(f.ranges) == 0 {
				stepErr = NewPanic("range produce with no active range")
				break
			}
			rc := f.ranges[len(f.ranges)-1]
			v, err := rc.gen.Resume(value.Nil)
			ok := err == nil
			if err != nil && err != generator.ErrDone {
				if *rc.err != nil {
					stepErr = *rc.err
				} else {
					stepErr = err
				}
				break
			}
			if ok {
				vals := spreadRange(v, int(ix))
				for _, vv := range vals {
					f.stk.push(vv)
				}
			} else {
				for j := uint64(0); j < ix; j++ {
					f.stk.push(value.Nil)
				}
			}
			f.stk.push(value.NewBool(ok))

		case bytecode.OP_RNGE:
			if n := len(f.ranges); n > 0 {
				f.ranges[n-1].gen.Release()
				f.ranges = f.ranges[:n-1]
			}

		case bytecode.OP_BKMS:
			f.bkm.push(f.stk.sp)

		case bytecode.OP_BKME:
			bkm := f.bkm.pop()
			for got := uint64(f.stk.sp - bkm); got != ix; got = uint64(f.stk.sp - bkm) {
				if got < ix {
					f.stk.push(value.Nil)
				} else {
					f.stk.pop()
				}
			}

		case bytecode.OP_TRY:
			f.try.push(tryHandler{CatchPC: jumpTarget(f.PC, flg, ix), StackSP: f.stk.sp, HasCatch: true})

		case bytecode.OP_CATCH:
			if f.caught != nil {
				f.stk.push(f.caught.Value)
			} else {
				f.stk.push(value.Nil)
			}

		case bytecode.OP_FINALLY:
			// Marker only: the finally body runs as ordinary sequential
			// bytecode reached either by fallthrough or by a handleThrow
			// jump; nothing to do here but let execution continue.

		case bytecode.OP_THROW:
			v := f.stk.pop()
			te := throwErrorFor(v)
			if !f.handleThrow(te) {
				te.Trace = captureTrace(f)
				return value.Value{}, te
			}

		case bytecode.OP_RETHROW:
			if f.caught == nil {
				stepErr = NewPanic("rethrow with no active exception")
				break
			}
			te := f.caught
			if !f.handleThrow(te) {
				te.Trace = captureTrace(f)
				return value.Value{}, te
			}

		case bytecode.OP_DUMP:
			if rt.Config.Debug {
				rt.Logger.Log(LevelDebug, "frame %s pc=%d sp=%d: %s", f.Fn.Name(), f.PC, f.stk.sp, value.Show(f.stk.peek(0)))
			}

		default:
			stepErr = NewPanic("unknown opcode %s", op)
		}

		if stepErr != nil {
			te, ok := stepErr.(*ThrowError)
			if !ok {
				te = NewPanic("%s", stepErr.Error())
			}
			if !f.handleThrow(te) {
				te.Trace = captureTrace(f)
				return value.Value{}, te
			}
		}

		if t.Heap.ShouldCollect() {
			t.Heap.Collect(threadRoots{rt: rt, ty: t, top: f})
		}
	}
}

// captureTrace walks f's Parent chain building the FrameInfo list
// FormatTrace renders, innermost (the frame the throw escaped) first.
func captureTrace(f *Frame) []FrameInfo {
	var trace []FrameInfo
	pc := f.PC - 1
	for fr := f; fr != nil; fr = fr.Parent {
		trace = append(trace, FrameInfo{Func: fr.Fn.Name(), PC: pc})
		pc = fr.PC
	}
	return trace
}

func popN(f *Frame, n uint64) []value.Value {
	args := make([]value.Value, n)
	for j := n; j > 0; j-- {
		args[j-1] = f.stk.pop()
	}
	return args
}

func negate(v value.Value) (value.Value, error) {
	switch p := v.Payload.(type) {
	case value.Int:
		return value.NewInt(-int64(p)), nil
	case value.Float:
		return value.NewFloat(-float64(p)), nil
	default:
		return value.Value{}, NewDispatchError(fmt.Sprintf("cannot negate %s", v.Kind()))
	}
}

func builtinEqual(a, b value.Value) (value.Value, bool) { return value.NewBool(value.Equal(a, b)), true }
func builtinNotEqual(a, b value.Value) (value.Value, bool) {
	return value.NewBool(!value.Equal(a, b)), true
}

func builtinCompare(pred func(int) bool) func(a, b value.Value) (value.Value, bool) {
	return func(a, b value.Value) (value.Value, bool) {
		return value.NewBool(pred(value.Compare(a, b))), true
	}
}

// throwErrorFor wraps a user-level `throw v` as a ThrowError of kind
// KindPanic. v's tags are not inspected, so a thrown value never maps
// to KindMatchError, KindIndexError or KindDispatchError here.
func throwErrorFor(v value.Value) *ThrowError {
	return &ThrowError{Kind: KindPanic, Value: v}
}

// setField generalizes funcvm.go's OP_SFLD (which only ever targeted
// its one Object type) across every mutable container kind this
// runtime has.
func setField(container, key, val value.Value) error {
	switch c := container.Payload.(type) {
	case *value.Dict:
		c.Set(key, val)
		return nil
	case *value.Array:
		i, ok := intIndex(key)
		if !ok || i < 0 {
			return NewIndexError("array index must be a non-negative int")
		}
		for i >= len(c.Items) {
			c.Items = append(c.Items, value.Nil)
		}
		c.Items[i] = val
		return nil
	case *value.Object:
		if s, ok := value.AsString(key); ok {
			if c.Dynamic == nil {
				nd, _ := value.AsDict(value.NewDict())
				c.Dynamic = nd
			}
			c.Dynamic.Set(value.Value{Payload: s}, val)
			return nil
		}
		if i, ok := intIndex(key); ok {
			c.Set(i, val)
			return nil
		}
		return NewDispatchError("invalid object field key")
	default:
		return NewDispatchError(fmt.Sprintf("%s is not assignable by field", container.Kind()))
	}
}

func getField(container, key value.Value) (value.Value, error) {
	switch c := container.Payload.(type) {
	case *value.Dict:
		if v, ok := c.Lookup(key); ok {
			return v, nil
		}
		return value.Nil, nil
	case *value.Array:
		i, ok := intIndex(key)
		if !ok || i < 0 || i >= len(c.Items) {
			return value.NoneValue, nil
		}
		return c.Items[i], nil
	case *value.Tuple:
		if i, ok := intIndex(key); ok {
			return c.ByIndex(i), nil
		}
		return value.NoneValue, nil
	case *value.Object:
		if s, ok := value.AsString(key); ok && c.Dynamic != nil {
			if v, ok := c.Dynamic.Lookup(value.Value{Payload: s}); ok {
				return v, nil
			}
		}
		if i, ok := intIndex(key); ok {
			if v, ok := c.Get(i); ok {
				return v, nil
			}
		}
		return value.NoneValue, nil
	default:
		return value.Value{}, NewDispatchError(fmt.Sprintf("%s has no field access", container.Kind()))
	}
}

func intIndex(v value.Value) (int, bool) {
	i, ok := v.Payload.(value.Int)
	if !ok {
		return 0, false
	}
	return int(i), true
}

// methodID resolves a pushed method-name/id key (OP_CALL_METHOD) into
// an interned member id.
func (rt *Runtime) methodID(key value.Value) (int, error) {
	switch k := key.Payload.(type) {
	case value.Int:
		return int(k), nil
	case *value.Str:
		return rt.Intern.Intern(k.String()), nil
	default:
		return 0, NewDispatchError("method key must be a name or id")
	}
}

// callField implements OP_CFLD: an Object dispatches through its class
// method table by name/id; every other container kind duck-types by
// calling whatever Value happens to live at that field.
func (rt *Runtime) callField(t *thread.Ty, f *Frame, container, key value.Value, args []value.Value) (value.Value, error) {
	if _, ok := value.AsObject(container); ok {
		id, err := rt.methodID(key)
		if err != nil {
			return value.Value{}, err
		}
		return rt.CallMethod(t, container, id, args, f)
	}
	fn, err := getField(container, key)
	if err != nil {
		return value.Value{}, err
	}
	return rt.Call(t, fn, args, f)
}

// spreadRange fans a resumed generator's single Value out to n slots,
// matching funcvm.go's OP_RNGP handling of a coroutine that can yield
// either a single value or (via a Tuple) several at once.
func spreadRange(v value.Value, n int) []value.Value {
	if tup, ok := value.AsTuple(v); ok {
		out := make([]value.Value, n)
		for i := 0; i < n; i++ {
			out[i] = tup.ByIndex(i)
			if value.IsNone(out[i]) {
				out[i] = value.Nil
			}
		}
		return out
	}
	out := make([]value.Value, n)
	if n > 0 {
		out[0] = v
	}
	for i := 1; i < n; i++ {
		out[i] = value.Nil
	}
	return out
}

// startRange builds the generator.Body wrapping fn and starts a
// coroutine over it, for OP_RNGS's "for x in fn(args...)" construction.
func (rt *Runtime) startRange(t *thread.Ty, parent *Frame, fn value.Value, args []value.Value) (*rangeCoro, error) {
	vf, ok := fn.Payload.(*value.Function)
	if !ok {
		return nil, NewDispatchError(fmt.Sprintf("%s is not a generator function", fn.Kind()))
	}
	var bodyErr error
	body := generator.Body(func(yield func(value.Value) value.Value, first value.Value) value.Value {
		stackSz := vf.Meta.StackSz
		if stackSz == 0 {
			stackSz = rt.Config.InitialStackSize
		}
		gf := newFrame(vf, value.Nil, parent, stackSz)
		gf.genYield = yield
		gf.bindArgs(args)
		v, err := rt.run(t, gf)
		if err != nil {
			bodyErr = err
			return value.Value{}
		}
		return v
	})
	gen := generator.New(vf, body)
	gv := value.NewGenerator(gen.ID.String(), gen)
	alloc := t.Heap.Track(gv.Payload, value.KindGenerator, 64, gen)
	gen.Pin(alloc)
	return &rangeCoro{gen: gen, val: gv, err: &bodyErr}, nil
}
