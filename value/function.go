package value

import "github.com/ty-lang/tyrt/bytecode"

// Function is a closure over captured upvalues backed by a compiled
// function prototype. The header fields spec.md §3.1 calls out as
// fixed-offset (code-size, arity, class id, expr pointer, proto, doc,
// name) are simply struct fields here; the "fixed byte offset" property
// of the original C layout is a non-goal in a managed language, but the
// same data is retained so introspection built-ins can expose it.
type Function struct {
	Meta     *bytecode.FuncMeta
	Upvalues []Value
	// This, when non-nil, makes this Function a bound method receiver
	// cache used by newAgoraFuncVM-style instantiation; ordinary
	// closures leave it unset.
	This *Value
	// Enclosing is opaque here (the vm package's *Frame the closure was
	// created inside) - value does not import vm, so variable
	// resolution that walks up an enclosing closure's locals the way
	// the original's ctx.getVar does is entirely vm's responsibility.
	// nil for a top-level function with no enclosing scope.
	Enclosing any
}

func (*Function) Kind() Kind { return KindFunction }

func NewFunction(meta *bytecode.FuncMeta, upvalues []Value) Value {
	return Value{Payload: &Function{Meta: meta, Upvalues: upvalues}}
}

func (f *Function) Name() string  { return f.Meta.Name }
func (f *Function) Arity() int64  { return f.Meta.ExpArgs }
func (f *Function) ClassID() int  { return f.Meta.Class }
func (f *Function) Proto() string { return f.Meta.Proto }
func (f *Function) Doc() string   { return f.Meta.Doc }

// NativeFn is the uniform built-in calling convention from spec.md
// §6.2, generalized to Go: self points at the receiver (nil for free
// functions), args are positional, kwargs is nil or a keyword-argument
// dict.
type NativeFn func(self *Value, args []Value, kwargs *Dict) (Value, error)

// BuiltinFunction wraps a native Go function as a callable Value.
type BuiltinFunction struct {
	Name string
	Fn   NativeFn
}

func (*BuiltinFunction) Kind() Kind { return KindBuiltinFunction }

func NewBuiltinFunction(name string, fn NativeFn) Value {
	return Value{Payload: &BuiltinFunction{Name: name, Fn: fn}}
}

// Method is a Function bound to a receiver.
type Method struct {
	Receiver Value
	Fn       *Function
}

func (*Method) Kind() Kind { return KindMethod }

func NewMethod(receiver Value, fn *Function) Value {
	return Value{Payload: &Method{Receiver: receiver, Fn: fn}}
}

// BuiltinMethod is a BuiltinFunction bound to a receiver.
type BuiltinMethod struct {
	Receiver Value
	Fn       *BuiltinFunction
}

func (*BuiltinMethod) Kind() Kind { return KindBuiltinMethod }

func NewBuiltinMethod(receiver Value, fn *BuiltinFunction) Value {
	return Value{Payload: &BuiltinMethod{Receiver: receiver, Fn: fn}}
}

// Operator is an opaque callable representing a registered binary
// operator implementation (spec.md §4.F): either a Function reference
// (program-defined operator overload) or a native Go implementation.
type Operator struct {
	Name string
	Fn   *Function
	Nat  NativeFn
}

func (*Operator) Kind() Kind { return KindOperator }

func NewOperatorFunc(name string, fn *Function) Value {
	return Value{Payload: &Operator{Name: name, Fn: fn}}
}

func NewOperatorNative(name string, fn NativeFn) Value {
	return Value{Payload: &Operator{Name: name, Nat: fn}}
}

// Callable reports whether v can be the target of ApplyCallable.
func Callable(v Value) bool {
	switch v.Payload.(type) {
	case *Function, *BuiltinFunction, *Method, *BuiltinMethod, *Operator:
		return true
	}
	return false
}
