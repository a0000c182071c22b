// Package value implements the tagged-variant runtime value
// representation shared by every other package in this module: the GC
// walks it, the class/operator dispatch tables key off it, the
// concurrency substrate passes it between threads, and the FFI bridge
// marshals it to and from C call frames.
package value

import "fmt"

// Payload is implemented by every concrete value kind. It carries no
// behavior beyond identifying its Kind; all value semantics (hash,
// equality, ordering, truthiness, display) live in free functions so
// that a Value's tag stack - which is a property of the wrapper, not of
// the payload - can always be taken into account.
type Payload interface {
	Kind() Kind
}

// Value is the uniform runtime representation of any program datum. The
// tag stack is carried on the wrapper, independent of the payload, so
// that `Some x`, `Ok x`, and similar user-defined sum constructors are
// just a base payload plus a stacked tag id (spec.md §3.1).
type Value struct {
	Tags    TagStack
	Payload Payload
}

func (v Value) Kind() Kind { return v.Payload.Kind() }

// Untagged reports whether v carries no tag stack entries.
func (v Value) Untagged() bool { return !v.Tags.Tagged() }

// WithTag returns a copy of v with tag pushed onto its tag stack.
func (v Value) WithTag(tag int) Value {
	return Value{Tags: PushTag(v.Tags, tag), Payload: v.Payload}
}

// Untag pops the most recently pushed tag, per spec.md §3.1: "Popping
// leaves the base untagged" only once every pushed tag has been popped.
func (v Value) Untag() Value {
	return Value{Tags: PopTag(v.Tags), Payload: v.Payload}
}

// Base strips every tag, returning just the underlying payload wrapped
// with an empty tag stack.
func (v Value) Base() Value { return Value{Payload: v.Payload} }

// --- primitive payloads -----------------------------------------------

type nilPayload struct{}

func (nilPayload) Kind() Kind { return KindNil }

// Nil is the canonical nil value.
var Nil = Value{Payload: nilPayload{}}

type nonePayload struct{}

func (nonePayload) Kind() Kind { return KindNone }

// NoneValue is the "absent" sentinel distinct from Nil; it is what
// missing tuple-field access and similar non-throwing lookups return.
var NoneValue = Value{Payload: nonePayload{}}

type Int int64

func (Int) Kind() Kind { return KindInt }

// NewInt wraps an int64 as a Value.
func NewInt(i int64) Value { return Value{Payload: Int(i)} }

type Float float64

func (Float) Kind() Kind { return KindFloat }

func NewFloat(f float64) Value { return Value{Payload: Float(f)} }

type Bool bool

func (Bool) Kind() Kind { return KindBool }

func NewBool(b bool) Value { return Value{Payload: Bool(b)} }

var (
	True  = NewBool(true)
	False = NewBool(false)
)

// IsNil reports whether v's payload is Nil (ignoring tags).
func IsNil(v Value) bool { _, ok := v.Payload.(nilPayload); return ok }

// IsNone reports whether v's payload is the absent sentinel.
func IsNone(v Value) bool { _, ok := v.Payload.(nonePayload); return ok }

// IsMissing is IsNil || IsNone, the common "nothing here" test.
func IsMissing(v Value) bool { return IsNil(v) || IsNone(v) }

func (v Value) String() string { return Show(v) }

func (v Value) GoString() string { return fmt.Sprintf("Value{%s}", Show(v)) }
