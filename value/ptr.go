package value

import "unsafe"

// ElemType is implemented by an FFI type descriptor (value.Ptr.Extra).
// value does not import the ffi package - ffi imports value and
// implements this interface on its *Type - so pointer arithmetic here
// can scale by element size without a dependency cycle.
type ElemType interface {
	ElemSize() int
	Equal(ElemType) bool
}

// Ptr is a raw pointer with an optional element-type descriptor and an
// optional opaque "extra" payload (used by ffi.Auto to stash a
// finalizer Value alongside the pointer without growing this struct for
// every caller).
type Ptr struct {
	P     unsafe.Pointer
	Extra ElemType
	Tag   any
}

func (Ptr) Kind() Kind { return KindPtr }

func NewPtr(p unsafe.Pointer, extra ElemType) Value {
	return Value{Payload: Ptr{P: p, Extra: extra}}
}

func NilPtr() Value { return Value{Payload: Ptr{}} }

// elemSize returns the scaling factor for pointer arithmetic: the
// element size if Extra is set, else 1 byte (spec.md §8 boundary: "+ on
// pointer + integer with a null extra uses byte-sized scaling").
func (p Ptr) elemSize() int {
	if p.Extra == nil {
		return 1
	}
	return p.Extra.ElemSize()
}

// Add implements pointer + integer arithmetic scaled by element size.
func (p Ptr) Add(n int64) Ptr {
	return Ptr{P: unsafe.Add(p.P, n*int64(p.elemSize())), Extra: p.Extra, Tag: p.Tag}
}

// Sub implements pointer - pointer, which requires equal element types
// (spec.md §8 boundary). ok is false when the element types differ.
func (p Ptr) Sub(q Ptr) (int64, bool) {
	if (p.Extra == nil) != (q.Extra == nil) {
		return 0, false
	}
	if p.Extra != nil && !p.Extra.Equal(q.Extra) {
		return 0, false
	}
	sz := int64(p.elemSize())
	if sz == 0 {
		sz = 1
	}
	return (int64(uintptr(p.P)) - int64(uintptr(q.P))) / sz, true
}

func AsPtr(v Value) (Ptr, bool) {
	p, ok := v.Payload.(Ptr)
	return p, ok
}
