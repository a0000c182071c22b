// Package ffi implements the C-ABI bridge from spec.md §4.J: type
// descriptors, call-interface preparation, struct marshalling,
// blocking calls with cooperative-lock release, re-entrant closures,
// and auto-finalizing pointers. Built on github.com/go-webgpu/goffi,
// whose ffi.PrepareCallInterface/ffi.CallFunction/types.TypeDescriptor
// shape is ported from other_examples' gogpu-wgpu Objective-C bridge -
// the one concrete, detailed goffi call site in the retrieved pack.
package ffi

import (
	"fmt"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"

	"github.com/ty-lang/tyrt/value"
)

// Type wraps a goffi type descriptor and implements value.ElemType so
// value.Ptr arithmetic can scale by element size without value
// importing this package.
type Type struct {
	Desc *types.TypeDescriptor
	// Fields holds the member Types for a Struct descriptor, in
	// declaration order, so Store/Load can recurse field-by-field.
	Fields []*Type
}

func (t *Type) ElemSize() int {
	if t == nil || t.Desc == nil {
		return 1
	}
	return int(t.Desc.Size())
}

func (t *Type) Equal(other value.ElemType) bool {
	o, ok := other.(*Type)
	return ok && o != nil && t != nil && t.Desc == o.Desc
}

var (
	Int8    = &Type{Desc: types.SInt8TypeDescriptor}
	UInt8   = &Type{Desc: types.UInt8TypeDescriptor}
	Int16   = &Type{Desc: types.SInt16TypeDescriptor}
	UInt16  = &Type{Desc: types.UInt16TypeDescriptor}
	Int32   = &Type{Desc: types.SInt32TypeDescriptor}
	UInt32  = &Type{Desc: types.UInt32TypeDescriptor}
	Int64   = &Type{Desc: types.SInt64TypeDescriptor}
	UInt64  = &Type{Desc: types.UInt64TypeDescriptor}
	Float32 = &Type{Desc: types.FloatTypeDescriptor}
	Float64 = &Type{Desc: types.DoubleTypeDescriptor}
	Pointer = &Type{Desc: types.PointerTypeDescriptor}
	Void    = &Type{Desc: types.VoidTypeDescriptor}
)

// Struct builds a struct type descriptor from its member types, per
// spec.md §4.J's "recursive Tuple/Ptr/Object struct marshalling".
func Struct(fields ...*Type) *Type {
	members := make([]*types.TypeDescriptor, len(fields))
	for i, f := range fields {
		members[i] = f.Desc
	}
	return &Type{
		Desc:   &types.TypeDescriptor{Kind: types.StructType, Members: members},
		Fields: fields,
	}
}

// Cif is a prepared call interface: return type, argument types, and
// the goffi CallInterface itself.
type Cif struct {
	Ret  *Type
	Args []*Type
	raw  types.CallInterface
}

// CIF prepares a call interface for ret(args...), matching
// ffi.PrepareCallInterface's signature as used by msgSend/prepareObjC-
// CallInterfaces in the grounding example. variadicAfter is accepted
// but not read: every interface is prepared with goffi's DefaultCall as
// a fixed-argument call, so variadic C functions are not supported.
func CIF(ret *Type, variadicAfter int, args ...*Type) (*Cif, error) {
	argDescs := make([]*types.TypeDescriptor, len(args))
	for i, a := range args {
		argDescs[i] = a.Desc
	}
	c := &Cif{Ret: ret, Args: args}
	abi := types.DefaultCall
	if err := ffi.PrepareCallInterface(&c.raw, abi, ret.Desc, argDescs); err != nil {
		return nil, fmt.Errorf("ffi: prepare call interface: %w", err)
	}
	return c, nil
}
