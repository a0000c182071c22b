package ffi

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"

	"github.com/ty-lang/tyrt/value"
)

// Invoker is implemented by the vm package: the trampoline Store and
// Call need to resolve an Object's __ptr__ method or call a VM
// callable from a C closure, without ffi importing vm (which would
// cycle back through here for ffi.call).
type Invoker interface {
	CallValue(fn value.Value, args []value.Value) (value.Value, error)
}

// Store converts v to raw bytes at dst per spec.md §4.J's coercion
// matrix. inv is used only for Object __ptr__ dispatch.
func Store(t *Type, dst unsafe.Pointer, v value.Value, inv Invoker) error {
	switch {
	case isIntegerType(t):
		return storeInteger(t, dst, v)
	case isFloatType(t):
		return storeFloat(t, dst, v)
	case isStructType(t):
		return storeStruct(t, dst, v, inv)
	case isPointerType(t):
		return storePointer(t, dst, v, inv)
	default:
		return fmt.Errorf("ffi: store: unsupported type kind")
	}
}

// Load is the inverse of Store.
func Load(t *Type, src unsafe.Pointer) (value.Value, error) {
	switch {
	case isIntegerType(t):
		return loadInteger(t, src), nil
	case isFloatType(t):
		return loadFloat(t, src), nil
	case isPointerType(t):
		return value.Value{Payload: value.Ptr{P: *(*unsafe.Pointer)(src), Extra: t}}, nil
	case isStructType(t):
		return loadStruct(t, src)
	default:
		return value.Value{}, fmt.Errorf("ffi: load: unsupported type kind")
	}
}

// --- kind classification -------------------------------------------
//
// goffi's TypeDescriptor.Kind enumerates primitive/pointer/struct/void;
// these predicates route Store/Load without this package needing to
// repeat goffi's own enum here. isIntegerType/isFloatType/isPointerType/
// isStructType make the switch in Store read like the spec's own
// "Integer targets.../Pointer targets.../Struct targets..." prose; Load
// uses the same predicates.

func isIntegerType(t *Type) bool {
	switch t {
	case Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64:
		return true
	}
	return false
}

func isFloatType(t *Type) bool   { return t == Float32 || t == Float64 }
func isPointerType(t *Type) bool { return t == Pointer }
func isStructType(t *Type) bool  { return len(t.Fields) > 0 }

func storeInteger(t *Type, dst unsafe.Pointer, v value.Value) error {
	var i int64
	switch p := v.Payload.(type) {
	case value.Int:
		i = int64(p)
	case value.Float:
		i = int64(p)
	case value.Ptr:
		i = int64(uintptr(p.P))
	default:
		return fmt.Errorf("ffi: store: %s cannot coerce to integer", v.Kind())
	}
	writeInt(t, dst, i)
	return nil
}

func storeFloat(t *Type, dst unsafe.Pointer, v value.Value) error {
	var f float64
	switch p := v.Payload.(type) {
	case value.Float:
		f = float64(p)
	case value.Int:
		f = float64(p)
	default:
		return fmt.Errorf("ffi: store: %s cannot coerce to float", v.Kind())
	}
	if t == Float32 {
		*(*float32)(dst) = float32(f)
	} else {
		*(*float64)(dst) = f
	}
	return nil
}

func storePointer(t *Type, dst unsafe.Pointer, v value.Value, inv Invoker) error {
	var p unsafe.Pointer
	switch pv := v.Payload.(type) {
	case value.Ptr:
		p = pv.P
	case value.Int:
		p = unsafe.Pointer(uintptr(pv))
	case *value.Str:
		if len(pv.Data) == 0 {
			p = nil
		} else {
			p = unsafe.Pointer(&pv.Data[0])
		}
	case *value.Blob:
		if len(pv.Bytes) == 0 {
			p = nil
		} else {
			p = unsafe.Pointer(&pv.Bytes[0])
		}
	case nil:
		p = nil
	case *value.Object:
		ptrMethod, ok := classPtrMethod(pv)
		if !ok || inv == nil {
			return fmt.Errorf("ffi: store: object has no __ptr__ method")
		}
		res, err := inv.CallValue(ptrMethod, nil)
		if err != nil {
			return err
		}
		rp, ok := value.AsPtr(res)
		if !ok {
			return fmt.Errorf("ffi: store: __ptr__ did not return a pointer")
		}
		p = rp.P
	default:
		if value.IsMissing(v) {
			p = nil
		} else {
			return fmt.Errorf("ffi: store: %s cannot coerce to pointer", v.Kind())
		}
	}
	*(*unsafe.Pointer)(dst) = p
	return nil
}

// classPtrMethod is a seam filled in by the vm package at startup (its
// Runtime calls RegisterPtrMethodResolver below) so ffi can look up an
// Object's __ptr__ slot without importing class (ffi is a lower layer
// than class in the package graph - class doesn't need ffi, but
// keeping the dependency one-directional avoids a cycle either way).
var classPtrMethod = func(*value.Object) (value.Value, bool) { return value.Value{}, false }

// RegisterPtrMethodResolver installs the Object.__ptr__ lookup.
func RegisterPtrMethodResolver(f func(*value.Object) (value.Value, bool)) {
	classPtrMethod = f
}

func storeStruct(t *Type, dst unsafe.Pointer, v value.Value, inv Invoker) error {
	switch p := v.Payload.(type) {
	case *value.Tuple:
		if len(p.Items) != len(t.Fields) {
			return fmt.Errorf("ffi: store: struct expects %d fields, got %d", len(t.Fields), len(p.Items))
		}
		offset := uintptr(0)
		for i, field := range t.Fields {
			offset = alignUp(offset, uintptr(fieldAlign(field)))
			if err := Store(field, unsafe.Add(dst, offset), p.Items[i], inv); err != nil {
				return err
			}
			offset += uintptr(field.ElemSize())
		}
		return nil
	case value.Ptr:
		size := t.ElemSize()
		src := unsafe.Slice((*byte)(p.P), size)
		dstSlice := unsafe.Slice((*byte)(dst), size)
		copy(dstSlice, src)
		return nil
	case *value.Object:
		return storePointer(Pointer, dst, v, inv)
	default:
		return fmt.Errorf("ffi: store: %s cannot coerce to struct", v.Kind())
	}
}

func fieldAlign(t *Type) int {
	if n := t.ElemSize(); n > 0 && n <= 8 {
		return n
	}
	return 8
}

func alignUp(off, align uintptr) uintptr {
	if align == 0 {
		return off
	}
	return (off + align - 1) / align * align
}

func writeInt(t *Type, dst unsafe.Pointer, v int64) {
	switch t {
	case Int8, UInt8:
		*(*uint8)(dst) = uint8(v)
	case Int16, UInt16:
		*(*uint16)(dst) = uint16(v)
	case Int32, UInt32:
		*(*uint32)(dst) = uint32(v)
	default:
		*(*uint64)(dst) = uint64(v)
	}
}

func loadInteger(t *Type, src unsafe.Pointer) value.Value {
	switch t {
	case Int8:
		return value.NewInt(int64(*(*int8)(src)))
	case UInt8:
		return value.NewInt(int64(*(*uint8)(src)))
	case Int16:
		return value.NewInt(int64(*(*int16)(src)))
	case UInt16:
		return value.NewInt(int64(*(*uint16)(src)))
	case Int32:
		return value.NewInt(int64(*(*int32)(src)))
	case UInt32:
		return value.NewInt(int64(*(*uint32)(src)))
	case Int64:
		return value.NewInt(*(*int64)(src))
	default:
		return value.NewInt(int64(*(*uint64)(src)))
	}
}

func loadFloat(t *Type, src unsafe.Pointer) value.Value {
	if t == Float32 {
		return value.NewFloat(float64(*(*float32)(src)))
	}
	return value.NewFloat(*(*float64)(src))
}

func loadStruct(t *Type, src unsafe.Pointer) (value.Value, error) {
	items := make([]value.Value, len(t.Fields))
	offset := uintptr(0)
	for i, field := range t.Fields {
		offset = alignUp(offset, uintptr(fieldAlign(field)))
		v, err := Load(field, unsafe.Add(src, offset))
		if err != nil {
			return value.Value{}, err
		}
		items[i] = v
		offset += uintptr(field.ElemSize())
	}
	return value.Value{Payload: &value.Tuple{Items: items}}, nil
}

// XStore/XLoad are the atomic variants from spec.md §4.J: relaxed
// atomic accesses for integral and pointer types, rejecting every
// other type.
func XStore(t *Type, dst unsafe.Pointer, v value.Value) error {
	switch t {
	case Int32, UInt32:
		i, ok := asInt(v)
		if !ok {
			return fmt.Errorf("ffi: xstore: non-integer value")
		}
		atomic.StoreUint32((*uint32)(dst), uint32(i))
	case Int64, UInt64:
		i, ok := asInt(v)
		if !ok {
			return fmt.Errorf("ffi: xstore: non-integer value")
		}
		atomic.StoreUint64((*uint64)(dst), uint64(i))
	case Pointer:
		p, ok := value.AsPtr(v)
		if !ok {
			return fmt.Errorf("ffi: xstore: non-pointer value")
		}
		atomic.StorePointer((*unsafe.Pointer)(dst), p.P)
	default:
		return fmt.Errorf("ffi: xstore: %v is not an atomic type", t)
	}
	return nil
}

func XLoad(t *Type, src unsafe.Pointer) (value.Value, error) {
	switch t {
	case Int32, UInt32:
		return value.NewInt(int64(atomic.LoadUint32((*uint32)(src)))), nil
	case Int64, UInt64:
		return value.NewInt(int64(atomic.LoadUint64((*uint64)(src)))), nil
	case Pointer:
		return value.Value{Payload: value.Ptr{P: atomic.LoadPointer((*unsafe.Pointer)(src)), Extra: Pointer}}, nil
	default:
		return value.Value{}, fmt.Errorf("ffi: xload: %v is not an atomic type", t)
	}
}

func asInt(v value.Value) (int64, bool) {
	switch p := v.Payload.(type) {
	case value.Int:
		return int64(p), true
	case value.Float:
		return int64(p), true
	}
	return 0, false
}

// Locker is implemented by thread.Runtime: Call releases the
// cooperative lock around the blocking C call, per spec.md §4.J.
type Locker interface {
	Suspend(osThreadID int64, blocking func())
}

// Call marshals args into a scratch buffer, releases lk's cooperative
// lock, invokes fn through cif, reacquires the lock, and loads the
// return value (spec.md §4.J "Calls"). If out is non-nil, the return
// value is written there instead of being loaded into a Value (the
// `out` keyword argument the spec calls out).
func Call(cif *Cif, fn unsafe.Pointer, args []value.Value, out unsafe.Pointer, lk Locker, osThreadID int64, inv Invoker) (value.Value, error) {
	argBufs := make([][]byte, len(args))
	argPtrs := make([]unsafe.Pointer, len(args))
	for i, a := range cif.Args {
		buf := make([]byte, a.ElemSize())
		if err := Store(a, unsafe.Pointer(&buf[0]), args[i], inv); err != nil {
			return value.Value{}, err
		}
		argBufs[i] = buf
		argPtrs[i] = unsafe.Pointer(&buf[0])
	}

	retBuf := make([]byte, cif.Ret.ElemSize())
	retPtr := unsafe.Pointer(&retBuf[0])

	var callErr error
	call := func() { callErr = ffi.CallFunction(&cif.raw, fn, retPtr, argPtrs) }
	if lk != nil {
		lk.Suspend(osThreadID, call)
	} else {
		call()
	}
	if callErr != nil {
		return value.Value{}, callErr
	}

	if out != nil {
		copy(unsafe.Slice((*byte)(out), len(retBuf)), retBuf)
		return value.Nil, nil
	}
	return Load(cif.Ret, retPtr)
}
