package ffi

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/value"
)

func TestStoreLoadIntegerRoundTrips(t *testing.T) {
	var buf [8]byte
	require.NoError(t, Store(Int32, unsafe.Pointer(&buf[0]), value.NewInt(-7), nil))
	v, err := Load(Int32, unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(-7), v)
}

func TestStoreIntegerCoercesFloat(t *testing.T) {
	var buf [8]byte
	require.NoError(t, Store(Int64, unsafe.Pointer(&buf[0]), value.NewFloat(9.0), nil))
	v, err := Load(Int64, unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(9), v)
}

func TestStoreIntegerRejectsUncoercibleValue(t *testing.T) {
	var buf [8]byte
	err := Store(Int32, unsafe.Pointer(&buf[0]), value.NewString("nope"), nil)
	assert.Error(t, err)
}

func TestStoreLoadFloatRoundTrips(t *testing.T) {
	var buf [8]byte
	require.NoError(t, Store(Float64, unsafe.Pointer(&buf[0]), value.NewFloat(3.5), nil))
	v, err := Load(Float64, unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	f, ok := v.Payload.(value.Float)
	require.True(t, ok)
	assert.Equal(t, 3.5, float64(f))
}

func TestStoreLoadFloat32RoundTrips(t *testing.T) {
	var buf [4]byte
	require.NoError(t, Store(Float32, unsafe.Pointer(&buf[0]), value.NewFloat(1.5), nil))
	v, err := Load(Float32, unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	f, _ := v.Payload.(value.Float)
	assert.Equal(t, 1.5, float64(f))
}

func TestStoreLoadPointerRoundTrips(t *testing.T) {
	x := int32(42)
	var buf [8]byte
	src := value.Value{Payload: value.Ptr{P: unsafe.Pointer(&x), Extra: Int32}}
	require.NoError(t, Store(Pointer, unsafe.Pointer(&buf[0]), src, nil))

	v, err := Load(Pointer, unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	p, ok := value.AsPtr(v)
	require.True(t, ok)
	assert.Equal(t, unsafe.Pointer(&x), p.P)
}

func TestStorePointerFromStringUsesDataBackingArray(t *testing.T) {
	var buf [8]byte
	require.NoError(t, Store(Pointer, unsafe.Pointer(&buf[0]), value.NewString("hi"), nil))
	got := *(*unsafe.Pointer)(unsafe.Pointer(&buf[0]))
	assert.NotNil(t, got)
}

func TestStorePointerFromObjectUsesRegisteredPtrMethod(t *testing.T) {
	x := int64(7)
	invoked := false
	RegisterPtrMethodResolver(func(o *value.Object) (value.Value, bool) {
		return value.NewBuiltinFunction("__ptr__", nil), true
	})
	defer RegisterPtrMethodResolver(func(*value.Object) (value.Value, bool) { return value.Value{}, false })

	inv := invokerFunc(func(fn value.Value, args []value.Value) (value.Value, error) {
		invoked = true
		return value.Value{Payload: value.Ptr{P: unsafe.Pointer(&x), Extra: Int64}}, nil
	})

	obj, _ := value.AsObject(value.NewObject(1))
	var buf [8]byte
	require.NoError(t, Store(Pointer, unsafe.Pointer(&buf[0]), value.Value{Payload: obj}, inv))
	assert.True(t, invoked)
	got := *(*unsafe.Pointer)(unsafe.Pointer(&buf[0]))
	assert.Equal(t, unsafe.Pointer(&x), got)
}

func TestStorePointerFromObjectWithoutPtrMethodFails(t *testing.T) {
	RegisterPtrMethodResolver(func(*value.Object) (value.Value, bool) { return value.Value{}, false })
	obj, _ := value.AsObject(value.NewObject(1))
	var buf [8]byte
	err := Store(Pointer, unsafe.Pointer(&buf[0]), value.Value{Payload: obj}, nil)
	assert.Error(t, err)
}

type invokerFunc func(fn value.Value, args []value.Value) (value.Value, error)

func (f invokerFunc) CallValue(fn value.Value, args []value.Value) (value.Value, error) {
	return f(fn, args)
}

func TestStoreLoadStructRoundTripsTupleFields(t *testing.T) {
	st := Struct(Int32, Float64)
	buf := make([]byte, st.ElemSize())
	tup := value.NewTuple(value.NewInt(5), value.NewFloat(2.5))

	require.NoError(t, Store(st, unsafe.Pointer(&buf[0]), tup, nil))
	v, err := Load(st, unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	out, ok := value.AsTuple(v)
	require.True(t, ok)
	assert.Equal(t, value.NewInt(5), out.Items[0])
	f, _ := out.Items[1].Payload.(value.Float)
	assert.Equal(t, 2.5, float64(f))
}

func TestStoreStructRejectsWrongFieldCount(t *testing.T) {
	st := Struct(Int32, Float64)
	buf := make([]byte, st.ElemSize())
	err := Store(st, unsafe.Pointer(&buf[0]), value.NewTuple(value.NewInt(1)), nil)
	assert.Error(t, err)
}

func TestXStoreXLoadInt32RoundTrips(t *testing.T) {
	var buf [4]byte
	require.NoError(t, XStore(Int32, unsafe.Pointer(&buf[0]), value.NewInt(123)))
	v, err := XLoad(Int32, unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(123), v)
}

func TestXStoreRejectsNonAtomicType(t *testing.T) {
	var buf [8]byte
	err := XStore(Float64, unsafe.Pointer(&buf[0]), value.NewFloat(1))
	assert.Error(t, err)
}

func TestXStoreRejectsNonIntegerValue(t *testing.T) {
	var buf [4]byte
	err := XStore(Int32, unsafe.Pointer(&buf[0]), value.NewString("x"))
	assert.Error(t, err)
}

func TestTypeElemSizeAndEqual(t *testing.T) {
	assert.Equal(t, 4, Int32.ElemSize())
	assert.True(t, Int32.Equal(Int32))
	assert.False(t, Int32.Equal(Int64))
}
