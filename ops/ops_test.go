package ops

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/value"
)

// stubSub models a tiny class hierarchy for dispatch tests:
// 0=Object, 1=Animal<Object, 2=Dog<Animal.
type stubSub struct{ ancestors map[int][]int }

func (s stubSub) IsSubclass(a, b int) bool {
	if a == b {
		return true
	}
	for _, anc := range s.ancestors[a] {
		if anc == b {
			return true
		}
	}
	return false
}

func hierarchy() stubSub {
	return stubSub{ancestors: map[int][]int{
		1: {0},
		2: {1, 0},
	}}
}

func TestDispatchFindsExactMatch(t *testing.T) {
	tb := NewTable(hierarchy())
	tb.Register(99, 2, 2, value.NewString("dog-dog"))

	v, ok := tb.Dispatch(99, 2, 2)
	require.True(t, ok)
	s, _ := value.AsString(v)
	assert.Equal(t, "dog-dog", s.String())
}

func TestDispatchPrefersMostSpecificDefinition(t *testing.T) {
	tb := NewTable(hierarchy())
	tb.Register(99, 0, 0, value.NewString("object-object"))
	tb.Register(99, 1, 1, value.NewString("animal-animal"))

	v, ok := tb.Dispatch(99, 2, 2)
	require.True(t, ok)
	s, _ := value.AsString(v)
	assert.Equal(t, "animal-animal", s.String(), "Dog,Dog should prefer the Animal,Animal def over Object,Object")
}

func TestDispatchTiesBreakOnRegistrationOrder(t *testing.T) {
	tb := NewTable(stubSub{ancestors: map[int][]int{}})
	tb.Register(1, 0, 0, value.NewString("first"))
	tb.Register(1, 0, 0, value.NewString("second"))

	v, ok := tb.Dispatch(1, 0, 0)
	require.True(t, ok)
	s, _ := value.AsString(v)
	assert.Equal(t, "first", s.String())
}

func TestDispatchNoMatchReturnsFalse(t *testing.T) {
	tb := NewTable(hierarchy())
	tb.Register(1, 2, 2, value.NewString("dog-dog"))
	_, ok := tb.Dispatch(1, 0, 0)
	assert.False(t, ok)
}

func TestRegisterInvalidatesCache(t *testing.T) {
	tb := NewTable(hierarchy())
	tb.Register(1, 0, 0, value.NewString("v1"))
	v, _ := tb.Dispatch(1, 0, 0) // populate cache
	s, _ := value.AsString(v)
	assert.Equal(t, "v1", s.String())

	tb.Register(1, 2, 2, value.NewString("v2"))
	v, ok := tb.Dispatch(1, 2, 2)
	require.True(t, ok)
	s, _ = value.AsString(v)
	assert.Equal(t, "v2", s.String())
}

func TestBuiltinAddNumericPromotion(t *testing.T) {
	v, ok := BuiltinAdd(value.NewInt(2), value.NewInt(3))
	require.True(t, ok)
	assert.Equal(t, value.NewInt(5), v)

	v, ok = BuiltinAdd(value.NewInt(2), value.NewFloat(0.5))
	require.True(t, ok)
	f, _ := v.Payload.(value.Float)
	assert.Equal(t, 2.5, float64(f))
}

func TestBuiltinAddConcatenatesStrings(t *testing.T) {
	v, ok := BuiltinAdd(value.NewString("foo"), value.NewString("bar"))
	require.True(t, ok)
	s, _ := value.AsString(v)
	assert.Equal(t, "foobar", s.String())
}

func TestBuiltinAddEmptyStringFastPath(t *testing.T) {
	v, ok := BuiltinAdd(value.NewString(""), value.NewString("bar"))
	require.True(t, ok)
	s, _ := value.AsString(v)
	assert.Equal(t, "bar", s.String())
}

func TestBuiltinAddConcatenatesArrays(t *testing.T) {
	v, ok := BuiltinAdd(value.NewArray(value.NewInt(1)), value.NewArray(value.NewInt(2)))
	require.True(t, ok)
	arr, _ := value.AsArray(v)
	assert.Equal(t, []value.Value{value.NewInt(1), value.NewInt(2)}, arr.Items)
}

func TestBuiltinAddMergesDictsRightBiased(t *testing.T) {
	a, _ := value.AsDict(value.NewDict())
	a.Set(value.NewString("x"), value.NewInt(1))
	b, _ := value.AsDict(value.NewDict())
	b.Set(value.NewString("x"), value.NewInt(2))

	v, ok := BuiltinAdd(value.Value{Payload: a}, value.Value{Payload: b})
	require.True(t, ok)
	merged, _ := value.AsDict(v)
	got, _ := merged.Lookup(value.NewString("x"))
	assert.Equal(t, value.NewInt(2), got)
}

func TestBuiltinAddRejectsUnsupportedKinds(t *testing.T) {
	_, ok := BuiltinAdd(value.NewBool(true), value.NewInt(1))
	assert.False(t, ok)
}

func TestBuiltinSubPointerArithmetic(t *testing.T) {
	et := opsFakeElem{4}
	buf := make([]byte, 64)
	p, _ := value.AsPtr(value.NewPtr(ptrAt(buf, 16), et))
	q, _ := value.AsPtr(value.NewPtr(ptrAt(buf, 0), et))

	v, ok := BuiltinSub(value.Value{Payload: p}, value.Value{Payload: q})
	require.True(t, ok)
	assert.Equal(t, value.NewInt(4), v)
}

func TestBuiltinMulCartesianArrayProduct(t *testing.T) {
	v, ok := BuiltinMul(value.NewArray(value.NewInt(1), value.NewInt(2)), value.NewArray(value.NewInt(9)))
	require.True(t, ok)
	arr, _ := value.AsArray(v)
	assert.Len(t, arr.Items, 2)
}

func TestBuiltinDivAndModNumeric(t *testing.T) {
	v, ok := BuiltinDiv(value.NewInt(7), value.NewInt(2))
	require.True(t, ok)
	assert.Equal(t, value.NewInt(3), v)

	v, ok = BuiltinMod(value.NewInt(7), value.NewInt(2))
	require.True(t, ok)
	assert.Equal(t, value.NewInt(1), v)
}

type opsFakeElem struct{ size int }

func (e opsFakeElem) ElemSize() int { return e.size }
func (e opsFakeElem) Equal(o value.ElemType) bool {
	other, ok := o.(opsFakeElem)
	return ok && other.size == e.size
}

func ptrAt(buf []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&buf[off])
}
