package value

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElemType struct{ size int }

func (e fakeElemType) ElemSize() int { return e.size }
func (e fakeElemType) Equal(o ElemType) bool {
	other, ok := o.(fakeElemType)
	return ok && other.size == e.size
}

func TestPtrAddScalesByElementSize(t *testing.T) {
	buf := make([]byte, 64)
	base := NewPtr(unsafe.Pointer(&buf[0]), fakeElemType{size: 4})
	p, ok := AsPtr(base)
	require.True(t, ok)

	advanced := p.Add(3)
	assert.Equal(t, unsafe.Pointer(&buf[12]), advanced.P)
}

func TestPtrAddDefaultsToByteScalingWithNoElemType(t *testing.T) {
	buf := make([]byte, 8)
	p, _ := AsPtr(NewPtr(unsafe.Pointer(&buf[0]), nil))
	advanced := p.Add(5)
	assert.Equal(t, unsafe.Pointer(&buf[5]), advanced.P)
}

func TestPtrSubRequiresMatchingElementTypes(t *testing.T) {
	buf := make([]byte, 64)
	a, _ := AsPtr(NewPtr(unsafe.Pointer(&buf[16]), fakeElemType{size: 4}))
	b, _ := AsPtr(NewPtr(unsafe.Pointer(&buf[0]), fakeElemType{size: 4}))

	diff, ok := a.Sub(b)
	require.True(t, ok)
	assert.EqualValues(t, 4, diff)

	c, _ := AsPtr(NewPtr(unsafe.Pointer(&buf[0]), fakeElemType{size: 8}))
	_, ok = a.Sub(c)
	assert.False(t, ok)
}

func TestNilPtrHasNilPointer(t *testing.T) {
	p, ok := AsPtr(NilPtr())
	require.True(t, ok)
	assert.Nil(t, p.P)
}

func TestNewRegexCompilesAndRejectsInvalid(t *testing.T) {
	v, err := NewRegex(`^[a-z]+$`, false)
	require.NoError(t, err)
	re, ok := AsRegex(v)
	require.True(t, ok)
	assert.True(t, re.Compiled.MatchString("abc"))
	assert.False(t, re.Detailed)

	_, err = NewRegex(`(unclosed`, false)
	assert.Error(t, err)
}

func TestKindStringersAreNonEmpty(t *testing.T) {
	kinds := []Kind{
		KindNil, KindNone, KindInt, KindFloat, KindBool, KindString,
		KindArray, KindDict, KindBlob, KindTuple, KindObject, KindClass,
		KindTag, KindFunction, KindBuiltinFunction, KindMethod,
		KindBuiltinMethod, KindGenerator, KindThread, KindRegex, KindPtr,
		KindOperator, KindRefCell,
	}
	for _, k := range kinds {
		assert.NotEmpty(t, k.String())
	}
	// The callable Kinds (Function/BuiltinFunction/Method/BuiltinMethod/
	// Operator) intentionally share the display name "Function".
	assert.Equal(t, "Function", KindFunction.String())
	assert.Equal(t, "Function", KindOperator.String())
	assert.Equal(t, Kind(255).String(), "<internal>")
}

func TestGeneratorAndThreadRefPayloadKinds(t *testing.T) {
	gv := NewGenerator("g1", nil)
	g, ok := AsGenerator(gv)
	require.True(t, ok)
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, KindGenerator, g.Kind())

	tv := NewThreadRef("t1", nil)
	tr, ok := AsThreadRef(tv)
	require.True(t, ok)
	assert.Equal(t, "t1", tr.ID)
	assert.Equal(t, KindThread, tr.Kind())

	_, ok = AsGenerator(NewInt(1))
	assert.False(t, ok)
}
