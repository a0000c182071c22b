package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/bytecode"
	"github.com/ty-lang/tyrt/value"
)

func identityMeta() *bytecode.FuncMeta {
	return &bytecode.FuncMeta{
		Name: "id", Class: -1, ExpArgs: 1,
		KTable: []bytecode.ConstVal{{Kind: bytecode.ConstString, S: "x"}},
		LTable: []string{"x"},
		Code: []bytecode.Instr{
			bytecode.NewInstr(bytecode.OP_PUSH, bytecode.FLG_V, 0),
			bytecode.NewInstr(bytecode.OP_RET, bytecode.FLG_NONE, 0),
		},
	}
}

func TestClassIDOfDistinguishesObjectsAndPrimitives(t *testing.T) {
	obj, _ := value.AsObject(value.NewObject(3))
	assert.Equal(t, 3, classIDOf(value.Value{Payload: obj}))

	intID := classIDOf(value.NewInt(1))
	floatID := classIDOf(value.NewFloat(1))
	assert.NotEqual(t, intID, floatID)
	assert.Less(t, intID, 0)
}

func TestCallDispatchesFunctionBuiltinAndMethod(t *testing.T) {
	rt, err := Load(&bytecode.Program{Funcs: []*bytecode.FuncMeta{identityMeta()}})
	require.NoError(t, err)
	th := rt.NewMainThread()

	fnV := value.NewFunction(identityMeta(), nil)
	v, err := rt.Call(th, fnV, []value.Value{value.NewInt(7)}, nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(7), v)

	builtin := value.NewBuiltinFunction("double", func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		i, _ := args[0].Payload.(value.Int)
		return value.NewInt(int64(i) * 2), nil
	})
	v, err = rt.Call(th, builtin, []value.Value{value.NewInt(5)}, nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(10), v)
}

func TestCallOnUncallableValueReturnsDispatchError(t *testing.T) {
	rt, err := Load(&bytecode.Program{})
	require.NoError(t, err)
	th := rt.NewMainThread()

	_, err = rt.Call(th, value.NewInt(5), nil, nil)
	require.Error(t, err)
	te, ok := err.(*ThrowError)
	require.True(t, ok)
	assert.Equal(t, KindDispatchError, te.Kind)
}

func TestCallMethodFallsBackToNativeMethodTable(t *testing.T) {
	rt, err := Load(&bytecode.Program{})
	require.NoError(t, err)
	th := rt.NewMainThread()

	lenID := rt.Intern.Intern("len")
	arr, _ := value.AsArray(value.NewArray(value.NewInt(1), value.NewInt(2), value.NewInt(3)))
	v, err := rt.CallMethod(th, value.Value{Payload: arr}, lenID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(3), v)
}

func TestCallMethodUnknownMethodReturnsDispatchError(t *testing.T) {
	rt, err := Load(&bytecode.Program{})
	require.NoError(t, err)
	th := rt.NewMainThread()

	unknownID := rt.Intern.Intern("totally_unknown_method")
	_, err = rt.CallMethod(th, value.NewInt(1), unknownID, nil, nil)
	require.Error(t, err)
	te, ok := err.(*ThrowError)
	require.True(t, ok)
	assert.Equal(t, KindDispatchError, te.Kind)
}

func TestEvalFunctionIsCallWithNoParent(t *testing.T) {
	rt, err := Load(&bytecode.Program{Funcs: []*bytecode.FuncMeta{identityMeta()}})
	require.NoError(t, err)
	th := rt.NewMainThread()

	v, err := rt.EvalFunction(th, value.NewFunction(identityMeta(), nil), []value.Value{value.NewInt(3)})
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(3), v)
}

func TestDispatchBinaryPrefersRegisteredOperatorOverBuiltin(t *testing.T) {
	rt, err := Load(&bytecode.Program{})
	require.NoError(t, err)
	th := rt.NewMainThread()

	addID := rt.Intern.Intern("op_add")
	custom := value.NewBuiltinFunction("custom_add", func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		return value.NewString("custom"), nil
	})
	rt.Ops.Register(addID, classIDOf(value.NewInt(0)), classIDOf(value.NewInt(0)), custom)

	v, err := rt.dispatchBinary(th, nil, "op_add", value.NewInt(1), value.NewInt(2), nil)
	require.NoError(t, err)
	s, ok := value.AsString(v)
	require.True(t, ok)
	assert.Equal(t, "custom", s.String())
}

func TestDispatchBinaryFallsBackToBuiltinOnNoImpl(t *testing.T) {
	rt, err := Load(&bytecode.Program{})
	require.NoError(t, err)
	th := rt.NewMainThread()

	builtin := func(a, b value.Value) (value.Value, bool) {
		ai, _ := a.Payload.(value.Int)
		bi, _ := b.Payload.(value.Int)
		return value.NewInt(int64(ai) + int64(bi)), true
	}
	v, err := rt.dispatchBinary(th, nil, "op_add", value.NewInt(2), value.NewInt(3), builtin)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(5), v)
}

func TestDispatchBinaryErrorsWithNoDispatchAndNoBuiltin(t *testing.T) {
	rt, err := Load(&bytecode.Program{})
	require.NoError(t, err)
	th := rt.NewMainThread()

	_, err = rt.dispatchBinary(th, nil, "op_weird", value.NewInt(1), value.NewInt(2), nil)
	require.Error(t, err)
}
