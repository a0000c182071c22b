package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/value"
)

func TestValStackPushPopPeekLen(t *testing.T) {
	vs := newValStack(2)
	vs.push(value.NewInt(1))
	vs.push(value.NewInt(2))
	assert.Equal(t, 2, vs.len())
	assert.Equal(t, value.NewInt(2), vs.peek(0))
	assert.Equal(t, value.NewInt(1), vs.peek(1))

	v := vs.pop()
	assert.Equal(t, value.NewInt(2), v)
	assert.Equal(t, 1, vs.len())
}

func TestValStackGrowsPastInitialCapacity(t *testing.T) {
	vs := newValStack(1)
	for i := int64(0); i < 10; i++ {
		vs.push(value.NewInt(i))
	}
	assert.Equal(t, 10, vs.len())
	assert.Equal(t, value.NewInt(9), vs.peek(0))
}

func TestValStackPopZeroesSlotForGC(t *testing.T) {
	vs := newValStack(1)
	vs.push(value.NewInt(5))
	vs.pop()
	assert.Equal(t, value.Nil, vs.st[0], "popped slot must not keep a stale reference alive")
}

func TestValStackEachVisitsOnlyLiveSlots(t *testing.T) {
	vs := newValStack(4)
	vs.push(value.NewInt(1))
	vs.push(value.NewInt(2))
	vs.pop()

	var seen []value.Value
	vs.each(func(v value.Value) { seen = append(seen, v) })
	assert.Equal(t, []value.Value{value.NewInt(1)}, seen)
}

func TestBkmStackPushPop(t *testing.T) {
	var bs bkmStack
	bs.push(3)
	bs.push(7)
	assert.Equal(t, 7, bs.pop())
	assert.Equal(t, 3, bs.pop())
}

func TestTryStackPushPopTop(t *testing.T) {
	var ts tryStack
	_, ok := ts.top()
	assert.False(t, ok)

	ts.push(tryHandler{CatchPC: 10, HasCatch: true})
	ts.push(tryHandler{CatchPC: 20, HasCatch: true})
	assert.Equal(t, 2, ts.len())

	top, ok := ts.top()
	require.True(t, ok)
	assert.Equal(t, 20, top.CatchPC)

	h, ok := ts.pop()
	require.True(t, ok)
	assert.Equal(t, 20, h.CatchPC)
	assert.Equal(t, 1, ts.len())

	ts.pop()
	_, ok = ts.pop()
	assert.False(t, ok)
}
