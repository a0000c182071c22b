package intern

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternIsIdempotent(t *testing.T) {
	tb := New()
	a := tb.Intern("foo")
	b := tb.Intern("foo")
	assert.Equal(t, a, b)

	c := tb.Intern("bar")
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, tb.Len())
}

func TestNameOfRoundTrips(t *testing.T) {
	tb := New()
	id := tb.Intern("push")
	name, ok := tb.NameOf(id)
	require.True(t, ok)
	assert.Equal(t, "push", name)

	_, ok = tb.NameOf(id + 1)
	assert.False(t, ok)
	_, ok = tb.NameOf(-1)
	assert.False(t, ok)
}

func TestMustNameOfPanicsOnUnknownID(t *testing.T) {
	tb := New()
	assert.Panics(t, func() { tb.MustNameOf(0) })
}

func TestLookupDoesNotIntern(t *testing.T) {
	tb := New()
	_, ok := tb.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, tb.Len())

	tb.Intern("present")
	id, ok := tb.Lookup("present")
	require.True(t, ok)
	assert.Equal(t, 0, id)
}

func TestSeedPreservesOriginalIDs(t *testing.T) {
	tb := New()
	tb.Seed([]string{"a", "b", "c"})
	assert.Equal(t, 3, tb.Len())

	id, ok := tb.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	name, ok := tb.NameOf(2)
	require.True(t, ok)
	assert.Equal(t, "c", name)

	// Interning a name already present in the seed must return the
	// seeded id, not append a duplicate.
	assert.Equal(t, 0, tb.Intern("a"))
	assert.Equal(t, 3, tb.Len())
}

func TestInternConcurrentSameNameConverges(t *testing.T) {
	tb := New()
	var wg sync.WaitGroup
	ids := make([]int, 100)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = tb.Intern("shared")
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, tb.Len())
}
