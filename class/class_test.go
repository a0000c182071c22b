package class

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/value"
)

func TestNewAssignsSequentialIDsAndSelfSubtype(t *testing.T) {
	tb := NewTable()
	a := tb.New("Animal")
	b := tb.New("Dog")
	assert.Equal(t, 0, a.ID)
	assert.Equal(t, 1, b.ID)
	assert.True(t, tb.IsSubclass(a.ID, a.ID))
	assert.False(t, tb.IsSubclass(a.ID, b.ID))
}

func TestNewTraitSetsIsTrait(t *testing.T) {
	tb := NewTable()
	tr := tb.NewTrait("Comparable")
	assert.True(t, tr.IsTrait)
}

func TestSetSuperFoldsAncestryBitmap(t *testing.T) {
	tb := NewTable()
	animal := tb.New("Animal")
	dog := tb.New("Dog")
	tb.SetSuper(dog, animal.ID)

	assert.True(t, tb.IsSubclass(dog.ID, animal.ID))
	assert.Equal(t, animal.ID, *dog.Super)
}

func TestSetSuperIsTransitive(t *testing.T) {
	tb := NewTable()
	animal := tb.New("Animal")
	mammal := tb.New("Mammal")
	dog := tb.New("Dog")
	tb.SetSuper(mammal, animal.ID)
	tb.SetSuper(dog, mammal.ID)

	assert.True(t, tb.IsSubclass(dog.ID, animal.ID))
	assert.True(t, tb.IsSubclass(dog.ID, mammal.ID))
}

func TestImplementTraitCopiesMissingSlotsOnly(t *testing.T) {
	tb := NewTable()
	trait := tb.NewTrait("Greeter")
	greetID, overrideID := 10, 11
	trait.AddMethod(greetID, value.NewString("trait-greet"))
	trait.AddMethod(overrideID, value.NewString("trait-override"))

	c := tb.New("Person")
	c.AddMethod(overrideID, value.NewString("own-override"))
	tb.ImplementTrait(c, trait.ID)

	v, ok := tb.LookupMethod(c.ID, greetID)
	require.True(t, ok)
	s, _ := value.AsString(v)
	assert.Equal(t, "trait-greet", s.String())

	v, ok = tb.LookupMethod(c.ID, overrideID)
	require.True(t, ok)
	s, _ = value.AsString(v)
	assert.Equal(t, "own-override", s.String(), "a class's own method must not be clobbered by the trait")

	assert.True(t, tb.IsSubclass(c.ID, trait.ID))
}

func TestLookupMethodWalksSuperChain(t *testing.T) {
	tb := NewTable()
	animal := tb.New("Animal")
	speakID := 1
	animal.AddMethod(speakID, value.NewString("animal-speak"))

	dog := tb.New("Dog")
	tb.SetSuper(dog, animal.ID)

	v, ok := tb.LookupMethod(dog.ID, speakID)
	require.True(t, ok)
	s, _ := value.AsString(v)
	assert.Equal(t, "animal-speak", s.String())

	_, ok = tb.LookupMethod(dog.ID, 999)
	assert.False(t, ok)
}

func TestAddGetterSetterStaticAndField(t *testing.T) {
	tb := NewTable()
	c := tb.New("Point")
	c.AddGetter(1, value.NewString("getX"))
	c.AddSetter(1, value.NewString("setX"))
	c.AddStatic(2, value.NewString("origin"))
	c.AddField(3, Field{Default: "0"})

	_, ok := tb.LookupGetter(c.ID, 1)
	assert.True(t, ok)
	_, ok = tb.LookupSetter(c.ID, 1)
	assert.True(t, ok)
	_, ok = tb.LookupStatic(c.ID, 2)
	assert.True(t, ok)

	f, ok := c.LookupField(3)
	require.True(t, ok)
	assert.Equal(t, "0", f.Default)
}

func TestAddStaticRefReadsThroughRefCell(t *testing.T) {
	tb := NewTable()
	c := tb.New("Counter")
	cellV := value.NewRefCell(value.NewInt(1))
	cell, _ := cellV.Payload.(*value.RefCell)
	c.AddStaticRef(5, cell)

	v, ok := tb.LookupStatic(c.ID, 5)
	require.True(t, ok)
	assert.Equal(t, value.NewInt(1), v)
}

func TestGetFinalizerDefaultsToNone(t *testing.T) {
	tb := NewTable()
	c := tb.New("Plain")
	assert.True(t, value.IsNone(c.GetFinalizer()))

	c.Finalizer = value.NewString("cleanup")
	v := c.GetFinalizer()
	s, ok := value.AsString(v)
	require.True(t, ok)
	assert.Equal(t, "cleanup", s.String())
}

func TestBitsetSetTestAcrossWordBoundary(t *testing.T) {
	var b Bitset
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(200)

	assert.True(t, b.Test(0))
	assert.True(t, b.Test(63))
	assert.True(t, b.Test(64))
	assert.True(t, b.Test(200))
	assert.False(t, b.Test(1))
	assert.False(t, b.Test(500))
}

func TestBitsetUnionMergesBits(t *testing.T) {
	var a, b Bitset
	a.Set(1)
	b.Set(70)
	a.Union(b)
	assert.True(t, a.Test(1))
	assert.True(t, a.Test(70))
}
