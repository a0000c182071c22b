// Package class implements the class/trait model from spec.md §3.3 and
// §4.E: itables for methods, setters, getters, statics and fields, a
// per-class subtype bitmap for O(1) `is_subclass` queries, and trait
// linkage via method-slot copying.
package class

import "github.com/ty-lang/tyrt/value"

// itable maps an interned member id directly to a slot (spec.md §4.E:
// "method-id lookup is O(1) on the id"). A slot may hold either a
// direct Value or a *value.RefCell, mirroring the original's
// direct-Value-or-Ref distinction for redefinable statics.
type itable map[int]any

func (t itable) get(id int) (value.Value, bool) {
	slot, ok := t[id]
	if !ok {
		return value.Value{}, false
	}
	switch s := slot.(type) {
	case value.Value:
		return s, true
	case *value.RefCell:
		return s.Deref()
	default:
		return value.Value{}, false
	}
}

func (t itable) setDirect(id int, v value.Value) { t[id] = v }

func (t itable) setRef(id int, c *value.RefCell) { t[id] = c }

// Field describes one declared field: an optional type-check expression
// and an optional default-value expression, both opaque to this
// package (owned by the out-of-scope compiler/checker, per spec.md
// §1).
type Field struct {
	Type    any
	Default any
}

// Class is one entry in a Table. Traits and Impls mirror spec.md §3.3's
// "vector of implemented-trait ids and a bitmap impls used for O(1)
// subtype queries".
type Class struct {
	ID          int
	CheckerID   int
	Name        string
	Doc         string
	IsTrait     bool
	Final       bool
	ReallyFinal bool
	Super       *int

	Methods itable
	Setters itable
	Getters itable
	Statics itable
	Fields  map[int]Field

	Traits []int
	Impls  Bitset

	Finalizer value.Value
	ASTNode   any
}

func newClass(id int, name string) *Class {
	return &Class{
		ID:      id,
		Name:    name,
		Methods: itable{},
		Setters: itable{},
		Getters: itable{},
		Statics: itable{},
		Fields:  map[int]Field{},
		Impls:   NewBitset(),
	}
}

// Table is the registry of every class and trait defined in a program,
// keyed by id (spec.md §4.E: "class_new assigns an id").
type Table struct {
	classes []*Class
}

func NewTable() *Table { return &Table{} }

// New allocates a class, assigning the next free id, and registers it
// as its own subtype (impls[id] = true) so IsSubclass(id, id) holds.
func (t *Table) New(name string) *Class {
	id := len(t.classes)
	c := newClass(id, name)
	c.Impls.Set(id)
	t.classes = append(t.classes, c)
	return c
}

// NewTrait is New plus IsTrait = true.
func (t *Table) NewTrait(name string) *Class {
	c := t.New(name)
	c.IsTrait = true
	return c
}

// Get returns the class with the given id. Panics on an out-of-range
// id, matching the original's unchecked array index - ids are always
// produced by New, never by untrusted input.
func (t *Table) Get(id int) *Class { return t.classes[id] }

// SetSuper records c's single superclass and folds the superclass's
// entire impls bitmap into c's own, so transitive ancestry is O(1) to
// query afterwards (spec.md §4.E bitmap semantics).
func (t *Table) SetSuper(c *Class, superID int) {
	super := t.Get(superID)
	c.Super = &superID
	c.Impls.Union(super.Impls)
}

// ImplementTrait copies the trait's method/getter/setter/static slots
// into c unless c already defines that slot, then folds the trait id
// (and anything it in turn implements) into c's impls bitmap - spec.md
// §4.E: "A trait contributes its methods through class_implement_trait,
// which copies the trait's method slots into the implementing class
// unless already defined."
func (t *Table) ImplementTrait(c *Class, traitID int) {
	trait := t.Get(traitID)
	copyMissing(c.Methods, trait.Methods)
	copyMissing(c.Getters, trait.Getters)
	copyMissing(c.Setters, trait.Setters)
	copyMissing(c.Statics, trait.Statics)
	c.Traits = append(c.Traits, traitID)
	c.Impls.Union(trait.Impls)
}

func copyMissing(dst, src itable) {
	for id, slot := range src {
		if _, exists := dst[id]; !exists {
			dst[id] = slot
		}
	}
}

// IsSubclass is an O(1) bitmap test: a is a subclass of (or implements)
// b exactly when b is set in a's impls bitmap.
func (t *Table) IsSubclass(a, b int) bool {
	return t.Get(a).Impls.Test(b)
}

// AddMethod, AddGetter, AddSetter, AddStatic install a direct-Value
// slot for the given member id.
func (c *Class) AddMethod(id int, fn value.Value) { c.Methods.setDirect(id, fn) }
func (c *Class) AddGetter(id int, fn value.Value) { c.Getters.setDirect(id, fn) }
func (c *Class) AddSetter(id int, fn value.Value) { c.Setters.setDirect(id, fn) }
func (c *Class) AddStatic(id int, fn value.Value) { c.Statics.setDirect(id, fn) }

// AddStaticRef installs a RefCell slot for a redefinable static
// (spec.md §4.E: "Each itable slot may be either a direct Value or a
// Ref cell... used by the compiler for redefinable statics").
func (c *Class) AddStaticRef(id int, ref *value.RefCell) { c.Statics.setRef(id, ref) }

func (c *Class) AddField(id int, f Field) { c.Fields[id] = f }

// LookupMethod walks the receiver class's method itable, then its
// super chain, exactly per spec.md §4.E: "Member lookup walks
// method/getter/setter/static itables of the receiver's class; if
// absent, walks super."
func (t *Table) LookupMethod(classID, id int) (value.Value, bool) {
	return t.lookup(classID, id, func(c *Class) itable { return c.Methods })
}

func (t *Table) LookupGetter(classID, id int) (value.Value, bool) {
	return t.lookup(classID, id, func(c *Class) itable { return c.Getters })
}

func (t *Table) LookupSetter(classID, id int) (value.Value, bool) {
	return t.lookup(classID, id, func(c *Class) itable { return c.Setters })
}

func (t *Table) LookupStatic(classID, id int) (value.Value, bool) {
	return t.lookup(classID, id, func(c *Class) itable { return c.Statics })
}

func (t *Table) lookup(classID, id int, pick func(*Class) itable) (value.Value, bool) {
	for cid := &classID; cid != nil; {
		c := t.Get(*cid)
		if v, ok := pick(c).get(id); ok {
			return v, true
		}
		cid = c.Super
	}
	return value.Value{}, false
}

// LookupField walks only the declared class (fields are not inherited
// through an itable chain in the same way methods are - they are part
// of an Object's fixed layout, resolved once at instantiation).
func (c *Class) LookupField(id int) (Field, bool) {
	f, ok := c.Fields[id]
	return f, ok
}

// GetFinalizer returns the class's finalizer Value, or the absent
// sentinel if none is set (spec.md §4.D step 4 Object row).
func (c *Class) GetFinalizer() value.Value {
	if value.IsMissing(c.Finalizer) {
		return value.NoneValue
	}
	return c.Finalizer
}
