package value

// Object is an instance of a user-defined class: a class id (resolved
// against class.Table by the vm/class packages, which value does not
// import to avoid a cycle) plus an itable of field-id to Value slots.
// Dynamic holds fields added outside the class's declared field set,
// when a class permits that (e.g. built-in "open" objects used by
// natives); it is nil for ordinary instances.
type Object struct {
	Class   int
	Slots   map[int]Value
	Dynamic *Dict
}

func (*Object) Kind() Kind { return KindObject }

func NewObject(class int) Value {
	return Value{Payload: &Object{Class: class, Slots: make(map[int]Value)}}
}

func (o *Object) Get(field int) (Value, bool) {
	v, ok := o.Slots[field]
	return v, ok
}

func (o *Object) Set(field int, v Value) { o.Slots[field] = v }

func AsObject(v Value) (*Object, bool) {
	o, ok := v.Payload.(*Object)
	return o, ok
}

// ClassRef is a first-class reference to a class by id.
type ClassRef int

func (ClassRef) Kind() Kind { return KindClass }

func NewClassRef(id int) Value { return Value{Payload: ClassRef(id)} }

// TagRef is a first-class reference to a tag constructor by id.
type TagRef int

func (TagRef) Kind() Kind { return KindTag }

func NewTagRef(id int) Value { return Value{Payload: TagRef(id)} }

// RefCell is a mutable binding cell, used by the class itables for
// redefinable statics (spec.md §4.E): a zero RefCell dereferences to
// "absent", mirroring the original's zero-Ref convention.
type RefCell struct {
	V  Value
	Ok bool
}

func (*RefCell) Kind() Kind { return KindRefCell }

func NewRefCell(v Value) Value { return Value{Payload: &RefCell{V: v, Ok: true}} }

func (c *RefCell) Deref() (Value, bool) {
	if c == nil || !c.Ok {
		return Value{}, false
	}
	return c.V, true
}
