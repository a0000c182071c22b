package gc

import "github.com/ty-lang/tyrt/value"

// ArrayObject adapts a *value.Array to gc.Object: Mark walks its items
// (spec.md §4.D step 3 Array row); Collect is a no-op since the
// backing slice is ordinary Go-GC'd memory (the original's "free inner
// buffer" step has no equivalent once ty_free is no longer manual).
type ArrayObject struct{ A *value.Array }

func (o ArrayObject) Mark(visit func(value.Value)) {
	for _, v := range o.A.Items {
		visit(v)
	}
}

func (ArrayObject) Collect() {}

// DictObject adapts a *value.Dict: Mark walks keys, values, and the
// default callable (spec.md §4.D step 3 Dict row).
type DictObject struct{ D *value.Dict }

func (o DictObject) Mark(visit func(value.Value)) {
	o.D.Each(func(k, v value.Value) {
		visit(k)
		visit(v)
	})
	visit(o.D.Default)
}

func (DictObject) Collect() {}

// TupleObject adapts a *value.Tuple: Mark walks its items.
type TupleObject struct{ T *value.Tuple }

func (o TupleObject) Mark(visit func(value.Value)) {
	for _, v := range o.T.Items {
		visit(v)
	}
}

func (TupleObject) Collect() {}

// BlobObject adapts a *value.Blob: no Values reachable through it.
type BlobObject struct{ B *value.Blob }

func (BlobObject) Mark(func(value.Value)) {}
func (BlobObject) Collect()                {}

// RegexObject adapts a *value.Regex: spec.md §4.D step 3 names it as
// marking nothing (the pattern string is separately owned); step 4's
// collect frees the compiled pattern and source, which in Go happens
// automatically once unreferenced.
type RegexObject struct{ R *value.Regex }

func (RegexObject) Mark(func(value.Value)) {}
func (RegexObject) Collect()                {}

// FunctionObject adapts a *value.Function: Mark walks captured
// upvalues and the bound receiver, if any (spec.md §4.D step 3
// Function row: "captured upvalues, class reference" - the class
// reference for a bound method lives on the receiver Object, which the
// receiver traversal already covers).
type FunctionObject struct{ F *value.Function }

func (o FunctionObject) Mark(visit func(value.Value)) {
	for _, v := range o.F.Upvalues {
		visit(v)
	}
	if o.F.This != nil {
		visit(*o.F.This)
	}
}

func (FunctionObject) Collect() {}

// ObjectFinalizer is implemented by whatever owns class lookup (the
// class package) so ObjectObject.Collect can invoke a finalizer
// without gc importing class (which would cycle back through value).
type ObjectFinalizer interface {
	// Finalize is called with the object about to be collected; the
	// object must not be kept alive past return (spec.md §4.D step 4:
	// "finalizers run with GC inhibited and may not keep the object
	// alive after return").
	Finalize(obj *value.Object)
}

// ObjectObject adapts a *value.Object: Mark walks its declared and
// dynamic slots; Collect invokes the owning class's finalizer, if any,
// through the supplied ObjectFinalizer (spec.md §4.D step 3/4 Object
// rows).
type ObjectObject struct {
	O  *value.Object
	Fz ObjectFinalizer
}

func (o ObjectObject) Mark(visit func(value.Value)) {
	for _, v := range o.O.Slots {
		visit(v)
	}
	if o.O.Dynamic != nil {
		o.O.Dynamic.Each(func(k, v value.Value) {
			visit(k)
			visit(v)
		})
	}
}

func (o ObjectObject) Collect() {
	if o.Fz != nil {
		o.Fz.Finalize(o.O)
	}
}

// RefCellObject adapts a *value.RefCell: Mark walks the held Value, if
// any is bound.
type RefCellObject struct{ C *value.RefCell }

func (o RefCellObject) Mark(visit func(value.Value)) {
	if v, ok := o.C.Deref(); ok {
		visit(v)
	}
}

func (RefCellObject) Collect() {}
