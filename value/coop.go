package value

// GeneratorHandle is implemented by generator.Generator. value does not
// import the generator package (generator imports value, for the Values
// it carries on its saved stack) so the Value-level wrapper here only
// needs enough surface for dispatch and GC marking.
type GeneratorHandle interface {
	// Mark is called by the collector to walk every Value reachable
	// from the generator's saved execution context.
	Mark(visit func(Value))
}

// Generator is the Value-level handle to a suspended coroutine (spec.md
// §3.4).
type Generator struct {
	ID   string
	Impl GeneratorHandle
}

func (*Generator) Kind() Kind { return KindGenerator }

func NewGenerator(id string, impl GeneratorHandle) Value {
	return Value{Payload: &Generator{ID: id, Impl: impl}}
}

func AsGenerator(v Value) (*Generator, bool) {
	g, ok := v.Payload.(*Generator)
	return g, ok
}

// ThreadHandle is implemented by thread.Ty for the same reason.
type ThreadHandle interface {
	Mark(visit func(Value))
}

// ThreadRef is the Value-level handle to a spawned VM thread.
type ThreadRef struct {
	ID   string
	Impl ThreadHandle
}

func (*ThreadRef) Kind() Kind { return KindThread }

func NewThreadRef(id string, impl ThreadHandle) Value {
	return Value{Payload: &ThreadRef{ID: id, Impl: impl}}
}

func AsThreadRef(v Value) (*ThreadRef, bool) {
	t, ok := v.Payload.(*ThreadRef)
	return t, ok
}
