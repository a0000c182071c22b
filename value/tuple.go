package value

// Tuple is a fixed-size ordered sequence of Values, optionally paired
// with field-name ids (interned member ids) giving some or all
// positions a name (spec.md §3.1). Ids, when present, has the same
// length as Items; -1 at a position means that position is unnamed.
type Tuple struct {
	Items []Value
	Ids   []int // nil, or len(Ids) == len(Items)
}

func (*Tuple) Kind() Kind { return KindTuple }

func NewTuple(items ...Value) Value {
	return Value{Payload: &Tuple{Items: items}}
}

// NewNamedTuple builds a tuple where ids[i] == -1 marks an unnamed
// position.
func NewNamedTuple(items []Value, ids []int) Value {
	return Value{Payload: &Tuple{Items: items, Ids: ids}}
}

// ByIndex returns item i, or the None sentinel if i is out of range -
// spec.md §8 boundary: out-of-range named/positional tuple access
// returns the missing sentinel, never a throw.
func (t *Tuple) ByIndex(i int) Value {
	if i < 0 || i >= len(t.Items) {
		return NoneValue
	}
	return t.Items[i]
}

// ByName returns the item whose interned name id is id, or None if no
// such field exists.
func (t *Tuple) ByName(id int) Value {
	if t.Ids == nil {
		return NoneValue
	}
	for i, nid := range t.Ids {
		if nid == id {
			return t.Items[i]
		}
	}
	return NoneValue
}

// GetTagged always returns None. The original implementation
// (tget_tagged) does this unconditionally and spec.md §9 flags the
// intent as unconfirmed; we preserve the observable behavior rather
// than guess at a fix. See DESIGN.md Open Question #2.
func (t *Tuple) GetTagged(int) Value { return NoneValue }

func AsTuple(v Value) (*Tuple, bool) {
	t, ok := v.Payload.(*Tuple)
	return t, ok
}

// Pair, Triple and Quadruple build small unnamed tuples; ported from the
// original's PAIR_/TRIPLE_/QUADRUPLE_ helpers.
func Pair(a, b Value) Value          { return NewTuple(a, b) }
func Triple(a, b, c Value) Value     { return NewTuple(a, b, c) }
func Quadruple(a, b, c, d Value) Value { return NewTuple(a, b, c, d) }
