package ops

import (
	"math"

	"github.com/ty-lang/tyrt/value"
)

// Builtin fast paths for {Int, Float, String, Array, Dict, Ptr} bypass
// Dispatch entirely (spec.md §4.F): integer/float promotion, string
// allocation-and-copy, array concatenation with an empty-operand fast
// return, dict merge via right-wins, pointer arithmetic scaled by
// element size. Ported in spirit from operators.h's op_builtin_add /
// op_builtin_sub / op_builtin_mul / op_builtin_div / op_builtin_mod.

// BuiltinAdd returns (result, true) if a fast path applies.
func BuiltinAdd(a, b value.Value) (value.Value, bool) {
	switch av := a.Payload.(type) {
	case value.Int:
		switch bv := b.Payload.(type) {
		case value.Int:
			return value.NewInt(int64(av) + int64(bv)), true
		case value.Float:
			return value.NewFloat(float64(av) + float64(bv)), true
		case value.Ptr:
			return addPtr(bv, int64(av)), true
		}
	case value.Float:
		switch bv := b.Payload.(type) {
		case value.Float:
			return value.NewFloat(float64(av) + float64(bv)), true
		case value.Int:
			return value.NewFloat(float64(av) + float64(bv)), true
		}
	case value.Ptr:
		if bv, ok := b.Payload.(value.Int); ok {
			return addPtr(av, int64(bv)), true
		}
	case *value.Str:
		if bv, ok := b.Payload.(*value.Str); ok {
			return addStrings(av, bv), true
		}
	case *value.Array:
		if bv, ok := b.Payload.(*value.Array); ok {
			return addArrays(av, bv), true
		}
	case *value.Dict:
		if bv, ok := b.Payload.(*value.Dict); ok {
			return value.Value{Payload: value.Update(av.Clone(), bv)}, true
		}
	}
	return value.Value{}, false
}

func addPtr(p value.Ptr, n int64) value.Value { return value.Value{Payload: p.Add(n)} }

func addStrings(left, right *value.Str) value.Value {
	if left.Len() == 0 {
		return value.Value{Payload: right}
	}
	if right.Len() == 0 {
		return value.Value{Payload: left}
	}
	buf := make([]byte, left.Len()+right.Len())
	copy(buf, left.Data)
	copy(buf[left.Len():], right.Data)
	return value.StringFromBytes(buf)
}

func addArrays(left, right *value.Array) value.Value {
	if len(left.Items) == 0 {
		return value.Value{Payload: right.Clone()}
	}
	if len(right.Items) == 0 {
		return value.Value{Payload: left.Clone()}
	}
	items := make([]value.Value, len(left.Items)+len(right.Items))
	copy(items, left.Items)
	copy(items[len(left.Items):], right.Items)
	return value.Value{Payload: &value.Array{Items: items}}
}

// BuiltinSub is op_builtin_sub: numeric subtraction plus pointer -
// integer and pointer - pointer (element-scaled difference, error on
// mismatched element types per spec.md §8's boundary).
func BuiltinSub(a, b value.Value) (value.Value, bool) {
	switch av := a.Payload.(type) {
	case value.Int:
		switch bv := b.Payload.(type) {
		case value.Int:
			return value.NewInt(int64(av) - int64(bv)), true
		case value.Float:
			return value.NewFloat(float64(av) - float64(bv)), true
		}
	case value.Float:
		switch bv := b.Payload.(type) {
		case value.Float:
			return value.NewFloat(float64(av) - float64(bv)), true
		case value.Int:
			return value.NewFloat(float64(av) - float64(bv)), true
		}
	case value.Ptr:
		switch bv := b.Payload.(type) {
		case value.Int:
			return value.Value{Payload: av.Add(-int64(bv))}, true
		case value.Ptr:
			if d, ok := av.Sub(bv); ok {
				return value.NewInt(d), true
			}
			return value.Value{}, false
		}
	}
	return value.Value{}, false
}

// BuiltinMul is op_builtin_mul's numeric cases, plus the cartesian
// array-product case.
func BuiltinMul(a, b value.Value) (value.Value, bool) {
	switch av := a.Payload.(type) {
	case value.Int:
		switch bv := b.Payload.(type) {
		case value.Int:
			return value.NewInt(int64(av) * int64(bv)), true
		case value.Float:
			return value.NewFloat(float64(av) * float64(bv)), true
		}
	case value.Float:
		switch bv := b.Payload.(type) {
		case value.Float:
			return value.NewFloat(float64(av) * float64(bv)), true
		case value.Int:
			return value.NewFloat(float64(av) * float64(bv)), true
		}
	case *value.Array:
		if bv, ok := b.Payload.(*value.Array); ok {
			out := make([]value.Value, 0, len(av.Items)*len(bv.Items))
			for _, x := range av.Items {
				for _, y := range bv.Items {
					out = append(out, value.Pair(x, y))
				}
			}
			return value.Value{Payload: &value.Array{Items: out}}, true
		}
	}
	return value.Value{}, false
}

// BuiltinDiv is op_builtin_div: numeric division only (no pointer or
// container fast path in the original).
func BuiltinDiv(a, b value.Value) (value.Value, bool) {
	switch av := a.Payload.(type) {
	case value.Int:
		switch bv := b.Payload.(type) {
		case value.Int:
			return value.NewInt(int64(av) / int64(bv)), true
		case value.Float:
			return value.NewFloat(float64(av) / float64(bv)), true
		}
	case value.Float:
		switch bv := b.Payload.(type) {
		case value.Float:
			return value.NewFloat(float64(av) / float64(bv)), true
		case value.Int:
			return value.NewFloat(float64(av) / float64(bv)), true
		}
	}
	return value.Value{}, false
}

// BuiltinMod is op_builtin_mod: integer % and float fmod, in every
// Int/Float combination.
func BuiltinMod(a, b value.Value) (value.Value, bool) {
	switch av := a.Payload.(type) {
	case value.Int:
		switch bv := b.Payload.(type) {
		case value.Int:
			return value.NewInt(int64(av) % int64(bv)), true
		case value.Float:
			return value.NewFloat(math.Mod(float64(av), float64(bv))), true
		}
	case value.Float:
		switch bv := b.Payload.(type) {
		case value.Float:
			return value.NewFloat(math.Mod(float64(av), float64(bv))), true
		case value.Int:
			return value.NewFloat(math.Mod(float64(av), float64(bv))), true
		}
	}
	return value.Value{}, false
}
