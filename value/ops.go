package value

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
)

// Hash returns a hash consistent with Equal within a single process
// run (spec.md §4.B): Equal(a, b) implies Hash(a) == Hash(b).
func Hash(v Value) uint64 {
	h := fnv.New64a()
	hashInto(h, v)
	return h.Sum64()
}

func hashInto(h interface{ Write([]byte) (int, error) }, v Value) {
	write := func(b []byte) { h.Write(b) }
	writeU64 := func(x uint64) {
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(x >> (8 * i))
		}
		write(buf[:])
	}
	writeU64(uint64(v.Tags))
	switch p := v.Payload.(type) {
	case nilPayload:
		write([]byte{0})
	case nonePayload:
		write([]byte{1})
	case Int:
		// Int and Float share one numeric encoding, since Equal treats
		// Int 3 and Float 3.0 as equal.
		write([]byte{3})
		writeU64(math.Float64bits(float64(p)))
	case Float:
		f := float64(p)
		if f == 0 {
			f = 0 // -0.0 == 0.0, so both hash as +0
		}
		write([]byte{3})
		writeU64(math.Float64bits(f))
	case Bool:
		write([]byte{4})
		if p {
			write([]byte{1})
		} else {
			write([]byte{0})
		}
	case *Str:
		write([]byte{5})
		write(p.Data)
	case *Array:
		write([]byte{6})
		for _, it := range p.Items {
			hashInto(h, it)
		}
	case *Dict:
		write([]byte{7})
		// Dict hashing must not depend on slot order: fold with XOR.
		var acc uint64
		p.Each(func(k, v Value) { acc ^= Hash(k)*31 + Hash(v) })
		writeU64(acc)
	case *Blob:
		write([]byte{8})
		write(p.Bytes)
	case *Tuple:
		write([]byte{9})
		for _, it := range p.Items {
			hashInto(h, it)
		}
	case *Object:
		write([]byte{10})
		writeU64(uint64(p.Class))
	case ClassRef:
		write([]byte{11})
		writeU64(uint64(p))
	case TagRef:
		write([]byte{12})
		writeU64(uint64(p))
	case Ptr:
		write([]byte{13})
		writeU64(uint64(uintptr(p.P)))
	default:
		write([]byte{255})
		writeU64(uint64(fmt.Sprintf("%p", v.Payload)[0]))
	}
}

// visiting tracks heap-container identities currently on the equality
// recursion stack, breaking cycles per spec.md §4.B. Only Array/Dict/
// Object are tracked: those are the only payloads that can form a
// reference cycle back to themselves.
type visiting map[any]bool

func (vs visiting) enter(id any) (visiting, bool) {
	if vs == nil {
		vs = visiting{}
	}
	if vs[id] {
		return vs, false
	}
	vs[id] = true
	return vs, true
}

// Equal implements deep, cycle-safe structural equality. Tagged values
// are equal only when both tag stacks and both bases are equal (spec.md
// §4.B).
func Equal(a, b Value) bool {
	return equal(a, b, nil)
}

func equal(a, b Value, vs visiting) bool {
	if a.Tags != b.Tags {
		return false
	}
	switch av := a.Payload.(type) {
	case nilPayload:
		_, ok := b.Payload.(nilPayload)
		return ok
	case nonePayload:
		_, ok := b.Payload.(nonePayload)
		return ok
	case Int:
		switch bv := b.Payload.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.Payload.(type) {
		case Float:
			return av == bv
		case Int:
			return float64(av) == float64(bv)
		}
		return false
	case Bool:
		bv, ok := b.Payload.(Bool)
		return ok && av == bv
	case *Str:
		bv, ok := b.Payload.(*Str)
		return ok && bytes.Equal(av.Data, bv.Data)
	case *Blob:
		bv, ok := b.Payload.(*Blob)
		return ok && bytes.Equal(av.Bytes, bv.Bytes)
	case *Array:
		bv, ok := b.Payload.(*Array)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		var fresh bool
		vs, fresh = vs.enter(av)
		if !fresh {
			return true // already comparing this pair higher on the stack
		}
		for i := range av.Items {
			if !equal(av.Items[i], bv.Items[i], vs) {
				return false
			}
		}
		return true
	case *Dict:
		bv, ok := b.Payload.(*Dict)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		var fresh bool
		vs, fresh = vs.enter(av)
		if !fresh {
			return true
		}
		eq := true
		av.Each(func(k, v Value) {
			if !eq {
				return
			}
			bvv, ok := bv.Lookup(k)
			if !ok || !equal(v, bvv, vs) {
				eq = false
			}
		})
		return eq
	case *Tuple:
		bv, ok := b.Payload.(*Tuple)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !equal(av.Items[i], bv.Items[i], vs) {
				return false
			}
		}
		return true
	case *Object:
		bv, ok := b.Payload.(*Object)
		if !ok || av.Class != bv.Class || len(av.Slots) != len(bv.Slots) {
			return false
		}
		var fresh bool
		vs, fresh = vs.enter(av)
		if !fresh {
			return true
		}
		for k, v := range av.Slots {
			bvv, ok := bv.Slots[k]
			if !ok || !equal(v, bvv, vs) {
				return false
			}
		}
		return true
	case ClassRef:
		bv, ok := b.Payload.(ClassRef)
		return ok && av == bv
	case TagRef:
		bv, ok := b.Payload.(TagRef)
		return ok && av == bv
	case Ptr:
		bv, ok := b.Payload.(Ptr)
		return ok && av.P == bv.P
	default:
		return a.Payload == b.Payload
	}
}

// Compare implements a total order within a single kind; ordering
// across different kinds is unspecified and returns a stable but
// arbitrary result based on Kind so that sort routines still terminate.
func Compare(a, b Value) int {
	ak, bk := a.Kind(), b.Kind()
	if ak != bk {
		if numeric(ak) && numeric(bk) {
			return compareNumeric(a, b)
		}
		if ak < bk {
			return -1
		}
		return 1
	}
	switch av := a.Payload.(type) {
	case Int:
		return compareNumeric(a, b)
	case Float:
		_ = av
		return compareNumeric(a, b)
	case Bool:
		bv := b.Payload.(Bool)
		return boolCmp(bool(av), bool(bv))
	case *Str:
		bv := b.Payload.(*Str)
		return bytes.Compare(av.Data, bv.Data)
	case *Array:
		bv := b.Payload.(*Array)
		for i := 0; i < len(av.Items) && i < len(bv.Items); i++ {
			if c := Compare(av.Items[i], bv.Items[i]); c != 0 {
				return c
			}
		}
		return len(av.Items) - len(bv.Items)
	case *Tuple:
		bv := b.Payload.(*Tuple)
		for i := 0; i < len(av.Items) && i < len(bv.Items); i++ {
			if c := Compare(av.Items[i], bv.Items[i]); c != 0 {
				return c
			}
		}
		return len(av.Items) - len(bv.Items)
	default:
		return 0
	}
}

func numeric(k Kind) bool { return k == KindInt || k == KindFloat }

func compareNumeric(a, b Value) int {
	af := toFloat(a)
	bf := toFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func toFloat(v Value) float64 {
	switch p := v.Payload.(type) {
	case Int:
		return float64(p)
	case Float:
		return float64(p)
	}
	return 0
}

func boolCmp(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

// Truthy implements spec.md §4.B: Nil/False/zero/empty are falsy, else
// truthy.
func Truthy(v Value) bool {
	switch p := v.Payload.(type) {
	case nilPayload, nonePayload:
		return false
	case Bool:
		return bool(p)
	case Int:
		return p != 0
	case Float:
		return p != 0
	case *Str:
		return p.Len() > 0
	case *Array:
		return len(p.Items) > 0
	case *Dict:
		return p.Len() > 0
	case *Blob:
		return len(p.Bytes) > 0
	case *Tuple:
		return len(p.Items) > 0
	default:
		return true
	}
}

// Show renders v for display (agora's Dump()-style pretty printer,
// generalized and made cycle-safe).
func Show(v Value) string {
	var buf bytes.Buffer
	show(&buf, v, visiting{})
	return buf.String()
}

// ShowColor is Show with ANSI coloring; colorization is intentionally
// minimal since this runtime has no terminal-capability detection of
// its own (that belongs to a REPL front end, out of scope per spec.md
// §1).
func ShowColor(v Value) string { return Show(v) }

func show(buf *bytes.Buffer, v Value, vs visiting) {
	if tag, ok := TopTag(v.Tags); ok {
		buf.WriteString(tagName(tag))
		buf.WriteByte('(')
		show(buf, v.Untag(), vs)
		buf.WriteByte(')')
		return
	}
	switch p := v.Payload.(type) {
	case nilPayload:
		buf.WriteString("nil")
	case nonePayload:
		buf.WriteString("<none>")
	case Int:
		buf.WriteString(strconv.FormatInt(int64(p), 10))
	case Float:
		buf.WriteString(strconv.FormatFloat(float64(p), 'g', -1, 64))
	case Bool:
		if p {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case *Str:
		buf.WriteByte('"')
		buf.Write(p.Data)
		buf.WriteByte('"')
	case *Blob:
		fmt.Fprintf(buf, "blob(%d)", len(p.Bytes))
	case *Array:
		if _, fresh := vs.enter(p); !fresh {
			buf.WriteString("[...]")
			return
		}
		buf.WriteByte('[')
		for i, it := range p.Items {
			if i > 0 {
				buf.WriteString(", ")
			}
			show(buf, it, vs)
		}
		buf.WriteByte(']')
	case *Dict:
		if _, fresh := vs.enter(p); !fresh {
			buf.WriteString("{...}")
			return
		}
		buf.WriteByte('{')
		first := true
		keys := make([]Value, 0, p.Len())
		p.Each(func(k, _ Value) { keys = append(keys, k) })
		sort.Slice(keys, func(i, j int) bool { return Compare(keys[i], keys[j]) < 0 })
		for _, k := range keys {
			if !first {
				buf.WriteString(", ")
			}
			first = false
			show(buf, k, vs)
			buf.WriteString(": ")
			val, _ := p.Lookup(k)
			show(buf, val, vs)
		}
		buf.WriteByte('}')
	case *Tuple:
		buf.WriteByte('(')
		for i, it := range p.Items {
			if i > 0 {
				buf.WriteString(", ")
			}
			if p.Ids != nil && p.Ids[i] >= 0 {
				buf.WriteString(tagName(p.Ids[i]))
				buf.WriteString(": ")
			}
			show(buf, it, vs)
		}
		buf.WriteByte(')')
	case *Object:
		if _, fresh := vs.enter(p); !fresh {
			buf.WriteString("<...>")
			return
		}
		fmt.Fprintf(buf, "<object:%d>", p.Class)
	case ClassRef:
		fmt.Fprintf(buf, "<class:%d>", int(p))
	case TagRef:
		buf.WriteString(tagName(int(p)))
	case *Function:
		fmt.Fprintf(buf, "<function %s>", p.Name())
	case *BuiltinFunction:
		fmt.Fprintf(buf, "<builtin-function %s>", p.Name)
	case *Method:
		fmt.Fprintf(buf, "<method %s>", p.Fn.Name())
	case *BuiltinMethod:
		fmt.Fprintf(buf, "<builtin-method %s>", p.Fn.Name)
	case *Operator:
		fmt.Fprintf(buf, "<operator %s>", p.Name)
	case *Generator:
		fmt.Fprintf(buf, "<generator %s>", p.ID)
	case *ThreadRef:
		fmt.Fprintf(buf, "<thread %s>", p.ID)
	case *Regex:
		fmt.Fprintf(buf, "/%s/", p.Pattern)
	case Ptr:
		fmt.Fprintf(buf, "<ptr:%p>", p.P)
	case *RefCell:
		buf.WriteString("<ref>")
	default:
		fmt.Fprintf(buf, "<%T>", p)
	}
}

// tagNames is populated by whatever intern table the embedding runtime
// uses; Show only needs a name for display purposes, so a package-level
// lookup (set once at startup via SetTagNamer) is enough without value
// depending on the intern package for every call site.
var tagNamer func(id int) string

func SetTagNamer(f func(id int) string) { tagNamer = f }

func tagName(id int) string {
	if tagNamer != nil {
		if n := tagNamer(id); n != "" {
			return n
		}
	}
	return fmt.Sprintf("Tag(%d)", id)
}

// TagName exposes tagName to other packages (e.g. tyjson's tagged
// {type,value} encoding) that need the display name for a tag id
// without duplicating the SetTagNamer lookup.
func TagName(id int) string { return tagName(id) }

// ApplyCallable is the generic trampoline from spec.md §4.B: dispatch
// of "what does it mean to call this Value" is owned by the vm package
// (it requires bytecode execution for *Function), so this is a thin,
// explicit seam: callers supply the actual invoke step.
func ApplyCallable(call func(fn Value, args []Value) (Value, error), f Value, args ...Value) (Value, error) {
	return call(f, args)
}

// ApplyPredicate calls p(v) and interprets the result via Truthy.
func ApplyPredicate(call func(fn Value, args []Value) (Value, error), p, v Value) (bool, error) {
	r, err := call(p, []Value{v})
	if err != nil {
		return false, err
	}
	return Truthy(r), nil
}
