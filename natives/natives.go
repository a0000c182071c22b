// Package natives implements the built-in receiver methods spec.md §6.2
// describes as "every primitive kind exposes a fixed table of native
// methods, looked up the same way as a user-defined method": Array,
// String, Dict, Blob, and Tuple each get a representative subset here,
// grounded on original_source/src/{array.c,str.c,dict.c}'s method
// tables (spec.md §1 scopes a *full* built-in library out, naming this
// package's subset as representative rather than exhaustive).
//
// A handful of these (map, filter, find, fold, each, sortBy, dict get)
// need to invoke a
// Value the way the vm package's bytecode interpreter does; natives
// cannot import vm (vm already imports value, and natives sits beside
// it), so the call step is injected once at startup via SetCaller,
// mirroring the ffi package's RegisterPtrMethodResolver seam.
package natives

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ty-lang/tyrt/value"
)

// Caller re-enters the VM to invoke a callable Value with args, used by
// every method below that accepts a function argument.
type Caller func(fn value.Value, args []value.Value) (value.Value, error)

// fallbackCaller is installed once at startup (Runtime.Load) and used
// only when no per-call caller has been bound - this is the seam
// ffi.RegisterPtrMethodResolver also uses to let a leaf package re-enter
// the interpreter without importing it.
var fallbackCaller Caller

// callerMu serializes CallMethod's per-call caller binding below: a
// native method that invokes a callback (map/filter/each/sortBy) needs
// that callback to run on the same thread.Ty - and against the same
// class/ops tables - as the call that reached the native method, not on
// some unrelated scratch thread. Runtime.CallMethod binds the real
// caller for the duration of the native call and restores the previous
// one afterward, so this only constrains concurrent native calls from
// different threads against each other, not ordinary VM execution.
var callerMu sync.Mutex
var current Caller

func SetCaller(c Caller) { fallbackCaller = c }

// WithCaller runs fn with c bound as the active per-call caller,
// restoring whatever was bound before on return.
func WithCaller(c Caller, fn func() (value.Value, error)) (value.Value, error) {
	callerMu.Lock()
	prev := current
	current = c
	callerMu.Unlock()
	defer func() {
		callerMu.Lock()
		current = prev
		callerMu.Unlock()
	}()
	return fn()
}

func call(fn value.Value, args ...value.Value) (value.Value, error) {
	callerMu.Lock()
	c := current
	callerMu.Unlock()
	if c == nil {
		c = fallbackCaller
	}
	if c == nil {
		return value.Value{}, fmt.Errorf("natives: no VM caller registered")
	}
	return c(fn, args)
}

// table maps a method name to its implementation for one Kind.
type table map[string]value.NativeFn

var registry = map[value.Kind]table{
	value.KindArray:  arrayMethods,
	value.KindString: stringMethods,
	value.KindDict:   dictMethods,
	value.KindBlob:   blobMethods,
	value.KindTuple:  tupleMethods,
}

// Lookup resolves a built-in receiver method by the primitive Kind of
// self and its name, the fallback tier Runtime.CallMethod consults once
// a class itable lookup comes up empty.
func Lookup(k value.Kind, name string) (value.NativeFn, bool) {
	t, ok := registry[k]
	if !ok {
		return nil, false
	}
	fn, ok := t[name]
	return fn, ok
}

func argAt(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Nil
	}
	return args[i]
}

var arrayMethods = table{
	"len": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		return value.NewInt(int64(len(a.Items))), nil
	},
	"push": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		for _, v := range args {
			a.Push(v)
		}
		return *self, nil
	},
	"pop": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		v, ok := a.Pop()
		if !ok {
			return value.NoneValue, nil
		}
		return v, nil
	},
	"clone": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		return value.Value{Payload: a.Clone()}, nil
	},
	"reverse": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		for i, j := 0, len(a.Items)-1; i < j; i, j = i+1, j-1 {
			a.Items[i], a.Items[j] = a.Items[j], a.Items[i]
		}
		return *self, nil
	},
	"slice": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		lo, hi := sliceBounds(len(a.Items), args)
		out := make([]value.Value, hi-lo)
		copy(out, a.Items[lo:hi])
		return value.NewArray(out...), nil
	},
	"join": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		sep := ""
		if s, ok := value.AsString(argAt(args, 0)); ok {
			sep = s.String()
		}
		parts := make([]string, len(a.Items))
		for i, v := range a.Items {
			parts[i] = value.Show(v)
		}
		return value.NewString(strings.Join(parts, sep)), nil
	},
	"each": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		fn := argAt(args, 0)
		for i, v := range a.Items {
			if _, err := call(fn, v, value.NewInt(int64(i))); err != nil {
				return value.Value{}, err
			}
		}
		return *self, nil
	},
	"map": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		fn := argAt(args, 0)
		out := make([]value.Value, len(a.Items))
		for i, v := range a.Items {
			r, err := call(fn, v, value.NewInt(int64(i)))
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		return value.NewArray(out...), nil
	},
	"filter": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		fn := argAt(args, 0)
		var out []value.Value
		for _, v := range a.Items {
			ok, err := value.ApplyPredicate(func(f value.Value, a []value.Value) (value.Value, error) { return call(f, a...) }, fn, v)
			if err != nil {
				return value.Value{}, err
			}
			if ok {
				out = append(out, v)
			}
		}
		return value.NewArray(out...), nil
	},
	"find": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		fn := argAt(args, 0)
		for _, v := range a.Items {
			ok, err := value.ApplyPredicate(func(f value.Value, a []value.Value) (value.Value, error) { return call(f, a...) }, fn, v)
			if err != nil {
				return value.Value{}, err
			}
			if ok {
				return v, nil
			}
		}
		return value.NoneValue, nil
	},
	"fold": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		acc := argAt(args, 0)
		fn := argAt(args, 1)
		for _, v := range a.Items {
			r, err := call(fn, acc, v)
			if err != nil {
				return value.Value{}, err
			}
			acc = r
		}
		return acc, nil
	},
	"sum": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		var total float64
		allInt := true
		var itotal int64
		for _, v := range a.Items {
			switch p := v.Payload.(type) {
			case value.Int:
				itotal += int64(p)
				total += float64(p)
			case value.Float:
				allInt = false
				total += float64(p)
			}
		}
		if allInt {
			return value.NewInt(itotal), nil
		}
		return value.NewFloat(total), nil
	},
	"count": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		return value.NewInt(int64(len(a.Items))), nil
	},
	"sort": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		sort.SliceStable(a.Items, func(i, j int) bool { return value.Compare(a.Items[i], a.Items[j]) < 0 })
		return *self, nil
	},
	"sortBy": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		fn := argAt(args, 0)
		var sortErr error
		sort.SliceStable(a.Items, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			r, err := call(fn, a.Items[i], a.Items[j])
			if err != nil {
				sortErr = err
				return false
			}
			return value.Truthy(r)
		})
		if sortErr != nil {
			return value.Value{}, sortErr
		}
		return *self, nil
	},
	"uniq": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		var out []value.Value
		for _, v := range a.Items {
			dup := false
			for _, o := range out {
				if value.Equal(v, o) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, v)
			}
		}
		return value.NewArray(out...), nil
	},
	"flat": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		a, _ := value.AsArray(*self)
		var out []value.Value
		for _, v := range a.Items {
			if inner, ok := value.AsArray(v); ok {
				out = append(out, inner.Items...)
			} else {
				out = append(out, v)
			}
		}
		return value.NewArray(out...), nil
	},
}

func sliceBounds(n int, args []value.Value) (int, int) {
	lo, hi := 0, n
	if v, ok := argAt(args, 0).Payload.(value.Int); ok {
		lo = clampIdx(int(v), n)
	}
	if len(args) > 1 {
		if v, ok := argAt(args, 1).Payload.(value.Int); ok {
			hi = clampIdx(int(v), n)
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func clampIdx(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

var stringMethods = table{
	"len": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		return value.NewInt(int64(len([]rune(s.String())))), nil
	},
	"upper": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		return value.NewString(strings.ToUpper(s.String())), nil
	},
	"lower": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		return value.NewString(strings.ToLower(s.String())), nil
	},
	"trim": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		return value.NewString(strings.TrimSpace(s.String())), nil
	},
	"split": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		sep := ""
		if a, ok := value.AsString(argAt(args, 0)); ok {
			sep = a.String()
		}
		var parts []string
		if sep == "" {
			parts = strings.Fields(s.String())
		} else {
			parts = strings.Split(s.String(), sep)
		}
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.NewString(p)
		}
		return value.NewArray(out...), nil
	},
	"find": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		needle, _ := value.AsString(argAt(args, 0))
		if needle == nil {
			return value.NewInt(-1), nil
		}
		return value.NewInt(int64(strings.Index(s.String(), needle.String()))), nil
	},
	"replace": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		from, _ := value.AsString(argAt(args, 0))
		to, _ := value.AsString(argAt(args, 1))
		if from == nil || to == nil {
			return *self, nil
		}
		return value.NewString(strings.ReplaceAll(s.String(), from.String(), to.String())), nil
	},
	"contains": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		needle, _ := value.AsString(argAt(args, 0))
		if needle == nil {
			return value.NewBool(false), nil
		}
		return value.NewBool(strings.Contains(s.String(), needle.String())), nil
	},
	"slice": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		r := []rune(s.String())
		lo, hi := sliceBounds(len(r), args)
		return value.NewString(string(r[lo:hi])), nil
	},
	"join": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		s, _ := value.AsString(*self)
		a, ok := value.AsArray(argAt(args, 0))
		if !ok {
			return value.NewString(""), nil
		}
		parts := make([]string, len(a.Items))
		for i, v := range a.Items {
			parts[i] = value.Show(v)
		}
		return value.NewString(strings.Join(parts, s.String())), nil
	},
}

var dictMethods = table{
	"len": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		return value.NewInt(int64(d.Len())), nil
	},
	"has": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		_, ok := d.Lookup(argAt(args, 0))
		return value.NewBool(ok), nil
	},
	"get": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		return d.Get(argAt(args, 0), func(fn value.Value, a []value.Value) (value.Value, error) { return call(fn, a...) }), nil
	},
	"set": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		d.Set(argAt(args, 0), argAt(args, 1))
		return *self, nil
	},
	"delete": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		return value.NewBool(d.Delete(argAt(args, 0))), nil
	},
	"keys": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		var out []value.Value
		d.Each(func(k, v value.Value) { out = append(out, k) })
		return value.NewArray(out...), nil
	},
	"values": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		var out []value.Value
		d.Each(func(k, v value.Value) { out = append(out, v) })
		return value.NewArray(out...), nil
	},
	"each": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		fn := argAt(args, 0)
		var callErr error
		d.Each(func(k, v value.Value) {
			if callErr != nil {
				return
			}
			_, callErr = call(fn, k, v)
		})
		if callErr != nil {
			return value.Value{}, callErr
		}
		return *self, nil
	},
	"clone": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		d, _ := value.AsDict(*self)
		return value.Value{Payload: d.Clone()}, nil
	},
}

var blobMethods = table{
	"len": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		b, _ := value.AsBlob(*self)
		return value.NewInt(int64(len(b.Bytes))), nil
	},
	"slice": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		b, _ := value.AsBlob(*self)
		lo, hi := sliceBounds(len(b.Bytes), args)
		out := make([]byte, hi-lo)
		copy(out, b.Bytes[lo:hi])
		return value.NewBlob(out...), nil
	},
	"toString": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		b, _ := value.AsBlob(*self)
		return value.NewString(string(b.Bytes)), nil
	},
}

var tupleMethods = table{
	"len": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		t, _ := value.AsTuple(*self)
		return value.NewInt(int64(len(t.Items))), nil
	},
	"get": func(self *value.Value, args []value.Value, kw *value.Dict) (value.Value, error) {
		t, _ := value.AsTuple(*self)
		if i, ok := argAt(args, 0).Payload.(value.Int); ok {
			return t.ByIndex(int(i)), nil
		}
		return value.NoneValue, nil
	},
}
