// Package tyjson implements the strict JSON codec spec.md's json module
// names, grounded on original_source/src/json.c: a recursive-descent
// parser with the original's `\xNN` extension alongside standard
// `\uXXXX` (with surrogate-pair) escapes, and a cycle-safe encoder that
// delegates to a Value's own `__json__` method when present and falls
// back to a tagged `{"type": ..., "value": ...}` shape for tagged
// values the way the original's `encode` does for VALUE_TAGGED.
package tyjson

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ty-lang/tyrt/value"
)

// ParseError reports a strict-mode syntax failure, with the byte offset
// json.c's FAIL/longjmp discarded in favor of actual diagnostics.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tyjson: %s at offset %d", e.Msg, e.Offset)
}

type parser struct {
	s   string
	pos int
}

// Parse decodes a single JSON document into a Value, per spec.md's
// json.parse: objects become Dict, arrays become Array, numbers become
// Int when they parse with no '.'/'e'/'E' (matching json.c's `integral`
// flag), everything else maps to the obvious primitive Kind.
func Parse(data []byte) (value.Value, error) {
	p := &parser{s: string(data)}
	p.space()
	v, err := p.value()
	if err != nil {
		return value.Value{}, err
	}
	p.space()
	if p.pos != len(p.s) {
		return value.Value{}, p.fail("trailing data after JSON document")
	}
	return v, nil
}

func (p *parser) fail(msg string) error { return &ParseError{Offset: p.pos, Msg: msg} }

func (p *parser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) next() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	c := p.s[p.pos]
	p.pos++
	return c
}

func (p *parser) space() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *parser) value() (value.Value, error) {
	p.space()
	switch c := p.peek(); {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		return p.stringValue()
	case c == 'n':
		return p.literal("null", value.Nil)
	case c == 't':
		return p.literal("true", value.NewBool(true))
	case c == 'f':
		return p.literal("false", value.NewBool(false))
	case c == '-' || isDigit(c):
		return p.number()
	default:
		return value.Value{}, p.fail("unexpected character")
	}
}

func (p *parser) literal(word string, v value.Value) (value.Value, error) {
	if !strings.HasPrefix(p.s[p.pos:], word) {
		return value.Value{}, p.fail("invalid literal")
	}
	p.pos += len(word)
	return v, nil
}

func (p *parser) number() (value.Value, error) {
	start := p.pos
	integral := true
	if p.peek() == '-' {
		p.next()
	}
	if !isDigit(p.peek()) {
		return value.Value{}, p.fail("invalid number")
	}
	for isDigit(p.peek()) {
		p.next()
	}
	if p.peek() == '.' {
		integral = false
		p.next()
		if !isDigit(p.peek()) {
			return value.Value{}, p.fail("invalid number")
		}
		for isDigit(p.peek()) {
			p.next()
		}
	}
	if p.peek() == 'e' || p.peek() == 'E' {
		integral = false
		p.next()
		if p.peek() == '-' || p.peek() == '+' {
			p.next()
		}
		if !isDigit(p.peek()) {
			return value.Value{}, p.fail("invalid number")
		}
		for isDigit(p.peek()) {
			p.next()
		}
	}
	lit := p.s[start:p.pos]
	if integral {
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return value.Value{}, p.fail("integer out of range")
		}
		return value.NewInt(n), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return value.Value{}, p.fail("invalid float")
	}
	return value.NewFloat(f), nil
}

func (p *parser) stringValue() (value.Value, error) {
	s, err := p.rawString()
	if err != nil {
		return value.Value{}, err
	}
	return value.NewString(s), nil
}

// rawString decodes one JSON string literal, including the original's
// `\xNN` byte escape (not part of standard JSON, but json.c supports it
// alongside `\uXXXX`) and `\uXXXX` surrogate pairs via unicode/utf16.
func (p *parser) rawString() (string, error) {
	if p.next() != '"' {
		return "", p.fail("expected string")
	}
	var b strings.Builder
	for {
		c := p.peek()
		if c == 0 {
			return "", p.fail("unterminated string")
		}
		if c == '"' {
			p.next()
			return b.String(), nil
		}
		if c != '\\' {
			b.WriteByte(p.next())
			continue
		}
		p.next()
		esc := p.next()
		switch esc {
		case 't':
			b.WriteByte('\t')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case '"':
			b.WriteByte('"')
		case '/':
			b.WriteByte('/')
		case '\\':
			b.WriteByte('\\')
		case 'x':
			hex := p.s[p.pos : p.pos+2]
			p.pos += 2
			n, err := strconv.ParseUint(hex, 16, 8)
			if err != nil {
				return "", p.fail("invalid \\x escape")
			}
			b.WriteByte(byte(n))
		case 'u':
			cp, err := p.hex4()
			if err != nil {
				return "", err
			}
			if utf16.IsSurrogate(rune(cp)) {
				if p.next() != '\\' || p.next() != 'u' {
					return "", p.fail("expected low surrogate")
				}
				lo, err := p.hex4()
				if err != nil {
					return "", err
				}
				r := utf16.DecodeRune(rune(cp), rune(lo))
				if r == utf8.RuneError {
					return "", p.fail("invalid surrogate pair")
				}
				b.WriteRune(r)
			} else {
				b.WriteRune(rune(cp))
			}
		default:
			return "", p.fail("invalid escape")
		}
	}
}

func (p *parser) hex4() (uint64, error) {
	if p.pos+4 > len(p.s) {
		return 0, p.fail("truncated \\u escape")
	}
	n, err := strconv.ParseUint(p.s[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, p.fail("invalid \\u escape")
	}
	p.pos += 4
	return n, nil
}

func (p *parser) array() (value.Value, error) {
	p.next() // '['
	var items []value.Value
	p.space()
	for p.peek() != ']' {
		v, err := p.value()
		if err != nil {
			return value.Value{}, err
		}
		items = append(items, v)
		p.space()
		if p.peek() != ']' {
			if p.next() != ',' {
				return value.Value{}, p.fail("expected ',' or ']'")
			}
			p.space()
		}
	}
	p.next() // ']'
	return value.NewArray(items...), nil
}

func (p *parser) object() (value.Value, error) {
	p.next() // '{'
	d, _ := value.AsDict(value.NewDict())
	var keys []string
	vals := map[string]value.Value{}
	p.space()
	for p.peek() != '}' {
		p.space()
		if p.peek() != '"' {
			return value.Value{}, p.fail("expected string key")
		}
		key, err := p.rawString()
		if err != nil {
			return value.Value{}, err
		}
		p.space()
		if p.next() != ':' {
			return value.Value{}, p.fail("expected ':'")
		}
		v, err := p.value()
		if err != nil {
			return value.Value{}, err
		}
		d.Set(value.NewString(key), v)
		keys = append(keys, key)
		vals[key] = v
		p.space()
		if p.peek() != '}' {
			if p.next() != ',' {
				return value.Value{}, p.fail("expected ',' or '}'")
			}
			p.space()
		}
	}
	p.next() // '}'

	// The synthetic {"type": "<TagName>", "value": <v>} constructor shape
	// Encode emits for a tagged Value round-trips back into one here when
	// a tag resolver is wired and exactly this shape appears.
	if tagResolver != nil && len(keys) == 2 {
		tv, hasType := vals["type"]
		vv, hasValue := vals["value"]
		if hasType && hasValue {
			if s, ok := value.AsString(tv); ok {
				if id, ok := tagResolver(s.String()); ok {
					return vv.WithTag(id), nil
				}
			}
		}
	}

	return value.Value{Payload: d}, nil
}

// TagResolver maps a tag's display name back to its interned id, the
// inverse of value.TagName; Parse uses it to decode the {"type",
// "value"} synthetic constructor shape Encode produces for tagged
// values.
type TagResolver func(name string) (int, bool)

var tagResolver TagResolver

func SetTagResolver(r TagResolver) { tagResolver = r }

// Caller re-enters the VM to invoke a Value's `__json__` override, the
// same seam the natives package uses (natives.Caller) for calling back
// into bytecode execution from a leaf package.
type Caller func(fn value.Value, args []value.Value) (value.Value, error)

var caller Caller

// SetCaller installs the VM's call trampoline; vm.Load does this
// once at startup.
func SetCaller(c Caller) { caller = c }

// MethodResolver looks up the `__json__` method on an Object's class,
// if one exists (vm.Runtime's class-table lookup); Encode uses it to
// give program-defined types custom encodings, the Go analogue of
// json.c's `try to call a user __json__`.
type MethodResolver func(self value.Value) (value.Value, bool)

var methodResolver MethodResolver

func SetMethodResolver(r MethodResolver) { methodResolver = r }

// Encode serializes v to compact JSON text, matching spec.md's
// json.encode. Encoding is cycle-safe (Array/Dict/Object identity is
// tracked in a visiting set, exactly like json.c's `Visiting` vector)
// and raises an error rather than recursing forever on self-referential
// structures.
func Encode(v value.Value) ([]byte, error) {
	var b strings.Builder
	e := &encoder{visiting: map[any]bool{}}
	if err := e.encode(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

type encoder struct {
	visiting map[any]bool
}

func (e *encoder) enter(id any) error {
	if id == nil {
		return nil
	}
	if e.visiting[id] {
		return fmt.Errorf("tyjson: cyclic value")
	}
	e.visiting[id] = true
	return nil
}

func (e *encoder) leave(id any) {
	if id != nil {
		delete(e.visiting, id)
	}
}

func (e *encoder) encode(b *strings.Builder, v value.Value) error {
	if v.Untagged() {
		return e.encodeUntagged(b, v)
	}
	tag, _ := value.TopTag(v.Tags)
	b.WriteString(`{"type":`)
	encodeString(b, value.TagName(tag))
	b.WriteString(`,"value":`)
	if err := e.encode(b, v.Untag()); err != nil {
		return err
	}
	b.WriteByte('}')
	return nil
}

func (e *encoder) encodeUntagged(b *strings.Builder, v value.Value) error {
	if methodResolver != nil && caller != nil {
		if fn, ok := methodResolver(v); ok {
			r, err := caller(fn, []value.Value{v})
			if err != nil {
				return err
			}
			return e.encode(b, r)
		}
	}
	switch p := v.Payload.(type) {
	case nil:
		b.WriteString("null")
	case value.Int:
		fmt.Fprintf(b, "%d", int64(p))
	case value.Float:
		fmt.Fprintf(b, "%g", float64(p))
	case value.Bool:
		if bool(p) {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case *value.Str:
		encodeString(b, p.String())
	case *value.Array:
		if err := e.enter(p); err != nil {
			return err
		}
		defer e.leave(p)
		b.WriteByte('[')
		for i, it := range p.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := e.encode(b, it); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *value.Dict:
		if err := e.enter(p); err != nil {
			return err
		}
		defer e.leave(p)
		b.WriteByte('{')
		first := true
		keys := make([]string, 0, p.Len())
		vals := map[string]value.Value{}
		p.Each(func(k, val value.Value) {
			ks := jsonKey(k)
			keys = append(keys, ks)
			vals[ks] = val
		})
		sort.Strings(keys)
		for _, k := range keys {
			if !first {
				b.WriteByte(',')
			}
			first = false
			encodeString(b, k)
			b.WriteByte(':')
			if err := e.encode(b, vals[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case *value.Tuple:
		if err := e.enter(p); err != nil {
			return err
		}
		defer e.leave(p)
		b.WriteByte('[')
		for i, it := range p.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := e.encode(b, it); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *value.Object:
		if err := e.enter(p); err != nil {
			return err
		}
		defer e.leave(p)
		return e.encodeObject(b, p)
	default:
		if value.IsMissing(v) {
			b.WriteString("null")
			return nil
		}
		return fmt.Errorf("tyjson: cannot encode %s", v.Kind())
	}
	return nil
}

// encodeObject encodes an Object with no __json__ override by its
// Dynamic dict, falling back to an empty object - program-defined
// classes are expected to provide __json__ for anything richer, exactly
// as json.c leaves unadorned struct encoding to user code.
func (e *encoder) encodeObject(b *strings.Builder, o *value.Object) error {
	b.WriteByte('{')
	if o.Dynamic != nil {
		first := true
		var keys []string
		vals := map[string]value.Value{}
		o.Dynamic.Each(func(k, v value.Value) {
			ks := jsonKey(k)
			keys = append(keys, ks)
			vals[ks] = v
		})
		sort.Strings(keys)
		for _, k := range keys {
			if !first {
				b.WriteByte(',')
			}
			first = false
			encodeString(b, k)
			b.WriteByte(':')
			if err := e.encode(b, vals[k]); err != nil {
				return err
			}
		}
	}
	b.WriteByte('}')
	return nil
}

func jsonKey(k value.Value) string {
	if s, ok := value.AsString(k); ok {
		return s.String()
	}
	return value.Show(k)
}

func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
