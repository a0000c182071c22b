package value

// Str is a UTF-8 view over an owned or foreign byte buffer. Data is the
// (possibly offset) window currently visible; Owner is the start of the
// allocation Data is sliced from, used to keep the backing array alive
// and to validate the "Data lies inside [Owner, Owner+len(ownerBytes)]"
// invariant from spec.md §3.1. ReadOnly forbids mutation in place
// (foreign buffers handed in through the FFI bridge, or literal
// constants from the constant table).
type Str struct {
	Data     []byte
	Owner    []byte
	ReadOnly bool
}

func (*Str) Kind() Kind { return KindString }

// NewString copies s into an owned buffer.
func NewString(s string) Value {
	b := []byte(s)
	return Value{Payload: &Str{Data: b, Owner: b}}
}

// StringFromBytes takes ownership of b without copying.
func StringFromBytes(b []byte) Value {
	return Value{Payload: &Str{Data: b, Owner: b}}
}

// StringView returns a Value sharing s's backing buffer, offset and
// truncated to [off, off+n). The view is read-only exactly when s is.
func StringView(s *Str, off, n int) Value {
	return Value{Payload: &Str{Data: s.Owner[off : off+n : off+n], Owner: s.Owner, ReadOnly: s.ReadOnly}}
}

// ForeignString wraps a buffer this runtime does not own (e.g. returned
// from an FFI call) and that must never be freed or mutated by us.
func ForeignString(b []byte) Value {
	return Value{Payload: &Str{Data: b, Owner: b, ReadOnly: true}}
}

func (s *Str) Len() int    { return len(s.Data) }
func (s *Str) String() string { return string(s.Data) }

func AsString(v Value) (*Str, bool) {
	s, ok := v.Payload.(*Str)
	return s, ok
}
