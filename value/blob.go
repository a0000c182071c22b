package value

// Blob is a dynamic byte buffer, distinct from Str in that it carries no
// UTF-8 or read-only contract.
type Blob struct {
	Bytes []byte
}

func (*Blob) Kind() Kind { return KindBlob }

func NewBlob(b ...byte) Value { return Value{Payload: &Blob{Bytes: b}} }

func AsBlob(v Value) (*Blob, bool) {
	b, ok := v.Payload.(*Blob)
	return b, ok
}
