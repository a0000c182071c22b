package value

// Kind tags the dynamic type of a Value's payload. It is distinct from
// a user-defined Class: every payload has exactly one Kind, but Object
// payloads additionally carry a class id (see Object.Class).
type Kind uint8

const (
	KindNil Kind = iota
	KindNone
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
	KindDict
	KindBlob
	KindTuple
	KindObject
	KindClass
	KindTag
	KindFunction
	KindBuiltinFunction
	KindMethod
	KindBuiltinMethod
	KindGenerator
	KindThread
	KindRegex
	KindPtr
	KindOperator
	KindRefCell
)

var kindNames = [...]string{
	"Nil", "<none>", "Int", "Float", "Bool", "String", "Array", "Dict",
	"Blob", "Tuple", "Object", "Class", "Tag", "Function", "Function",
	"Function", "Function", "Generator", "<thread>", "Regex", "Ptr",
	"Function", "RefCell",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "<internal>"
}
