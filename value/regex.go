package value

import "regexp"

// Regex is a compiled pattern plus the "detailed" flag spec.md §3.1
// calls out, which selects whether matches are reported with full named
// capture-group detail (CLASS_REGEXV) or as a plain match (CLASS_REGEX).
type Regex struct {
	Pattern  string
	Compiled *regexp.Regexp
	Detailed bool
}

func (*Regex) Kind() Kind { return KindRegex }

func NewRegex(pattern string, detailed bool) (Value, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Value{}, err
	}
	return Value{Payload: &Regex{Pattern: pattern, Compiled: re, Detailed: detailed}}, nil
}

func AsRegex(v Value) (*Regex, bool) {
	r, ok := v.Payload.(*Regex)
	return r, ok
}
