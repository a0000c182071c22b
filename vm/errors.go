package vm

import (
	"fmt"

	"github.com/ty-lang/tyrt/value"
)

// ErrorKind distinguishes the typed tags spec.md §7 names: MatchError,
// IndexError, DispatchError, plus the untyped internal Panic kind for
// VM invariant violations.
type ErrorKind int

const (
	// KindPanic marks an unrecoverable VM invariant violation -
	// agoraFuncVM's `panic(...)` calls on malformed bytecode become
	// this rather than a Go panic that could skip cleanup.
	KindPanic ErrorKind = iota
	KindMatchError
	KindIndexError
	KindDispatchError
)

func (k ErrorKind) String() string {
	switch k {
	case KindPanic:
		return "Panic"
	case KindMatchError:
		return "MatchError"
	case KindIndexError:
		return "IndexError"
	case KindDispatchError:
		return "DispatchError"
	}
	return "Error"
}

// ThrowError wraps a user-level throw (a Value raised through `throw`,
// or synthesized for the typed tags spec.md §7 requires) as a Go error
// so it can travel through normal Go control flow (return err) between
// opcode dispatch and the Call/CallMethod/EvalFunction boundary, while
// still carrying the original Value a catch handler needs to rebind.
//
// Trace lists the frames (function name and pc) the throw passed
// through; run captures it each time the throw leaves a frame with no
// handler left. It is turned into text only by FormatTrace, in the same
// style as agoraFuncVM.dump()/dumpInstrInfo, so a throw that is caught
// pays no formatting cost.
type ThrowError struct {
	Kind  ErrorKind
	Value value.Value
	Trace []FrameInfo
}

func (e *ThrowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, value.Show(e.Value))
}

// NewPanic formats a VM invariant violation the way funcvm.go's inline
// panic(fmt.Sprintf(...)) calls did, but as a catchable ThrowError
// instead of an actual Go panic, so a try/finally above it can still
// run cleanup before the process exits.
func NewPanic(format string, args ...interface{}) *ThrowError {
	return &ThrowError{Kind: KindPanic, Value: value.NewString(fmt.Sprintf(format, args...))}
}

func NewIndexError(msg string) *ThrowError {
	return &ThrowError{Kind: KindIndexError, Value: value.NewString(msg)}
}

func NewDispatchError(msg string) *ThrowError {
	return &ThrowError{Kind: KindDispatchError, Value: value.NewString(msg)}
}

func NewMatchError(msg string) *ThrowError {
	return &ThrowError{Kind: KindMatchError, Value: value.NewString(msg)}
}

// FrameInfo is one line of a captured trace: the function name and the
// instruction pointer active when the trace was taken.
type FrameInfo struct {
	Func string
	PC   int
}

// FormatTrace renders a ThrowError's captured Trace in the same style as
// agoraFuncVM.dump()/dumpInstrInfo: innermost frame first, one line per
// activation. Errors that escaped before any frame was live (e.g. a
// Load-time failure) fall back to just the message.
func FormatTrace(te *ThrowError) string {
	s := te.Error()
	for _, fi := range te.Trace {
		s += fmt.Sprintf("\n\tat %s (pc=%d)", fi.Func, fi.PC)
	}
	return s
}
