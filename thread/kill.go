package thread

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// ThreadKill is a best-effort analogue of TyThreadKill: the original
// terminates a live OS thread outright (TerminateThread on Windows,
// presumably pthread_cancel-equivalent elsewhere). Go goroutines have
// no safe unconditional kill primitive, so this delivers SIGURG (Go's
// own preemption signal, chosen so it cannot be mistaken for a
// program-visible signal) to the specific OS thread via tgkill and
// otherwise leaves termination to the target noticing Ty.IsAlive() at
// its own safe points - the same cooperative contract every other stop
// condition in this runtime uses.
func ThreadKill(osThreadID int) error {
	if runtime.GOOS != "linux" {
		return errNotSupported
	}
	return unix.Tgkill(unix.Getpid(), osThreadID, unix.SIGURG)
}

type notSupportedError string

func (e notSupportedError) Error() string { return string(e) }

const errNotSupported = notSupportedError("thread.ThreadKill: not supported on this platform")

// Gettid returns the current OS thread id on Linux, or 0 elsewhere.
// Callers must have already called runtime.LockOSThread so the id
// stays stable for the life of this Ty.
func Gettid() int64 {
	if runtime.GOOS != "linux" {
		return 0
	}
	return int64(unix.Gettid())
}
