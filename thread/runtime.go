package thread

import (
	"sync"
	"sync/atomic"
)

// Runtime is the process-wide cooperative lock from spec.md §4.G:
// "a process-wide lock required to execute any VM bytecode or touch
// another thread's Values." holder tracks the OS-thread id (not a
// reentrancy counter - see the Design Notes re-entrance requirement
// this grounds on) currently holding the lock, 0 when free, so FFI
// closures re-entering the VM on the same OS thread can detect that
// they already hold it instead of deadlocking.
type Runtime struct {
	lock   sync.Mutex
	holder atomic.Int64 // OS thread id of the current holder, 0 = unheld
}

func NewRuntime() *Runtime { return &Runtime{} }

// TakeLock blocks until the cooperative lock is free, then takes it.
func (r *Runtime) TakeLock(osThreadID int64) {
	r.lock.Lock()
	r.holder.Store(osThreadID)
}

// ReleaseLock releases the cooperative lock.
func (r *Runtime) ReleaseLock() {
	r.holder.Store(0)
	r.lock.Unlock()
}

// MaybeTakeLock attempts to take the lock without blocking.
func (r *Runtime) MaybeTakeLock(osThreadID int64) bool {
	if r.lock.TryLock() {
		r.holder.Store(osThreadID)
		return true
	}
	return false
}

// HoldingLock reports whether osThreadID currently holds the lock -
// the re-entrancy test an FFI closure callback uses before deciding
// whether it must take the lock itself (spec.md Design Notes).
func (r *Runtime) HoldingLock(osThreadID int64) bool {
	return r.holder.Load() == osThreadID
}

// Suspend releases the cooperative lock around a blocking operation
// (I/O, sleep, an FFI call marked "may block", a condvar/barrier
// wait), per spec.md §4.G. The caller must have already snapshotted
// whatever state the collector needs to mark this thread's roots
// while it is blocked (here, Ty.gcRoots is already authoritative since
// PushRoot/PopRoot keep it current, so no extra snapshot step is
// needed - unlike the original's stack-pointer snapshot, Go's value.Value
// roots don't move).
func (r *Runtime) Suspend(osThreadID int64, blocking func()) {
	r.ReleaseLock()
	defer r.TakeLock(osThreadID)
	blocking()
}

// SyncThreadState is the resync step spec.md §4.G calls out
// ("Upon reacquiring it calls TySyncThreadState to refresh caches").
// Ty holds no caches that could go stale across a suspend (it has no
// per-thread intern cache), so this is a documented no-op seam for when
// one is added.
func (t *Ty) SyncThreadState() {}
