package thread

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/value"
)

func TestRuntimeTakeLockTracksHolder(t *testing.T) {
	r := NewRuntime()
	r.TakeLock(42)
	assert.True(t, r.HoldingLock(42))
	assert.False(t, r.HoldingLock(1))
	r.ReleaseLock()
	assert.False(t, r.HoldingLock(42))
}

func TestRuntimeMaybeTakeLockFailsWhenHeld(t *testing.T) {
	r := NewRuntime()
	r.TakeLock(1)
	ok := r.MaybeTakeLock(2)
	assert.False(t, ok)
	r.ReleaseLock()

	ok = r.MaybeTakeLock(2)
	assert.True(t, ok)
	assert.True(t, r.HoldingLock(2))
	r.ReleaseLock()
}

func TestRuntimeSuspendReleasesAndReacquires(t *testing.T) {
	r := NewRuntime()
	r.TakeLock(1)

	var otherAcquired atomic.Bool
	done := make(chan struct{})
	go func() {
		r.TakeLock(2)
		otherAcquired.Store(true)
		r.ReleaseLock()
		close(done)
	}()

	r.Suspend(1, func() {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Suspend did not release the lock for another holder")
		}
	})
	assert.True(t, otherAcquired.Load())
	assert.True(t, r.HoldingLock(1), "Suspend must reacquire the lock before returning")
	r.ReleaseLock()
}

func TestBarrierReleasesAllPartiesTogether(t *testing.T) {
	b := NewBarrier(3)
	var wg sync.WaitGroup
	var releasedCount atomic.Int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Wait()
			releasedCount.Add(1)
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("barrier never released all parties")
	}
	assert.EqualValues(t, 3, releasedCount.Load())
}

func TestBarrierIsReusableAcrossRounds(t *testing.T) {
	b := NewBarrier(2)
	for round := 0; round < 3; round++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); b.Wait() }()
		go func() { defer wg.Done(); b.Wait() }()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("round %d never released", round)
		}
	}
}

func TestSpinLockExcludesConcurrentAccess(t *testing.T) {
	var s SpinLock
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Lock()
			counter++
			s.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestCondVarSignalWakesWaiter(t *testing.T) {
	var mu sync.Mutex
	cv := NewCondVar(&mu)
	ready := false
	woke := make(chan struct{})

	go func() {
		mu.Lock()
		for !ready {
			cv.Wait()
		}
		mu.Unlock()
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	ready = true
	mu.Unlock()
	cv.Signal()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter was never signaled")
	}
}

func TestNewTyStartsAliveWithEmptyRoots(t *testing.T) {
	ty := NewTy()
	assert.True(t, ty.IsAlive())
	assert.NotNil(t, ty.Heap)
	assert.NotNil(t, ty.Inbox)

	var seen []value.Value
	ty.Mark(func(v value.Value) { seen = append(seen, v) })
	assert.Empty(t, seen)
}

func TestTyPushPopRootTracksGCRoots(t *testing.T) {
	ty := NewTy()
	ty.PushRoot(value.NewInt(1))
	ty.PushRoot(value.NewInt(2))

	var seen []value.Value
	ty.Mark(func(v value.Value) { seen = append(seen, v) })
	assert.Equal(t, []value.Value{value.NewInt(1), value.NewInt(2)}, seen)

	ty.PopRoot()
	seen = nil
	ty.Mark(func(v value.Value) { seen = append(seen, v) })
	assert.Equal(t, []value.Value{value.NewInt(1)}, seen)
}

func TestTyPopRootOnEmptyIsNoop(t *testing.T) {
	ty := NewTy()
	assert.NotPanics(t, ty.PopRoot)
}

func TestTyMarkDeadClosesJoinChannel(t *testing.T) {
	ty := NewTy()
	ty.MarkDead()
	assert.False(t, ty.IsAlive())

	done := make(chan struct{})
	go func() { ty.Join(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after MarkDead")
	}
}

func TestTySetJoinedDoesNotPanic(t *testing.T) {
	ty := NewTy()
	require.NotPanics(t, ty.SetJoined)
}
