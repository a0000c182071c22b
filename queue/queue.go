// Package queue implements the bounded ring-buffer mailbox from
// spec.md §4.H: a single-mutex ring buffer with a doubling grow policy
// and a wrap-copy step when the physical layout straddles the old
// capacity boundary. Ported from queue.c/queue.h.
package queue

import (
	"sync"

	"github.com/ty-lang/tyrt/value"
)

// MessageKind distinguishes the two payload shapes a Message can carry
// (spec.md §4.H: "Messages are tagged unions of {Result(v), Call(f,
// args, n)}").
type MessageKind int

const (
	Result MessageKind = iota
	Call
)

// Message is one queue element. For Result, V holds the value. For
// Call, F and Args hold the callable and its arguments.
type Message struct {
	Kind MessageKind
	V    value.Value
	F    value.Value
	Args []value.Value
}

// Queue is a bounded ring buffer: i (head), n (count), c (capacity,
// always a power of two), q (element array) - the exact field set
// spec.md §4.H names. Take blocks on a condvar when the queue is
// empty; the original left blocking to the caller ("blocking semantics
// are provided by the caller using TyCondVar") but this runtime's only
// caller is a thread mailbox with exactly one reader, so folding the
// wait in here directly is the idiomatic Go shape (see DESIGN.md).
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	i, n, c  int
	q        []Message
	closed   bool
}

func New() *Queue {
	q := &Queue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) grow() {
	c := 8
	if q.c != 0 {
		c = 2 * q.c
	}
	nq := make([]Message, c)
	copy(nq, q.q)
	// If the live range wraps past the old capacity, copy the
	// wrapping suffix into the newly-opened tail so the buffer is
	// physically contiguous again (queue.c's grow()).
	if q.n+q.i > q.c && q.c > 0 {
		copy(nq[q.c:], q.q[:q.i+q.n-q.c])
	}
	q.q = nq
	q.c = c
}

// Add pushes msg at (i+n) & (c-1), growing first if the buffer is full.
func (q *Queue) Add(msg Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.n == q.c {
		q.grow()
	}

	idx := (q.i + q.n) & (q.c - 1)
	q.q[idx] = msg
	q.n++
	q.notEmpty.Signal()
}

// Take blocks until at least one message is available, then pops it.
// n is decremented first and the message is read from (i+n) & (c-1),
// the slot the most recent Add wrote, leaving i unchanged - this is
// functionally LIFO (see DESIGN.md Open Question), and correct for the
// single-consumer-per-mailbox usage this runtime makes of it.
func (q *Queue) Take() Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.n == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.n == 0 {
		return Message{}
	}

	q.n--
	return q.q[(q.i+q.n)&(q.c-1)]
}

// TryTake pops a message without blocking; ok is false if the queue is
// currently empty.
func (q *Queue) TryTake() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return Message{}, false
	}
	q.n--
	return q.q[(q.i+q.n)&(q.c-1)], true
}

// Count returns the number of queued messages.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Close unblocks any pending Take, which then returns the zero
// Message. Used when a thread's owning Ty is shutting down.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}
