package queue

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/value"
)

func resultMsg(i int64) Message {
	return Message{Kind: Result, V: value.NewInt(i)}
}

func TestAddTakeSingleElementRoundTrips(t *testing.T) {
	q := New()
	q.Add(resultMsg(1))
	got := q.Take()
	assert.Equal(t, Result, got.Kind)
	assert.Equal(t, value.NewInt(1), got.V)
	assert.Equal(t, 0, q.Count())
}

// Take pops the slot the most recent Add wrote (queue_take's index
// arithmetic, kept literally - see DESIGN.md Open Question 1): three
// adds with no intervening takes come back most-recent-first.
func TestTakeOrderMatchesIndexArithmetic(t *testing.T) {
	q := New()
	q.Add(resultMsg(1))
	q.Add(resultMsg(2))
	q.Add(resultMsg(3))

	assert.Equal(t, value.NewInt(3), q.Take().V)
	assert.Equal(t, value.NewInt(2), q.Take().V)
	assert.Equal(t, value.NewInt(1), q.Take().V)
}

func TestTryTakeOnEmptyQueueReportsFalse(t *testing.T) {
	q := New()
	_, ok := q.TryTake()
	assert.False(t, ok)

	q.Add(resultMsg(9))
	v, ok := q.TryTake()
	require.True(t, ok)
	assert.Equal(t, value.NewInt(9), v.V)
}

func TestGrowPreservesEveryQueuedMessage(t *testing.T) {
	q := New()
	const n = 40 // forces several doublings past the initial capacity of 8
	for i := int64(0); i < n; i++ {
		q.Add(resultMsg(i))
	}
	require.Equal(t, n, q.Count())

	seen := map[int64]int{}
	for q.Count() > 0 {
		m := q.Take()
		i, ok := m.V.Payload.(value.Int)
		require.True(t, ok)
		seen[int64(i)]++
	}
	require.Len(t, seen, n)
	for i := int64(0); i < n; i++ {
		assert.Equal(t, 1, seen[i], "message %d delivered exactly once", i)
	}
}

func TestCloseUnblocksPendingTake(t *testing.T) {
	q := New()
	done := make(chan Message, 1)
	go func() { done <- q.Take() }()

	// Give the goroutine time to block on notEmpty.Wait before closing.
	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case m := <-done:
		assert.Equal(t, Message{}, m)
	case <-time.After(time.Second):
		t.Fatal("Take did not unblock after Close")
	}
}

// Concurrent producers each add one tagged message; a single consumer
// drains until it has seen one message per producer. This is spec.md
// property 7 - exactly-once delivery - which queue_take's LIFO-shaped
// arithmetic still satisfies for a single consumer regardless of
// producer interleaving, even though it does not give global FIFO order.
func TestConcurrentProducersExactlyOnceDelivery(t *testing.T) {
	q := New()
	const producers = 50

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func(id int) {
			defer wg.Done()
			q.Add(resultMsg(int64(id)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, producers, q.Count())

	var got []int64
	for i := 0; i < producers; i++ {
		m := q.Take()
		iv, ok := m.V.Payload.(value.Int)
		require.True(t, ok)
		got = append(got, int64(iv))
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i := 0; i < producers; i++ {
		assert.Equal(t, int64(i), got[i])
	}
}

func TestCallMessageCarriesCalleeAndArgs(t *testing.T) {
	q := New()
	fn := value.NewBuiltinFunction("f", nil)
	q.Add(Message{Kind: Call, F: fn, Args: []value.Value{value.NewInt(1), value.NewInt(2)}})

	m := q.Take()
	assert.Equal(t, Call, m.Kind)
	assert.Len(t, m.Args, 2)
}
