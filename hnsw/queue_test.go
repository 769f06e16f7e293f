package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueueMaxHeapOrdering(t *testing.T) {
	pq := NewPriorityQueue(true)
	for _, d := range []float32{5, 1, 9, 3, 7} {
		pq.Push(Candidate{ID: InnerID(d), Distance: d})
	}
	top, ok := pq.Top()
	require.True(t, ok)
	assert.Equal(t, float32(9), top.Distance)

	sorted := pq.SortedAscending()
	require.Len(t, sorted, 5)
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1].Distance, sorted[i].Distance)
	}
}

func TestPriorityQueueMinHeapOrdering(t *testing.T) {
	pq := NewPriorityQueue(false)
	for _, d := range []float32{5, 1, 9, 3, 7} {
		pq.Push(Candidate{ID: InnerID(d), Distance: d})
	}
	top, ok := pq.Top()
	require.True(t, ok)
	assert.Equal(t, float32(1), top.Distance)
}

func TestPriorityQueuePushBoundedEviction(t *testing.T) {
	pq := NewPriorityQueue(true)
	for _, d := range []float32{5, 1, 9} {
		ok := pq.PushBounded(Candidate{ID: InnerID(d), Distance: d}, 3)
		assert.True(t, ok)
	}
	// Heap is full (size 3, worst is 9). A worse candidate must be rejected.
	ok := pq.PushBounded(Candidate{ID: 100, Distance: 20}, 3)
	assert.False(t, ok)
	assert.Equal(t, 3, pq.Len())

	// A better candidate evicts the current worst.
	ok = pq.PushBounded(Candidate{ID: 101, Distance: 2}, 3)
	assert.True(t, ok)
	top, _ := pq.Top()
	assert.Equal(t, float32(5), top.Distance)
}

func TestPriorityQueueMin(t *testing.T) {
	pq := NewPriorityQueue(true)
	for _, d := range []float32{5, 1, 9, 3, 7} {
		pq.Push(Candidate{ID: InnerID(d), Distance: d})
	}
	min, ok := pq.Min()
	require.True(t, ok)
	assert.Equal(t, float32(1), min.Distance)
}

func TestPriorityQueuePopEmpty(t *testing.T) {
	pq := NewPriorityQueue(true)
	_, ok := pq.Pop()
	assert.False(t, ok)
	_, ok = pq.Top()
	assert.False(t, ok)
}

func TestPriorityQueueReset(t *testing.T) {
	pq := NewPriorityQueue(true)
	pq.Push(Candidate{ID: 1, Distance: 1})
	pq.Reset()
	assert.Equal(t, 0, pq.Len())
}
