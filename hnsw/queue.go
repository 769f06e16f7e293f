package hnsw

// PriorityQueue implements a binary heap of Candidates, ordered by
// Distance. It is value-based rather than built on container/heap: both
// for cache locality and because callers need Min/PushBounded,
// which container/heap does not offer.
//
// A max-heap (isMaxHeap true) keeps the worst (largest distance) candidate
// on top, which is what a bounded result set and a construction candidate
// set both want: O(log n) eviction of the current worst entry. A min-heap
// keeps the best candidate on top, which is what a best-first exploration
// frontier wants.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Candidate
}

// NewPriorityQueue creates an empty queue. isMaxHeap selects a max-heap
// (BoundedMaxHeap use) or a min-heap (BoundedMinHeap / frontier use).
func NewPriorityQueue(isMaxHeap bool) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: isMaxHeap,
		items:     make([]Candidate, 0, 16),
	}
}

// Reset clears the queue for reuse, keeping its backing array.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// Len returns the number of elements in the queue.
func (pq *PriorityQueue) Len() int {
	return len(pq.items)
}

// Top returns the element at the top of the heap (worst for a max-heap,
// best for a min-heap) without removing it.
func (pq *PriorityQueue) Top() (Candidate, bool) {
	if len(pq.items) == 0 {
		return Candidate{}, false
	}
	return pq.items[0], true
}

// Min returns the item with the smallest distance in the queue, regardless
// of heap orientation. O(n), but n is bounded by ef in practice.
func (pq *PriorityQueue) Min() (Candidate, bool) {
	if len(pq.items) == 0 {
		return Candidate{}, false
	}
	min := pq.items[0]
	for _, it := range pq.items[1:] {
		if it.Distance < min.Distance {
			min = it
		}
	}
	return min, true
}

// Push inserts c, maintaining the heap invariant.
func (pq *PriorityQueue) Push(c Candidate) {
	pq.items = append(pq.items, c)
	pq.siftUp(len(pq.items) - 1)
}

// PushBounded inserts c into a heap capped at capacity elements. If the
// heap is already full, c replaces the top entry only if it would sort
// below it: for a max-heap, c must have a smaller distance than the top
// (the current worst), so the heap keeps the capacity smallest distances;
// for a min-heap, c must have a larger distance than the top (the current
// smallest), so the heap keeps the capacity largest distances. The
// replaced top is evicted. Reports whether c was kept.
func (pq *PriorityQueue) PushBounded(c Candidate, capacity int) bool {
	if len(pq.items) < capacity {
		pq.Push(c)
		return true
	}

	top, _ := pq.Top()
	if pq.isMaxHeap {
		if c.Distance >= top.Distance {
			return false
		}
	} else if c.Distance <= top.Distance {
		return false
	}

	pq.items[0] = c
	pq.siftDown(0)
	return true
}

// Pop removes and returns the top element.
func (pq *PriorityQueue) Pop() (Candidate, bool) {
	n := len(pq.items)
	if n == 0 {
		return Candidate{}, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]

	if len(pq.items) > 0 {
		pq.siftDown(0)
	}

	return item, true
}

// Items returns the queue's backing slice, in heap (not sorted) order. The
// caller must not mutate it.
func (pq *PriorityQueue) Items() []Candidate {
	return pq.items
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

func (pq *PriorityQueue) swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.less(i, parent) {
			break
		}
		pq.swap(i, parent)
		i = parent
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		right := left + 1
		if right < n && pq.less(right, left) {
			child = right
		}
		if !pq.less(child, i) {
			break
		}
		pq.swap(i, child)
		i = child
	}
}

// SortedAscending drains the queue and returns its contents sorted by
// ascending distance (nearest first). The queue is empty afterwards.
func (pq *PriorityQueue) SortedAscending() []Candidate {
	out := make([]Candidate, len(pq.items))
	if pq.isMaxHeap {
		// Popping a max-heap yields descending order; fill from the back.
		for i := len(out) - 1; i >= 0; i-- {
			c, _ := pq.Pop()
			out[i] = c
		}
	} else {
		for i := 0; i < len(out); i++ {
			c, _ := pq.Pop()
			out[i] = c
		}
	}
	return out
}
