package hnsw

import "sync"

// VisitedBuffer tracks which InnerIDs have been visited during a single
// search, without needing an O(n) clear between searches. Each slot holds
// the tag of the search that last visited it; a slot is considered
// visited only if its stored tag equals the buffer's current tag. Reset
// simply bumps the tag, making every slot stale in O(1); the underlying
// array is only actually cleared when the tag counter wraps around.
type VisitedBuffer struct {
	tags []uint32
	tag  uint32
}

func newVisitedBuffer(capacity int) *VisitedBuffer {
	return &VisitedBuffer{
		tags: make([]uint32, capacity),
		tag:  1,
	}
}

// EnsureCapacity grows the buffer to cover ids up to n, preserving the
// current tag so already-tracked visits remain valid.
func (b *VisitedBuffer) EnsureCapacity(n int) {
	if n <= len(b.tags) {
		return
	}
	grown := make([]uint32, n)
	copy(grown, b.tags)
	b.tags = grown
}

// Visit marks id as visited for the current search, growing the buffer if
// id falls outside its current range. A search only ever probes ids that
// already exist in the index, but the buffer it is handed may have been
// sized for a smaller id space by an earlier, smaller search.
func (b *VisitedBuffer) Visit(id InnerID) {
	b.EnsureCapacity(int(id) + 1)
	b.tags[id] = b.tag
}

// Visited reports whether id has been visited during the current search.
// An id beyond the buffer's current range has trivially not been visited.
func (b *VisitedBuffer) Visited(id InnerID) bool {
	if int(id) >= len(b.tags) {
		return false
	}
	return b.tags[id] == b.tag
}

// Reset prepares the buffer for a new search. It is O(1) except on the
// rare occasion the tag counter wraps, when it falls back to a full clear.
func (b *VisitedBuffer) Reset() {
	b.tag++
	if b.tag == 0 {
		clear(b.tags)
		b.tag = 1
	}
}

// VisitedPool hands out VisitedBuffers sized to cover the index's current
// id space, recycling them across searches via sync.Pool. A hard capacity
// ceiling (if configured) bounds how large a buffer the pool will grow,
// surfacing ErrCapacityExceeded to the caller instead of growing without
// limit.
type VisitedPool struct {
	mu          sync.Mutex
	capacity    int
	maxCapacity int // 0 = unbounded
	pool        sync.Pool
}

// NewVisitedPool creates a pool whose buffers start at capacity slots and
// may grow up to maxCapacity (0 meaning unbounded).
func NewVisitedPool(capacity, maxCapacity int) *VisitedPool {
	p := &VisitedPool{capacity: capacity, maxCapacity: maxCapacity}
	p.pool.New = func() any {
		return newVisitedBuffer(p.currentCapacity())
	}
	return p
}

func (p *VisitedPool) currentCapacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Grow requests that future buffers cover at least n ids. It does not
// retroactively grow buffers already checked out; Acquire grows a
// returned buffer lazily on each checkout instead.
func (p *VisitedPool) Grow(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= p.capacity {
		return nil
	}
	if p.maxCapacity > 0 && n > p.maxCapacity {
		return ErrCapacityExceeded
	}
	p.capacity = n
	return nil
}

// Acquire returns a VisitedBuffer sized to cover at least minCapacity ids.
func (p *VisitedPool) Acquire(minCapacity int) (*VisitedBuffer, error) {
	if err := p.Grow(minCapacity); err != nil {
		return nil, err
	}
	buf := p.pool.Get().(*VisitedBuffer)
	buf.EnsureCapacity(p.currentCapacity())
	buf.Reset()
	return buf, nil
}

// Release returns a buffer to the pool for reuse.
func (p *VisitedPool) Release(buf *VisitedBuffer) {
	p.pool.Put(buf)
}
