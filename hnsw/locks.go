package hnsw

import (
	"sync"
	"sync/atomic"
)

const lockSegmentSize = 1024

type lockSegment [lockSegmentSize]sync.Mutex

// PerPointLocks is a growable table of one mutex per InnerID. It mirrors a
// PointsMutex over a vector of per-point locks, except that Go has no
// shared_mutex-over-a-resizable-vector primitive: instead of resizing a
// single backing array (which would invalidate locks concurrently held by
// other goroutines), the table grows by appending fixed-size segments.
// Existing segments are never moved, so a *lockSegment obtained before a
// resize stays valid after it.
type PerPointLocks struct {
	growMu   sync.Mutex
	segments atomic.Pointer[[]*lockSegment]
}

// NewPerPointLocks creates a lock table with enough segments to cover the
// first initialCapacity ids.
func NewPerPointLocks(initialCapacity int) *PerPointLocks {
	p := &PerPointLocks{}
	empty := make([]*lockSegment, 0)
	p.segments.Store(&empty)
	p.ensure(initialCapacity)
	return p
}

func (p *PerPointLocks) ensure(n int) {
	needed := n/lockSegmentSize + 1
	cur := p.segments.Load()
	if len(*cur) >= needed {
		return
	}

	p.growMu.Lock()
	defer p.growMu.Unlock()

	cur = p.segments.Load()
	if len(*cur) >= needed {
		return
	}

	grown := make([]*lockSegment, needed)
	copy(grown, *cur)
	for i := len(*cur); i < needed; i++ {
		grown[i] = &lockSegment{}
	}
	p.segments.Store(&grown)
}

func (p *PerPointLocks) mutexFor(id InnerID) *sync.Mutex {
	p.ensure(int(id))
	segs := *p.segments.Load()
	seg := segs[id/lockSegmentSize]
	return &seg[id%lockSegmentSize]
}

// Lock acquires the lock for id, growing the table first if necessary.
func (p *PerPointLocks) Lock(id InnerID) {
	p.mutexFor(id).Lock()
}

// Unlock releases the lock for id.
func (p *PerPointLocks) Unlock(id InnerID) {
	p.mutexFor(id).Unlock()
}

// LabelLocks is a fixed-size table of MaxLabelLocks mutexes, indexed by
// label modulo the table size. It serializes the insert path of any two
// operations whose labels happen to collide, so that the label map and a
// single label's insertion sequence (descend, connect, possibly become the
// new entry point) are never interleaved for the same label.
type LabelLocks struct {
	table [MaxLabelLocks]sync.Mutex
}

// NewLabelLocks creates a label lock table.
func NewLabelLocks() *LabelLocks {
	return &LabelLocks{}
}

// Lock acquires the lock bucket for label.
func (l *LabelLocks) Lock(label Label) {
	l.table[uint64(label)%MaxLabelLocks].Lock()
}

// Unlock releases the lock bucket for label.
func (l *LabelLocks) Unlock(label Label) {
	l.table[uint64(label)%MaxLabelLocks].Unlock()
}
