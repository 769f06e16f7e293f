package hnsw

import (
	"sync"
	"sync/atomic"
)

const adjacencySegmentSize = 1024

type adjacencySegment [adjacencySegmentSize]atomic.Pointer[[]InnerID]

// layerStore holds one layer's adjacency lists: a growable, segmented
// array of neighbor-list pointers indexed by InnerID. A whole neighbor
// list is replaced atomically by swapping the pointer, so a concurrent
// reader either sees the old list or the new one, never a partial write.
type layerStore struct {
	maxDegree int

	growMu   sync.Mutex
	segments atomic.Pointer[[]*adjacencySegment]

	total atomic.Int64
}

func newLayerStore(maxDegree, initialCapacity int) *layerStore {
	l := &layerStore{maxDegree: maxDegree}
	empty := make([]*adjacencySegment, 0)
	l.segments.Store(&empty)
	l.ensure(initialCapacity)
	return l
}

func (l *layerStore) ensure(n int) {
	needed := n/adjacencySegmentSize + 1
	cur := l.segments.Load()
	if len(*cur) >= needed {
		return
	}

	l.growMu.Lock()
	defer l.growMu.Unlock()

	cur = l.segments.Load()
	if len(*cur) >= needed {
		return
	}

	grown := make([]*adjacencySegment, needed)
	copy(grown, *cur)
	for i := len(*cur); i < needed; i++ {
		grown[i] = &adjacencySegment{}
	}
	l.segments.Store(&grown)
}

func (l *layerStore) slot(id InnerID) *atomic.Pointer[[]InnerID] {
	l.ensure(int(id))
	segs := *l.segments.Load()
	seg := segs[id/adjacencySegmentSize]
	return &seg[id%adjacencySegmentSize]
}

// set replaces id's neighbor list wholesale.
func (l *layerStore) set(id InnerID, neighbors []InnerID) {
	l.slot(id).Store(&neighbors)
}

// get returns id's current neighbor list. The caller must not mutate the
// returned slice: concurrent readers may share it.
func (l *layerStore) get(id InnerID) []InnerID {
	p := l.slot(id).Load()
	if p == nil {
		return nil
	}
	return *p
}

// AdjacencyStore holds one layerStore per graph layer. Layer 0 (the base
// layer) uses Options.MaxDegreeBase; every layer above it is sparser,
// capped at half the base degree, matching a route graph meant only for
// coarse descent rather than exhaustive local search.
type AdjacencyStore struct {
	mu            sync.Mutex
	layers        []*layerStore
	maxDegreeBase int
	initialCap    int
}

// NewAdjacencyStore creates a store with no layers yet; EnsureLayer adds
// them as the index's max level grows.
func NewAdjacencyStore(maxDegreeBase, initialCapacity int) *AdjacencyStore {
	return &AdjacencyStore{
		maxDegreeBase: maxDegreeBase,
		initialCap:    initialCapacity,
	}
}

// routeDegree returns the adjacency cap for a non-base layer.
func (a *AdjacencyStore) routeDegree() int {
	d := a.maxDegreeBase / 2
	if d < 1 {
		d = 1
	}
	return d
}

// EnsureLayer grows the store to have at least layer+1 layers, creating
// any missing ones. Concurrent calls are serialized by the store's own
// mutex, so it is safe to call without any lock of the caller's.
func (a *AdjacencyStore) EnsureLayer(layer int) *layerStore {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(a.layers) <= layer {
		degree := a.maxDegreeBase
		if len(a.layers) > 0 {
			degree = a.routeDegree()
		}
		a.layers = append(a.layers, newLayerStore(degree, a.initialCap))
	}
	return a.layers[layer]
}

// layerAt returns an already-created layer. Panics if layer has not been
// created via EnsureLayer; callers only ever touch layers below the
// current max level, which are always created first.
func (a *AdjacencyStore) layerAt(layer int) *layerStore {
	a.mu.Lock()
	l := a.layers[layer]
	a.mu.Unlock()
	return l
}

// NumLayers reports how many layers currently exist.
func (a *AdjacencyStore) NumLayers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.layers)
}

// MaximumDegree returns the adjacency cap for layer.
func (a *AdjacencyStore) MaximumDegree(layer int) int {
	if layer == 0 {
		return a.maxDegreeBase
	}
	return a.routeDegree()
}

// InsertNeighbors replaces id's neighbor list at layer.
func (a *AdjacencyStore) InsertNeighbors(layer int, id InnerID, neighbors []InnerID) {
	a.layerAt(layer).set(id, neighbors)
}

// GetNeighbors returns id's current neighbor list at layer.
func (a *AdjacencyStore) GetNeighbors(layer int, id InnerID) []InnerID {
	return a.layerAt(layer).get(id)
}

// TotalCount reports how many ids have a (possibly empty) adjacency entry
// at layer.
func (a *AdjacencyStore) TotalCount(layer int) int64 {
	return a.layerAt(layer).total.Load()
}

// IncreaseTotalCount bumps layer's live-id counter by n.
func (a *AdjacencyStore) IncreaseTotalCount(layer int, n int64) {
	a.layerAt(layer).total.Add(n)
}

// Prefetch is a placeholder hook mirroring the storage-layer Prefetch this
// type is grounded on; with an in-memory segmented array there is nothing
// additional to do.
func (a *AdjacencyStore) Prefetch(layer int, id InnerID) {}
