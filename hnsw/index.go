package hnsw

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// HierarchicalIndex is a multi-layer proximity graph supporting
// incremental insertion and approximate k-nearest-neighbor search. It
// orchestrates SearchEngine, EdgeSelector, Connector, AdjacencyStore,
// PerPointLocks, and VisitedPool; callers only ever see Labels and raw
// vectors.
type HierarchicalIndex struct {
	opts Options

	// mu serializes the few global invariants: extending the adjacency
	// table to a new max level, and updating maxLevel/entryPoint when an
	// insert raises the level ceiling. It is never held across a search
	// or a per-point lock acquisition.
	mu            sync.Mutex
	maxLevel      int
	entryPoint    InnerID
	hasEntryPoint bool

	labelMu sync.Mutex
	labels  map[Label]InnerID
	nextID  atomic.Uint64

	labelLocks *LabelLocks
	perPoint   *PerPointLocks
	visited    *VisitedPool
	adjacency  *AdjacencyStore
	store      VectorStore

	search    *SearchEngine
	selector  *EdgeSelector
	connector *Connector

	layerMultiplier float64
}

// New creates a HierarchicalIndex from the given options.
func New(optFns ...Option) (*HierarchicalIndex, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if opts.MaxDegreeBase < 2 {
		opts.MaxDegreeBase = 2
	}

	store := opts.VectorStore
	if store == nil {
		fvs, err := NewFlatVectorStore(opts.Dimension, opts.Metric)
		if err != nil {
			return nil, err
		}
		store = fvs
	}

	mult := opts.LayerMultiplier
	if mult <= 0 {
		mult = 1 / math.Log(float64(opts.MaxDegreeBase))
	}

	const initialCapacity = 1024
	adjacency := NewAdjacencyStore(opts.MaxDegreeBase, initialCapacity)
	perPoint := NewPerPointLocks(initialCapacity)
	visited := NewVisitedPool(initialCapacity, opts.MaxCapacity)
	selector := NewEdgeSelector(store)

	idx := &HierarchicalIndex{
		opts:            opts,
		maxLevel:        0,
		labels:          make(map[Label]InnerID),
		labelLocks:      NewLabelLocks(),
		perPoint:        perPoint,
		visited:         visited,
		adjacency:       adjacency,
		store:           store,
		search:          NewSearchEngine(adjacency, visited, store),
		selector:        selector,
		connector:       NewConnector(adjacency, perPoint, selector, store),
		layerMultiplier: mult,
	}
	return idx, nil
}

// Dimension returns the fixed vector length accepted by Insert.
func (idx *HierarchicalIndex) Dimension() int { return idx.opts.Dimension }

// Len returns the number of vectors currently indexed.
func (idx *HierarchicalIndex) Len() int {
	idx.labelMu.Lock()
	defer idx.labelMu.Unlock()
	return len(idx.labels)
}

func (idx *HierarchicalIndex) sampleLevel() int {
	if idx.opts.LevelFunc != nil {
		return idx.opts.LevelFunc()
	}
	u := rand.Float64()
	for u <= 0 {
		u = rand.Float64()
	}
	return int(math.Floor(-math.Log(u) * idx.layerMultiplier))
}

// Insert adds vec under label, returning its assigned InnerID. Inserting
// an already-present label returns ErrDuplicateLabel.
func (idx *HierarchicalIndex) Insert(label Label, vec []float32) (InnerID, error) {
	if len(vec) == 0 {
		return 0, ErrEmptyVector
	}
	if len(vec) != idx.opts.Dimension {
		return 0, ErrInvalidDimension
	}

	idx.labelMu.Lock()
	if _, exists := idx.labels[label]; exists {
		idx.labelMu.Unlock()
		return 0, ErrDuplicateLabel
	}
	id := InnerID(idx.nextID.Add(1) - 1)
	if idx.opts.MaxCapacity > 0 && int(id) >= idx.opts.MaxCapacity {
		idx.labelMu.Unlock()
		return 0, ErrCapacityExceeded
	}
	idx.labels[label] = id
	idx.labelMu.Unlock()

	if err := idx.store.BatchInsert([][]float32{vec}, id); err != nil {
		return 0, err
	}

	level := idx.sampleLevel()

	idx.labelLocks.Lock(label)
	defer idx.labelLocks.Unlock(label)

	idx.mu.Lock()
	curMax := idx.maxLevel
	empty := !idx.hasEntryPoint
	raisesLevel := empty || level >= curMax
	if raisesLevel {
		for l := curMax; l <= level; l++ {
			idx.adjacency.EnsureLayer(l)
		}
		idx.maxLevel = level + 1
	}
	startDescent := curMax - 1
	ep := idx.entryPoint
	idx.mu.Unlock()

	if !raisesLevel {
		// descend through layers above `level` to find a good local
		// entry point before running full construction search.
		for l := startDescent; l > level; l-- {
			if idx.adjacency.TotalCount(l) == 0 {
				continue
			}
			result, err := idx.search.Search(vec, l, ep, 1, nil)
			if err != nil {
				return 0, err
			}
			if best, ok := result.Min(); ok {
				ep = best.ID
			}
		}
	}

	for l := level; l >= 0; l-- {
		idx.adjacency.EnsureLayer(l)
		if idx.adjacency.TotalCount(l) == 0 {
			idx.adjacency.InsertNeighbors(l, id, nil)
		} else {
			result, err := idx.search.Search(vec, l, ep, idx.opts.EfConstruct, nil)
			if err != nil {
				return 0, err
			}
			next, err := idx.connector.Connect(l, id, result)
			if err != nil {
				return 0, err
			}
			ep = next
		}
		idx.adjacency.IncreaseTotalCount(l, 1)
	}

	if raisesLevel {
		idx.mu.Lock()
		idx.entryPoint = id
		idx.hasEntryPoint = true
		idx.mu.Unlock()
	}

	return id, nil
}

// BatchItem is one (label, vector) pair submitted to InsertBatch.
type BatchItem struct {
	Label  Label
	Vector []float32
}

// InsertBatch inserts every item, one at a time, returning the labels of
// any that failed. A per-vector failure (bad dimension, duplicate label,
// capacity exceeded, ...) does not abort the rest of the batch.
func (idx *HierarchicalIndex) InsertBatch(items []BatchItem) []Label {
	var failed []Label
	for _, item := range items {
		if _, err := idx.Insert(item.Label, item.Vector); err != nil {
			failed = append(failed, item.Label)
		}
	}
	return failed
}

// KNNSearchParams configures a KNNSearch call.
type KNNSearchParams struct {
	// EfSearch is the frontier width used at the base layer. If zero, K
	// is used.
	EfSearch int

	// Filter, if non-nil, restricts which ids may appear in the result.
	Filter IdFilter
}

// KNNSearch returns up to k approximate nearest neighbors of query, sorted
// by ascending distance.
func (idx *HierarchicalIndex) KNNSearch(query []float32, k int, params KNNSearchParams) ([]Candidate, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != idx.opts.Dimension {
		return nil, ErrInvalidDimension
	}

	idx.mu.Lock()
	if !idx.hasEntryPoint {
		idx.mu.Unlock()
		return nil, ErrEmptyIndex
	}
	ep := idx.entryPoint
	maxLevel := idx.maxLevel
	idx.mu.Unlock()

	for l := maxLevel - 1; l > 0; l-- {
		if idx.adjacency.TotalCount(l) == 0 {
			continue
		}
		result, err := idx.search.Search(query, l, ep, 1, params.Filter)
		if err != nil {
			return nil, err
		}
		if best, ok := result.Min(); ok {
			ep = best.ID
		}
	}

	ef := params.EfSearch
	if ef < k {
		ef = k
	}

	result, err := idx.search.Search(query, 0, ep, ef, params.Filter)
	if err != nil {
		return nil, err
	}

	out := result.SortedAscending()
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Lookup resolves a label to its InnerID.
func (idx *HierarchicalIndex) Lookup(label Label) (InnerID, bool) {
	idx.labelMu.Lock()
	defer idx.labelMu.Unlock()
	id, ok := idx.labels[label]
	return id, ok
}

// Stats is a diagnostic snapshot of the index's size and shape.
type Stats struct {
	VectorCount int
	MaxLevel    int
	EntryPoint  InnerID
	LayerCounts []int64
}

// Stats returns a snapshot of the index's current size and layer
// occupancy.
func (idx *HierarchicalIndex) Stats() Stats {
	idx.mu.Lock()
	maxLevel := idx.maxLevel
	ep := idx.entryPoint
	idx.mu.Unlock()

	layers := make([]int64, idx.adjacency.NumLayers())
	for i := range layers {
		layers[i] = idx.adjacency.TotalCount(i)
	}

	return Stats{
		VectorCount: idx.Len(),
		MaxLevel:    maxLevel,
		EntryPoint:  ep,
		LayerCounts: layers,
	}
}
