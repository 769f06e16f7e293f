package hnsw

import (
	"math"
	"sync"

	"github.com/hupe1980/hnswgraph/distance"
)

// sanitizeDistance maps NaN to +Inf so that a single malformed vector
// (e.g. one containing NaN coordinates) sorts last everywhere instead of
// corrupting heap ordering, per spec.md §4.4's numeric policy.
func sanitizeDistance(d float32) float32 {
	if math.IsNaN(float64(d)) {
		return float32(math.Inf(1))
	}
	return d
}

// Computer is an opaque, query-bound distance evaluator produced by
// VectorStore.MakeComputer. Its only purpose is to be handed back into
// VectorStore.Query; callers never inspect it.
type Computer interface {
	query() []float32
}

// VectorStore is the storage and distance-computation collaborator the
// graph components are built against. It owns the raw vectors; the graph
// components only ever see InnerIDs and distances. Quantization, codec
// choice, and persistent layout are all decisions a VectorStore
// implementation makes internally and are opaque to the graph.
type VectorStore interface {
	// Train performs any corpus-wide preparation (e.g. fitting a quantizer)
	// before vectors are inserted. FlatVectorStore's Train is a no-op.
	Train(vectors [][]float32) error

	// BatchInsert stores vectors starting at startID, assigning
	// startID, startID+1, ... in order.
	BatchInsert(vectors [][]float32, startID InnerID) error

	// MakeComputer returns a Computer bound to query, for repeated
	// distance evaluation against many ids via Query.
	MakeComputer(query []float32) Computer

	// Query computes the distance from the Computer's bound query to each
	// id in ids, writing results into dst (which must have len(ids)
	// capacity).
	Query(c Computer, ids []InnerID, dst []float32)

	// Pairwise computes the distance between two stored vectors directly.
	Pairwise(a, b InnerID) float32

	// Prefetch hints that id's vector will likely be read soon.
	Prefetch(id InnerID)

	// Dimension reports the fixed vector length.
	Dimension() int
}

type flatComputer struct {
	q []float32
}

func (c *flatComputer) query() []float32 { return c.q }

// FlatVectorStore is an unquantized, in-memory VectorStore: every vector is
// kept in full precision behind a growable slice. It is the default
// VectorStore used when Options.VectorStore is not set, appropriate for
// the sizes this index is meant to operate at in memory.
type FlatVectorStore struct {
	mu        sync.RWMutex
	dim       int
	metric    distance.Metric
	distFunc  distance.Func
	normalize bool
	vectors   [][]float32
}

// NewFlatVectorStore creates a store for vectors of the given dimension
// and metric.
func NewFlatVectorStore(dim int, metric distance.Metric) (*FlatVectorStore, error) {
	fn, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	return &FlatVectorStore{
		dim:       dim,
		metric:    metric,
		distFunc:  fn,
		normalize: metric == distance.MetricCosine,
	}, nil
}

// Train is a no-op: FlatVectorStore needs no corpus-wide fitting.
func (s *FlatVectorStore) Train(vectors [][]float32) error { return nil }

// Dimension reports the fixed vector length.
func (s *FlatVectorStore) Dimension() int { return s.dim }

func (s *FlatVectorStore) prepare(v []float32) []float32 {
	out := append(make([]float32, 0, len(v)), v...)
	if s.normalize {
		distance.NormalizeL2InPlace(out)
	}
	return out
}

// BatchInsert appends vectors starting at startID. Ids must be inserted
// contiguously from 0; the store grows its backing slice to fit.
func (s *FlatVectorStore) BatchInsert(vectors [][]float32, startID InnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := int(startID) + len(vectors)
	if end > len(s.vectors) {
		grown := make([][]float32, end)
		copy(grown, s.vectors)
		s.vectors = grown
	}
	for i, v := range vectors {
		s.vectors[int(startID)+i] = s.prepare(v)
	}
	return nil
}

// MakeComputer binds query for repeated evaluation via Query.
func (s *FlatVectorStore) MakeComputer(query []float32) Computer {
	return &flatComputer{q: s.prepare(query)}
}

// Query computes distances from c's bound query to each id in ids.
func (s *FlatVectorStore) Query(c Computer, ids []InnerID, dst []float32) {
	q := c.(*flatComputer).query()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, id := range ids {
		dst[i] = sanitizeDistance(s.distFunc(q, s.vectors[id]))
	}
}

// Pairwise computes the distance between two stored vectors.
func (s *FlatVectorStore) Pairwise(a, b InnerID) float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sanitizeDistance(s.distFunc(s.vectors[a], s.vectors[b]))
}

// Prefetch is a no-op for an in-memory store; there is nothing to bring in
// from a slower tier.
func (s *FlatVectorStore) Prefetch(id InnerID) {}

// vectorAt returns the stored (already normalized, if applicable) vector
// for id. Used by Serialize, which needs the raw bytes rather than a
// distance.
func (s *FlatVectorStore) vectorAt(id InnerID) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectors[id]
}
