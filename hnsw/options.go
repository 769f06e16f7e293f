package hnsw

import "github.com/hupe1980/hnswgraph/distance"

// MaxLabelLocks is the size of the fixed label-operation lock table. A
// label is protected by locks[label % MaxLabelLocks] while its insert
// path runs, so two distinct labels that happen to collide modulo this
// constant serialize unnecessarily but never incorrectly.
const MaxLabelLocks = 1024

// Options configures a HierarchicalIndex.
type Options struct {
	// Dimension is the fixed vector length accepted by Insert.
	Dimension int

	// Metric selects the distance function used throughout the index.
	Metric distance.Metric

	// MaxDegreeBase is the maximum adjacency list size at layer 0.
	// Upper layers use MaxDegreeBase/2, matching a sparser route graph.
	MaxDegreeBase int

	// EfConstruct is the size of the candidate frontier explored while
	// building a node's connections during Insert.
	EfConstruct int

	// LayerMultiplier scales the exponential level-sampling distribution.
	// If zero, New derives it as 1/ln(MaxDegreeBase).
	LayerMultiplier float64

	// MaxCapacity bounds the number of vectors the index, visited pool,
	// and lock tables will grow to accommodate. Zero means unbounded.
	MaxCapacity int

	// VectorStore is the collaborator used for distance computation and
	// raw vector storage. If nil, a FlatVectorStore is created using
	// Dimension and Metric.
	VectorStore VectorStore

	// LevelFunc overrides level sampling for each Insert, in place of the
	// default floor(-ln(U(0,1]) * LayerMultiplier) draw. spec.md §8's S2
	// and S4 scenarios both call for deterministic, "forced" levels to
	// make graph shape reproducible in a test; this is that seam.
	LevelFunc func() int
}

// Option mutates an Options value.
type Option func(o *Options)

// DefaultOptions returns the baseline configuration: 16-wide base layer
// adjacency, ef=64 during construction, L2 distance.
func DefaultOptions() Options {
	const maxDegreeBase = 16
	return Options{
		Dimension:       0,
		Metric:          distance.MetricL2,
		MaxDegreeBase:   maxDegreeBase,
		EfConstruct:     64,
		LayerMultiplier: 0,
		MaxCapacity:     0,
	}
}

// WithDimension sets the fixed vector dimension.
func WithDimension(dim int) Option {
	return func(o *Options) { o.Dimension = dim }
}

// WithMetric selects the distance metric.
func WithMetric(m distance.Metric) Option {
	return func(o *Options) { o.Metric = m }
}

// WithMaxDegree sets the base-layer maximum adjacency list size.
func WithMaxDegree(m int) Option {
	return func(o *Options) { o.MaxDegreeBase = m }
}

// WithEfConstruct sets the construction-time search width.
func WithEfConstruct(ef int) Option {
	return func(o *Options) { o.EfConstruct = ef }
}

// WithLayerMultiplier overrides the default 1/ln(MaxDegreeBase) level
// sampling multiplier.
func WithLayerMultiplier(mult float64) Option {
	return func(o *Options) { o.LayerMultiplier = mult }
}

// WithMaxCapacity bounds the number of vectors the index will grow to
// accommodate. Inserting beyond it returns ErrCapacityExceeded.
func WithMaxCapacity(n int) Option {
	return func(o *Options) { o.MaxCapacity = n }
}

// WithVectorStore overrides the default FlatVectorStore.
func WithVectorStore(vs VectorStore) Option {
	return func(o *Options) { o.VectorStore = vs }
}

// WithLevelFunc overrides level sampling on Insert with fn, for
// deterministic tests or to replay a recorded level sequence.
func WithLevelFunc(fn func() int) Option {
	return func(o *Options) { o.LevelFunc = fn }
}
