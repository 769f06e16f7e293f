package hnsw

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, dim, maxDegree int, optFns ...Option) *HierarchicalIndex {
	t.Helper()
	opts := append([]Option{
		WithDimension(dim),
		WithMaxDegree(maxDegree),
		WithEfConstruct(16),
		WithMetric(distance.MetricL2),
	}, optFns...)
	idx, err := New(opts...)
	require.NoError(t, err)
	return idx
}

func TestInsertRejectsBadInput(t *testing.T) {
	idx := newTestIndex(t, 3, 8)

	_, err := idx.Insert(1, nil)
	assert.ErrorIs(t, err, ErrEmptyVector)

	_, err = idx.Insert(1, []float32{1, 2})
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestInsertDuplicateLabel(t *testing.T) {
	idx := newTestIndex(t, 2, 8)
	_, err := idx.Insert(1, []float32{0, 0})
	require.NoError(t, err)

	_, err = idx.Insert(1, []float32{1, 1})
	assert.ErrorIs(t, err, ErrDuplicateLabel)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := newTestIndex(t, 2, 8)
	_, err := idx.KNNSearch([]float32{0, 0}, 1, KNNSearchParams{})
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestSearchInvalidK(t *testing.T) {
	idx := newTestIndex(t, 2, 8)
	_, err := idx.Insert(1, []float32{0, 0})
	require.NoError(t, err)
	_, err = idx.KNNSearch([]float32{0, 0}, 0, KNNSearchParams{})
	assert.ErrorIs(t, err, ErrInvalidK)
}

// TestLevel0OnlySelfSearch is scenario S2 from spec.md §8: with all levels
// forced to 0, searching for any training vector with k=1 returns that
// vector itself.
func TestLevel0OnlySelfSearch(t *testing.T) {
	idx := newTestIndex(t, 4, 8, WithLevelFunc(func() int { return 0 }))

	vecs := GenerateRandomVectors(100, 4, 42)
	for i, v := range vecs {
		_, err := idx.Insert(Label(i), v)
		require.NoError(t, err)
	}

	for i, v := range vecs {
		result, err := idx.KNNSearch(v, 1, KNNSearchParams{EfSearch: 10})
		require.NoError(t, err)
		require.Len(t, result, 1)
		id, ok := idx.Lookup(Label(i))
		require.True(t, ok)
		assert.Equal(t, id, result[0].ID)
		assert.InDelta(t, 0, result[0].Distance, 1e-4)
	}
}

// TestEntryPointPromotion is scenario S4 from spec.md §8: inserting three
// vectors with forced levels 0, 0, 2 leaves max_level == 3 and the entry
// point at the third (only) id assigned level 2.
func TestEntryPointPromotion(t *testing.T) {
	levels := []int{0, 0, 2}
	var next atomic.Int64
	idx := newTestIndex(t, 2, 4, WithLevelFunc(func() int {
		i := next.Add(1) - 1
		return levels[i]
	}))

	var lastID InnerID
	for i, v := range [][]float32{{0, 0}, {1, 1}, {2, 2}} {
		id, err := idx.Insert(Label(i), v)
		require.NoError(t, err)
		lastID = id
	}

	stats := idx.Stats()
	assert.Equal(t, 3, stats.MaxLevel)
	assert.Equal(t, lastID, stats.EntryPoint)
}

// TestKNNSearchOrdersByActualSimilarityUnderCosineAndDot guards against a
// distance provider that returns raw (non-negated) dot product for
// MetricCosine/MetricDot: under such a bug, KNNSearch would systematically
// return the *least* similar vector as nearest, since every consumer here
// treats a smaller returned value as closer.
func TestKNNSearchOrdersByActualSimilarityUnderCosineAndDot(t *testing.T) {
	for _, metric := range []distance.Metric{distance.MetricCosine, distance.MetricDot} {
		t.Run(metric.String(), func(t *testing.T) {
			idx := newTestIndex(t, 2, 8, WithMetric(metric), WithLevelFunc(func() int { return 0 }))

			_, err := idx.Insert(Label(0), []float32{1, 0})  // aligned with the query
			require.NoError(t, err)
			_, err = idx.Insert(Label(1), []float32{0, 1}) // orthogonal
			require.NoError(t, err)
			_, err = idx.Insert(Label(2), []float32{-1, 0}) // opposite: least similar
			require.NoError(t, err)
			_, err = idx.Insert(Label(3), []float32{0, -1}) // orthogonal
			require.NoError(t, err)

			result, err := idx.KNNSearch([]float32{0.9, 0.1}, 1, KNNSearchParams{EfSearch: 10})
			require.NoError(t, err)
			require.Len(t, result, 1)

			id, ok := idx.Lookup(Label(0))
			require.True(t, ok)
			assert.Equal(t, id, result[0].ID, "nearest neighbor must be the most similar vector, not the least")
		})
	}
}

func TestDegreeBoundAndNoSelfLoops(t *testing.T) {
	idx := newTestIndex(t, 4, 4, WithLevelFunc(func() int { return 0 }))
	vecs := GenerateRandomVectors(50, 4, 7)
	for i, v := range vecs {
		_, err := idx.Insert(Label(i), v)
		require.NoError(t, err)
	}

	for id := 0; id < 50; id++ {
		neighbors := idx.adjacency.GetNeighbors(0, InnerID(id))
		assert.LessOrEqual(t, len(neighbors), 4)
		seen := map[InnerID]bool{}
		for _, n := range neighbors {
			assert.NotEqual(t, InnerID(id), n)
			assert.False(t, seen[n], "duplicate neighbor")
			seen[n] = true
		}
	}
}

func TestInsertBatchCollectsFailuresWithoutAborting(t *testing.T) {
	idx := newTestIndex(t, 3, 8)
	_, err := idx.Insert(0, []float32{0, 0, 0})
	require.NoError(t, err)

	failed := idx.InsertBatch([]BatchItem{
		{Label: 1, Vector: []float32{1, 1, 1}},
		{Label: 0, Vector: []float32{2, 2, 2}}, // duplicate label
		{Label: 2, Vector: []float32{1, 2}},    // wrong dimension
		{Label: 3, Vector: []float32{3, 3, 3}},
	})

	assert.Equal(t, []Label{0, 2}, failed)
	assert.Equal(t, 3, idx.Len()) // labels 0, 1, 3
	for _, label := range []Label{1, 3} {
		_, ok := idx.Lookup(label)
		assert.True(t, ok)
	}
}

func TestLabelBijection(t *testing.T) {
	idx := newTestIndex(t, 3, 8)
	vecs := GenerateRandomVectors(20, 3, 11)
	for i, v := range vecs {
		_, err := idx.Insert(Label(i), v)
		require.NoError(t, err)
	}
	assert.Equal(t, 20, idx.Len())
}

// TestMonotoneEf is property 5 from spec.md §8: a larger ef never
// produces a worse (element-wise greater) result set than a smaller one.
func TestMonotoneEf(t *testing.T) {
	idx := newTestIndex(t, 6, 8)
	vecs := GenerateRandomVectors(200, 6, 99)
	for i, v := range vecs {
		_, err := idx.Insert(Label(i), v)
		require.NoError(t, err)
	}

	query := GenerateRandomVectors(1, 6, 123)[0]
	small, err := idx.KNNSearch(query, 10, KNNSearchParams{EfSearch: 10})
	require.NoError(t, err)
	large, err := idx.KNNSearch(query, 10, KNNSearchParams{EfSearch: 100})
	require.NoError(t, err)

	require.Len(t, small, 10)
	require.Len(t, large, 10)
	for i := range small {
		assert.LessOrEqual(t, large[i].Distance, small[i].Distance+1e-3)
	}
}

func TestConcurrentInsertsProduceConsistentGraph(t *testing.T) {
	idx := newTestIndex(t, 4, 8)
	vecs := GenerateRandomVectors(100, 4, 5)

	var wg sync.WaitGroup
	for i, v := range vecs {
		wg.Add(1)
		go func(label int, vec []float32) {
			defer wg.Done()
			_, err := idx.Insert(Label(label), vec)
			assert.NoError(t, err)
		}(i, v)
	}
	wg.Wait()

	assert.Equal(t, 100, idx.Len())
	for id := 0; id < 100; id++ {
		neighbors := idx.adjacency.GetNeighbors(0, InnerID(id))
		assert.LessOrEqual(t, len(neighbors), 8)
		seen := map[InnerID]bool{}
		for _, n := range neighbors {
			assert.NotEqual(t, InnerID(id), n)
			assert.False(t, seen[n])
			seen[n] = true
		}
	}
}
