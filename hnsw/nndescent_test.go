package hnsw

import (
	"testing"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNNDescentBuilderProducesBoundedDuplicateFreeGraph(t *testing.T) {
	store, err := NewFlatVectorStore(8, distance.MetricL2)
	require.NoError(t, err)
	vecs := GenerateRandomVectors(200, 8, 17)
	require.NoError(t, store.BatchInsert(vecs, 0))

	b := NewNNDescentBuilder(store, 10, 4)
	graph, stats, err := b.Build(200)
	require.NoError(t, err)
	require.Len(t, graph, 200)
	require.Len(t, stats, 6) // init + 4 turns + final prune

	for id, neighbors := range graph {
		assert.LessOrEqual(t, len(neighbors), 10)
		seen := map[InnerID]bool{}
		for _, n := range neighbors {
			assert.NotEqual(t, InnerID(id), n)
			assert.False(t, seen[n], "duplicate neighbor")
			seen[n] = true
		}
	}
}

// TestNNDescentConvergence is scenario S5 from spec.md §8 at reduced
// scale: mean edge distance after the final prune must be no more than
// 0.7x the mean edge distance after init.
func TestNNDescentConvergence(t *testing.T) {
	store, err := NewFlatVectorStore(8, distance.MetricL2)
	require.NoError(t, err)
	vecs := GenerateRandomVectors(300, 8, 31)
	require.NoError(t, store.BatchInsert(vecs, 0))

	b := NewNNDescentBuilder(store, 16, 10)
	_, stats, err := b.Build(300)
	require.NoError(t, err)
	require.True(t, len(stats) >= 2)

	initStats := stats[0]
	finalStats := stats[len(stats)-1]
	assert.LessOrEqual(t, finalStats.MeanDistance, 0.7*initStats.MeanDistance)
}

func TestNNDescentBuilderRejectsEmptyCorpus(t *testing.T) {
	store, err := NewFlatVectorStore(4, distance.MetricL2)
	require.NoError(t, err)
	b := NewNNDescentBuilder(store, 4, 2)
	_, _, err = b.Build(0)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}
