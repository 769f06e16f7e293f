package hnsw

import (
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// nnNode is one entry in an NN-descent neighbor list: a candidate id, its
// distance to the owning node, and whether it survived an earlier
// refinement turn ("old") or was produced by the current one ("new"). The
// old/new split is what lets localJoin skip comparisons between two edges
// that have already been cross-checked in a previous turn.
type nnNode struct {
	ID       InnerID
	Distance float32
	Old      bool
}

// NNDescentBuilder builds a bounded-degree, duplicate- and self-loop-free
// graph over a static corpus by repeated local joins, as a bulk
// alternative to inserting every vector one at a time through
// HierarchicalIndex.Insert. It produces a plain adjacency list per id
// rather than mutating an AdjacencyStore directly; a caller wanting a
// seeded base layer writes the result in with InsertNeighbors. See
// spec.md §4.8.
type NNDescentBuilder struct {
	store     VectorStore
	maxDegree int
	turns     int
	locks     *PerPointLocks
}

// NewNNDescentBuilder creates a builder over store, producing adjacency
// lists of at most maxDegree entries refined over turns local-join
// iterations.
func NewNNDescentBuilder(store VectorStore, maxDegree, turns int) *NNDescentBuilder {
	return &NNDescentBuilder{store: store, maxDegree: maxDegree, turns: turns}
}

// TurnStats reports convergence after one refinement turn: the mean
// distance across all retained edges and the total edge count. Both are
// reported so a caller can plot the loss-like curve the original's
// check_turn prints; the mean is expected to trend downward across turns.
type TurnStats struct {
	MeanDistance float32
	EdgeCount    int
}

func (b *NNDescentBuilder) graphStats(graph [][]nnNode) TurnStats {
	var sum float64
	count := 0
	for _, nbrs := range graph {
		for _, n := range nbrs {
			sum += float64(n.Distance)
			count++
		}
	}
	stats := TurnStats{EdgeCount: count}
	if count > 0 {
		stats.MeanDistance = float32(sum / float64(count))
	}
	return stats
}

// parallelFor runs fn(u) for every u in [0, n), bounded to GOMAXPROCS
// concurrent calls, and returns the first error any call reported (every
// u is still scheduled). math/rand/v2's top-level
// functions are safe for concurrent use and securely auto-seeded, so no
// explicit per-goroutine RNG plumbing is needed for init's sampling.
func (b *NNDescentBuilder) parallelFor(n int, fn func(u int) error) error {
	g := new(errgroup.Group)
	limit := runtime.GOMAXPROCS(0)
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for u := 0; u < n; u++ {
		u := u
		g.Go(func() error { return fn(u) })
	}
	return g.Wait()
}

// Build runs NN-descent over the first n ids of the builder's
// VectorStore, returning the final adjacency lists (ascending by
// distance, bounded to maxDegree, duplicate- and self-loop-free) plus a
// TurnStats snapshot taken after init and after every turn (including the
// final prune), for monitoring convergence.
func (b *NNDescentBuilder) Build(n int) ([][]InnerID, []TurnStats, error) {
	if n <= 0 {
		return nil, nil, ErrEmptyIndex
	}
	if b.maxDegree < 1 {
		return nil, nil, newInvariantError("nndescent: max degree must be >= 1, got %d", b.maxDegree)
	}

	b.locks = NewPerPointLocks(n)
	graph := make([][]nnNode, n)

	if err := b.initGraph(graph, n); err != nil {
		return nil, nil, err
	}
	stats := []TurnStats{b.graphStats(graph)}

	for t := 0; t < b.turns; t++ {
		if err := b.localJoin(graph, n); err != nil {
			return nil, nil, err
		}
		stats = append(stats, b.graphStats(graph))

		if t != b.turns-1 {
			if err := b.reverseEdges(graph, n); err != nil {
				return nil, nil, err
			}
		}
	}

	for u := 0; u < n; u++ {
		graph[u] = b.prune(InnerID(u), graph[u])
	}
	stats = append(stats, b.graphStats(graph))

	out := make([][]InnerID, n)
	for u, nbrs := range graph {
		ids := make([]InnerID, len(nbrs))
		for i, nb := range nbrs {
			ids[i] = nb.ID
		}
		out[u] = ids
	}
	return out, stats, nil
}

// initGraph samples maxDegree random ids (with replacement) for every u
// and records their true distance, all flagged new (Old: false).
func (b *NNDescentBuilder) initGraph(graph [][]nnNode, n int) error {
	return b.parallelFor(n, func(ui int) error {
		u := InnerID(ui)
		nbrs := make([]nnNode, b.maxDegree)
		for j := 0; j < b.maxDegree; j++ {
			id := InnerID(rand.IntN(n))
			nbrs[j] = nnNode{ID: id, Distance: b.store.Pairwise(u, id)}
		}
		graph[ui] = nbrs
		return nil
	})
}

// localJoin is one refinement pass: for each u, compare every pair of its
// current neighbors, keeping a candidate in u's own new list unless some
// closer neighbor relationship is discovered, in which case it is
// cross-inserted into that closer neighbor's list instead. Runs in
// parallel across u; the cross-insertion into neighbors(k) and the
// swap-out/write-back of neighbors(u) are both lock-protected, closing
// the two races noted in spec.md §9.
func (b *NNDescentBuilder) localJoin(graph [][]nnNode, n int) error {
	return b.parallelFor(n, func(ui int) error {
		u := InnerID(ui)

		b.locks.Lock(u)
		oldNbrs := graph[ui]
		graph[ui] = nil
		b.locks.Unlock(u)

		sort.Slice(oldNbrs, func(i, j int) bool { return oldNbrs[i].Distance < oldNbrs[j].Distance })

		newNbrs := make([]nnNode, 0, len(oldNbrs))
		var lastID InnerID
		haveLast := false

		for _, c := range oldNbrs {
			if haveLast && lastID == c.ID {
				continue
			}
			lastID, haveLast = c.ID, true

			kept := true
			for _, k := range newNbrs {
				if c.Old && k.Old {
					continue
				}
				if c.ID == k.ID {
					kept = false
					break
				}
				d := b.store.Pairwise(c.ID, k.ID)
				if d < c.Distance {
					kept = false
					b.crossInsert(graph, k.ID, nnNode{ID: c.ID, Distance: d})
					break
				}
			}
			if kept {
				newNbrs = append(newNbrs, c)
			}
		}

		for i := range newNbrs {
			newNbrs[i].Old = true
		}

		b.locks.Lock(u)
		graph[ui] = b.prune(u, append(graph[ui], newNbrs...))
		b.locks.Unlock(u)

		return nil
	})
}

func (b *NNDescentBuilder) crossInsert(graph [][]nnNode, target InnerID, node nnNode) {
	b.locks.Lock(target)
	graph[target] = append(graph[target], node)
	b.locks.Unlock(target)
}

// reverseEdges adds, for every edge u -> v in the current graph, the
// mirror edge v -> u, then re-prunes every list. The build phase (forming
// the reverse lists) still takes the per-point lock of the target id
// since many u's may write into the same rev[v] concurrently; the merge
// phase takes it again to append and prune.
func (b *NNDescentBuilder) reverseEdges(graph [][]nnNode, n int) error {
	rev := make([][]nnNode, n)

	err := b.parallelFor(n, func(ui int) error {
		u := InnerID(ui)
		for _, nb := range graph[ui] {
			b.locks.Lock(nb.ID)
			rev[nb.ID] = append(rev[nb.ID], nnNode{ID: u, Distance: nb.Distance})
			b.locks.Unlock(nb.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return b.parallelFor(n, func(ui int) error {
		v := InnerID(ui)
		b.locks.Lock(v)
		graph[ui] = b.prune(v, append(graph[ui], rev[ui]...))
		b.locks.Unlock(v)
		return nil
	})
}

// prune sorts nbrs ascending by distance, drops duplicate ids and any
// self-loop on owner, and truncates to maxDegree. Callers hold owner's
// lock across prune when nbrs is owner's live list.
func (b *NNDescentBuilder) prune(owner InnerID, nbrs []nnNode) []nnNode {
	sort.Slice(nbrs, func(i, j int) bool { return nbrs[i].Distance < nbrs[j].Distance })

	out := make([]nnNode, 0, len(nbrs))
	seen := make(map[InnerID]struct{}, len(nbrs))
	for _, nb := range nbrs {
		if nb.ID == owner {
			continue
		}
		if _, dup := seen[nb.ID]; dup {
			continue
		}
		seen[nb.ID] = struct{}{}
		out = append(out, nb)
		if len(out) >= b.maxDegree {
			break
		}
	}
	return out
}
