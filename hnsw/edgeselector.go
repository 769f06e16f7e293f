package hnsw

// EdgeSelector prunes a candidate set down to maxSize entries, preferring
// diversity over raw proximity: a candidate is kept only if it is not
// "shadowed" by an already-kept, closer candidate — i.e. no kept
// candidate k is closer to the candidate under consideration than the
// candidate is to the pivot the set was gathered around. This keeps the
// graph navigable in multiple directions instead of collapsing onto a
// single cluster of near-duplicates.
type EdgeSelector struct {
	store VectorStore
}

// NewEdgeSelector builds an EdgeSelector backed by store for pairwise
// distance evaluation between candidates.
func NewEdgeSelector(store VectorStore) *EdgeSelector {
	return &EdgeSelector{store: store}
}

// Select prunes edges (a max-heap of candidates, all measured by distance
// to one implicit pivot) down to at most maxSize entries, returned in
// ascending distance order. If edges already has fewer than maxSize
// entries, it is returned unchanged (and unsorted-heap-order becomes
// ascending order as a side effect of draining it).
func (es *EdgeSelector) Select(edges *PriorityQueue, maxSize int) []Candidate {
	if edges.Len() < maxSize {
		return edges.SortedAscending()
	}

	ascending := edges.SortedAscending()

	kept := make([]Candidate, 0, maxSize)
	for _, c := range ascending {
		if len(kept) >= maxSize {
			break
		}

		good := true
		for _, k := range kept {
			if es.store.Pairwise(c.ID, k.ID) < c.Distance {
				good = false
				break
			}
		}
		if good {
			kept = append(kept, c)
		}
	}
	return kept
}
