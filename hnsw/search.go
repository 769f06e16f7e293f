package hnsw

// IdFilter reports whether id is an acceptable search result. A filtered
// id is still traversed (its neighbors are still explored) so that
// filtering cannot disconnect the search from reachable matches; it is
// merely excluded from the returned result set.
type IdFilter func(id InnerID) bool

// SearchEngine runs greedy best-first search over a single graph layer:
// descend from an entry point, keeping the ef best candidates seen so far
// in a bounded result set and expanding an unbounded best-first frontier,
// until the frontier's best entry cannot improve on the current worst kept
// result.
type SearchEngine struct {
	adjacency *AdjacencyStore
	visited   *VisitedPool
	store     VectorStore
}

// NewSearchEngine builds a SearchEngine over the given collaborators.
func NewSearchEngine(adjacency *AdjacencyStore, visited *VisitedPool, store VectorStore) *SearchEngine {
	return &SearchEngine{adjacency: adjacency, visited: visited, store: store}
}

// Search explores layer starting from ep, returning up to ef results as a
// bounded max-heap ordered by distance to query (worst on top). If ep
// itself has no adjacency entry (e.g. the layer is otherwise empty),
// Search simply returns ep as the sole result.
func (se *SearchEngine) Search(query []float32, layer int, ep InnerID, ef int, filter IdFilter) (*PriorityQueue, error) {
	visited, err := se.visited.Acquire(int(ep) + 1)
	if err != nil {
		return nil, err
	}
	defer se.visited.Release(visited)

	computer := se.store.MakeComputer(query)

	results := NewPriorityQueue(true) // max-heap, worst on top, bounded to ef
	frontier := NewPriorityQueue(false) // min-heap, best on top

	epDist := se.distanceTo(computer, ep)
	visited.Visit(ep)
	if filter == nil || filter(ep) {
		results.Push(Candidate{ID: ep, Distance: epDist})
	}
	frontier.Push(Candidate{ID: ep, Distance: epDist})

	lowerBound := epDist

	var idBuf []InnerID
	var distBuf []float32

	for frontier.Len() > 0 {
		cur, _ := frontier.Pop()
		if cur.Distance > lowerBound && results.Len() >= ef {
			break
		}

		neighbors := se.adjacency.GetNeighbors(layer, cur.ID)
		idBuf = idBuf[:0]
		for _, n := range neighbors {
			if visited.Visited(n) {
				continue
			}
			visited.Visit(n)
			se.store.Prefetch(n)
			idBuf = append(idBuf, n)
		}
		if len(idBuf) == 0 {
			continue
		}

		if cap(distBuf) < len(idBuf) {
			distBuf = make([]float32, len(idBuf))
		}
		distBuf = distBuf[:len(idBuf)]
		se.store.Query(computer, idBuf, distBuf)

		for i, id := range idBuf {
			d := distBuf[i]
			if results.Len() < ef || d < lowerBound {
				frontier.Push(Candidate{ID: id, Distance: d})
				if filter == nil || filter(id) {
					results.PushBounded(Candidate{ID: id, Distance: d}, ef)
				}
				if top, ok := results.Top(); ok {
					lowerBound = top.Distance
				}
			}
		}
	}

	return results, nil
}

func (se *SearchEngine) distanceTo(c Computer, id InnerID) float32 {
	dst := [1]float32{}
	se.store.Query(c, []InnerID{id}, dst[:])
	return dst[0]
}
