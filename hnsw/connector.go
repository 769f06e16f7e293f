package hnsw

// Connector wires a newly-searched candidate set into the graph: it prunes
// the candidates with an EdgeSelector, writes the result as u's own
// adjacency, and mutually connects each selected neighbor back to u,
// re-pruning a neighbor's list if it would otherwise overflow.
//
// Go has no built-in recursive mutex, so where the original construction
// protocol relies on a caller already holding u's lock, Connect is split
// into two entry points instead of taking a recursive lock: Connect
// assumes the caller holds PerPointLocks for u already (the construction
// path, which acquires it once up front and calls Connect once per
// layer); ConnectForUpdate acquires it itself and additionally checks
// whether u is already present in a neighbor's list before writing,
// matching the update path's idempotence requirement.
type Connector struct {
	adjacency *AdjacencyStore
	locks     *PerPointLocks
	selector  *EdgeSelector
	store     VectorStore
}

// NewConnector builds a Connector over the given collaborators.
func NewConnector(adjacency *AdjacencyStore, locks *PerPointLocks, selector *EdgeSelector, store VectorStore) *Connector {
	return &Connector{adjacency: adjacency, locks: locks, selector: selector, store: store}
}

// Connect wires u into layer using candidates as its search-derived
// neighborhood. The caller must already hold PerPointLocks for u. It
// returns the nearest selected neighbor, a good next-layer entry point.
func (c *Connector) Connect(layer int, u InnerID, candidates *PriorityQueue) (InnerID, error) {
	return c.connect(layer, u, candidates, false)
}

// ConnectForUpdate behaves like Connect but acquires u's lock itself and
// treats the write as idempotent: if u is already present in a
// neighbor's adjacency list, that neighbor's list is left untouched
// rather than re-pruned.
func (c *Connector) ConnectForUpdate(layer int, u InnerID, candidates *PriorityQueue) (InnerID, error) {
	c.locks.Lock(u)
	defer c.locks.Unlock(u)
	return c.connect(layer, u, candidates, true)
}

func (c *Connector) connect(layer int, u InnerID, candidates *PriorityQueue, isUpdate bool) (InnerID, error) {
	maxDegree := c.adjacency.MaximumDegree(layer)

	selected := c.selector.Select(candidates, maxDegree)
	if len(selected) > maxDegree {
		return 0, newInvariantError("edge selector returned %d edges, exceeding max degree %d", len(selected), maxDegree)
	}

	ids := make([]InnerID, len(selected))
	for i, s := range selected {
		if s.ID == u {
			return 0, newInvariantError("candidate set for %d contains a self-loop", u)
		}
		ids[i] = s.ID
	}
	c.adjacency.InsertNeighbors(layer, u, ids)

	for _, nb := range selected {
		if err := c.connectBack(layer, u, nb.ID, maxDegree, isUpdate); err != nil {
			return 0, err
		}
	}

	if len(selected) == 0 {
		return u, nil
	}
	return selected[0].ID, nil
}

// connectBack adds u to v's adjacency list, pruning v's list with the
// heuristic (pivoted on v) if it would otherwise exceed maxDegree.
func (c *Connector) connectBack(layer int, u, v InnerID, maxDegree int, isUpdate bool) error {
	c.locks.Lock(v)
	defer c.locks.Unlock(v)

	current := c.adjacency.GetNeighbors(layer, v)

	if isUpdate {
		for _, existing := range current {
			if existing == u {
				return nil
			}
		}
	}

	if len(current) < maxDegree {
		next := make([]InnerID, len(current), len(current)+1)
		copy(next, current)
		next = append(next, u)
		c.adjacency.InsertNeighbors(layer, v, next)
		return nil
	}

	candidates := NewPriorityQueue(true)
	candidates.Push(Candidate{ID: u, Distance: c.store.Pairwise(u, v)})
	for _, existing := range current {
		candidates.Push(Candidate{ID: existing, Distance: c.store.Pairwise(existing, v)})
	}

	selected := c.selector.Select(candidates, maxDegree)
	if len(selected) > maxDegree {
		return newInvariantError("edge selector returned %d edges reconnecting %d, exceeding max degree %d", len(selected), v, maxDegree)
	}

	next := make([]InnerID, len(selected))
	for i, s := range selected {
		if s.ID == v {
			return newInvariantError("neighbor list for %d would contain a self-loop", v)
		}
		next[i] = s.ID
	}
	c.adjacency.InsertNeighbors(layer, v, next)
	return nil
}
