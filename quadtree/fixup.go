package quadtree

import (
	"golang.org/x/sync/errgroup"
)

// slotFixup repoints one neighbor slot.
type slotFixup struct {
	id  nodeID
	dir Direction
	to  nodeID
}

// each calls fn for every item. Batches reaching the parallel threshold are
// chunked over the worker pool; each returns once every call completed.
// Items must touch disjoint memory.
func each[E any](c config, items []E, fn func(E)) {
	if c.parallelThreshold <= 0 || len(items) < c.parallelThreshold || c.workers == 1 {
		for _, item := range items {
			fn(item)
		}
		return
	}

	chunk := (len(items) + c.workers - 1) / c.workers

	var g errgroup.Group
	g.SetLimit(c.workers)
	for start := 0; start < len(items); start += chunk {
		batch := items[start:min(start+chunk, len(items))]
		g.Go(func() error {
			for _, item := range batch {
				fn(item)
			}
			return nil
		})
	}

	// Batches never fail; Wait is the barrier.
	_ = g.Wait()
}
