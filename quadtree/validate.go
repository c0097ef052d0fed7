package quadtree

// Validate walks the whole node graph and checks the structural invariants:
// leaves hold a payload indexed by the tree and internal nodes own four
// children one level deeper; every neighbor slot points to a live node that
// is not deeper than its owner, same-depth neighbors point back, and coarser
// neighbors are leaves.
func (t *Tree[T]) Validate() error {
	free := make(map[nodeID]struct{}, len(t.arena.free))
	for _, id := range t.arena.free {
		free[id] = struct{}{}
	}

	live := func(id nodeID) bool {
		if id == nilNode || int(id) >= len(t.arena.nodes) {
			return false
		}
		_, released := free[id]
		return !released
	}

	leaves := 0
	visited := 0
	for _, root := range t.roots {
		for _, id := range t.subtree(root) {
			visited++
			n := t.arena.at(id)

			if n.isLeaf() {
				leaves++
				if indexed, ok := t.index[n.payload]; !ok || indexed != id {
					return errCorrupted(id, "leaf payload is not indexed")
				}
			} else {
				var zero T
				if n.payload != zero {
					return errCorrupted(id, "internal node holds a payload")
				}
				for q, c := range n.children {
					if !live(c) {
						return errCorrupted(id, "%s child is not live", Quadrant(q))
					}
					child := t.arena.at(c)
					if child.parent != id || child.depth != n.depth+1 {
						return errCorrupted(id, "%s child is not linked to its parent", Quadrant(q))
					}
				}
			}

			for _, d := range directions {
				neighborID := n.neighbors[d]
				if !live(neighborID) {
					return errCorrupted(id, "%s neighbor is not live", d)
				}

				neighbor := t.arena.at(neighborID)
				switch {
				case neighbor.depth > n.depth:
					return errCorrupted(id, "%s neighbor is deeper than the node", d)

				case neighbor.depth == n.depth && neighbor.neighbors[d.Opposite()] != id:
					return errCorrupted(id, "%s neighbor does not point back", d)

				case neighbor.depth < n.depth && !neighbor.isLeaf():
					return errCorrupted(id, "%s neighbor is coarser but has been split", d)
				}
			}
		}
	}

	if leaves != len(t.index) {
		return errCorrupted(nilNode, "tree has %d leaves but indexes %d payloads", leaves, len(t.index))
	}
	if visited != t.arena.live() {
		return errCorrupted(nilNode, "tree reaches %d nodes but the arena holds %d", visited, t.arena.live())
	}
	return nil
}
