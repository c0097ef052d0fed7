package quadtree

// Replace collapses the ancestor of payload at the given depth into a single
// leaf holding replacement. Every leaf under that ancestor leaves the tree.
// With depth equal to the depth of payload, the leaf payload is swapped.
func (t *Tree[T]) Replace(payload T, depth int, replacement T) error {
	id, err := t.lookup(payload)
	if err != nil {
		return err
	}

	ancestorID, err := t.ancestorAt(id, depth)
	if err != nil {
		return err
	}

	nodes := t.subtree(ancestorID)
	doomed := make(map[nodeID]struct{}, len(nodes)-1)
	for _, d := range nodes[1:] {
		doomed[d] = struct{}{}
	}

	if existing, ok := t.index[replacement]; ok {
		if _, inSubtree := doomed[existing]; !inSubtree && existing != ancestorID {
			return errDuplicatePayload(replacement)
		}
	}

	// Nodes outside the subtree that may reference a node inside it. A node
	// can touch the subtree on more than one side when faces wrap, so the
	// boundary is deduplicated before the slots are rewritten concurrently.
	var boundary []nodeID
	seen := make(map[nodeID]struct{})
	for _, d := range directions {
		for _, b := range t.neighborNodes(ancestorID, d) {
			if _, ok := doomed[b]; ok {
				continue
			}
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			boundary = append(boundary, b)
		}
	}

	arenaNodes := t.arena.nodes
	each(t.config, boundary, func(b nodeID) {
		n := &arenaNodes[b]
		for d, neighbor := range n.neighbors {
			if _, ok := doomed[neighbor]; ok {
				n.neighbors[d] = ancestorID
			}
		}
	})

	ancestor := t.arena.at(ancestorID)
	if ancestor.isLeaf() {
		delete(t.index, ancestor.payload)
	}
	ancestor.children = [4]nodeID{}
	ancestor.payload = replacement

	for _, d := range nodes[1:] {
		if n := t.arena.at(d); n.isLeaf() {
			delete(t.index, n.payload)
		}
		t.arena.release(d)
	}
	t.index[replacement] = ancestorID

	return nil
}
