package quadtree

// Split replaces the leaf holding payload with four children built by
// payload.Split and returns them. Errors from payload.Split are returned
// unchanged. The tree is left untouched when an error is returned.
func (t *Tree[T]) Split(payload T) ([4]T, error) {
	var none [4]T

	id, err := t.lookup(payload)
	if err != nil {
		return none, err
	}

	children, err := payload.Split()
	if err != nil {
		return none, err
	}
	for i, child := range children {
		if t.Contains(child) && child != payload {
			return none, errDuplicatePayload(child)
		}
		for _, other := range children[:i] {
			if other == child {
				return none, errDuplicatePayload(child)
			}
		}
	}

	depth := t.arena.at(id).depth + 1
	var ids [4]nodeID
	for q, child := range children {
		ids[q] = t.arena.alloc(node[T]{
			depth:   depth,
			payload: child,
			parent:  id,
		})
	}

	parent := t.arena.at(id)
	var zero T
	parent.payload = zero
	parent.children = ids
	delete(t.index, payload)
	for q, child := range children {
		t.index[child] = ids[q]
	}

	for q, childID := range ids {
		child := t.arena.at(childID)
		for _, d := range Quadrant(q).inner() {
			child.neighbors[d] = ids[Quadrant(q).mirror(d)]
		}
	}

	var fixups []slotFixup
	for q, childID := range ids {
		child := t.arena.at(childID)

		for _, d := range Quadrant(q).borders() {
			outer := parent.neighbors[d]
			if outer == nilNode {
				continue
			}

			// The outer node only has a matching child when it sits at the
			// parent's depth and has been split already.
			match := nilNode
			if o := t.arena.at(outer); o.depth == parent.depth && !o.isLeaf() {
				match = o.children[Quadrant(q).mirror(d)]
			}

			if match == nilNode {
				child.neighbors[d] = outer
				continue
			}

			child.neighbors[d] = match
			back := d.Opposite()
			for _, s := range t.side(match, back, nil) {
				fixups = append(fixups, slotFixup{id: s, dir: back, to: childID})
			}
		}
	}

	nodes := t.arena.nodes
	each(t.config, fixups, func(f slotFixup) {
		nodes[f.id].neighbors[f.dir] = f.to
	})

	return children, nil
}
