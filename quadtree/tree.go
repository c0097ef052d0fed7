package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Splitter is the capability a payload needs to live in a tree. Split must
// return four new values, top-left, top-right, bottom-right and bottom-left.
type Splitter[T any] interface {
	comparable
	Split() ([4]T, error)
}

// Tree is a quadtree over a closed surface made of one, two or six square
// faces. Every node knows its neighbor on each side, across faces and across
// depths, so neighbor lookups never search the tree.
//
// A Tree is not safe for concurrent use when one of the goroutines mutates it.
// Queries can run concurrently with each other.
type Tree[T Splitter[T]] struct {
	arena  arena[T]
	index  map[T]nodeID
	roots  []nodeID
	config config
}

func newTree[T Splitter[T]](faces []T, opts []Option) (*Tree[T], error) {
	t := &Tree[T]{
		index:  make(map[T]nodeID, len(faces)),
		config: newConfig(opts),
	}
	t.arena = newArena[T](t.config.capacity)

	for _, face := range faces {
		if _, ok := t.index[face]; ok {
			return nil, errDuplicatePayload(face)
		}

		id := t.arena.alloc(node[T]{payload: face})
		t.index[face] = id
		t.roots = append(t.roots, id)
	}
	return t, nil
}

// NewCube creates a tree over six faces. Face i has face i+1 above, i-1
// below, i+2 on its right and i-2 on its left (mod 6). Faces share a single
// orientation, so walking up six times comes back to the starting face.
func NewCube[T Splitter[T]](faces [6]T, opts ...Option) (*Tree[T], error) {
	t, err := newTree(faces[:], opts)
	if err != nil {
		return nil, err
	}

	for i, id := range t.roots {
		n := t.arena.at(id)
		n.neighbors[Up] = t.roots[(i+1)%6]
		n.neighbors[Right] = t.roots[(i+2)%6]
		n.neighbors[Down] = t.roots[(i+5)%6]
		n.neighbors[Left] = t.roots[(i+4)%6]
	}
	return t, nil
}

// NewDoubleFace creates a tree over two faces that border each other on all
// four sides.
func NewDoubleFace[T Splitter[T]](a, b T, opts ...Option) (*Tree[T], error) {
	t, err := newTree([]T{a, b}, opts)
	if err != nil {
		return nil, err
	}

	for i, id := range t.roots {
		other := t.roots[1-i]
		n := t.arena.at(id)
		n.neighbors = [4]nodeID{other, other, other, other}
	}
	return t, nil
}

// NewSingleFace creates a tree over one face that wraps onto itself on every
// side.
func NewSingleFace[T Splitter[T]](face T, opts ...Option) (*Tree[T], error) {
	t, err := newTree([]T{face}, opts)
	if err != nil {
		return nil, err
	}

	id := t.roots[0]
	t.arena.at(id).neighbors = [4]nodeID{id, id, id, id}
	return t, nil
}

// Len returns the number of leaves.
func (t *Tree[T]) Len() int {
	return len(t.index)
}

// Contains reports whether payload is a current leaf.
func (t *Tree[T]) Contains(payload T) bool {
	_, ok := t.index[payload]
	return ok
}

// Depth returns the depth of the leaf holding payload. Faces are at depth 0.
func (t *Tree[T]) Depth(payload T) (int, error) {
	id, err := t.lookup(payload)
	if err != nil {
		return 0, err
	}
	return t.arena.at(id).depth, nil
}

// Leaves returns every leaf payload, face by face.
func (t *Tree[T]) Leaves() []T {
	leaves := make([]T, 0, len(t.index))
	for _, root := range t.roots {
		leaves = t.appendLeaves(leaves, t.subtree(root))
	}
	return leaves
}

// Neighbors returns the leaves adjacent to payload on side d. The result has
// one element when that side is covered by a single node of the same or a
// coarser depth, and several when it has been split deeper.
func (t *Tree[T]) Neighbors(payload T, d Direction) ([]T, error) {
	if !d.valid() {
		return nil, errors.New("unknown direction").
			WithType(ErrTypeInvalidDirection).
			WithTag("direction", int(d))
	}

	id, err := t.lookup(payload)
	if err != nil {
		return nil, err
	}
	return t.appendLeaves(nil, t.neighborNodes(id, d)), nil
}

// NeighborsByVector is Neighbors with the side given as a unit vector, y
// pointing up.
func (t *Tree[T]) NeighborsByVector(payload T, x, y int) ([]T, error) {
	d, err := DirectionFromVector(x, y)
	if err != nil {
		return nil, err
	}
	return t.Neighbors(payload, d)
}

// Area returns every leaf under the ancestor of payload at the given depth.
// The ancestor comes first when it is itself a leaf, then its descendants
// breadth first in quadrant order.
func (t *Tree[T]) Area(payload T, depth int) ([]T, error) {
	id, err := t.lookup(payload)
	if err != nil {
		return nil, err
	}

	ancestor, err := t.ancestorAt(id, depth)
	if err != nil {
		return nil, err
	}
	return t.appendLeaves(nil, t.subtree(ancestor)), nil
}

func (t *Tree[T]) lookup(payload T) (nodeID, error) {
	id, ok := t.index[payload]
	if !ok {
		return nilNode, errNotFound(payload)
	}
	return id, nil
}

// ancestorAt walks up from id to the node at the given depth.
func (t *Tree[T]) ancestorAt(id nodeID, depth int) (nodeID, error) {
	n := t.arena.at(id)
	if depth < 0 || depth > n.depth {
		return nilNode, errInvalidDepth(depth, n.depth)
	}

	for n.depth > depth {
		id = n.parent
		n = t.arena.at(id)
	}
	return id, nil
}

// neighborNodes returns the nodes on side d of id: the coarser neighbor
// alone, or every node along the facing edge of the same-depth neighbor.
func (t *Tree[T]) neighborNodes(id nodeID, d Direction) []nodeID {
	n := t.arena.at(id)
	neighbor := n.neighbors[d]
	if neighbor == nilNode {
		return nil
	}

	if t.arena.at(neighbor).depth < n.depth {
		return []nodeID{neighbor}
	}
	return t.side(neighbor, d.Opposite(), nil)
}

// side appends id and, breadth first, every descendant lying along side d
// of it.
func (t *Tree[T]) side(id nodeID, d Direction, dst []nodeID) []nodeID {
	if id == nilNode {
		return dst
	}

	quadrants := edge(d)
	start := len(dst)
	dst = append(dst, id)
	for i := start; i < len(dst); i++ {
		n := t.arena.at(dst[i])
		if n.isLeaf() {
			continue
		}
		dst = append(dst, n.children[quadrants[0]], n.children[quadrants[1]])
	}
	return dst
}

// subtree returns id followed by all of its descendants, breadth first.
func (t *Tree[T]) subtree(id nodeID) []nodeID {
	nodes := []nodeID{id}
	for i := 0; i < len(nodes); i++ {
		n := t.arena.at(nodes[i])
		if n.isLeaf() {
			continue
		}
		nodes = append(nodes, n.children[:]...)
	}
	return nodes
}

func (t *Tree[T]) appendLeaves(dst []T, ids []nodeID) []T {
	for _, id := range ids {
		if n := t.arena.at(id); n.isLeaf() {
			dst = append(dst, n.payload)
		}
	}
	return dst
}
