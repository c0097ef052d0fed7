package quadtree

// nodeID addresses a node in the arena. The zero id is the nil node.
type nodeID uint32

const nilNode nodeID = 0

type node[T comparable] struct {
	depth   int
	payload T
	parent  nodeID

	// Adjacent node at the same depth, or the coarser leaf covering that side
	// when it has not been split that deep.
	neighbors [4]nodeID

	// Owning edges, indexed by Quadrant. All nil on a leaf.
	children [4]nodeID
}

func (n *node[T]) isLeaf() bool {
	return n.children[0] == nilNode
}

// arena stores nodes in a slice so that parent and neighbor references are
// plain indices. Released slots are recycled.
type arena[T comparable] struct {
	nodes []node[T]
	free  []nodeID
}

func newArena[T comparable](capacity int) arena[T] {
	if capacity < 1 {
		capacity = 1
	}

	nodes := make([]node[T], 1, capacity+1) // 0 is the nil node
	return arena[T]{nodes: nodes}
}

// alloc stores n and returns its id. Pointers obtained from at are invalid
// after alloc.
func (a *arena[T]) alloc(n node[T]) nodeID {
	if l := len(a.free); l != 0 {
		id := a.free[l-1]
		a.free = a.free[:l-1]
		a.nodes[id] = n
		return id
	}

	a.nodes = append(a.nodes, n)
	return nodeID(len(a.nodes) - 1)
}

func (a *arena[T]) release(id nodeID) {
	a.nodes[id] = node[T]{}
	a.free = append(a.free, id)
}

func (a *arena[T]) at(id nodeID) *node[T] {
	return &a.nodes[id]
}

// live returns the number of allocated nodes, leaves and internal nodes.
func (a *arena[T]) live() int {
	return len(a.nodes) - 1 - len(a.free)
}
