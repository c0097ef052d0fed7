package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/jaws/quadtree"
	"github.com/google/uuid"
)

const (
	ErrTypeCellNotFound  = "cell_not_found"
	ErrTypeWorldNotFound = "world_not_found"
	ErrTypeWorldClosed   = "world_closed"
)

// World is a planet surface: a quadtree of weather cells that clients can
// refine and coarsen. Mutations are serialized and queries can run
// concurrently.
type World struct {
	ID        uint32
	WorldUUID string
	CreatedAt time.Time

	mutex  sync.RWMutex
	tree   *quadtree.Tree[*Cell]
	cells  map[string]*Cell
	seq    uint64
	closed bool

	// Acquired while mutex is held and released once the event of the
	// mutation is delivered.
	publishMutex sync.Mutex

	subscriberIDs   SequentialIDGenerator
	subscriberMutex sync.RWMutex
	subscribers     map[uint32]func(Event)
}

func NewWorld(id uint32, tree *quadtree.Tree[*Cell]) *World {
	leaves := tree.Leaves()
	cells := make(map[string]*Cell, len(leaves))
	for _, c := range leaves {
		cells[c.ID] = c
	}

	return &World{
		ID:          id,
		WorldUUID:   uuid.New().String(),
		CreatedAt:   time.Now(),
		tree:        tree,
		cells:       cells,
		subscribers: make(map[uint32]func(Event)),
	}
}

// Close releases the cells and stops event delivery. Every operation on a
// closed world fails with world_closed.
func (w *World) Close() {
	w.mutex.Lock()
	w.closed = true
	w.tree = nil
	w.cells = nil
	w.mutex.Unlock()

	w.subscriberMutex.Lock()
	defer w.subscriberMutex.Unlock()
	w.subscribers = make(map[uint32]func(Event))
}

// Cell returns the leaf cell with the given id.
func (w *World) Cell(id string) (*Cell, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	return w.cell(id)
}

func (w *World) cell(id string) (*Cell, error) {
	c, ok := w.cells[id]
	if !ok {
		return nil, errors.New("cell not found").
			WithType(ErrTypeCellNotFound).
			WithTag("world_id", w.WorldUUID).
			WithTag("cell_id", id)
	}
	return c, nil
}

// Cells returns every leaf cell, faces in construction order.
func (w *World) Cells() ([]*Cell, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	return w.tree.Leaves(), nil
}

// CellCount returns the number of leaf cells. It is 0 once the world is
// closed.
func (w *World) CellCount() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return len(w.cells)
}

func (w *World) Depth(id string) (int, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if err := w.checkOpen(); err != nil {
		return 0, err
	}

	c, err := w.cell(id)
	if err != nil {
		return 0, err
	}
	return w.tree.Depth(c)
}

func (w *World) Neighbors(id string, d quadtree.Direction) ([]*Cell, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	c, err := w.cell(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	neighbors, err := w.tree.Neighbors(c, d)
	instrumentTopologyOp(opNeighbors, start, err)
	return neighbors, err
}

// Area returns the leaves covered by the ancestor of the cell at the given
// depth.
func (w *World) Area(id string, depth int) ([]*Cell, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	c, err := w.cell(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	area, err := w.tree.Area(c, depth)
	instrumentTopologyOp(opArea, start, err)
	return area, err
}

// Split refines a cell into four children.
func (w *World) Split(id string) ([4]*Cell, error) {
	w.mutex.Lock()
	children, event, err := w.split(id)
	if err != nil {
		w.mutex.Unlock()
		return children, err
	}

	w.publishLocked(event)
	return children, nil
}

func (w *World) split(id string) ([4]*Cell, Event, error) {
	if err := w.checkOpen(); err != nil {
		return [4]*Cell{}, Event{}, err
	}

	c, err := w.cell(id)
	if err != nil {
		return [4]*Cell{}, Event{}, err
	}

	start := time.Now()
	children, err := w.tree.Split(c)
	instrumentTopologyOp(opSplit, start, err)
	if err != nil {
		return children, Event{}, err
	}

	delete(w.cells, c.ID)
	for _, child := range children {
		w.cells[child.ID] = child
	}
	instrumentWorldCells(w.WorldUUID, len(w.cells))

	depth, _ := w.tree.Depth(children[0])
	w.seq++
	return children, Event{
		Type:    EventTypeCellSplit,
		WorldID: w.WorldUUID,
		Seq:     w.seq,
		Removed: []string{c.ID},
		Added:   children[:],
		Depth:   depth,
	}, nil
}

// Merge coarsens the area around a cell: the ancestor at the given depth
// becomes a leaf holding the coalesced values of every discarded cell.
func (w *World) Merge(id string, depth int) (*Cell, error) {
	w.mutex.Lock()
	merged, event, err := w.merge(id, depth)
	if err != nil {
		w.mutex.Unlock()
		return nil, err
	}

	w.publishLocked(event)
	return merged, nil
}

func (w *World) merge(id string, depth int) (*Cell, Event, error) {
	if err := w.checkOpen(); err != nil {
		return nil, Event{}, err
	}

	c, err := w.cell(id)
	if err != nil {
		return nil, Event{}, err
	}

	start := time.Now()
	area, err := w.tree.Area(c, depth)
	if err != nil {
		instrumentTopologyOp(opMerge, start, err)
		return nil, Event{}, err
	}

	merged, err := Coalesce(area...)
	if err != nil {
		instrumentTopologyOp(opMerge, start, err)
		return nil, Event{}, err
	}

	err = w.tree.Replace(c, depth, merged)
	instrumentTopologyOp(opMerge, start, err)
	if err != nil {
		return nil, Event{}, err
	}

	removed := make([]string, len(area))
	for i, a := range area {
		removed[i] = a.ID
		delete(w.cells, a.ID)
	}
	w.cells[merged.ID] = merged
	instrumentWorldCells(w.WorldUUID, len(w.cells))

	w.seq++
	return merged, Event{
		Type:    EventTypeCellMerged,
		WorldID: w.WorldUUID,
		Seq:     w.seq,
		Removed: removed,
		Added:   []*Cell{merged},
		Depth:   depth,
	}, nil
}

// Validate checks the integrity of the world topology.
func (w *World) Validate() error {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if err := w.checkOpen(); err != nil {
		return err
	}

	if err := w.tree.Validate(); err != nil {
		return errors.New("invalid world topology").
			WithType(quadtree.ErrTypeCorrupted).
			WithTag("world_id", w.WorldUUID).
			Wrap(err)
	}

	if len(w.cells) != w.tree.Len() {
		return errors.New("cell index out of sync").
			WithType(quadtree.ErrTypeCorrupted).
			WithTag("world_id", w.WorldUUID).
			WithTag("cells", len(w.cells)).
			WithTag("leaves", w.tree.Len())
	}
	return nil
}

func (w *World) checkOpen() error {
	if w.closed {
		return errors.New("world is closed").
			WithType(ErrTypeWorldClosed).
			WithTag("world_id", w.WorldUUID)
	}
	return nil
}

// Subscribe registers a function called after each topology change, in
// mutation order. The function runs while the world waits to publish the
// next change: it must not block or mutate the world.
func (w *World) Subscribe(h func(Event)) (cancel func()) {
	w.subscriberMutex.Lock()
	defer w.subscriberMutex.Unlock()

	id := w.subscriberIDs.New()
	w.subscribers[id] = h

	return func() {
		w.subscriberMutex.Lock()
		defer w.subscriberMutex.Unlock()

		if _, ok := w.subscribers[id]; !ok {
			return
		}
		delete(w.subscribers, id)
		w.subscriberIDs.Reuse(id)
	}
}

// Watch returns the current cells and subscribes h to the changes that
// follow them. Every event h receives is newer than the returned cells.
func (w *World) Watch(h func(Event)) ([]*Cell, func(), error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if err := w.checkOpen(); err != nil {
		return nil, nil, err
	}

	// Waits for the delivery of the last change to complete.
	w.publishMutex.Lock()
	defer w.publishMutex.Unlock()

	return w.tree.Leaves(), w.Subscribe(h), nil
}

func (w *World) SubscriberCount() int {
	w.subscriberMutex.RLock()
	defer w.subscriberMutex.RUnlock()

	return len(w.subscribers)
}

// publishLocked delivers e and releases the world write lock. Changes are
// delivered one at a time, in the order of their mutations.
func (w *World) publishLocked(e Event) {
	w.publishMutex.Lock()
	defer w.publishMutex.Unlock()
	w.mutex.Unlock()

	w.subscriberMutex.RLock()
	defer w.subscriberMutex.RUnlock()

	for _, h := range w.subscribers {
		h(e)
	}
}

type WorldStore struct {
	initOnce sync.Once
	mutex    sync.RWMutex
	worlds   map[string]*World
	ids      SequentialIDGenerator
}

func (s *WorldStore) init() {
	s.worlds = map[string]*World{}
}

func (s *WorldStore) NewID() uint32 {
	return s.ids.New()
}

func (s *WorldStore) Add(ctx context.Context, w *World) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.worlds[w.WorldUUID] = w

	instrumentIncreaseWorldGauge()
	instrumentCountWorld()
	instrumentWorldCells(w.WorldUUID, w.CellCount())
	return nil
}

func (s *WorldStore) Remove(ctx context.Context, w *World) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.worlds[w.WorldUUID]; !ok {
		return
	}

	delete(s.worlds, w.WorldUUID)
	w.Close()

	s.ids.Reuse(w.ID)

	instrumentDecreaseWorldGauge()
	instrumentDeleteWorldCells(w.WorldUUID)
}

func (s *WorldStore) Get(worldUUID string) (*World, error) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	w, ok := s.worlds[worldUUID]
	if !ok {
		return nil, errors.New("world not found").
			WithType(ErrTypeWorldNotFound).
			WithTag("world_id", worldUUID)
	}
	return w, nil
}

// List returns the worlds ordered by creation. IDs are reused and do not
// reflect that order.
func (s *WorldStore) List() []*World {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	worlds := make([]*World, 0, len(s.worlds))
	for _, w := range s.worlds {
		worlds = append(worlds, w)
	}

	sort.Slice(worlds, func(i, j int) bool {
		if !worlds[i].CreatedAt.Equal(worlds[j].CreatedAt) {
			return worlds[i].CreatedAt.Before(worlds[j].CreatedAt)
		}
		return worlds[i].ID < worlds[j].ID
	})
	return worlds
}
