package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/jaws/featureflag"
	jawshttp "github.com/aukilabs/jaws/http"
	"github.com/aukilabs/jaws/models"
	"github.com/aukilabs/jaws/quadtree"
	"golang.org/x/net/websocket"
)

// RealtimeHandler serves the world operations to a single client connection
// and relays the topology changes of the joined world.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the server worlds.
	Worlds *models.WorldStore

	FeatureFlags featureflag.FeatureFlag

	conn *websocket.Conn

	mutex        sync.RWMutex
	currentWorld *models.World
	unsubscribe  func()

	clientID string
}

type WorldJoinRequest struct {
	WorldID string `json:"world_id"`
}

type WorldJoinResponse struct {
	WorldID   string         `json:"world_id"`
	CellCount int            `json:"cell_count"`
	Cells     []*models.Cell `json:"cells"`
}

type CellRequest struct {
	CellID string `json:"cell_id"`

	// Ancestor depth for merge and area requests.
	Depth int `json:"depth,omitempty"`

	// Neighbor direction, either by name or as a unit vector.
	Direction string `json:"direction,omitempty"`
	X         int    `json:"x,omitempty"`
	Y         int    `json:"y,omitempty"`
}

type CellResponse struct {
	Cell  *models.Cell `json:"cell"`
	Depth int          `json:"depth"`
}

type CellsResponse struct {
	Cells []*models.Cell `json:"cells"`
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	req := conn.Request()
	h.clientID = req.Header.Get(jawshttp.HeaderClientID)
	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(MsgTypePingResponse, msg.RequestID, nil)
	return nil
}

func (h *RealtimeHandler) HandleWorldJoin(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req WorldJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	world, err := h.Worlds.Get(req.WorldID)
	if err != nil {
		return err
	}

	h.leaveWorld()

	var cells []*models.Cell
	var unsubscribe func()
	if h.FeatureFlags.IsSet(featureflag.FlagDisableTopologyBroadcast) {
		cells, err = world.Cells()
	} else {
		// The join response is queued before the first broadcast can be.
		var joined sync.WaitGroup
		joined.Add(1)
		defer joined.Done()

		cells, unsubscribe, err = world.Watch(func(e models.Event) {
			joined.Wait()
			respond.Send(MsgTypeTopologyBroadcast, 0, e)
		})
	}
	if err != nil {
		return err
	}

	h.mutex.Lock()
	h.currentWorld = world
	h.unsubscribe = unsubscribe
	h.mutex.Unlock()

	respond.Send(MsgTypeWorldJoinResponse, msg.RequestID, WorldJoinResponse{
		WorldID:   world.WorldUUID,
		CellCount: len(cells),
		Cells:     cells,
	})
	return nil
}

func (h *RealtimeHandler) HandleCellSplit(ctx context.Context, respond ResponseSender, msg Msg) error {
	world, req, err := h.cellRequest(msg)
	if err != nil {
		return err
	}

	children, err := world.Split(req.CellID)
	if err != nil {
		return err
	}

	respond.Send(MsgTypeCellSplitResponse, msg.RequestID, CellsResponse{
		Cells: children[:],
	})
	return nil
}

func (h *RealtimeHandler) HandleCellMerge(ctx context.Context, respond ResponseSender, msg Msg) error {
	if err := h.FeatureFlags.Check(featureflag.FlagDisableMerge); err != nil {
		return err
	}

	world, req, err := h.cellRequest(msg)
	if err != nil {
		return err
	}

	merged, err := world.Merge(req.CellID, req.Depth)
	if err != nil {
		return err
	}

	respond.Send(MsgTypeCellMergeResponse, msg.RequestID, CellResponse{
		Cell:  merged,
		Depth: req.Depth,
	})
	return nil
}

func (h *RealtimeHandler) HandleCellNeighbors(ctx context.Context, respond ResponseSender, msg Msg) error {
	world, req, err := h.cellRequest(msg)
	if err != nil {
		return err
	}

	var direction quadtree.Direction
	if req.Direction != "" {
		direction, err = quadtree.ParseDirection(req.Direction)
	} else {
		direction, err = quadtree.DirectionFromVector(req.X, req.Y)
	}
	if err != nil {
		return err
	}

	neighbors, err := world.Neighbors(req.CellID, direction)
	if err != nil {
		return err
	}

	respond.Send(MsgTypeCellNeighborsResponse, msg.RequestID, CellsResponse{
		Cells: neighbors,
	})
	return nil
}

func (h *RealtimeHandler) HandleCellArea(ctx context.Context, respond ResponseSender, msg Msg) error {
	world, req, err := h.cellRequest(msg)
	if err != nil {
		return err
	}

	area, err := world.Area(req.CellID, req.Depth)
	if err != nil {
		return err
	}

	respond.Send(MsgTypeCellAreaResponse, msg.RequestID, CellsResponse{
		Cells: area,
	})
	return nil
}

func (h *RealtimeHandler) HandleCellDepth(ctx context.Context, respond ResponseSender, msg Msg) error {
	world, req, err := h.cellRequest(msg)
	if err != nil {
		return err
	}

	cell, err := world.Cell(req.CellID)
	if err != nil {
		return err
	}

	depth, err := world.Depth(req.CellID)
	if err != nil {
		return err
	}

	respond.Send(MsgTypeCellDepthResponse, msg.RequestID, CellResponse{
		Cell:  cell,
		Depth: depth,
	})
	return nil
}

func (h *RealtimeHandler) cellRequest(msg Msg) (*models.World, CellRequest, error) {
	var req CellRequest
	if err := msg.DataTo(&req); err != nil {
		return nil, req, err
	}

	world := h.CurrentWorld()
	if world == nil {
		return nil, req, errors.New("world not joined").
			WithType(ErrTypeWorldNotJoined).
			WithTag("msg_type", msg.Type)
	}
	return world, req, nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	h.leaveWorld()
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, respond ResponseSender) error {
	respond.Send(MsgTypeSyncClock, 0, SyncClock{
		ServerTime: time.Now(),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

func (h *RealtimeHandler) Sender() Sender {
	return NewSender(h.conn)
}

func (h *RealtimeHandler) Close() {
	h.leaveWorld()
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) CurrentWorld() *models.World {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.currentWorld
}

func (h *RealtimeHandler) leaveWorld() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.unsubscribe = nil
	h.currentWorld = nil
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}
