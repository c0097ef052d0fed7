package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/jaws/featureflag"
	"github.com/aukilabs/jaws/generator"
	"github.com/aukilabs/jaws/models"
	"github.com/aukilabs/jaws/quadtree"
	"github.com/stretchr/testify/require"
)

const testTimeout = time.Second * 2

func newTestWorlds(t *testing.T) (*models.WorldStore, *models.World) {
	tree, err := generator.Generate(generator.Options{FaceArea: 1024})
	require.NoError(t, err)

	var worlds models.WorldStore
	world := models.NewWorld(worlds.NewID(), tree)
	require.NoError(t, worlds.Add(context.Background(), world))
	return &worlds, world
}

func firstCell(t *testing.T, world *models.World) *models.Cell {
	cells, err := world.Cells()
	require.NoError(t, err)
	return cells[0]
}

func newTestHandler(worlds *models.WorldStore, flags ...string) func() Handler {
	return func() Handler {
		var h Handler = &RealtimeHandler{
			ClientSyncClockInterval: time.Millisecond * 250,
			ClientIdleTimeout:       time.Minute,
			Worlds:                  worlds,
			FeatureFlags:            featureflag.New(flags),
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://jaws-test.com")
		return h
	}
}

func join(t *testing.T, c *TestClient, world *models.World) WorldJoinResponse {
	err := c.Send(MsgTypeWorldJoinRequest, 1, WorldJoinRequest{WorldID: world.WorldUUID})
	require.NoError(t, err)

	msg, err := c.Receive(MsgTypeWorldJoinResponse, testTimeout)
	require.NoError(t, err)
	require.Equal(t, uint32(1), msg.RequestID)

	var res WorldJoinResponse
	require.NoError(t, msg.DataTo(&res))
	return res
}

func receiveError(t *testing.T, c *TestClient) ErrorResponse {
	msg, err := c.Receive(MsgTypeErrorResponse, testTimeout)
	require.NoError(t, err)

	var res ErrorResponse
	require.NoError(t, msg.DataTo(&res))
	return res
}

func TestHandlerSendSyncClock(t *testing.T) {
	worlds, _ := newTestWorlds(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
	defer close()

	msg, err := clientA.Receive(MsgTypeSyncClock, testTimeout)
	require.NoError(t, err)
	require.NotZero(t, msg.Time)

	var res SyncClock
	require.NoError(t, msg.DataTo(&res))
	require.NotZero(t, res.ServerTime)
}

func TestHandlerHandlePing(t *testing.T) {
	worlds, _ := newTestWorlds(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
	defer close()

	err := clientA.Send(MsgTypePingRequest, 42, nil)
	require.NoError(t, err)

	msg, err := clientA.Receive(MsgTypePingResponse, testTimeout)
	require.NoError(t, err)
	require.Equal(t, uint32(42), msg.RequestID)
}

func TestHandlerHandleWorldJoin(t *testing.T) {
	t.Run("joins a world", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
		defer close()

		res := join(t, clientA, world)
		require.Equal(t, world.WorldUUID, res.WorldID)
		require.Equal(t, 6, res.CellCount)
		require.Len(t, res.Cells, 6)
	})

	t.Run("joining an unknown world returns an error", func(t *testing.T) {
		worlds, _ := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
		defer close()

		err := clientA.Send(MsgTypeWorldJoinRequest, 1, WorldJoinRequest{WorldID: "nope"})
		require.NoError(t, err)

		res := receiveError(t, clientA)
		require.Equal(t, models.ErrTypeWorldNotFound, res.Type)
	})

	t.Run("operating without joining returns an error", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
		defer close()

		err := clientA.Send(MsgTypeCellSplitRequest, 1, CellRequest{CellID: firstCell(t, world).ID})
		require.NoError(t, err)

		res := receiveError(t, clientA)
		require.Equal(t, ErrTypeWorldNotJoined, res.Type)
	})
}

func TestHandlerHandleCellSplit(t *testing.T) {
	t.Run("splits a cell and broadcasts the change", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, clientB, close := NewTestingEnv(t, newTestHandler(worlds))
		defer close()

		faces := join(t, clientA, world).Cells
		join(t, clientB, world)

		err := clientA.Send(MsgTypeCellSplitRequest, 2, CellRequest{CellID: faces[0].ID})
		require.NoError(t, err)

		msg, err := clientA.Receive(MsgTypeCellSplitResponse, testTimeout)
		require.NoError(t, err)

		var res CellsResponse
		require.NoError(t, msg.DataTo(&res))
		require.Len(t, res.Cells, 4)
		require.Equal(t, float64(256), res.Cells[0].Area)

		msg, err = clientB.Receive(MsgTypeTopologyBroadcast, testTimeout)
		require.NoError(t, err)

		var event models.Event
		require.NoError(t, msg.DataTo(&event))
		require.Equal(t, models.EventTypeCellSplit, event.Type)
		require.Equal(t, uint64(1), event.Seq)
		require.Equal(t, []string{faces[0].ID}, event.Removed)
		require.Len(t, event.Added, 4)
		require.Equal(t, 1, event.Depth)
	})

	t.Run("joining after a change only broadcasts newer changes", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
		defer close()

		children, err := world.Split(firstCell(t, world).ID)
		require.NoError(t, err)

		cells := join(t, clientA, world).Cells
		require.Len(t, cells, 9)

		_, err = world.Merge(children[0].ID, 0)
		require.NoError(t, err)

		msg, err := clientA.Receive(MsgTypeTopologyBroadcast, testTimeout)
		require.NoError(t, err)

		var event models.Event
		require.NoError(t, msg.DataTo(&event))
		require.Equal(t, models.EventTypeCellMerged, event.Type)
		require.Equal(t, uint64(2), event.Seq)
	})

	t.Run("splitting an unknown cell returns an error", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
		defer close()

		join(t, clientA, world)

		err := clientA.Send(MsgTypeCellSplitRequest, 2, CellRequest{CellID: "nope"})
		require.NoError(t, err)

		res := receiveError(t, clientA)
		require.Equal(t, models.ErrTypeCellNotFound, res.Type)
	})

	t.Run("no broadcast when disabled", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds, string(featureflag.FlagDisableTopologyBroadcast)))
		defer close()

		faces := join(t, clientA, world).Cells
		require.Zero(t, world.SubscriberCount())

		err := clientA.Send(MsgTypeCellSplitRequest, 2, CellRequest{CellID: faces[0].ID})
		require.NoError(t, err)

		_, err = clientA.Receive(MsgTypeCellSplitResponse, testTimeout)
		require.NoError(t, err)

		_, err = clientA.Receive(MsgTypeTopologyBroadcast, time.Millisecond*300)
		require.Error(t, err)
	})
}

func TestHandlerHandleCellMerge(t *testing.T) {
	t.Run("merges an area", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
		defer close()

		join(t, clientA, world)

		children, err := world.Split(firstCell(t, world).ID)
		require.NoError(t, err)

		err = clientA.Send(MsgTypeCellMergeRequest, 3, CellRequest{CellID: children[2].ID})
		require.NoError(t, err)

		msg, err := clientA.Receive(MsgTypeCellMergeResponse, testTimeout)
		require.NoError(t, err)

		var res CellResponse
		require.NoError(t, msg.DataTo(&res))
		require.Equal(t, float64(1024), res.Cell.Area)
		require.Equal(t, 0, res.Depth)
		require.Equal(t, 6, world.CellCount())
	})

	t.Run("merging when disabled returns an error", func(t *testing.T) {
		worlds, world := newTestWorlds(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(worlds, string(featureflag.FlagDisableMerge)))
		defer close()

		faces := join(t, clientA, world).Cells

		err := clientA.Send(MsgTypeCellMergeRequest, 3, CellRequest{CellID: faces[0].ID})
		require.NoError(t, err)

		res := receiveError(t, clientA)
		require.Equal(t, featureflag.ErrTypeFeatureDisabled, res.Type)
	})
}

func TestHandlerQueries(t *testing.T) {
	worlds, world := newTestWorlds(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
	defer close()

	join(t, clientA, world)

	children, err := world.Split(firstCell(t, world).ID)
	require.NoError(t, err)

	t.Run("neighbors by name", func(t *testing.T) {
		err := clientA.Send(MsgTypeCellNeighborsRequest, 4, CellRequest{
			CellID:    children[0].ID,
			Direction: "down",
		})
		require.NoError(t, err)

		msg, err := clientA.Receive(MsgTypeCellNeighborsResponse, testTimeout)
		require.NoError(t, err)

		var res CellsResponse
		require.NoError(t, msg.DataTo(&res))
		require.Len(t, res.Cells, 1)
		require.Equal(t, children[3].ID, res.Cells[0].ID)
	})

	t.Run("neighbors by vector", func(t *testing.T) {
		err := clientA.Send(MsgTypeCellNeighborsRequest, 5, CellRequest{
			CellID: children[0].ID,
			X:      1,
		})
		require.NoError(t, err)

		msg, err := clientA.Receive(MsgTypeCellNeighborsResponse, testTimeout)
		require.NoError(t, err)

		var res CellsResponse
		require.NoError(t, msg.DataTo(&res))
		require.Len(t, res.Cells, 1)
		require.Equal(t, children[1].ID, res.Cells[0].ID)
	})

	t.Run("neighbors with an invalid vector", func(t *testing.T) {
		err := clientA.Send(MsgTypeCellNeighborsRequest, 6, CellRequest{CellID: children[0].ID})
		require.NoError(t, err)

		res := receiveError(t, clientA)
		require.Equal(t, quadtree.ErrTypeInvalidDirection, res.Type)
	})

	t.Run("area", func(t *testing.T) {
		err := clientA.Send(MsgTypeCellAreaRequest, 7, CellRequest{CellID: children[1].ID})
		require.NoError(t, err)

		msg, err := clientA.Receive(MsgTypeCellAreaResponse, testTimeout)
		require.NoError(t, err)

		var res CellsResponse
		require.NoError(t, msg.DataTo(&res))
		require.Len(t, res.Cells, 4)
		for i, c := range res.Cells {
			require.Equal(t, children[i].ID, c.ID)
		}
	})

	t.Run("depth", func(t *testing.T) {
		err := clientA.Send(MsgTypeCellDepthRequest, 8, CellRequest{CellID: children[1].ID})
		require.NoError(t, err)

		msg, err := clientA.Receive(MsgTypeCellDepthResponse, testTimeout)
		require.NoError(t, err)

		var res CellResponse
		require.NoError(t, msg.DataTo(&res))
		require.Equal(t, 1, res.Depth)
		require.Equal(t, children[1].ID, res.Cell.ID)
	})
}

func TestHandlerUnknownMessages(t *testing.T) {
	worlds, _ := newTestWorlds(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
	defer close()

	t.Run("unknown type", func(t *testing.T) {
		err := clientA.Send("teleport", 9, nil)
		require.NoError(t, err)

		res := receiveError(t, clientA)
		require.Equal(t, ErrTypeUnknownMsgType, res.Type)
	})

	t.Run("malformed frame", func(t *testing.T) {
		err := clientA.SendRaw("{")
		require.NoError(t, err)

		res := receiveError(t, clientA)
		require.Equal(t, ErrTypeBadMsg, res.Type)
	})

	t.Run("connection stays open", func(t *testing.T) {
		err := clientA.Send(MsgTypePingRequest, 10, nil)
		require.NoError(t, err)

		_, err = clientA.Receive(MsgTypePingResponse, testTimeout)
		require.NoError(t, err)
	})
}

func TestHandlerDisconnectUnsubscribes(t *testing.T) {
	worlds, world := newTestWorlds(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(worlds))
	defer close()

	join(t, clientA, world)
	require.Equal(t, 1, world.SubscriberCount())

	clientA.Close()
	require.Eventually(t, func() bool {
		return world.SubscriberCount() == 0
	}, testTimeout, time.Millisecond*10)
}
