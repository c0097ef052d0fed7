package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/jaws/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a realtime world handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to join a world.
	HandleWorldJoin(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to split a cell of the joined world.
	HandleCellSplit(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to merge an area of the joined world.
	HandleCellMerge(ctx context.Context, respond ResponseSender, msg Msg) error

	HandleCellNeighbors(ctx context.Context, respond ResponseSender, msg Msg) error

	HandleCellArea(ctx context.Context, respond ResponseSender, msg Msg) error

	HandleCellDepth(ctx context.Context, respond ResponseSender, msg Msg) error

	// Sends a sync clock message to the client.
	SendSyncClock(ctx context.Context, respond ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to write outgoing messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The interval between each sync clock message sent to the connected
	// client.
	SyncClockInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// The currently joined world.
	CurrentWorld() *models.World

	GetClientID() string
}

// Handle runs the given handler until the connection is closed, the client
// stays idle or the context is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The world handler.
	Handler Handler

	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	syncClockTicker := time.NewTicker(h.Handler.SyncClockInterval())
	defer syncClockTicker.Stop()

	var responder = responseSender{
		sendMsg:  h.sendMsg,
		clientID: h.Handler.GetClientID(),
	}

	for {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())
			wg.Wait()
			return

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case <-syncClockTicker.C:
			if err := h.Handler.SendSyncClock(ctx, responder); err != nil {
				h.disconnect(errors.New("sending sync clock failed").Wrap(err))
			}

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			h.handleMessage(ctx, msg, responder)

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)

			// cancel context so go routines can cleanly exit
			cancel()
			wg.Wait()
			return
		}
	}
}

// sendMsg queues a message without blocking. A client that does not drain
// its queue is disconnected.
func (h *handler) sendMsg(msg Msg) {
	select {
	case h.sendChan <- msg:

	default:
		h.disconnect(errors.New("send queue is full").
			WithTag("msg_type", msg.Type).
			WithTag("queue_size", sendChanSize))
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if errors.IsType(err, ErrTypeBadMsg) {
				// Malformed frames are answered and skipped.
				msg = Msg{Type: MsgTypeErrorResponse}
			} else if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case <-ctx.Done():
				return
			case h.receiveChan <- msg:
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) {
	var err error

	switch msg.Type {
	case MsgTypePingRequest:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeWorldJoinRequest:
		err = h.Handler.HandleWorldJoin(ctx, responder, msg)

	case MsgTypeCellSplitRequest:
		err = h.Handler.HandleCellSplit(ctx, responder, msg)

	case MsgTypeCellMergeRequest:
		err = h.Handler.HandleCellMerge(ctx, responder, msg)

	case MsgTypeCellNeighborsRequest:
		err = h.Handler.HandleCellNeighbors(ctx, responder, msg)

	case MsgTypeCellAreaRequest:
		err = h.Handler.HandleCellArea(ctx, responder, msg)

	case MsgTypeCellDepthRequest:
		err = h.Handler.HandleCellDepth(ctx, responder, msg)

	case MsgTypeErrorResponse:
		err = errors.New("malformed message").
			WithType(ErrTypeBadMsg)

	default:
		err = errors.New("unknown message type").
			WithType(ErrTypeUnknownMsgType).
			WithTag("msg_type", msg.Type)
	}

	if err != nil {
		respondError(responder, msg.RequestID, err)
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

// respondError answers a failed request with the type of its error.
func respondError(respond ResponseSender, requestID uint32, err error) {
	errType := errors.Type(err)
	if errType == "" {
		errType = "internal"
	}

	respond.Send(MsgTypeErrorResponse, requestID, ErrorResponse{
		Type:    errType,
		Message: err.Error(),
	})
}

type responseSender struct {
	sendMsg  func(Msg)
	clientID string
}

func (r responseSender) Send(t MsgType, requestID uint32, data any) {
	msg, err := NewMsg(t, requestID, data)
	if err != nil {
		logs.WithTag(logs.ClientIDTag, r.clientID).
			WithTag("msg_type", t).
			Error(err)
		return
	}
	r.sendMsg(msg)
}

func (r responseSender) SendMsg(msg Msg) {
	r.sendMsg(msg)
}
