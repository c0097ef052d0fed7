package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeWorldNotJoined = "world_not_joined"
	ErrTypeUnknownMsgType = "unknown_msg_type"
	ErrTypeBadMsg         = "bad_msg"
)

// MsgType identifies the payload carried by a message.
type MsgType string

const (
	MsgTypeSyncClock     MsgType = "sync_clock"
	MsgTypeErrorResponse MsgType = "error_response"

	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"

	MsgTypeWorldJoinRequest  MsgType = "world_join_request"
	MsgTypeWorldJoinResponse MsgType = "world_join_response"

	MsgTypeCellSplitRequest  MsgType = "cell_split_request"
	MsgTypeCellSplitResponse MsgType = "cell_split_response"

	MsgTypeCellMergeRequest  MsgType = "cell_merge_request"
	MsgTypeCellMergeResponse MsgType = "cell_merge_response"

	MsgTypeCellNeighborsRequest  MsgType = "cell_neighbors_request"
	MsgTypeCellNeighborsResponse MsgType = "cell_neighbors_response"

	MsgTypeCellAreaRequest  MsgType = "cell_area_request"
	MsgTypeCellAreaResponse MsgType = "cell_area_response"

	MsgTypeCellDepthRequest  MsgType = "cell_depth_request"
	MsgTypeCellDepthResponse MsgType = "cell_depth_response"

	// Pushed to clients that joined a world after each split or merge.
	MsgTypeTopologyBroadcast MsgType = "topology_broadcast"
)

// Msg is the JSON envelope of every message exchanged with clients.
type Msg struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Time      time.Time       `json:"time"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMsg creates a message with the given payload.
func NewMsg(t MsgType, requestID uint32, data any) (Msg, error) {
	msg := Msg{
		Type:      t,
		RequestID: requestID,
		Time:      time.Now(),
	}

	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Msg{}, errors.New("encoding message data failed").
				WithTag("msg_type", t).
				Wrap(err)
		}
		msg.Data = b
	}
	return msg, nil
}

// DataTo decodes the message payload into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeBadMsg).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// Receiver reads the next message from a connection. It returns the number
// of bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection. It returns the number of bytes
// written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the client.
type ResponseSender interface {
	// Encodes data and sends it in a message of the given type.
	Send(t MsgType, requestID uint32, data any)

	SendMsg(Msg)
}

func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var b []byte
		if err := websocket.Message.Receive(conn, &b); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(b, &msg); err != nil {
			return Msg{}, len(b), errors.New("decoding message failed").
				WithType(ErrTypeBadMsg).
				Wrap(err)
		}
		return msg, len(b), nil
	}
}

func NewSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type SyncClock struct {
	ServerTime time.Time `json:"server_time"`
}
