package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	jawshttp "github.com/aukilabs/jaws/http"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingEnv starts a server running the handlers returned by newHandler
// and connects two clients to it.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*TestClient, *TestClient, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*TestClient, *TestClient, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newConn := func() *TestClient {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		config.Header.Set("X-Forwarded-For", "192.0.0.0")
		config.Header.Set(jawshttp.HeaderClientID, uuid.NewString())

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		return &TestClient{
			Conn:    conn,
			send:    NewSender(conn),
			receive: NewReceiver(conn),
		}
	}

	clientA := newConn()
	clientB := newConn()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

// TestClient is a client connection used in tests.
type TestClient struct {
	*websocket.Conn

	send    Sender
	receive Receiver
}

// Send sends a message of the given type.
func (c *TestClient) Send(t MsgType, requestID uint32, data any) error {
	msg, err := NewMsg(t, requestID, data)
	if err != nil {
		return err
	}

	_, err = c.send(msg)
	return err
}

// SendRaw writes a raw text frame.
func (c *TestClient) SendRaw(s string) error {
	return websocket.Message.Send(c.Conn, s)
}

// Receive returns the first received message of the given type, skipping
// the others. It fails after timeout.
func (c *TestClient) Receive(t MsgType, timeout time.Duration) (Msg, error) {
	c.SetReadDeadline(time.Now().Add(timeout))
	defer c.SetReadDeadline(time.Time{})

	for {
		msg, _, err := c.receive()
		if err != nil {
			return Msg{}, errors.New("receiving message failed").
				WithTag("expected_msg_type", t).
				Wrap(err)
		}

		if msg.Type == t {
			return msg, nil
		}
	}
}
