package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

type (
	// Client represents a WebSocket connection streaming run snapshots.
	// Nothing is sent until the client subscribes
	Client struct {
		conn       *websocket.Conn
		consumer   engine.RunConsumer
		getState   StateFunc
		onClose    func(*Client)
		runID      api.RunID
		subscribed bool
		closeOnce  sync.Once
	}

	// StateFunc retrieves the latest snapshot of a run
	StateFunc func(api.RunID) (*api.RunState, error)
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16

	subscribeMessage = "subscribe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades an HTTP connection to WebSocket and starts
// streaming run snapshots based on the client's subscription. onOpen is
// called before streaming begins and onClose once the connection ends
func HandleWebSocket(
	eng *engine.Engine, w http.ResponseWriter, r *http.Request,
	onOpen, onClose func(*Client),
) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		consumer: eng.NewConsumer(),
		getState: eng.GetRun,
		onClose:  onClose,
	}
	if onOpen != nil {
		onOpen(client)
	}

	go client.run()
}

func (s *Server) handleWebSocket(c *gin.Context) {
	HandleWebSocket(s.engine, c.Writer, c.Request,
		s.registerWebSocket, s.unregisterWebSocket,
	)
}

// Close terminates the connection and stops streaming
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.consumer.Close()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

func (c *Client) run() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			c.handleSubscribe(message)

		case st, ok := <-c.consumer.Receive():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.sendIfMatched(st) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	defer close(incoming)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		incoming <- message
	}
}

func (c *Client) handleSubscribe(message []byte) {
	var sub api.SubscribeRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		slog.Error("Failed to parse WebSocket message",
			log.Error(err))
		return
	}

	if sub.Type != subscribeMessage {
		return
	}

	c.runID = sub.Data.RunID
	c.subscribed = true
	c.sendSubscribed()
}

func (c *Client) sendSubscribed() {
	msg := &api.RunEvent{
		Type:      api.EventTypeSubscribed,
		RunID:     c.runID,
		Timestamp: time.Now().UnixMilli(),
	}
	if c.runID != "" {
		if st, err := c.getState(c.runID); err == nil {
			msg.Data = st
		}
	}
	c.write(msg)
}

func (c *Client) sendIfMatched(st *api.RunState) bool {
	if !c.matches(st) {
		return true
	}
	return c.write(&api.RunEvent{
		Type:      api.EventTypeRunUpdated,
		RunID:     st.ID,
		Data:      st,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *Client) matches(st *api.RunState) bool {
	if st == nil || !c.subscribed {
		return false
	}
	return c.runID == "" || c.runID == st.ID
}

func (c *Client) write(ev *api.RunEvent) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		slog.Error("WebSocket write failed",
			log.RunID(ev.RunID),
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
