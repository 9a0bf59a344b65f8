package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// ErrSendBufferFull is returned by Client.Send when the outbound buffer is
// full, which the hub treats as a dead connection.
var ErrSendBufferFull = errors.New("send buffer full")

// Event is a control message read from a client. The only event clients send
// today is a room join.
type Event struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
}

// Client adapts one gorilla websocket connection to the hub's Sender
// contract. Outbound payloads go through a buffered channel drained by the
// write pump so broadcasts never block on a slow socket.
type Client struct {
	id   string
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte
	log  *slog.Logger
}

// NewClient wraps an upgraded websocket connection.
func NewClient(id string, ws *websocket.Conn, h *Hub, log *slog.Logger) *Client {
	return &Client{
		id:   id,
		hub:  h,
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		log:  log,
	}
}

// ID implements Sender.
func (c *Client) ID() string { return c.id }

// Send implements Sender. It never blocks: if the buffer is full the client
// is considered dead and the caller evicts it.
func (c *Client) Send(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close implements Sender.
func (c *Client) Close() error {
	return c.ws.Close()
}

// Start registers the client with the hub and launches the read and write
// pumps.
func (c *Client) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.id)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}
		c.handleEvent(data)
	}
}

func (c *Client) handleEvent(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Warn("invalid event", "clientId", c.id, "error", err)
		return
	}

	switch ev.Type {
	case "join":
		if ev.Room == "" {
			c.log.Warn("join event without room", "clientId", c.id)
			return
		}
		c.hub.Join(c.id, ev.Room)
	default:
		c.log.Warn("unknown event type", "clientId", c.id, "type", ev.Type)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
