// Package live pushes reveal steps to the screens watching a draw.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// Hub fans messages out to the websocket clients of each tenant.
// The client registry is owned by the Run loop.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan message

	done chan struct{}

	upgrader websocket.Upgrader
}

type message struct {
	tenant  string
	payload []byte
}

// Client is one connected screen.
type Client struct {
	hub    *Hub
	tenant string
	conn   *websocket.Conn

	outgoing chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.outgoing)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return

		case c := <-h.register:
			if h.clients[c.tenant] == nil {
				h.clients[c.tenant] = make(map[*Client]bool)
			}
			h.clients[c.tenant][c] = true

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.broadcast:
			for c := range h.clients[m.tenant] {
				select {
				case c.outgoing <- m.payload:
				default:
					logger.Warningf("live: dropping slow client of tenant %s", c.tenant)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.tenant]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.outgoing)
	if len(set) == 0 {
		delete(h.clients, c.tenant)
	}
}

// Publish sends v as JSON to every client of tenant. It never blocks: when
// the broadcast queue is full the message is dropped, since screens resync
// from the next step.
func (h *Hub) Publish(tenant string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("live: marshal message for tenant %s: %v", tenant, err)
		return
	}

	select {
	case h.broadcast <- message{tenant: tenant, payload: payload}:
	default:
		logger.Warningf("live: broadcast queue full, dropping message for tenant %s", tenant)
	}
}

// ServeWS upgrades the request and attaches the connection to tenant.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenant string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{hub: h, tenant: tenant, conn: conn, outgoing: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump discards client input and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
