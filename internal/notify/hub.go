// Package notify pushes ledger events to wallet owners over websockets.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baharkarakas/wallet-engine/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks open connections per user. It is an events.Publisher.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{clients: map[string]map[*client]struct{}{}}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Serve upgrades the request and streams events for userID until the peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	slog.Debug("ws connected", "user_id", userID)

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = map[*client]struct{}{}
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// readLoop only exists to process control frames and notice disconnects.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		slog.Debug("ws disconnected", "user_id", c.userID)
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish sends e to every connection of the users it touches. Slow
// connections drop the message instead of blocking the publisher.
func (h *Hub) Publish(ctx context.Context, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, uid := range e.Recipients() {
		for c := range h.clients[uid] {
			select {
			case c.send <- b:
			default:
				slog.Warn("ws send buffer full, dropping event", "user_id", uid, "transaction_id", e.Transaction.ID)
			}
		}
	}
	return nil
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
