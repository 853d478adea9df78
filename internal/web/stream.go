package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teahouse-finance/tvault/internal/types"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512

	sendBufferSize      = 64
	broadcastBufferSize = 256
)

// ReceiptHub pushes every committed operation receipt to the connected
// websocket clients. Slow clients are dropped rather than allowed to block
// the vault.
type ReceiptHub struct {
	upgrader websocket.Upgrader

	clients    map[*streamClient]bool
	register   chan *streamClient
	unregister chan *streamClient
	broadcast  chan []byte
	done       chan struct{}

	mu sync.RWMutex
}

type streamClient struct {
	hub  *ReceiptHub
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewReceiptHub creates a hub accepting upgrades from origin, or from any
// origin when it is "*" or empty.
func NewReceiptHub(origin string) *ReceiptHub {
	return &ReceiptHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if origin == "" || origin == "*" {
					return true
				}
				return r.Header.Get("Origin") == origin
			},
		},
		clients:    make(map[*streamClient]bool),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		broadcast:  make(chan []byte, broadcastBufferSize),
		done:       make(chan struct{}),
	}
}

// Run services the hub until ctx is done, then disconnects every client.
func (h *ReceiptHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			webLogger.Info().Msg("Receipt stream stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			webLogger.Debug().Str("client_id", client.id).Msg("Receipt stream client connected")

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
					webLogger.Warn().Str("client_id", client.id).Msg("Dropping slow receipt stream client")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *ReceiptHub) removeClient(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		webLogger.Debug().Str("client_id", client.id).Msg("Receipt stream client disconnected")
	}
}

// PublishReceipt queues receipt for broadcast. It never blocks; receipts are
// dropped when the queue is full.
func (h *ReceiptHub) PublishReceipt(receipt types.OperationReceipt) {
	message, err := json.Marshal(receipt)
	if err != nil {
		webLogger.Error().Err(err).Str("receipt_id", receipt.ID).Msg("Failed to encode receipt for stream")
		return
	}
	select {
	case h.broadcast <- message:
	default:
		webLogger.Warn().Str("receipt_id", receipt.ID).Msg("Receipt stream queue full, dropping receipt")
	}
}

// ClientCount returns the number of connected clients.
func (h *ReceiptHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams receipts to it.
func (h *ReceiptHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		webLogger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &streamClient{
		hub:  h,
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards client messages and keeps the read deadline moving on pongs.
func (c *streamClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				webLogger.Debug().Err(err).Str("client_id", c.id).Msg("Receipt stream read error")
			}
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
