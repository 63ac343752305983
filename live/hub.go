// Package live streams per-variant availability changes to connected
// storefront clients over a websocket feed.
package live

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StockUpdate is one feed message.
type StockUpdate struct {
	Type      string `json:"type"`
	VariantID string `json:"variantId"`
	Available int    `json:"available"`
}

// Hub fans stock updates out to every connected client. It satisfies
// the inventory ledger's Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan StockUpdate
	done    chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan StockUpdate),
		done:    make(chan struct{}),
	}
}

// StockChanged queues an update for every client. Slow clients drop
// updates rather than block the ledger.
func (h *Hub) StockChanged(variantID string, available int) {
	update := StockUpdate{Type: "stock_update", VariantID: variantID, Available: available}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, ch := range h.clients {
		select {
		case ch <- update:
		default:
			log.Printf("live: dropping stock update for slow client %s", conn.RemoteAddr())
		}
	}
}

// Serve handles GET /ws/stock.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("live: upgrade failed: %v", err)
		return
	}

	ch := make(chan StockUpdate, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	go h.writeLoop(conn, ch)
	h.readLoop(conn)
}

func (h *Hub) writeLoop(conn *websocket.Conn, ch chan StockUpdate) {
	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(update)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-h.done:
			return
		}
	}
}

// readLoop drains the connection until the client goes away, then
// unregisters it.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		if ch, ok := h.clients[conn]; ok {
			close(ch)
			delete(h.clients, conn)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Stop closes the hub and every client connection.
func (h *Hub) Stop() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		close(ch)
		conn.Close()
		delete(h.clients, conn)
	}
}
