package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/gorilla/websocket"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// FrameEvent is the per-frame message sent to results subscribers.
type FrameEvent struct {
	Seq       int                        `json:"seq"`
	Hands     int                        `json:"hands"`
	Results   []app.ClassificationResult `json:"results"`
	Timestamp int64                      `json:"timestamp"`
}

// ResultsHub fans out live stream results to WebSocket subscribers.
type ResultsHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	closed  bool
}

// NewResultsHub creates an empty hub.
func NewResultsHub() *ResultsHub {
	return &ResultsHub{clients: make(map[*websocket.Conn]bool)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ResultsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	defer h.remove(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish sends an event to every subscriber. Subscribers that cannot keep
// up are dropped.
func (h *ResultsHub) Publish(event FrameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("encode frame event: %v", err)
		return
	}

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *ResultsHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *ResultsHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *ResultsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}
