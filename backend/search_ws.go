package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// The search hub streams per-depth progress events to anyone watching
// the "thinking" indicator. Events are fire-and-forget; a UI that missed
// depth 3 still renders depth 4.
type searchProgressPayload struct {
	Event     string        `json:"event"`
	Progress  ProgressEvent `json:"progress"`
	Thinking  bool          `json:"thinking"`
	UpdatedAt int64         `json:"updated_at_ms"`
}

type SearchClient struct {
	hub  *SearchHub
	conn *websocket.Conn
	send chan []byte
}

type SearchHub struct {
	mu        sync.Mutex
	clients   map[*SearchClient]struct{}
	broadcast chan searchProgressPayload
	latest    searchProgressPayload
	hasLatest bool
}

func NewSearchHub() *SearchHub {
	return &SearchHub{
		clients:   make(map[*SearchClient]struct{}),
		broadcast: make(chan searchProgressPayload, 64),
	}
}

func (h *SearchHub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-h.broadcast:
			h.mu.Lock()
			h.latest = payload
			h.hasLatest = true
			if len(h.clients) == 0 {
				h.mu.Unlock()
				continue
			}
			for client := range h.clients {
				client.sendJSON(wsMessage{Type: "search", Payload: mustMarshal(payload)})
			}
			h.mu.Unlock()
		}
	}
}

func (h *SearchHub) PublishProgress(ev ProgressEvent, thinking bool) {
	payload := searchProgressPayload{
		Event:     "depth_completed",
		Progress:  ev,
		Thinking:  thinking,
		UpdatedAt: time.Now().UnixMilli(),
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

func (h *SearchHub) Register(c *SearchClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *SearchHub) Unregister(c *SearchClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (c *SearchClient) sendJSON(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func serveSearchWS(hub *SearchHub, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &SearchClient{hub: hub, conn: conn, send: make(chan []byte, 16)}
	hub.Register(client)

	hub.mu.Lock()
	if hub.hasLatest {
		client.sendJSON(wsMessage{Type: "search", Payload: mustMarshal(hub.latest)})
	}
	hub.mu.Unlock()

	go func() {
		defer conn.Close()
		if err := pumpWS(conn, client.send); err != nil {
			return
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unregister(client)
			return
		}
	}
}
