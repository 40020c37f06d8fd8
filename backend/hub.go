package main

import (
	"encoding/json"
	"sync"
)

type Hub struct {
	mu               sync.Mutex
	clients          map[*Client]struct{}
	broadcastStatus  chan StatusResponse
	broadcastHistory chan historyPayload
	broadcastReset   chan StatusResponse
	broadcastConfig  chan configPayload
}

type Client struct {
	hub  *Hub
	send chan []byte
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type historyPayload struct {
	History []HistoryEntry `json:"history"`
}

type configPayload struct {
	Config Config `json:"config"`
}

func NewHub() *Hub {
	return &Hub{
		clients:          make(map[*Client]struct{}),
		broadcastStatus:  make(chan StatusResponse, 32),
		broadcastHistory: make(chan historyPayload, 32),
		broadcastReset:   make(chan StatusResponse, 8),
		broadcastConfig:  make(chan configPayload, 8),
	}
}

func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-h.broadcastStatus:
			h.fanOut(wsMessage{Type: "status", Payload: mustMarshal(payload)})
		case payload := <-h.broadcastHistory:
			h.fanOut(wsMessage{Type: "history", Payload: mustMarshal(payload)})
		case payload := <-h.broadcastReset:
			h.fanOut(wsMessage{Type: "reset", Payload: mustMarshal(payload)})
		case payload := <-h.broadcastConfig:
			h.fanOut(wsMessage{Type: "config", Payload: mustMarshal(payload)})
		}
	}
}

func (h *Hub) fanOut(msg wsMessage) {
	h.mu.Lock()
	for client := range h.clients {
		client.sendJSON(msg)
	}
	h.mu.Unlock()
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) HasClients() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

func (c *Client) sendJSON(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	// Slow consumers drop messages rather than stall the hub.
	select {
	case c.send <- data:
	default:
	}
}
