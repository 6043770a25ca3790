package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
)

// Event names sent on a session stream.
const (
	EventConnected = "connected"
	EventSnapshot  = "snapshot"
	EventLeaf      = "leaf"
	EventReload    = "reload"
)

// Message is one server-sent event.
type Message struct {
	Event string
	Data  []byte
}

// Hub fans session events out to connected SSE clients.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[chan Message]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics: make(map[string]map[chan Message]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers a client for topic. The returned func unregisters it.
func (h *Hub) Subscribe(topic string) (<-chan Message, func()) {
	ch := make(chan Message, 8)
	h.mu.Lock()
	clients, ok := h.topics[topic]
	if !ok {
		clients = make(map[chan Message]struct{})
		h.topics[topic] = clients
	}
	clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if clients, ok := h.topics[topic]; ok {
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}
			if len(clients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

// Publish encodes payload and sends it to every client of topic. Slow
// clients miss the event rather than blocking the publisher.
func (h *Hub) Publish(topic, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Message{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.topics[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// CloseTopic disconnects every client of topic.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[topic] {
		close(ch)
	}
	delete(h.topics, topic)
}

// ClientCount returns the number of clients subscribed to topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.topics {
		for ch := range clients {
			close(ch)
		}
	}
	h.topics = make(map[string]map[chan Message]struct{})
}

// Stream writes topic's events to w until the request ends, the topic is
// closed or the hub stops. initial is sent first as a snapshot event.
func (h *Hub) Stream(w http.ResponseWriter, r *http.Request, topic string, initial any) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := h.Subscribe(topic)
	defer unsubscribe()

	fmt.Fprintf(w, "event: %s\ndata: {\"session\":%q}\n\n", EventConnected, topic)
	if data, err := json.Marshal(initial); err == nil {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventSnapshot, data)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}
